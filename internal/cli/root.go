// Package cli is the fanzone command line: a thin driver over app.App that
// signs in, mutates points, preferences and the cart, and watches realtime
// activity.
package cli

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/spf13/cobra"

	"github.com/petra184/mobile-app-sub002/internal/app"
	"github.com/petra184/mobile-app-sub002/internal/config"
	"github.com/petra184/mobile-app-sub002/internal/logging"
	"github.com/petra184/mobile-app-sub002/internal/model"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Format     string // "json" | "text"
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "fanzone",
		Short:         "Fan loyalty client",
		Long:          "Sign in, earn and redeem points, manage favorites and the rewards cart, and watch live updates.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.fanzone/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newLoginCommand(opts))
	cmd.AddCommand(newLogoutCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newEarnCommand(opts))
	cmd.AddCommand(newRedeemCommand(opts))
	cmd.AddCommand(newCheckoutCommand(opts))
	cmd.AddCommand(newTeamCommand(opts))
	cmd.AddCommand(newNotificationsCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newCartCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))

	return cmd
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	path := o.ConfigPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	return cfg, nil
}

type runFunc func(ctx context.Context, a *app.App, out *OutputFormatter) error

// run opens the app, restores any saved session, runs fn and closes the
// app again so pending cart writes reach storage before the process exits.
func (o *RootOptions) run(cmd *cobra.Command, fn runFunc) (err error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "open app", err)
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = WrapExitError(ExitFailure, "close app", cerr)
		}
	}()

	out := NewOutputFormatter(o.Format, cmd.OutOrStdout(), cmd.ErrOrStderr())
	printToasts(a, out)

	if err := a.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "start", err)
	}
	return fn(ctx, a, out)
}

// printToasts echoes each toast once, as it is shown.
func printToasts(a *app.App, out *OutputFormatter) {
	var mu sync.Mutex
	seen := make(map[string]bool)
	a.Toasts.OnChange(func(toasts []model.Toast) {
		mu.Lock()
		defer mu.Unlock()
		for i := len(toasts) - 1; i >= 0; i-- {
			t := toasts[i]
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			if t.Message != "" {
				out.Notice("[%s] %s: %s", t.Type, t.Title, t.Message)
			} else {
				out.Notice("[%s] %s", t.Type, t.Title)
			}
		}
	})
}

func requireSession(a *app.App) (*model.Session, error) {
	s := a.Session.Current()
	if s == nil {
		return nil, NewExitError(ExitCommandError, "not logged in (run: fanzone login <email>)")
	}
	return s, nil
}
