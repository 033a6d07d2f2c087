package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petra184/mobile-app-sub002/internal/app"
)

func parsePoints(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("points must be a positive integer, got %q", s))
	}
	return n, nil
}

type balanceView struct {
	OK      bool `json:"ok"`
	Balance int  `json:"balance"`
}

func newEarnCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "earn <points> [description...]",
		Short: "Credit points, as a ticket scan would",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := parsePoints(args[0])
			if err != nil {
				return err
			}
			description := strings.Join(args[1:], " ")
			if description == "" {
				description = "Manual credit"
			}
			return opts.run(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if _, err := requireSession(a); err != nil {
					return err
				}
				ok := a.EarnPoints(ctx, points, description)
				return balanceResult(out, ok, a.Store.Balance(), "earn")
			})
		},
	}
}

func newRedeemCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "redeem <points>",
		Short: "Spend points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := parsePoints(args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if _, err := requireSession(a); err != nil {
					return err
				}
				ok := a.RedeemPoints(ctx, points)
				return balanceResult(out, ok, a.Store.Balance(), "redeem")
			})
		},
	}
}

func newCheckoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Redeem the cart total and empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if _, err := requireSession(a); err != nil {
					return err
				}
				ok := a.Checkout(ctx)
				return balanceResult(out, ok, a.Store.Balance(), "checkout")
			})
		},
	}
}

func balanceResult(out *OutputFormatter, ok bool, balance int, op string) error {
	if err := out.Result(balanceView{OK: ok, Balance: balance}, func(w io.Writer) {
		fmt.Fprintf(w, "Balance: %d points\n", balance)
	}); err != nil {
		return err
	}
	if !ok {
		return NewExitError(ExitFailure, op+" failed")
	}
	return nil
}

func newTeamCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "team <team-id>",
		Short: "Add or remove a favorite team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if _, err := requireSession(a); err != nil {
					return err
				}
				ok := a.ToggleFavoriteTeam(ctx, args[0])
				prefs := a.Store.Preferences()
				if err := out.Result(prefs, func(w io.Writer) {
					fmt.Fprintf(w, "Favorite teams: %s\n", joinOrNone(prefs.FavoriteTeams))
				}); err != nil {
					return err
				}
				if !ok {
					return NewExitError(ExitFailure, "team update failed")
				}
				return nil
			})
		},
	}
}

func newNotificationsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "notifications on|off",
		Short:     "Turn push notifications on or off",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled := args[0] == "on"
			return opts.run(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if _, err := requireSession(a); err != nil {
					return err
				}
				ok := a.SetNotificationsEnabled(ctx, enabled)
				prefs := a.Store.Preferences()
				if err := out.Result(prefs, func(w io.Writer) {
					fmt.Fprintf(w, "Notifications: %s\n", onOff(prefs.NotificationsEnabled))
				}); err != nil {
					return err
				}
				if !ok {
					return NewExitError(ExitFailure, "notifications update failed")
				}
				return nil
			})
		},
	}
}

func newHistoryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List scan history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if _, err := requireSession(a); err != nil {
					return err
				}
				history := a.Store.History()
				return out.Result(history, func(w io.Writer) {
					if len(history) == 0 {
						fmt.Fprintln(w, "No scans yet")
						return
					}
					for _, e := range history {
						fmt.Fprintf(w, "%s  %+5d  %s\n", e.ScannedAt.Local().Format("2006-01-02 15:04"), e.Points, e.Description)
					}
				})
			})
		},
	}
}
