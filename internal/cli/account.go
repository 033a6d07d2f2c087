package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petra184/mobile-app-sub002/internal/app"
	"github.com/petra184/mobile-app-sub002/internal/cart"
	"github.com/petra184/mobile-app-sub002/internal/model"
	"github.com/petra184/mobile-app-sub002/internal/session"
)

func newLoginCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in and load your account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				s, err := a.Login(ctx, args[0])
				if err != nil {
					return WrapExitError(ExitFailure, "login", err)
				}
				return out.Result(s, func(w io.Writer) {
					fmt.Fprintf(w, "Logged in as %s (%s)\n", s.Email, s.UserID)
					fmt.Fprintf(w, "Balance: %d points\n", a.Store.Balance())
				})
			})
		},
	}
}

func newLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				err := a.Logout(ctx)
				if errors.Is(err, session.ErrNoSession) {
					return out.Result(map[string]bool{"logged_out": false}, func(w io.Writer) {
						fmt.Fprintln(w, "Not logged in")
					})
				}
				if err != nil {
					return WrapExitError(ExitFailure, "logout", err)
				}
				return out.Result(map[string]bool{"logged_out": true}, func(w io.Writer) {
					fmt.Fprintln(w, "Logged out")
				})
			})
		},
	}
}

type statusView struct {
	Session              *model.Session `json:"session"`
	Balance              int            `json:"balance"`
	FavoriteTeams        []string       `json:"favorite_teams"`
	NotificationsEnabled bool           `json:"notifications_enabled"`
	Scans                int            `json:"scans"`
	Cart                 cart.State     `json:"cart"`
}

func newStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the signed-in user, balance, preferences and cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				snap := a.Store.Snapshot()
				v := statusView{
					Session:              a.Session.Current(),
					Balance:              snap.Balance,
					FavoriteTeams:        snap.Preferences.FavoriteTeams,
					NotificationsEnabled: snap.Preferences.NotificationsEnabled,
					Scans:                len(snap.History),
					Cart:                 a.Cart.State(),
				}
				return out.Result(v, func(w io.Writer) {
					if v.Session == nil {
						fmt.Fprintln(w, "Not logged in")
						return
					}
					fmt.Fprintf(w, "User:          %s (%s)\n", v.Session.Email, v.Session.UserID)
					fmt.Fprintf(w, "Balance:       %d points\n", v.Balance)
					fmt.Fprintf(w, "Teams:         %s\n", joinOrNone(v.FavoriteTeams))
					fmt.Fprintf(w, "Notifications: %s\n", onOff(v.NotificationsEnabled))
					fmt.Fprintf(w, "Scans:         %d\n", v.Scans)
					fmt.Fprintf(w, "Cart:          %d items, %d points\n", v.Cart.TotalItems, v.Cart.TotalPoints)
				})
			})
		},
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
