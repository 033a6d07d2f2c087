package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/petra184/mobile-app-sub002/internal/app"
	"github.com/petra184/mobile-app-sub002/internal/model"
)

func newCartCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the rewards cart",
	}
	cmd.AddCommand(newCartAddCommand(opts))
	cmd.AddCommand(newCartMutationCommand(opts, "remove <item-id>", "Remove an item entirely", 1,
		func(ctx context.Context, a *app.App, args []string) error {
			a.Cart.RemoveFromCart(args[0])
			return nil
		}))
	cmd.AddCommand(newCartMutationCommand(opts, "remove-one <item-id>", "Decrease an item's quantity by one", 1,
		func(ctx context.Context, a *app.App, args []string) error {
			a.Cart.RemoveOneFromCart(args[0])
			return nil
		}))
	cmd.AddCommand(newCartMutationCommand(opts, "set <item-id> <quantity>", "Set an item's quantity (0 removes it)", 2,
		func(ctx context.Context, a *app.App, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("quantity must be an integer, got %q", args[1]))
			}
			a.Cart.UpdateQuantity(args[0], n)
			return nil
		}))
	cmd.AddCommand(newCartMutationCommand(opts, "clear", "Empty the cart", 0,
		func(ctx context.Context, a *app.App, args []string) error {
			a.Cart.ClearCart(ctx)
			return nil
		}))
	cmd.AddCommand(newCartMutationCommand(opts, "list", "Show the cart", 0, nil))
	return cmd
}

func newCartAddCommand(opts *RootOptions) *cobra.Command {
	var item model.RewardItem
	cmd := &cobra.Command{
		Use:   "add <item-id> <name> <points>",
		Short: "Add one of a reward item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := strconv.Atoi(args[2])
			if err != nil || points < 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("points must be a non-negative integer, got %q", args[2]))
			}
			item.ID, item.Name, item.PointsRequired = args[0], args[1], points
			return runCart(cmd, opts, func(ctx context.Context, a *app.App, _ []string) error {
				a.Cart.AddToCart(item)
				return nil
			}, args)
		},
	}
	cmd.Flags().StringVar(&item.Description, "description", "", "item description")
	cmd.Flags().StringVar(&item.ImageURL, "image-url", "", "item image URL")
	return cmd
}

type cartFunc func(ctx context.Context, a *app.App, args []string) error

func newCartMutationCommand(opts *RootOptions, use, short string, nargs int, fn cartFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(cmd, opts, fn, args)
		},
	}
}

// runCart applies fn to the signed-in user's cart and prints the result.
func runCart(cmd *cobra.Command, opts *RootOptions, fn cartFunc, args []string) error {
	return opts.run(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
		if _, err := requireSession(a); err != nil {
			return err
		}
		if fn != nil {
			if err := fn(ctx, a, args); err != nil {
				return err
			}
		}
		st := a.Cart.State()
		return out.Result(st, func(w io.Writer) {
			if len(st.Items) == 0 {
				fmt.Fprintln(w, "Cart is empty")
				return
			}
			for _, e := range st.Items {
				fmt.Fprintf(w, "%-12s %-24s x%-3d %6d pts\n", e.ID, e.Name, e.Quantity, e.PointsRequired*e.Quantity)
			}
			fmt.Fprintf(w, "%d items, %d points\n", st.TotalItems, st.TotalPoints)
		})
	})
}
