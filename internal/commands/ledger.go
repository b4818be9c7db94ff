package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"debtr/internal/cli"
	"debtr/internal/core"
	"debtr/internal/ledger"
	"debtr/internal/services"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current month and the amount left to pay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return runStatus(cmd.OutOrStdout(), app.Engine.Snapshot())
			})
		},
	}
}

func runStatus(out io.Writer, snap *services.Snapshot) error {
	visible := snap.Visible()
	paid := 0
	for _, v := range visible {
		if v.IsPaid {
			paid++
		}
	}
	fmt.Fprintf(out, "%s %d\n", core.MonthName(snap.CurrMonth), snap.CurrYear)
	fmt.Fprintf(out, "Left to pay: %s\n", formatAmount(snap.AmountLeft, snap.Currency, snap.Locale))
	fmt.Fprintf(out, "Due this month: %d (%d paid)\n", len(visible), paid)
	if hidden := len(snap.Items) - len(visible); hidden > 0 {
		fmt.Fprintf(out, "Not due this month: %d\n", hidden)
	}
	if snap.Degraded {
		fmt.Fprintln(out, "Store could not be read; changes are kept in memory only until it recovers.")
	}
	return nil
}

func newListCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the items due this month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return runList(cmd.OutOrStdout(), app.Engine.Snapshot(), all, terminalWidth())
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include items not due this month")

	return cmd
}

func runList(out io.Writer, snap *services.Snapshot, all bool, width int) error {
	items := snap.Visible()
	if all {
		items = snap.Items
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "No items.")
		return nil
	}

	descWidth := max(width-64, minDescWidth)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDESCRIPTION\tAMOUNT\tMONTHS\tPAID\tREMINDER")
	for _, v := range items {
		paid := "no"
		switch {
		case !v.IsVisible:
			paid = "-"
		case v.IsPaid:
			paid = "yes"
		}
		reminder := "-"
		if v.Notification != nil {
			reminder = v.Notification.Date.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(v.ID),
			truncate(v.Description, descWidth),
			formatAmount(v.Amount, snap.Currency, snap.Locale),
			v.Months.Describe(),
			paid,
			reminder)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nLeft to pay: %s\n", formatAmount(snap.AmountLeft, snap.Currency, snap.Locale))
	return nil
}

func newAddCommand() *cobra.Command {
	var (
		desc   string
		amount string
		months []int
		remind string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a recurring or one-off item",
		Example: `  debtr add --desc Rent --amount 700
  debtr add --desc "Car insurance" --amount 240,50 --months 0,6 --remind "2024-01-10 09:00"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creation, err := itemCreation(desc, amount, months, remind)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				res, err := app.Engine.Dispatch(ctx, ledger.AddItem{Item: creation})
				if err != nil {
					return err
				}
				warn(cmd.ErrOrStderr(), res.Warning)
				return printChange(cmd.OutOrStdout(), "Added", res)
			})
		},
	}

	cmd.Flags().StringVarP(&desc, "desc", "d", "", "description (required)")
	_ = cmd.MarkFlagRequired("desc")
	cmd.Flags().StringVarP(&amount, "amount", "m", "", "amount, with . or , as decimal separator (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().IntSliceVar(&months, "months", nil, "zero-based months the item is due in; empty means every month")
	cmd.Flags().StringVar(&remind, "remind", "", "reminder date and time")

	return cmd
}

func itemCreation(desc, amount string, months []int, remind string) (core.ItemCreation, error) {
	value, err := core.ParseAmount(amount)
	if err != nil {
		return core.ItemCreation{}, err
	}
	ms, err := core.NewMonths(months...)
	if err != nil {
		return core.ItemCreation{}, err
	}
	c := core.ItemCreation{
		Description: strings.TrimSpace(desc),
		Amount:      value,
		Months:      ms,
	}
	if remind != "" {
		if c.Notification, err = parseReminder(remind, time.Local); err != nil {
			return core.ItemCreation{}, err
		}
	}
	return c, c.Validate()
}

func newUpdateCommand() *cobra.Command {
	var (
		desc     string
		amount   string
		months   []int
		remind   string
		noRemind bool
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change an item; flags not given keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if noRemind && remind != "" {
				return fmt.Errorf("--remind and --no-remind are exclusive")
			}
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				snap := app.Engine.Snapshot()
				id, err := resolveID(snap, args[0])
				if err != nil {
					return err
				}
				view, _ := snap.Item(id)
				item := view.Item.Clone()

				flags := cmd.Flags()
				if flags.Changed("desc") {
					item.Description = strings.TrimSpace(desc)
				}
				if flags.Changed("amount") {
					if item.Amount, err = core.ParseAmount(amount); err != nil {
						return err
					}
				}
				if flags.Changed("months") {
					if item.Months, err = core.NewMonths(months...); err != nil {
						return err
					}
				}
				switch {
				case noRemind:
					item.Notification = nil
				case remind != "":
					if item.Notification, err = parseReminder(remind, time.Local); err != nil {
						return err
					}
				}

				res, err := app.Engine.Dispatch(ctx, ledger.UpdateItem{Item: item})
				if err != nil {
					return err
				}
				warn(cmd.ErrOrStderr(), res.Warning)
				return printChange(cmd.OutOrStdout(), "Updated", res)
			})
		},
	}

	cmd.Flags().StringVarP(&desc, "desc", "d", "", "new description")
	cmd.Flags().StringVarP(&amount, "amount", "m", "", "new amount")
	cmd.Flags().IntSliceVar(&months, "months", nil, "new months; pass --months= for every month")
	cmd.Flags().StringVar(&remind, "remind", "", "new reminder date and time")
	cmd.Flags().BoolVar(&noRemind, "no-remind", false, "drop the reminder")

	return cmd
}

func newPayCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "pay ID",
		Aliases: []string{"toggle"},
		Short:   "Toggle whether an item is paid this month",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				id, err := resolveID(app.Engine.Snapshot(), args[0])
				if err != nil {
					return err
				}
				res, err := app.Engine.Dispatch(ctx, ledger.ToggleItemPaid{ID: id})
				if err != nil {
					return err
				}
				warn(cmd.ErrOrStderr(), res.Warning)
				verb := "Marked unpaid"
				if res.Item != nil && res.Item.IsPaid {
					verb = "Marked paid"
				}
				return printChange(cmd.OutOrStdout(), verb, res)
			})
		},
	}
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID",
		Aliases: []string{"rm"},
		Short:   "Delete an item and its reminder",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				id, err := resolveID(app.Engine.Snapshot(), args[0])
				if err != nil {
					return err
				}
				res, err := app.Engine.Dispatch(ctx, ledger.RemoveItem{ID: id})
				if err != nil {
					return err
				}
				warn(cmd.ErrOrStderr(), res.Warning)
				return printChange(cmd.OutOrStdout(), "Removed", res)
			})
		},
	}
}

func printChange(out io.Writer, verb string, res services.Result) error {
	snap := res.Snapshot
	if res.Item != nil {
		fmt.Fprintf(out, "%s %s (%s)\n", verb, res.Item.Description, shortID(res.Item.ID))
	}
	fmt.Fprintf(out, "Left to pay: %s\n", formatAmount(snap.AmountLeft, snap.Currency, snap.Locale))
	return nil
}
