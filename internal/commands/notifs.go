package commands

import (
	"context"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/hako/durafmt"
	"github.com/spf13/cobra"

	"debtr/internal/cli"
	"debtr/internal/core"
	"debtr/internal/services"
)

func newNotifsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "notifs",
		Aliases: []string{"reminders"},
		Short:   "List scheduled reminders",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return runNotifs(cmd.OutOrStdout(), app.Engine.Snapshot(), time.Now())
			})
		},
	}
}

func runNotifs(out io.Writer, snap *services.Snapshot, now time.Time) error {
	if len(snap.Notifications) == 0 {
		fmt.Fprintln(out, "No reminders scheduled.")
		return nil
	}

	owner := make(map[string]services.ItemView, len(snap.Items))
	for _, v := range snap.Items {
		if v.Notification != nil {
			owner[v.Notification.ID] = v
		}
	}

	notifs := slices.Clone(snap.Notifications)
	slices.SortFunc(notifs, func(a, b core.Notification) int { return a.Date.Compare(b.Date) })

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tIN\tITEM\tAMOUNT")
	for _, n := range notifs {
		item, amount := "?", "-"
		if v, ok := owner[n.ID]; ok {
			item = v.Description
			amount = formatAmount(v.Amount, snap.Currency, snap.Locale)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.Date.Local().Format("2006-01-02 15:04"), until(n.Date, now), item, amount)
	}
	return tw.Flush()
}

// until renders the time left before t in its two largest units.
func until(t, now time.Time) string {
	d := t.Sub(now)
	if d <= 0 {
		return "due"
	}
	return durafmt.Parse(d.Truncate(time.Minute)).LimitFirstN(2).String()
}
