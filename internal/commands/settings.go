package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"debtr/internal/cli"
	"debtr/internal/core"
	"debtr/internal/services"
)

func newSettingsCommand() *cobra.Command {
	var currency, locale string

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the display currency and language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return runSettings(ctx, cmd, app.Engine, currency, locale)
			})
		},
	}

	cmd.Flags().StringVar(&currency, "currency", "", fmt.Sprintf("display currency %v", core.SupportedCurrencies()))
	cmd.Flags().StringVar(&locale, "locale", "", fmt.Sprintf("language %v", core.SupportedLocales()))

	return cmd
}

type settingsEngine interface {
	Snapshot() *services.Snapshot
	SetCurrency(ctx context.Context, c core.Currency) (services.Result, error)
	SetLocale(ctx context.Context, l core.Locale) (services.Result, error)
}

func runSettings(ctx context.Context, cmd *cobra.Command, engine settingsEngine, currency, locale string) error {
	var warnings []error
	if currency != "" {
		res, err := engine.SetCurrency(ctx, core.Currency(strings.ToUpper(strings.TrimSpace(currency))))
		if err != nil {
			return err
		}
		warnings = append(warnings, res.Warning)
	}
	if locale != "" {
		res, err := engine.SetLocale(ctx, core.Locale(strings.ToLower(strings.TrimSpace(locale))))
		if err != nil {
			return err
		}
		warnings = append(warnings, res.Warning)
	}
	warn(cmd.ErrOrStderr(), errors.Join(warnings...))
	printSettings(cmd.OutOrStdout(), engine.Snapshot())
	return nil
}

func printSettings(out io.Writer, snap *services.Snapshot) {
	fmt.Fprintf(out, "Currency: %s\n", snap.Currency)
	fmt.Fprintf(out, "Locale:   %s\n", snap.Locale)
}
