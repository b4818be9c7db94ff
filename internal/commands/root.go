// Package commands is the debtr command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/spf13/cobra"

	"debtr/internal/buildinfo"
	"debtr/internal/cli"
	dlog "debtr/internal/log"
)

// commandTimeout bounds one-shot commands. serve runs until signalled.
const commandTimeout = 30 * time.Second

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "debtr",
		Short:   "Track monthly bills and what is left to pay",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newStatusCommand(),
		newListCommand(),
		newAddCommand(),
		newUpdateCommand(),
		newPayCommand(),
		newRemoveCommand(),
		newSettingsCommand(),
		newNotifsCommand(),
		newServeCommand(),
	)

	cc.Init(&cc.Config{
		RootCmd:  rootCmd,
		Headings: cc.HiCyan + cc.Bold + cc.Underline,
		Commands: cc.HiYellow + cc.Bold,
		Example:  cc.Italic,
		ExecName: cc.Bold,
		Flags:    cc.Bold,
	})

	return rootCmd
}

// withApp loads configuration, starts the engine, activates it and runs fn.
// Activation warnings are printed but never fail the command.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *cli.App) error) error {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, dlog.ComponentCLI)

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Shutdown incomplete", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	res, err := app.Engine.Activate(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	warn(cmd.ErrOrStderr(), res.Warning)

	return fn(ctx, app)
}

func warn(w io.Writer, err error) {
	if err != nil {
		fmt.Fprintf(w, "warning: %v\n", err)
	}
}
