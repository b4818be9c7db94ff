package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"debtr/internal/cli"
	httpapi "debtr/internal/http"
	dlog "debtr/internal/log"
	"debtr/internal/middleware/ratelimit"
	"debtr/internal/services"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and roll the month over while running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :$PORT)")

	return cmd
}

func runServe(parent context.Context, addr string) error {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, dlog.ComponentApp)
	if addr == "" {
		addr = ":" + cfg.Port
	}

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Shutdown incomplete", "error", err)
		}
	}()

	srv, err := httpapi.NewServer(addr, app.Engine, httpapi.Options{
		Logger: logger.WithComponent(dlog.ComponentHTTP),
		RateLimit: ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			Burst:             cfg.RateLimitBurst,
		},
		TrustedProxies: cfg.TrustedProxies,
		Metrics:        app.Metrics,
	})
	if err != nil {
		return err
	}

	parent, stop := context.WithCancel(parent)
	defer stop()
	ctx, done := cli.GracefulShutdown(parent, logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("HTTP server shutdown failed", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr, dlog.FieldOperation, dlog.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := services.RunActivation(gctx, app.Engine, cfg.ActivationInterval, logger.Logger)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err = g.Wait()
	stop()
	cli.WaitForShutdown(ctx, done)
	return err
}
