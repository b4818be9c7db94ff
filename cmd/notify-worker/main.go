package main

import (
	"context"
	"errors"
	"os"
	"time"

	"debtr/internal/amqp"
	"debtr/internal/cli"
	dlog "debtr/internal/log"
	"debtr/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		dlog.New(dlog.DefaultConfig()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, dlog.ComponentWorker)
	logger.Info("Starting notify-worker", dlog.FieldOperation, dlog.OpStartup)

	if !cfg.BrokerEnabled() {
		logger.Error("AMQP_URL is required for the notify worker")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	reminders := worker.NewReminderWorker(worker.Options{Logger: logger.Logger})

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(context.Context) {
		if n := len(reminders.Pending()); n > 0 {
			logger.Info("Dropping pending reminders", "count", n)
		}
		reminders.Stop()
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close failed", "error", err)
		}
	})

	logger.Info("Consuming reminder intents", "queue", cfg.AMQPQueue)
	if err := amqpClient.ConsumeIntents(ctx, reminders.HandleIntent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Intent consumption failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
