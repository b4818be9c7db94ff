// Package cli wires configuration, storage, the broker and the engine
// together for the commands under cmd/.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"debtr/internal/amqp"
	"debtr/internal/cache"
	"debtr/internal/config"
	dlog "debtr/internal/log"
	"debtr/internal/metrics"
	"debtr/internal/services"
	"debtr/internal/storage"
)

// SetupLogger builds the logger described by cfg and makes it the default.
// Level and format were checked by config validation; bad values fall back to
// info and text.
func SetupLogger(cfg *config.Config, component string) *dlog.Logger {
	level, _ := dlog.ParseLevel(cfg.LogLevel)
	format, _ := dlog.ParseFormat(cfg.LogFormat)
	logger := dlog.New(dlog.Config{
		Level:     level,
		Format:    format,
		Component: component,
		Output:    os.Stderr,
	})
	dlog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Store is the opened key-value store with its read cache.
type Store struct {
	Gateway *storage.Gateway
	caches  *cache.Manager
	closer  func() error
}

// OpenStore opens the configured backend and puts a read-through LRU cache in
// front of it.
func OpenStore(cfg *config.Config, logger *dlog.Logger) (*Store, error) {
	var (
		kv     storage.KV
		closer = func() error { return nil }
	)
	switch cfg.Store {
	case config.StoreMemory:
		kv = storage.NewMemoryStore()
		logger.Warn("Using in-memory store; state is lost on exit")
	default:
		sqlite, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store at %s: %w", cfg.DBPath, err)
		}
		kv = sqlite
		closer = sqlite.Close
		logger.Info("SQLite store opened", "path", cfg.DBPath)
	}

	caches := cache.NewManager(logger.WithComponent(dlog.ComponentCache).Logger)
	if cfg.StoreCacheSize > 0 && cfg.StoreCacheTTL > 0 {
		lru := cache.NewLRUCache[string](cfg.StoreCacheSize, cfg.StoreCacheTTL)
		caches.Register(lru)
		caches.StartCleanup(cfg.StoreCacheTTL)
		kv = storage.NewCachedStore(kv, lru)
	}

	return &Store{
		Gateway: storage.NewGateway(kv, cfg.Namespace),
		caches:  caches,
		closer:  closer,
	}, nil
}

func (s *Store) Close() error {
	s.caches.Stop()
	return s.closer()
}

// App is a running engine and everything it depends on.
type App struct {
	Config  *config.Config
	Logger  *dlog.Logger
	Engine  *services.Engine
	Metrics *metrics.Metrics

	store  *Store
	broker *amqp.Client
}

// NewApp opens the store, connects the broker when one is configured and
// starts the engine. A broker that cannot be reached is not fatal: reminders
// are logged instead.
func NewApp(cfg *config.Config, logger *dlog.Logger) (*App, error) {
	store, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		store:   store,
	}

	var sched services.Scheduler = services.LogScheduler{Logger: logger.WithComponent(dlog.ComponentEngine).Logger}
	if cfg.BrokerEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, reminders will only be logged", "error", err)
		} else {
			app.broker = client
			sched = services.BrokerScheduler{Publisher: client}
			logger.Info("AMQP connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	app.Engine = services.NewEngine(store.Gateway, services.Options{
		Scheduler: app.Metrics.Scheduler(sched),
		Logger:    logger.Logger,
	})
	app.Metrics.WatchLedger(app.Engine)
	return app, nil
}

// Close stops the engine first so pending writes reach the store.
func (a *App) Close() error {
	a.Engine.Close()
	var errs []error
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp: %w", err))
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with timeout as its deadline and done closes once
// it returns.
func GracefulShutdown(parent context.Context, logger *dlog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
