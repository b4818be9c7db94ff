package services

import (
	"context"
	"log/slog"
	"time"

	"debtr/internal/storage"
)

// Activator is what RunActivation drives.
type Activator interface {
	Activate(ctx context.Context) (Result, error)
}

// RunActivation activates immediately and then every interval until ctx is
// done. Each activation loads state if needed and rolls the month over when
// the clock crossed a month boundary.
func RunActivation(ctx context.Context, a Activator, interval time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	activate := func() {
		res, err := a.Activate(ctx)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				logger.ErrorContext(ctx, "Activation failed", "error", err)
			}
			return
		case res.Warning != nil && storage.IsWriteError(res.Warning):
			logger.WarnContext(ctx, "Activation persisted partially", "error", res.Warning)
		}
		if res.Rolled {
			logger.InfoContext(ctx, "New month activated",
				"month", res.Snapshot.CurrMonth,
				"year", res.Snapshot.CurrYear,
				"amount_left", res.Snapshot.AmountLeft.String())
		}
	}

	activate()
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			activate()
		}
	}
}
