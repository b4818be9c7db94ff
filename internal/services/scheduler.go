package services

import (
	"context"
	"log/slog"
	"time"

	"debtr/internal/core"
)

// IntentKind says what a reminder scheduler should do.
type IntentKind string

const (
	IntentSchedule IntentKind = "schedule"
	IntentCancel   IntentKind = "cancel"
)

// Intent is a request to add, move or drop a reminder. Delivery is best
// effort; the engine never waits for a reminder to fire.
type Intent struct {
	Kind           IntentKind
	NotificationID string
	ItemID         core.ItemID
	Description    string
	Amount         core.Money
	Currency       core.Currency
	Locale         core.Locale
	// Due is zero for cancellations.
	Due time.Time
}

// Scheduler receives reminder intents.
type Scheduler interface {
	ScheduleOrCancel(ctx context.Context, intent Intent) error
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(ctx context.Context, intent Intent) error

func (f SchedulerFunc) ScheduleOrCancel(ctx context.Context, intent Intent) error {
	return f(ctx, intent)
}

// LogScheduler logs intents and drops them. Used when no broker is configured.
type LogScheduler struct {
	Logger *slog.Logger
}

func (s LogScheduler) ScheduleOrCancel(ctx context.Context, intent Intent) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Reminder intent",
		"kind", intent.Kind,
		"notification_id", intent.NotificationID,
		"item_id", intent.ItemID,
		"due", intent.Due)
	return nil
}

// MultiScheduler fans an intent out to several schedulers and returns the
// first error after trying all of them.
type MultiScheduler []Scheduler

func (m MultiScheduler) ScheduleOrCancel(ctx context.Context, intent Intent) error {
	var first error
	for _, s := range m {
		if err := s.ScheduleOrCancel(ctx, intent); err != nil && first == nil {
			first = err
		}
	}
	return first
}
