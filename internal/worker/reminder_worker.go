// Package worker runs the reminder side of the ledger: it turns schedule and
// cancel intents into timers and delivers reminders when they fire.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"debtr/internal/amqp"
	"debtr/internal/core"
	dlog "debtr/internal/log"
)

// Reminder is a scheduled notification with the item details it announces.
type Reminder struct {
	NotificationID string
	ItemID         string
	Description    string
	Amount         core.Money
	Currency       core.Currency
	Locale         core.Locale
	Due            time.Time
}

// Deliverer shows a reminder to the user.
type Deliverer interface {
	Deliver(ctx context.Context, r Reminder) error
}

// LogDeliverer writes reminders to the log.
type LogDeliverer struct {
	Logger *slog.Logger
}

func (d LogDeliverer) Deliver(ctx context.Context, r Reminder) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, ReminderText(r),
		dlog.FieldNotificationID, r.NotificationID,
		dlog.FieldItemID, r.ItemID)
	return nil
}

// ReminderText renders the reminder in its locale.
func ReminderText(r Reminder) string {
	desc := r.Description
	if desc == "" {
		desc = r.ItemID
	}
	switch r.Locale {
	case core.Portuguese:
		amount := strings.Replace(r.Amount.String(), ".", ",", 1)
		return fmt.Sprintf("Lembrete: %s (%s %s) vence em %s", desc, amount, r.Currency, r.Due.Format("02/01"))
	default:
		return fmt.Sprintf("Reminder: %s (%s %s) is due on %s", desc, r.Amount, r.Currency, r.Due.Format("Jan 2"))
	}
}

// Timer is the part of *time.Timer the worker uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

type Options struct {
	Deliverer Deliverer
	Logger    *slog.Logger
	Now       func() time.Time
	AfterFunc AfterFunc
	// DedupeWindow is how long a delivered message id is remembered so a
	// broker redelivery is not applied twice.
	DedupeWindow time.Duration
}

type pending struct {
	reminder Reminder
	timer    Timer
	gen      uint64
}

// ReminderWorker keeps one timer per notification id.
type ReminderWorker struct {
	mu      sync.Mutex
	timers  map[string]*pending
	gen     uint64
	stopped bool

	deliverer Deliverer
	logger    *slog.Logger
	now       func() time.Time
	afterFunc AfterFunc
	seen      *gocache.Cache
}

func NewReminderWorker(opts Options) *ReminderWorker {
	w := &ReminderWorker{
		timers:    make(map[string]*pending),
		deliverer: opts.Deliverer,
		logger:    opts.Logger,
		now:       opts.Now,
		afterFunc: opts.AfterFunc,
	}
	if w.deliverer == nil {
		w.deliverer = LogDeliverer{Logger: opts.Logger}
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger = w.logger.With(dlog.FieldComponent, dlog.ComponentWorker)
	if w.now == nil {
		w.now = time.Now
	}
	if w.afterFunc == nil {
		w.afterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	window := opts.DedupeWindow
	if window <= 0 {
		window = 10 * time.Minute
	}
	w.seen = gocache.New(window, 2*window)
	return w
}

// HandleIntent applies one intent. It has the signature of an AMQP intent
// handler so it can be passed to ConsumeIntents directly.
func (w *ReminderWorker) HandleIntent(ctx context.Context, msg *amqp.NotificationIntentMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := w.seen.Add(dedupeKey(msg), struct{}{}, gocache.DefaultExpiration); err != nil {
		w.logger.DebugContext(ctx, "Skipping redelivered intent",
			dlog.FieldIntent, msg.Kind,
			dlog.FieldNotificationID, msg.NotificationID)
		return nil
	}

	switch msg.Kind {
	case amqp.KindCancel:
		w.Cancel(msg.NotificationID)
		w.logger.InfoContext(ctx, "Reminder cancelled", dlog.FieldNotificationID, msg.NotificationID)
	case amqp.KindSchedule:
		r := Reminder{
			NotificationID: msg.NotificationID,
			ItemID:         msg.ItemID,
			Description:    msg.Description,
			Amount:         msg.Amount,
			Currency:       msg.Currency,
			Locale:         msg.Locale,
			Due:            *msg.Due,
		}
		w.Schedule(r)
		w.logger.InfoContext(ctx, "Reminder scheduled",
			dlog.FieldNotificationID, r.NotificationID,
			dlog.FieldItemID, r.ItemID,
			"due", r.Due)
	}
	return nil
}

func dedupeKey(msg *amqp.NotificationIntentMessage) string {
	due := int64(0)
	if msg.Due != nil {
		due = msg.Due.UnixNano()
	}
	return fmt.Sprintf("%s|%s|%d|%d", msg.Kind, msg.NotificationID, due, msg.Timestamp.UnixNano())
}

// Schedule arms a timer for r, replacing any timer with the same id. Past-due
// reminders fire immediately.
func (w *ReminderWorker) Schedule(r Reminder) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if old, ok := w.timers[r.NotificationID]; ok {
		old.timer.Stop()
	}

	w.gen++
	p := &pending{reminder: r, gen: w.gen}
	delay := r.Due.Sub(w.now())
	if delay < 0 {
		delay = 0
	}
	p.timer = w.afterFunc(delay, func() { w.fire(r.NotificationID, p.gen) })
	w.timers[r.NotificationID] = p
}

// Cancel stops the timer of id. Unknown ids are ignored.
func (w *ReminderWorker) Cancel(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.timers[id]; ok {
		p.timer.Stop()
		delete(w.timers, id)
	}
}

func (w *ReminderWorker) fire(id string, gen uint64) {
	w.mu.Lock()
	p, ok := w.timers[id]
	if !ok || p.gen != gen {
		// Replaced or cancelled after the timer started.
		w.mu.Unlock()
		return
	}
	delete(w.timers, id)
	w.mu.Unlock()

	ctx := context.Background()
	if err := w.deliverer.Deliver(ctx, p.reminder); err != nil {
		w.logger.ErrorContext(ctx, "Failed to deliver reminder",
			dlog.FieldNotificationID, id,
			dlog.FieldError, err)
	}
}

// Pending returns the armed reminders ordered by due date.
func (w *ReminderWorker) Pending() []Reminder {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Reminder, 0, len(w.timers))
	for _, p := range w.timers {
		out = append(out, p.reminder)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Due.Equal(out[j].Due) {
			return out[i].NotificationID < out[j].NotificationID
		}
		return out[i].Due.Before(out[j].Due)
	})
	return out
}

// Stop cancels every timer. Later intents are ignored.
func (w *ReminderWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, p := range w.timers {
		p.timer.Stop()
		delete(w.timers, id)
	}
	w.stopped = true
}
