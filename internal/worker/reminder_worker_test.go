package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debtr/internal/amqp"
	"debtr/internal/core"
)

type fakeTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (ft *fakeTimers) afterFunc(d time.Duration, f func()) Timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{delay: d, f: f}
	ft.timers = append(ft.timers, t)
	return t
}

func (ft *fakeTimers) last() *fakeTimer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.timers[len(ft.timers)-1]
}

type recordingDeliverer struct {
	mu  sync.Mutex
	got []Reminder
	err error
}

func (d *recordingDeliverer) Deliver(_ context.Context, r Reminder) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, r)
	return d.err
}

var workerNow = time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)

func newTestWorker() (*ReminderWorker, *fakeTimers, *recordingDeliverer) {
	timers := &fakeTimers{}
	d := &recordingDeliverer{}
	w := NewReminderWorker(Options{
		Deliverer: d,
		Now:       func() time.Time { return workerNow },
		AfterFunc: timers.afterFunc,
	})
	return w, timers, d
}

func schedule(id string, due time.Time) *amqp.NotificationIntentMessage {
	msg := amqp.NewScheduleMessage(id, due)
	msg.ItemID = "item-" + id
	msg.Description = "Rent"
	msg.Amount = core.MustMoney("700")
	msg.Currency = core.EUR
	return msg
}

func TestScheduleArmsTimer(t *testing.T) {
	w, timers, d := newTestWorker()
	due := workerNow.Add(48 * time.Hour)

	require.NoError(t, w.HandleIntent(context.Background(), schedule("n1", due)))
	require.Len(t, w.Pending(), 1)
	assert.Equal(t, 48*time.Hour, timers.last().delay)

	timers.last().f()
	require.Len(t, d.got, 1)
	assert.Equal(t, "n1", d.got[0].NotificationID)
	assert.Empty(t, w.Pending())
}

func TestRescheduleReplacesTimer(t *testing.T) {
	w, timers, d := newTestWorker()
	ctx := context.Background()

	require.NoError(t, w.HandleIntent(ctx, schedule("n1", workerNow.Add(time.Hour))))
	first := timers.last()
	require.NoError(t, w.HandleIntent(ctx, schedule("n1", workerNow.Add(2*time.Hour))))
	second := timers.last()

	assert.True(t, first.stopped)
	require.Len(t, w.Pending(), 1)
	assert.Equal(t, workerNow.Add(2*time.Hour), w.Pending()[0].Due)

	// A stale callback that raced the Stop must not deliver.
	first.f()
	assert.Empty(t, d.got)
	second.f()
	assert.Len(t, d.got, 1)
}

func TestCancelStopsTimer(t *testing.T) {
	w, timers, d := newTestWorker()
	ctx := context.Background()

	require.NoError(t, w.HandleIntent(ctx, schedule("n1", workerNow.Add(time.Hour))))
	require.NoError(t, w.HandleIntent(ctx, amqp.NewCancelMessage("n1")))

	assert.True(t, timers.last().stopped)
	assert.Empty(t, w.Pending())
	timers.last().f()
	assert.Empty(t, d.got)

	assert.NoError(t, w.HandleIntent(ctx, amqp.NewCancelMessage("unknown")))
}

func TestPastDueFiresImmediately(t *testing.T) {
	w, timers, _ := newTestWorker()
	require.NoError(t, w.HandleIntent(context.Background(), schedule("n1", workerNow.Add(-time.Hour))))
	assert.Zero(t, timers.last().delay)
}

func TestRedeliveryIsIgnored(t *testing.T) {
	w, timers, _ := newTestWorker()
	ctx := context.Background()
	msg := schedule("n1", workerNow.Add(time.Hour))

	require.NoError(t, w.HandleIntent(ctx, msg))
	require.NoError(t, w.HandleIntent(ctx, msg))
	assert.Len(t, timers.timers, 1)
}

func TestInvalidIntentIsRejected(t *testing.T) {
	w, _, _ := newTestWorker()
	err := w.HandleIntent(context.Background(), &amqp.NotificationIntentMessage{Kind: amqp.KindSchedule, NotificationID: "n1"})
	assert.ErrorIs(t, err, amqp.ErrInvalidMessage)
}

func TestPendingIsOrderedByDue(t *testing.T) {
	w, _, _ := newTestWorker()
	ctx := context.Background()
	require.NoError(t, w.HandleIntent(ctx, schedule("late", workerNow.Add(3*time.Hour))))
	require.NoError(t, w.HandleIntent(ctx, schedule("early", workerNow.Add(time.Hour))))

	pending := w.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "early", pending[0].NotificationID)
	assert.Equal(t, "late", pending[1].NotificationID)
}

func TestStopDropsTimers(t *testing.T) {
	w, timers, _ := newTestWorker()
	ctx := context.Background()
	require.NoError(t, w.HandleIntent(ctx, schedule("n1", workerNow.Add(time.Hour))))

	w.Stop()
	assert.True(t, timers.last().stopped)
	assert.Empty(t, w.Pending())

	require.NoError(t, w.HandleIntent(ctx, schedule("n2", workerNow.Add(time.Hour))))
	assert.Empty(t, w.Pending())
}

func TestDeliveryFailureIsLogged(t *testing.T) {
	w, timers, d := newTestWorker()
	d.err = errors.New("offline")
	require.NoError(t, w.HandleIntent(context.Background(), schedule("n1", workerNow.Add(time.Hour))))

	assert.NotPanics(t, timers.last().f)
	assert.Len(t, d.got, 1)
}

func TestReminderText(t *testing.T) {
	r := Reminder{
		Description: "Rent",
		Amount:      core.MustMoney("700.5"),
		Currency:    core.EUR,
		Due:         time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "Reminder: Rent (700.50 EUR) is due on Feb 29", ReminderText(r))

	r.Locale = core.Portuguese
	r.Currency = core.BRL
	assert.Equal(t, "Lembrete: Rent (700,50 BRL) vence em 29/02", ReminderText(r))

	r.Description = ""
	r.ItemID = "item-1"
	assert.Contains(t, ReminderText(r), "item-1")
}
