package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debtr/internal/amqp"
	"debtr/internal/core"
	"debtr/internal/ledger"
)

func TestCalendarDetector(t *testing.T) {
	now := time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		md   core.Metadata
		want MonthState
	}{
		{"same month and year", core.Metadata{CurrMonth: 3, CurrYear: 2024}, Stable},
		{"same month without year", core.Metadata{CurrMonth: 3}, Stable},
		{"previous month", core.Metadata{CurrMonth: 2, CurrYear: 2024}, Rolling},
		{"later month", core.Metadata{CurrMonth: 5, CurrYear: 2024}, Rolling},
		{"same month last year", core.Metadata{CurrMonth: 3, CurrYear: 2023}, Rolling},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalendarDetector{}.Detect(tt.md, now))
		})
	}
	assert.Equal(t, "rolling", Rolling.String())
	assert.Equal(t, "stable", Stable.String())
}

func TestMonthsBetween(t *testing.T) {
	now := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, MonthsBetween(core.Metadata{CurrMonth: 10, CurrYear: 2023}, now))
	assert.Equal(t, 12, MonthsBetween(core.Metadata{CurrMonth: 1, CurrYear: 2023}, now))
	assert.Equal(t, -1, MonthsBetween(core.Metadata{CurrMonth: 1}, now))
}

func TestApplyNotificationEffects(t *testing.T) {
	d1 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 1, 0)
	stored := []core.Notification{{ID: "a", Date: d1}, {ID: "b", Date: d1}}

	out, changed := applyNotificationEffects(stored, ledger.Effects{})
	assert.False(t, changed)
	assert.Equal(t, stored, out)

	out, changed = applyNotificationEffects(stored, ledger.Effects{
		Cancel:   []string{"a", "missing"},
		Schedule: []core.Notification{{ID: "b", Date: d2}, {ID: "c", Date: d1}},
	})
	assert.True(t, changed)
	assert.Equal(t, []core.Notification{{ID: "b", Date: d2}, {ID: "c", Date: d1}}, out)
	assert.Equal(t, "a", stored[0].ID, "input untouched")

	_, changed = applyNotificationEffects(stored, ledger.Effects{Schedule: []core.Notification{{ID: "a", Date: d1}}})
	assert.False(t, changed, "same date is not a change")
}

func TestReconcileNotifications(t *testing.T) {
	d := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	items := []core.Item{
		{ID: "1", Notification: &core.Notification{ID: "n1", Date: d}},
		{ID: "2"},
		{ID: "3", Notification: &core.Notification{ID: "n3", Date: d}},
	}
	stored := []core.Notification{{ID: "n1", Date: d}, {ID: "orphan", Date: d}, {ID: "n3", Date: d.AddDate(0, 0, 1)}}

	next, schedule, cancel := reconcileNotifications(items, stored)
	assert.Equal(t, []core.Notification{{ID: "n1", Date: d}, {ID: "n3", Date: d}}, next)
	assert.Equal(t, []core.Notification{{ID: "n3", Date: d}}, schedule)
	assert.Equal(t, []string{"orphan"}, cancel)
}

type countingActivator struct{ n atomic.Int32 }

func (c *countingActivator) Activate(context.Context) (Result, error) {
	c.n.Add(1)
	return Result{Snapshot: emptySnapshot()}, nil
}

func TestRunActivation(t *testing.T) {
	a := &countingActivator{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunActivation(ctx, a, 5*time.Millisecond, nil) }()

	require.Eventually(t, func() bool { return a.n.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMultiScheduler(t *testing.T) {
	var got []string
	ok := SchedulerFunc(func(_ context.Context, in Intent) error { got = append(got, "ok:"+in.NotificationID); return nil })
	fail := SchedulerFunc(func(context.Context, Intent) error { return assert.AnError })

	err := MultiScheduler{fail, ok}.ScheduleOrCancel(context.Background(), Intent{NotificationID: "x"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"ok:x"}, got)
}

type publisherFunc func(ctx context.Context, msg *amqp.NotificationIntentMessage) error

func (f publisherFunc) PublishIntent(ctx context.Context, msg *amqp.NotificationIntentMessage) error {
	return f(ctx, msg)
}

func TestBrokerSchedulerRoundTrip(t *testing.T) {
	due := time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC)
	intent := Intent{
		Kind:           IntentSchedule,
		NotificationID: "n1",
		ItemID:         "item-1",
		Description:    "Rent",
		Amount:         core.MustMoney("700"),
		Currency:       core.BRL,
		Locale:         core.Portuguese,
		Due:            due,
	}

	var got *amqp.NotificationIntentMessage
	s := BrokerScheduler{Publisher: publisherFunc(func(_ context.Context, msg *amqp.NotificationIntentMessage) error {
		got = msg
		return nil
	})}
	require.NoError(t, s.ScheduleOrCancel(context.Background(), intent))
	require.NotNil(t, got)
	require.NoError(t, got.Validate())
	assert.Equal(t, intent, IntentFromMessage(got))

	cancel := IntentMessage(Intent{Kind: IntentCancel, NotificationID: "n1"})
	assert.Equal(t, amqp.KindCancel, cancel.Kind)
	assert.Nil(t, cancel.Due)
}
