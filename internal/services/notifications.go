package services

import (
	"slices"
	"time"

	"debtr/internal/core"
	"debtr/internal/ledger"
)

// applyNotificationEffects upserts scheduled reminders and drops cancelled
// ones. It reports whether the list changed.
func applyNotificationEffects(stored []core.Notification, eff ledger.Effects) ([]core.Notification, bool) {
	if len(eff.Schedule) == 0 && len(eff.Cancel) == 0 {
		return stored, false
	}
	out := slices.Clone(stored)
	changed := false

	for _, id := range eff.Cancel {
		before := len(out)
		out = slices.DeleteFunc(out, func(n core.Notification) bool { return n.ID == id })
		changed = changed || len(out) != before
	}
	for _, n := range eff.Schedule {
		i := slices.IndexFunc(out, func(s core.Notification) bool { return s.ID == n.ID })
		switch {
		case i < 0:
			out = append(out, n)
			changed = true
		case !out[i].Date.Equal(n.Date):
			out[i] = n
			changed = true
		}
	}
	return out, changed
}

// reconcileNotifications rebuilds the stored list from the reminders the
// items carry. Stored entries no item references are returned for
// cancellation; item reminders missing from the list are returned for
// scheduling.
func reconcileNotifications(items []core.Item, stored []core.Notification) (next []core.Notification, schedule []core.Notification, cancel []string) {
	want := make(map[string]core.Notification, len(items))
	order := make([]string, 0, len(items))
	for _, it := range items {
		if it.Notification == nil || it.Notification.ID == "" {
			continue
		}
		if _, dup := want[it.Notification.ID]; !dup {
			order = append(order, it.Notification.ID)
		}
		want[it.Notification.ID] = *it.Notification
	}

	have := make(map[string]core.Notification, len(stored))
	for _, n := range stored {
		have[n.ID] = n
		if _, ok := want[n.ID]; !ok {
			cancel = append(cancel, n.ID)
		}
	}

	next = make([]core.Notification, 0, len(order))
	for _, id := range order {
		n := want[id]
		next = append(next, n)
		if s, ok := have[id]; !ok || !s.Date.Equal(n.Date) {
			schedule = append(schedule, n)
		}
	}
	return next, schedule, cancel
}

// resendPending adds to schedule every stored reminder still ahead of now,
// so a worker that lost its timers picks them up again on the next load.
func resendPending(stored, schedule []core.Notification, now time.Time) []core.Notification {
	out := slices.Clone(schedule)
	for _, n := range stored {
		if !n.Date.After(now) || slices.ContainsFunc(out, func(s core.Notification) bool { return s.ID == n.ID }) {
			continue
		}
		out = append(out, n)
	}
	return out
}
