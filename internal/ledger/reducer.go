// Package ledger implements the pure state transitions over the item list and
// the amount left to pay.
//
// Reduce never performs I/O. Notification changes are returned as Effects and
// persisted or scheduled by the caller after reducing.
package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"debtr/internal/core"
)

var ErrItemNotFound = errors.New("item not found")

// State is the ledger owned by a single engine.
type State struct {
	Items      []core.Item
	CurrMonth  int
	AmountLeft core.Money
}

// Action is one of the transitions below.
type Action interface {
	actionName() string
}

type (
	AddItem struct {
		Item core.ItemCreation
	}

	UpdateItem struct {
		Item core.Item
	}

	ToggleItemPaid struct {
		ID core.ItemID
	}

	RemoveItem struct {
		ID core.ItemID
	}

	// SetAmountLeft overrides the cached total. Used to seed state on load.
	SetAmountLeft struct {
		Value core.Money
	}

	// Rollover moves the ledger to a new month of a given year.
	Rollover struct {
		Year  int
		Month int
	}
)

func (AddItem) actionName() string        { return "add_item" }
func (UpdateItem) actionName() string     { return "update_item" }
func (ToggleItemPaid) actionName() string { return "toggle_item_paid" }
func (RemoveItem) actionName() string     { return "remove_item" }
func (SetAmountLeft) actionName() string  { return "set_amount_left" }
func (Rollover) actionName() string       { return "rollover" }

// Name returns a stable identifier for logging.
func Name(a Action) string { return a.actionName() }

// Effects describes side effects the caller must carry out.
type Effects struct {
	// Item is the item created, updated, toggled or removed, if any.
	Item *core.Item
	// Schedule lists reminders to add or replace.
	Schedule []core.Notification
	// Cancel lists reminder ids to drop.
	Cancel []string
}

// Reducer applies actions. NewID generates ids for new items and reminders.
type Reducer struct {
	NewID func() string
}

// New returns a Reducer that assigns random UUIDs.
func New() Reducer {
	return Reducer{NewID: uuid.NewString}
}

// Reduce applies a to s and returns the next state. s is never modified.
func (r Reducer) Reduce(s State, a Action) (State, Effects, error) {
	next := State{
		Items:      core.CloneItems(s.Items),
		CurrMonth:  s.CurrMonth,
		AmountLeft: s.AmountLeft,
	}

	switch act := a.(type) {
	case AddItem:
		return r.addItem(next, act)
	case UpdateItem:
		return r.updateItem(next, act)
	case ToggleItemPaid:
		return toggleItemPaid(next, act)
	case RemoveItem:
		return removeItem(next, act)
	case SetAmountLeft:
		next.AmountLeft = core.NewMoney(act.Value.Decimal())
		return next, Effects{}, nil
	case Rollover:
		return rollover(next, act)
	default:
		return s, Effects{}, fmt.Errorf("unknown action %T", a)
	}
}

func (r Reducer) newID() string {
	if r.NewID == nil {
		return uuid.NewString()
	}
	return r.NewID()
}

func (r Reducer) addItem(s State, act AddItem) (State, Effects, error) {
	item := core.Item{
		ID:          core.ItemID(r.newID()),
		Description: act.Item.Description,
		Amount:      act.Item.Amount,
		Months:      append(core.Months{}, act.Item.Months...),
		IsPaid:      false,
	}
	var eff Effects
	if act.Item.Notification != nil {
		n := *act.Item.Notification
		if n.ID == "" {
			n.ID = r.newID()
		}
		item.Notification = &n
		eff.Schedule = append(eff.Schedule, n)
	}

	s.Items = append(s.Items, item)
	s.AmountLeft = s.AmountLeft.Add(core.Contribution(item, s.CurrMonth))

	added := item.Clone()
	eff.Item = &added
	return s, eff, nil
}

// updateItem replaces an item. A reminder without an id keeps the id of the
// reminder it replaces, so schedulers move it instead of adding another.
func (r Reducer) updateItem(s State, act UpdateItem) (State, Effects, error) {
	i := indexOf(s.Items, act.Item.ID)
	if i < 0 {
		return s, Effects{}, fmt.Errorf("%w: %s", ErrItemNotFound, act.Item.ID)
	}
	old := s.Items[i]
	updated := act.Item.Clone()
	if n := updated.Notification; n != nil && n.ID == "" {
		if old.Notification != nil {
			n.ID = old.Notification.ID
		} else {
			n.ID = r.newID()
		}
	}
	s.Items[i] = updated

	delta := core.Contribution(updated, s.CurrMonth).Sub(core.Contribution(old, s.CurrMonth))
	s.AmountLeft = s.AmountLeft.Add(delta)

	var eff Effects
	if !old.Notification.Equal(updated.Notification) {
		if old.Notification != nil && (updated.Notification == nil || updated.Notification.ID != old.Notification.ID) {
			eff.Cancel = append(eff.Cancel, old.Notification.ID)
		}
		if updated.Notification != nil {
			eff.Schedule = append(eff.Schedule, *updated.Notification)
		}
	}
	out := updated.Clone()
	eff.Item = &out
	return s, eff, nil
}

func toggleItemPaid(s State, act ToggleItemPaid) (State, Effects, error) {
	i := indexOf(s.Items, act.ID)
	if i < 0 {
		return s, Effects{}, fmt.Errorf("%w: %s", ErrItemNotFound, act.ID)
	}
	item := &s.Items[i]
	item.IsPaid = !item.IsPaid

	if core.IsDue(*item, s.CurrMonth) {
		if item.IsPaid {
			s.AmountLeft = s.AmountLeft.Sub(item.Amount)
		} else {
			s.AmountLeft = s.AmountLeft.Add(item.Amount)
		}
	}
	out := item.Clone()
	return s, Effects{Item: &out}, nil
}

func removeItem(s State, act RemoveItem) (State, Effects, error) {
	i := indexOf(s.Items, act.ID)
	if i < 0 {
		return s, Effects{}, fmt.Errorf("%w: %s", ErrItemNotFound, act.ID)
	}
	removed := s.Items[i]
	s.Items = append(s.Items[:i], s.Items[i+1:]...)
	s.AmountLeft = s.AmountLeft.Sub(core.Contribution(removed, s.CurrMonth))

	eff := Effects{Item: &removed}
	if removed.Notification != nil {
		eff.Cancel = append(eff.Cancel, removed.Notification.ID)
	}
	return s, eff, nil
}

// rollover resets payment state, recomputes the total against the new month
// and moves reminders of items due in that month into it.
func rollover(s State, act Rollover) (State, Effects, error) {
	month := core.NormalizeMonth(act.Month)
	var eff Effects

	for i := range s.Items {
		item := &s.Items[i]
		item.IsPaid = false
		if item.Notification == nil || !core.IsDue(*item, month) {
			continue
		}
		item.Notification.Date = core.ReminderInMonth(item.Notification.Date, act.Year, month)
		eff.Schedule = append(eff.Schedule, *item.Notification)
	}

	s.CurrMonth = month
	s.AmountLeft = AmountLeft(s.Items, month)
	return s, eff, nil
}

func indexOf(items []core.Item, id core.ItemID) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
