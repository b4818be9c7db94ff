package services

import (
	"slices"

	"debtr/internal/core"
	"debtr/internal/ledger"
)

// ItemView is an item with its visibility in the snapshot's month.
type ItemView struct {
	core.Item
	IsVisible bool `json:"isVisible"`
}

// Snapshot is an immutable, fully reconciled view of the ledger. Readers
// never observe a state between reduce and rollover steps.
type Snapshot struct {
	Loaded        bool                `json:"loaded"`
	Degraded      bool                `json:"degraded"`
	CurrMonth     int                 `json:"currMonth"`
	CurrYear      int                 `json:"currYear"`
	AmountLeft    core.Money          `json:"amountLeft"`
	Items         []ItemView          `json:"items"`
	Currency      core.Currency       `json:"currency"`
	Locale        core.Locale         `json:"locale"`
	Notifications []core.Notification `json:"notifications"`
	// Version increases with every published change.
	Version uint64 `json:"version"`
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Items:         []ItemView{},
		Currency:      core.DefaultCurrency,
		Locale:        core.DefaultLocale,
		Notifications: []core.Notification{},
	}
}

func newSnapshot(st *engineState) *Snapshot {
	views := make([]ItemView, len(st.ledger.Items))
	for i, it := range st.ledger.Items {
		views[i] = ItemView{Item: it.Clone(), IsVisible: core.IsDue(it, st.ledger.CurrMonth)}
	}
	return &Snapshot{
		Loaded:        st.loaded,
		Degraded:      st.degraded,
		CurrMonth:     st.ledger.CurrMonth,
		CurrYear:      st.year,
		AmountLeft:    st.ledger.AmountLeft,
		Items:         views,
		Currency:      st.currency,
		Locale:        st.locale,
		Notifications: slices.Clone(st.notifs),
		Version:       st.version,
	}
}

// Visible returns the items due in the snapshot's month.
func (s *Snapshot) Visible() []ItemView {
	out := make([]ItemView, 0, len(s.Items))
	for _, v := range s.Items {
		if v.IsVisible {
			out = append(out, v)
		}
	}
	return out
}

// Item looks an item up by id.
func (s *Snapshot) Item(id core.ItemID) (ItemView, bool) {
	for _, v := range s.Items {
		if v.ID == id {
			return v, true
		}
	}
	return ItemView{}, false
}

// Ledger returns the reducer state the snapshot was built from.
func (s *Snapshot) Ledger() ledger.State {
	items := make([]core.Item, len(s.Items))
	for i, v := range s.Items {
		items[i] = v.Item.Clone()
	}
	return ledger.State{Items: items, CurrMonth: s.CurrMonth, AmountLeft: s.AmountLeft}
}
