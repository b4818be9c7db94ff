package ledger

import (
	"fmt"

	"debtr/internal/core"
)

// AmountLeft sums the amounts of items due in month and not yet paid.
func AmountLeft(items []core.Item, month int) core.Money {
	total := core.Money{}
	for _, it := range items {
		total = total.Add(core.Contribution(it, month))
	}
	return total
}

// Check verifies the cached total against the item list.
func Check(s State) error {
	want := AmountLeft(s.Items, s.CurrMonth)
	if !s.AmountLeft.Equal(want) {
		return fmt.Errorf("amount left is %s, items add up to %s", s.AmountLeft, want)
	}
	return nil
}

// Visible returns the items due in the state's current month.
func Visible(s State) []core.Item {
	out := make([]core.Item, 0, len(s.Items))
	for _, it := range s.Items {
		if core.IsDue(it, s.CurrMonth) {
			out = append(out, it)
		}
	}
	return out
}
