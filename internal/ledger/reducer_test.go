package ledger

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debtr/internal/core"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newReducer() Reducer {
	return Reducer{NewID: seqIDs()}
}

func money(s string) core.Money { return core.MustMoney(s) }

func mustReduce(t *testing.T, r Reducer, s State, a Action) (State, Effects) {
	t.Helper()
	next, eff, err := r.Reduce(s, a)
	require.NoError(t, err)
	require.NoError(t, Check(next), "after %s", Name(a))
	return next, eff
}

func TestEveryMonthItemScenario(t *testing.T) {
	r := newReducer()
	s := State{CurrMonth: 3}

	s, eff := mustReduce(t, r, s, AddItem{Item: core.ItemCreation{Description: "Phone", Amount: money("50")}})
	require.NotNil(t, eff.Item)
	assert.Equal(t, core.ItemID("id-1"), eff.Item.ID)
	assert.False(t, eff.Item.IsPaid)
	assert.Equal(t, "50.00", s.AmountLeft.String())

	s, _ = mustReduce(t, r, s, ToggleItemPaid{ID: "id-1"})
	assert.True(t, s.Items[0].IsPaid)
	assert.Equal(t, "0.00", s.AmountLeft.String())

	s, _ = mustReduce(t, r, s, Rollover{Year: 2024, Month: 4})
	assert.False(t, s.Items[0].IsPaid)
	assert.Equal(t, 4, s.CurrMonth)
	assert.Equal(t, "50.00", s.AmountLeft.String())
}

func TestSelectedMonthsItemScenario(t *testing.T) {
	r := newReducer()
	s := State{CurrMonth: 2}

	s, _ = mustReduce(t, r, s, AddItem{Item: core.ItemCreation{
		Description: "Insurance",
		Amount:      money("20"),
		Months:      core.MustMonths(0, 6),
	}})
	assert.False(t, core.IsDue(s.Items[0], 2))
	assert.True(t, s.AmountLeft.IsZero())
	assert.Empty(t, Visible(s))

	s, _ = mustReduce(t, r, s, Rollover{Year: 2024, Month: 6})
	assert.Equal(t, "20.00", s.AmountLeft.String())
	assert.Len(t, Visible(s), 1)
}

func TestToggleNotDueItemLeavesTotal(t *testing.T) {
	r := newReducer()
	s := State{CurrMonth: 5}
	s, _ = mustReduce(t, r, s, AddItem{Item: core.ItemCreation{Description: "Tax", Amount: money("99.99"), Months: core.MustMonths(1)}})
	s, _ = mustReduce(t, r, s, ToggleItemPaid{ID: "id-1"})
	assert.True(t, s.AmountLeft.IsZero())
	assert.True(t, s.Items[0].IsPaid)
}

func TestUpdateItemAdjustsByDelta(t *testing.T) {
	r := newReducer()
	s := State{CurrMonth: 0}
	s, _ = mustReduce(t, r, s, AddItem{Item: core.ItemCreation{Description: "Water", Amount: money("10.10")}})
	s, _ = mustReduce(t, r, s, AddItem{Item: core.ItemCreation{Description: "Power", Amount: money("5")}})
	require.Equal(t, "15.10", s.AmountLeft.String())

	tests := []struct {
		name   string
		mutate func(*core.Item)
		want   string
	}{
		{"amount raised", func(it *core.Item) { it.Amount = money("12.35") }, "17.35"},
		{"moved out of this month", func(it *core.Item) { it.Months = core.MustMonths(4) }, "5.00"},
		{"marked paid", func(it *core.Item) { it.IsPaid = true }, "5.00"},
		{"description only", func(it *core.Item) { it.Description = "Water bill" }, "15.10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated := s.Items[0].Clone()
			tt.mutate(&updated)
			next, _ := mustReduce(t, r, s, UpdateItem{Item: updated})
			assert.Equal(t, tt.want, next.AmountLeft.String())
		})
	}
}

func TestRemoveItem(t *testing.T) {
	r := newReducer()
	remind := &core.Notification{Date: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)}
	s := State{CurrMonth: 0}
	s, eff := mustReduce(t, r, s, AddItem{Item: core.ItemCreation{Description: "Rent", Amount: money("700"), Notification: remind}})
	require.Len(t, eff.Schedule, 1)
	notifID := eff.Schedule[0].ID
	assert.NotEmpty(t, notifID)

	s, eff = mustReduce(t, r, s, RemoveItem{ID: "id-1"})
	assert.Empty(t, s.Items)
	assert.True(t, s.AmountLeft.IsZero())
	assert.Equal(t, []string{notifID}, eff.Cancel)
}

func TestRemovePaidItemKeepsTotal(t *testing.T) {
	r := newReducer()
	s := State{CurrMonth: 0}
	s, _ = mustReduce(t, r, s, AddItem{Item: core.ItemCreation{Description: "A", Amount: money("1")}})
	s, _ = mustReduce(t, r, s, AddItem{Item: core.ItemCreation{Description: "B", Amount: money("2")}})
	s, _ = mustReduce(t, r, s, ToggleItemPaid{ID: "id-1"})
	s, _ = mustReduce(t, r, s, RemoveItem{ID: "id-1"})
	assert.Equal(t, "2.00", s.AmountLeft.String())
}

func TestUnknownItem(t *testing.T) {
	r := newReducer()
	s := State{CurrMonth: 0}
	for _, a := range []Action{ToggleItemPaid{ID: "x"}, RemoveItem{ID: "x"}, UpdateItem{Item: core.Item{ID: "x"}}} {
		_, _, err := r.Reduce(s, a)
		assert.ErrorIs(t, err, ErrItemNotFound, Name(a))
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	r := newReducer()
	s, _ := mustReduce(t, r, State{CurrMonth: 0}, AddItem{Item: core.ItemCreation{Description: "A", Amount: money("1")}})
	before := core.CloneItems(s.Items)
	_, _ = mustReduce(t, r, s, ToggleItemPaid{ID: "id-1"})
	_, _ = mustReduce(t, r, s, Rollover{Year: 2024, Month: 1})
	assert.Equal(t, before, s.Items)
}

func TestSetAmountLeftRounds(t *testing.T) {
	next, _, err := newReducer().Reduce(State{}, SetAmountLeft{Value: core.MoneyFromFloat(10.005)})
	require.NoError(t, err)
	assert.Equal(t, "10.01", next.AmountLeft.String())
}

func TestRolloverUpdateItemNotificationEffects(t *testing.T) {
	r := newReducer()
	s := State{CurrMonth: 0}
	d := time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)
	s, _ = mustReduce(t, r, s, AddItem{Item: core.ItemCreation{Description: "Rent", Amount: money("1"), Notification: &core.Notification{ID: "n1", Date: d}}})
	s, _ = mustReduce(t, r, s, AddItem{Item: core.ItemCreation{Description: "Tax", Amount: money("1"), Months: core.MustMonths(5), Notification: &core.Notification{ID: "n2", Date: d}}})

	rolled, eff := mustReduce(t, r, s, Rollover{Year: 2024, Month: 1})
	require.Len(t, eff.Schedule, 1, "only items due in February are rescheduled")
	assert.Equal(t, "n1", eff.Schedule[0].ID)
	assert.Equal(t, time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC), eff.Schedule[0].Date)
	assert.Equal(t, d, rolled.Items[1].Notification.Date, "reminder of an item not due stays put")

	updated := rolled.Items[0].Clone()
	updated.Notification = &core.Notification{ID: "n3", Date: d}
	_, eff = mustReduce(t, r, rolled, UpdateItem{Item: updated})
	assert.Equal(t, []string{"n1"}, eff.Cancel)
	require.Len(t, eff.Schedule, 1)
	assert.Equal(t, "n3", eff.Schedule[0].ID)

	updated.Notification = nil
	_, eff = mustReduce(t, r, rolled, UpdateItem{Item: updated})
	assert.Equal(t, []string{"n1"}, eff.Cancel)
	assert.Empty(t, eff.Schedule)
}

func TestUpdateReminderKeepsID(t *testing.T) {
	r := newReducer()
	d := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	s, _ := mustReduce(t, r, State{CurrMonth: 2}, AddItem{Item: core.ItemCreation{Description: "Rent", Amount: money("1"), Notification: &core.Notification{Date: d}}})
	id := s.Items[0].Notification.ID

	updated := s.Items[0].Clone()
	updated.Notification = &core.Notification{Date: d.AddDate(0, 0, 2)}
	next, eff := mustReduce(t, r, s, UpdateItem{Item: updated})
	assert.Equal(t, id, next.Items[0].Notification.ID)
	assert.Empty(t, eff.Cancel)
	require.Len(t, eff.Schedule, 1)
	assert.Equal(t, id, eff.Schedule[0].ID)

	bare := next.Items[0].Clone()
	bare.Notification = nil
	s, _ = mustReduce(t, r, next, UpdateItem{Item: bare})
	bare.Notification = &core.Notification{Date: d}
	_, eff = mustReduce(t, r, s, UpdateItem{Item: bare})
	require.Len(t, eff.Schedule, 1)
	assert.NotEmpty(t, eff.Schedule[0].ID)
	assert.NotEqual(t, id, eff.Schedule[0].ID)
}

// Random action sequences must keep the cached total equal to the item sum.
func TestInvariantHoldsForRandomSequences(t *testing.T) {
	for seed := uint64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*7919))
		r := newReducer()
		s := State{CurrMonth: rng.IntN(12)}

		for step := 0; step < 200; step++ {
			var a Action
			switch op := rng.IntN(5); {
			case op == 0 || len(s.Items) == 0:
				a = AddItem{Item: randomCreation(rng)}
			case op == 1:
				it := s.Items[rng.IntN(len(s.Items))].Clone()
				it.Amount = randomAmount(rng)
				it.Months = randomMonths(rng)
				it.IsPaid = rng.IntN(2) == 0
				a = UpdateItem{Item: it}
			case op == 2:
				a = ToggleItemPaid{ID: s.Items[rng.IntN(len(s.Items))].ID}
			case op == 3:
				a = RemoveItem{ID: s.Items[rng.IntN(len(s.Items))].ID}
			default:
				a = Rollover{Year: 2024, Month: rng.IntN(12)}
			}

			next, _, err := r.Reduce(s, a)
			require.NoError(t, err, "seed %d step %d", seed, step)
			require.NoError(t, Check(next), "seed %d step %d action %s", seed, step, Name(a))
			s = next
		}
	}
}

func randomAmount(rng *rand.Rand) core.Money {
	return core.MustMoney(fmt.Sprintf("%d.%02d", rng.IntN(1000), rng.IntN(100)))
}

func randomMonths(rng *rand.Rand) core.Months {
	n := rng.IntN(4)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.IntN(12)
	}
	return core.MustMonths(idx...)
}

func randomCreation(rng *rand.Rand) core.ItemCreation {
	return core.ItemCreation{
		Description: "item",
		Amount:      randomAmount(rng),
		Months:      randomMonths(rng),
	}
}
