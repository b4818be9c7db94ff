package core

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Months is the set of zero-based month indices (0 = January) on which an
// item falls due. An empty set means the item is due every month.
type Months []int

// NewMonths builds a normalized set: sorted, without duplicates.
// Returns ErrInvalidMonth if any index is outside 0..11.
func NewMonths(indices ...int) (Months, error) {
	out := make(Months, 0, len(indices))
	for _, m := range indices {
		if m < 0 || m > 11 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidMonth, m)
		}
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	slices.Sort(out)
	return out, nil
}

// MustMonths is NewMonths for literals; it panics on invalid input.
func MustMonths(indices ...int) Months {
	m, err := NewMonths(indices...)
	if err != nil {
		panic(err)
	}
	return m
}

// EveryMonth reports whether the set means "every month".
func (ms Months) EveryMonth() bool {
	return len(ms) == 0
}

// Includes reports whether month is in the set. Always true for an empty set.
func (ms Months) Includes(month int) bool {
	if len(ms) == 0 {
		return true
	}
	return slices.Contains(ms, NormalizeMonth(month))
}

// Equal compares two sets regardless of order and duplicates.
func (ms Months) Equal(other Months) bool {
	for _, m := range ms {
		if !slices.Contains(other, m) {
			return false
		}
	}
	for _, m := range other {
		if !slices.Contains(ms, m) {
			return false
		}
	}
	return true
}

// Describe renders the set for humans. Empty or full sets read as every month.
func (ms Months) Describe() string {
	norm, err := NewMonths(ms...)
	if err != nil || len(norm) == 0 || len(norm) == 12 {
		return "Happens every month"
	}
	names := make([]string, len(norm))
	for i, m := range norm {
		names[i] = MonthName(m)
	}
	return strings.Join(names, ", ")
}

// MarshalJSON always emits an array, never null.
func (ms Months) MarshalJSON() ([]byte, error) {
	norm, err := NewMonths(ms...)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]int(norm))
}

// UnmarshalJSON decodes the current schema only: an array of integers in 0..11.
// Legacy object entries are rejected here and handled by the schema package.
func (ms *Months) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*ms = Months{}
		return nil
	}
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode months: %w", err)
	}
	norm, err := NewMonths(raw...)
	if err != nil {
		return err
	}
	*ms = norm
	return nil
}

// MonthName returns the English name of a zero-based month index.
func MonthName(month int) string {
	return monthNames[NormalizeMonth(month)]
}

// NormalizeMonth maps any integer onto 0..11, so month arithmetic wraps.
func NormalizeMonth(month int) int {
	return ((month % 12) + 12) % 12
}
