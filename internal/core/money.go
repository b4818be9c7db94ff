// Package core provides money parsing and handling utilities.
//
// Every Money value is rounded to two fractional digits when it is created,
// so sums and differences of Money never accumulate drift.
package core

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a monetary amount with two fractional digits.
type Money struct {
	d decimal.Decimal
}

// NewMoney rounds d to two decimal places.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(2)}
}

// MoneyFromFloat builds Money from a float, rounding to two decimal places.
func MoneyFromFloat(f float64) Money {
	return NewMoney(decimal.NewFromFloat(f))
}

// MustMoney parses s and panics on error. Intended for tests and constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return NewMoney(d)
}

// ParseAmount converts user input to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half away from zero on the third decimal place. Negative values and
// non-numeric input are rejected with ErrInvalidAmount. Zero is allowed.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
//	ParseAmount("-1")     -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return Money{}, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return NewMoney(d), nil
}

func (m Money) Add(o Money) Money { return NewMoney(m.d.Add(o.d)) }
func (m Money) Sub(o Money) Money { return NewMoney(m.d.Sub(o.d)) }
func (m Money) Neg() Money        { return NewMoney(m.d.Neg()) }

func (m Money) IsZero() bool       { return m.d.IsZero() }
func (m Money) IsNegative() bool   { return m.d.IsNegative() }
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// Decimal returns the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Float64 returns the amount as a float for display purposes only.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String formats the amount with exactly two decimals, e.g. "12.50".
func (m Money) String() string { return m.d.StringFixed(2) }

// MarshalJSON encodes Money as a bare JSON number, the shape persisted records use.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	data = bytes.Trim(data, `"`)
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return ErrInvalidAmount
	}
	*m = NewMoney(d)
	return nil
}
