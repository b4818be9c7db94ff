package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

type (
	// ItemID identifies an item for its whole lifetime. IDs are never reused.
	ItemID string

	// Notification is a pending reminder tied to an item's next due date.
	Notification struct {
		ID   string    `json:"id"`
		Date time.Time `json:"date"`
	}

	// ItemCreation holds user input for a new item.
	ItemCreation struct {
		Description  string
		Amount       Money
		Months       Months
		Notification *Notification
	}

	// Item is a recurring or one-off expense.
	Item struct {
		ID           ItemID        `json:"id"`
		Description  string        `json:"description"`
		Amount       Money         `json:"amount"`
		Months       Months        `json:"months"`
		IsPaid       bool          `json:"isPaid"`
		Notification *Notification `json:"notification"`
	}

	// Metadata is the process-wide ledger record.
	// CurrYear is zero in records written before the year was tracked.
	Metadata struct {
		AmountLeft Money `json:"amountLeft"`
		CurrMonth  int   `json:"currMonth"`
		CurrYear   int   `json:"currYear,omitempty"`
	}
)

const maxDescriptionLen = 200

var (
	ErrEmptyDescription    = errors.New("empty description")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidNotification = errors.New("invalid notification")
)

// UnmarshalJSON accepts both strings and numbers; very old records used
// millisecond timestamps as numeric ids.
func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("item id must be a string or a number")
	}
	*id = ItemID(n.String())
	return nil
}

func (id ItemID) String() string { return string(id) }

func (n *Notification) Validate() error {
	if n == nil {
		return nil
	}
	if n.Date.IsZero() {
		return ErrInvalidNotification
	}
	return nil
}

// Equal compares two optional notifications.
func (n *Notification) Equal(o *Notification) bool {
	if n == nil || o == nil {
		return n == o
	}
	return n.ID == o.ID && n.Date.Equal(o.Date)
}

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func validateMonths(ms Months) error {
	_, err := NewMonths(ms...)
	return err
}

func (c ItemCreation) Validate() error {
	if err := validateDescription(c.Description); err != nil {
		return err
	}
	if c.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if err := validateMonths(c.Months); err != nil {
		return err
	}
	return c.Notification.Validate()
}

func (it Item) Validate() error {
	if strings.TrimSpace(string(it.ID)) == "" {
		return errors.New("empty item id")
	}
	return ItemCreation{
		Description:  it.Description,
		Amount:       it.Amount,
		Months:       it.Months,
		Notification: it.Notification,
	}.Validate()
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (it Item) Clone() Item {
	out := it
	out.Months = append(Months{}, it.Months...)
	if it.Notification != nil {
		n := *it.Notification
		out.Notification = &n
	}
	return out
}

// CloneItems deep-copies a slice of items.
func CloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
