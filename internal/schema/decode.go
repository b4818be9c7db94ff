// Package schema turns persisted bytes into current-schema ledger values.
//
// Every decoder is total: malformed input yields an error the loader treats
// as absence, never a panic. Legacy layouts are recognized and normalized so
// that the rest of the program only sees the current shape.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"debtr/internal/core"
)

// Variant tags the layout an items record was written in.
type Variant int

const (
	// VariantCurrent is {id, description, amount, months: [int], isPaid, notification}.
	VariantCurrent Variant = iota
	// VariantLegacyMonths stores months as [{id, name}] objects.
	VariantLegacyMonths
	// VariantLegacyV0 is the first release: {id: number, desc, price, months, isPaid, isVisible}.
	VariantLegacyV0
)

func (v Variant) String() string {
	switch v {
	case VariantCurrent:
		return "current"
	case VariantLegacyMonths:
		return "legacy-months"
	case VariantLegacyV0:
		return "legacy-v0"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Legacy reports whether records of this variant must be rewritten.
func (v Variant) Legacy() bool { return v != VariantCurrent }

var (
	ErrNotArray        = errors.New("record is not a JSON array")
	ErrInvalidRecord   = errors.New("record is not a JSON object")
	ErrMonthOutOfRange = errors.New("current month out of range")
)

// rawItem accepts every field name any release has written.
type rawItem struct {
	ID           core.ItemID       `json:"id"`
	Description  *string           `json:"description"`
	Desc         *string           `json:"desc"`
	Amount       *core.Money       `json:"amount"`
	Price        *core.Money       `json:"price"`
	Months       []json.RawMessage `json:"months"`
	IsPaid       bool              `json:"isPaid"`
	Notification json.RawMessage   `json:"notification"`
}

// ItemsResult is the outcome of decoding an items record.
type ItemsResult struct {
	Items   []core.Item
	Variant Variant
	// Dropped counts entries that could not be recovered.
	Dropped int
	// DroppedRaw holds those entries as they were stored.
	DroppedRaw []json.RawMessage
}

// DecodeItems decodes an items array of any known variant. Entries that
// cannot be recovered are dropped and counted; the rest are kept.
func DecodeItems(raw []byte) (ItemsResult, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return ItemsResult{}, fmt.Errorf("%w: %v", ErrNotArray, err)
	}

	res := ItemsResult{Items: make([]core.Item, 0, len(entries)), Variant: VariantCurrent}
	for _, entry := range entries {
		item, variant, err := decodeItem(entry)
		if err != nil {
			res.Dropped++
			res.DroppedRaw = append(res.DroppedRaw, entry)
			continue
		}
		if variant > res.Variant {
			res.Variant = variant
		}
		res.Items = append(res.Items, item)
	}
	return res, nil
}

func decodeItem(data []byte) (core.Item, Variant, error) {
	var r rawItem
	if err := json.Unmarshal(data, &r); err != nil {
		return core.Item{}, 0, err
	}

	variant := VariantCurrent
	item := core.Item{ID: r.ID, IsPaid: r.IsPaid}

	switch {
	case r.Description != nil:
		item.Description = *r.Description
	case r.Desc != nil:
		item.Description = *r.Desc
		variant = VariantLegacyV0
	}
	switch {
	case r.Amount != nil:
		item.Amount = *r.Amount
	case r.Price != nil:
		item.Amount = *r.Price
		variant = VariantLegacyV0
	}

	months, legacyMonths, err := NormalizeMonths(r.Months)
	if err != nil {
		return core.Item{}, 0, err
	}
	item.Months = months
	if legacyMonths && variant == VariantCurrent {
		variant = VariantLegacyMonths
	}

	item.Notification = decodeNotification(r.Notification)

	if err := item.Validate(); err != nil {
		return core.Item{}, 0, err
	}
	return item, variant, nil
}

// NormalizeMonths accepts month entries as bare indices or {id, name}
// objects and returns a valid set. legacy is true when any object form was
// seen. Applying it to its own output is a no-op.
//
// Out-of-range entries are discarded; if every entry was out of range the
// whole set is rejected so a restricted item never silently becomes an
// every-month item.
func NormalizeMonths(entries []json.RawMessage) (months core.Months, legacy bool, err error) {
	indices := make([]int, 0, len(entries))
	discarded := 0
	for _, e := range entries {
		m, isObject, err := decodeMonthEntry(e)
		if err != nil {
			return nil, false, err
		}
		legacy = legacy || isObject
		if m < 0 || m > 11 {
			discarded++
			continue
		}
		indices = append(indices, m)
	}
	if discarded > 0 && len(indices) == 0 {
		return nil, false, core.ErrInvalidMonth
	}
	months, err = core.NewMonths(indices...)
	return months, legacy, err
}

func decodeMonthEntry(data json.RawMessage) (month int, isObject bool, err error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			ID *int `json:"id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return 0, true, err
		}
		if obj.ID == nil {
			return 0, true, fmt.Errorf("%w: month object without id", core.ErrInvalidMonth)
		}
		return *obj.ID, true, nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return 0, false, fmt.Errorf("%w: %s", core.ErrInvalidMonth, data)
	}
	return n, false, nil
}

// decodeNotification returns nil for anything that is not a valid reminder.
// A broken reminder never costs the item.
func decodeNotification(data json.RawMessage) *core.Notification {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var n core.Notification
	if err := json.Unmarshal(data, &n); err != nil || n.Validate() != nil {
		return nil
	}
	return &n
}

// DecodeMetadata decodes the metadata record.
func DecodeMetadata(raw []byte) (core.Metadata, error) {
	if !isObject(raw) {
		return core.Metadata{}, ErrInvalidRecord
	}
	var md core.Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return core.Metadata{}, err
	}
	if md.CurrMonth < 0 || md.CurrMonth > 11 {
		return core.Metadata{}, fmt.Errorf("%w: %d", ErrMonthOutOfRange, md.CurrMonth)
	}
	if md.CurrYear < 0 {
		md.CurrYear = 0
	}
	return md, nil
}

// DecodeNotifications decodes the stored reminder list, skipping entries
// without an id or date.
func DecodeNotifications(raw []byte) ([]core.Notification, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotArray, err)
	}
	out := make([]core.Notification, 0, len(entries))
	for _, e := range entries {
		n := decodeNotification(e)
		if n == nil || n.ID == "" {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

// V0Record is the single record the first release kept under the bare
// namespace key.
type V0Record struct {
	Items     ItemsResult
	CurrMonth int
}

// DecodeV0Root decodes {items, currMonth} as written by the first release.
func DecodeV0Root(raw []byte) (V0Record, error) {
	if !isObject(raw) {
		return V0Record{}, ErrInvalidRecord
	}
	var rec struct {
		Items     json.RawMessage `json:"items"`
		CurrMonth *int            `json:"currMonth"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return V0Record{}, err
	}

	out := V0Record{Items: ItemsResult{Items: []core.Item{}, Variant: VariantLegacyV0}}
	if len(rec.Items) > 0 && !bytes.Equal(bytes.TrimSpace(rec.Items), []byte("null")) {
		items, err := DecodeItems(rec.Items)
		if err != nil {
			return V0Record{}, err
		}
		items.Variant = VariantLegacyV0
		out.Items = items
	}
	// currMonth -1 meant "never set" in that release.
	if rec.CurrMonth != nil && *rec.CurrMonth >= 0 && *rec.CurrMonth <= 11 {
		out.CurrMonth = *rec.CurrMonth
	} else {
		out.CurrMonth = -1
	}
	return out, nil
}

func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
