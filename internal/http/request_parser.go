package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"debtr/internal/core"
)

const maxBodyBytes = 64 << 10

// ItemInput is the request body of item creation and update. Amount may be a
// JSON number or a string using either decimal separator.
type ItemInput struct {
	Description  string          `json:"description"`
	Amount       json.RawMessage `json:"amount"`
	Months       []int           `json:"months"`
	Notification *ReminderInput  `json:"notification"`
}

// ReminderInput is an optional reminder. Date is RFC 3339 or
// "2006-01-02T15:04" in UTC.
type ReminderInput struct {
	Date string `json:"date"`
}

// Creation validates the input as a new item.
func (in ItemInput) Creation() (core.ItemCreation, error) {
	amount, err := ParseAmountValue(in.Amount)
	if err != nil {
		return core.ItemCreation{}, err
	}
	months, err := core.NewMonths(in.Months...)
	if err != nil {
		return core.ItemCreation{}, err
	}
	var notif *core.Notification
	if in.Notification != nil {
		date, err := ParseReminderDate(in.Notification.Date)
		if err != nil {
			return core.ItemCreation{}, err
		}
		notif = &core.Notification{Date: date}
	}
	c := core.ItemCreation{
		Description:  SanitizeInput(in.Description),
		Amount:       amount,
		Months:       months,
		Notification: notif,
	}
	return c, c.Validate()
}

// Item validates the input as a replacement for item id. Payment state is
// owned by the engine and not part of the input.
func (in ItemInput) Item(id core.ItemID) (core.Item, error) {
	c, err := in.Creation()
	if err != nil {
		return core.Item{}, err
	}
	return core.Item{
		ID:           id,
		Description:  c.Description,
		Amount:       c.Amount,
		Months:       c.Months,
		Notification: c.Notification,
	}, nil
}

// ParseAmountValue accepts a JSON number or string.
func ParseAmountValue(raw json.RawMessage) (core.Money, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return core.Money{}, fmt.Errorf("%w: amount required", core.ErrInvalidAmount)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return core.Money{}, core.ErrInvalidAmount
		}
		return core.ParseAmount(s)
	}
	return core.ParseAmount(string(raw))
}

// ParseReminderDate parses a reminder timestamp.
func ParseReminderDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: bad date %q", core.ErrInvalidNotification, s)
}

// DecodeJSONBody decodes a size-limited JSON body into dst, rejecting unknown
// fields. It returns a response to send on failure, nil on success.
func DecodeJSONBody(r *http.Request, dst any) *JSONResponse {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return NewJSONResponse(http.StatusBadRequest).Error("bad_request", "cannot read body")
	}
	if len(body) > maxBodyBytes {
		return NewJSONResponse(http.StatusRequestEntityTooLarge).Error("too_large", "request body too large")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var syntax *json.SyntaxError
		var typ *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return NewJSONResponse(http.StatusBadRequest).Error("bad_request", "empty body")
		case errors.As(err, &syntax):
			return NewJSONResponse(http.StatusBadRequest).Error("bad_request", fmt.Sprintf("malformed JSON at offset %d", syntax.Offset))
		case errors.As(err, &typ):
			return NewJSONResponse(http.StatusUnprocessableEntity).Error("invalid_input", fmt.Sprintf("field %q has the wrong type", typ.Field))
		default:
			return NewJSONResponse(http.StatusBadRequest).Error("bad_request", err.Error())
		}
	}
	return nil
}

// SanitizeInput trims s and drops control characters.
func SanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s))
}

// ParseBool reads query flags such as all=1 or all=true.
func ParseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}
