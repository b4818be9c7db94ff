package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"debtr/internal/core"
)

// Intent kinds carried on the wire.
const (
	KindSchedule = "schedule"
	KindCancel   = "cancel"
)

var ErrInvalidMessage = errors.New("invalid notification intent")

// NotificationIntentMessage asks a reminder worker to schedule or cancel a
// reminder. Schedule messages for an existing id replace it.
type NotificationIntentMessage struct {
	Kind           string        `json:"kind"`
	NotificationID string        `json:"notificationId"`
	ItemID         string        `json:"itemId,omitempty"`
	Description    string        `json:"description,omitempty"`
	Amount         core.Money    `json:"amount"`
	Currency       core.Currency `json:"currency,omitempty"`
	Locale         core.Locale   `json:"locale,omitempty"`
	Due            *time.Time    `json:"due,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

func NewScheduleMessage(notificationID string, due time.Time) *NotificationIntentMessage {
	return &NotificationIntentMessage{
		Kind:           KindSchedule,
		NotificationID: notificationID,
		Due:            &due,
		Timestamp:      time.Now(),
	}
}

func NewCancelMessage(notificationID string) *NotificationIntentMessage {
	return &NotificationIntentMessage{
		Kind:           KindCancel,
		NotificationID: notificationID,
		Timestamp:      time.Now(),
	}
}

// Validate checks the fields a worker relies on.
func (m *NotificationIntentMessage) Validate() error {
	switch {
	case m.NotificationID == "":
		return fmt.Errorf("%w: missing notification id", ErrInvalidMessage)
	case m.Kind == KindSchedule && (m.Due == nil || m.Due.IsZero()):
		return fmt.Errorf("%w: schedule without due date", ErrInvalidMessage)
	case m.Kind != KindSchedule && m.Kind != KindCancel:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}
	return nil
}

func (m *NotificationIntentMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationIntentMessageFromJSON decodes and validates a message.
func NotificationIntentMessageFromJSON(data []byte) (*NotificationIntentMessage, error) {
	var msg NotificationIntentMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
