package services

import (
	"context"

	"debtr/internal/amqp"
	"debtr/internal/core"
)

// IntentPublisher publishes reminder intents to a broker.
type IntentPublisher interface {
	PublishIntent(ctx context.Context, msg *amqp.NotificationIntentMessage) error
}

// BrokerScheduler forwards intents to a reminder worker through a broker.
type BrokerScheduler struct {
	Publisher IntentPublisher
}

func (s BrokerScheduler) ScheduleOrCancel(ctx context.Context, intent Intent) error {
	return s.Publisher.PublishIntent(ctx, IntentMessage(intent))
}

// IntentMessage converts an intent to its wire form.
func IntentMessage(intent Intent) *amqp.NotificationIntentMessage {
	var msg *amqp.NotificationIntentMessage
	if intent.Kind == IntentSchedule {
		msg = amqp.NewScheduleMessage(intent.NotificationID, intent.Due)
	} else {
		msg = amqp.NewCancelMessage(intent.NotificationID)
	}
	msg.ItemID = string(intent.ItemID)
	msg.Description = intent.Description
	msg.Amount = intent.Amount
	msg.Currency = intent.Currency
	msg.Locale = intent.Locale
	return msg
}

// IntentFromMessage converts a delivered message back to an intent.
func IntentFromMessage(msg *amqp.NotificationIntentMessage) Intent {
	intent := Intent{
		Kind:           IntentKind(msg.Kind),
		NotificationID: msg.NotificationID,
		ItemID:         core.ItemID(msg.ItemID),
		Description:    msg.Description,
		Amount:         msg.Amount,
		Currency:       msg.Currency,
		Locale:         msg.Locale,
	}
	if msg.Due != nil {
		intent.Due = *msg.Due
	}
	return intent
}
