package notify

import (
	"context"
	"time"
)

const excerptLimit = 120

// MessageNotification tells the counterpart that a new message arrived.
// Delivery is fire-and-forget; the sender never observes the outcome.
type MessageNotification struct {
	RecipientID    string `json:"recipient_id"`
	SenderName     string `json:"sender_name"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Excerpt        string `json:"excerpt"`
}

// Envelope is the wire shape published to the notifications exchange.
type Envelope struct {
	SchemaVersion int                 `json:"schema_version"`
	EventType     string              `json:"event_type"`
	OccurredAt    string              `json:"occurred_at"`
	Service       string              `json:"service"`
	Environment   string              `json:"environment"`
	Payload       MessageNotification `json:"payload"`
}

// Dispatcher wraps a Publisher with the notification envelope.
type Dispatcher struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(publisher Publisher, routingKey, service, environment string) *Dispatcher {
	return &Dispatcher{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// DispatchMessage publishes one counterpart notification. The excerpt is
// truncated so message bodies never leak wholesale into the broker.
func (d *Dispatcher) DispatchMessage(ctx context.Context, n MessageNotification) error {
	if n.Excerpt == "" {
		n.Excerpt = "[attachment]"
	}
	n.Excerpt = truncate(n.Excerpt, excerptLimit)

	envelope := Envelope{
		SchemaVersion: 1,
		EventType:     "message_notification",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       d.service,
		Environment:   d.environment,
		Payload:       n,
	}
	return d.publisher.Publish(ctx, d.routingKey, envelope)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
