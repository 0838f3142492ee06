package changefeed

import (
	"encoding/json"
	"fmt"

	"mentor-chat-service/internal/models"
)

// Op is the row operation carried by a change-feed event.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
)

// Event is one row-level change on the messages table.
type Event struct {
	Op      Op
	Message models.Message
}

// SubscriptionStatus reports the health of a change-feed subscription.
type SubscriptionStatus string

const (
	StatusSubscribed SubscriptionStatus = "subscribed"
	StatusError      SubscriptionStatus = "error"
)

// envelope matches the JSON built by the notify_message_event trigger.
type envelope struct {
	Op  Op             `json:"op"`
	Row models.Message `json:"row"`
}

// ParseEvent decodes a NOTIFY payload into an Event.
func ParseEvent(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{}, fmt.Errorf("decode feed payload: %w", err)
	}
	if env.Op != OpInsert && env.Op != OpUpdate {
		return Event{}, fmt.Errorf("unsupported feed op %q", env.Op)
	}
	if env.Row.ID == "" || env.Row.ConversationID == "" {
		return Event{}, fmt.Errorf("feed payload missing row identity")
	}
	return Event{Op: env.Op, Message: env.Row}, nil
}
