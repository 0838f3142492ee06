package models

import "time"

// Conversation is a persistent thread between one end-user and one mentor.
// Exactly one row exists per (user_id, mentor_id) pair.
type Conversation struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	MentorID      string    `db:"mentor_id" json:"mentor_id"`
	UserName      string    `db:"user_name" json:"user_name"`
	MentorName    string    `db:"mentor_name" json:"mentor_name"`
	LastMessageAt time.Time `db:"last_message_at" json:"last_message_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// CounterpartID returns the other participant relative to profileID.
func (c Conversation) CounterpartID(profileID string) string {
	if profileID == c.UserID {
		return c.MentorID
	}
	return c.UserID
}

// CounterpartName returns the denormalized display name of the other side.
func (c Conversation) CounterpartName(profileID string) string {
	if profileID == c.UserID {
		return c.MentorName
	}
	return c.UserName
}

// IsParticipant reports whether profileID occupies either side.
func (c Conversation) IsParticipant(profileID string) bool {
	return profileID == c.UserID || profileID == c.MentorID
}

// ConversationSummary is the API view of a conversation for one participant.
type ConversationSummary struct {
	ConversationID  string    `json:"conversation_id"`
	CounterpartID   string    `json:"counterpart_id"`
	CounterpartName string    `json:"counterpart_name"`
	UnreadCount     int       `json:"unread_count"`
	LastMessageAt   time.Time `json:"last_message_at"`
}
