package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"mentor-chat-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateOrGetConversation(ctx context.Context, userID, mentorID, userName, mentorName string) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (models.Conversation, error)
	ListConversations(ctx context.Context, profileID string) ([]models.ConversationSummary, error)
	TouchConversation(ctx context.Context, conversationID string, at time.Time) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateOrGetConversation returns the single conversation for a (user, mentor)
// pair, creating it on first contact. The UNIQUE(user_id, mentor_id) constraint
// makes concurrent creation from two devices converge on one row.
func (r *ConversationRepo) CreateOrGetConversation(ctx context.Context, userID, mentorID, userName, mentorName string) (models.Conversation, error) {
	if userID == mentorID {
		return models.Conversation{}, errors.New("cannot start conversation with self")
	}

	var conv models.Conversation
	err := r.db.QueryRowxContext(ctx, `INSERT INTO conversations (user_id, mentor_id, user_name, mentor_name)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id, mentor_id) DO UPDATE SET user_name = EXCLUDED.user_name, mentor_name = EXCLUDED.mentor_name
        RETURNING id, user_id, mentor_id, user_name, mentor_name, last_message_at, created_at`,
		userID, mentorID, userName, mentorName).
		StructScan(&conv)
	return conv, err
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, user_id, mentor_id, user_name, mentor_name, last_message_at, created_at
        FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListConversations returns conversations visible to the profile, newest
// activity first, with per-conversation unread counts.
func (r *ConversationRepo) ListConversations(ctx context.Context, profileID string) ([]models.ConversationSummary, error) {
	query := `SELECT c.id, c.user_id, c.mentor_id, c.user_name, c.mentor_name, c.last_message_at, c.created_at,
            COUNT(m.id) FILTER (WHERE m.sender_id <> $1 AND m.is_read = FALSE) AS unread
        FROM conversations c
        LEFT JOIN messages m ON m.conversation_id = c.id
        WHERE c.user_id=$1 OR c.mentor_id=$1
        GROUP BY c.id
        ORDER BY c.last_message_at DESC`
	rows, err := r.db.QueryxContext(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ConversationSummary
	for rows.Next() {
		var row struct {
			models.Conversation
			Unread int `db:"unread"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		result = append(result, models.ConversationSummary{
			ConversationID:  row.ID,
			CounterpartID:   row.CounterpartID(profileID),
			CounterpartName: row.CounterpartName(profileID),
			UnreadCount:     row.Unread,
			LastMessageAt:   row.LastMessageAt,
		})
	}
	return result, rows.Err()
}

// TouchConversation bumps the last-activity timestamp, never moving it backwards.
func (r *ConversationRepo) TouchConversation(ctx context.Context, conversationID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET last_message_at = GREATEST(last_message_at, $2) WHERE id=$1`,
		conversationID, at)
	return err
}
