package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"mentor-chat-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// NewMessage carries the caller-supplied fields of a message insert; id and
// created_at are server-assigned.
type NewMessage struct {
	ConversationID string
	SenderID       string
	SenderName     string
	Content        string
	Attachment     *models.Attachment
}

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, params NewMessage) (models.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID string) error
	MarkMessageRead(ctx context.Context, messageID string) error
	MarkMessageDelivered(ctx context.Context, messageID string) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, sender_name, content,
        attachment_url, attachment_name, attachment_type,
        is_read, read_at, delivered_at, created_at`

// CreateMessage stores a message and returns the full row with its
// server-assigned id and timestamp.
func (r *MessageRepo) CreateMessage(ctx context.Context, params NewMessage) (models.Message, error) {
	var attURL, attName, attType *string
	if params.Attachment != nil {
		attURL, attName, attType = &params.Attachment.URL, &params.Attachment.Name, &params.Attachment.Type
	}

	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages
        (conversation_id, sender_id, sender_name, content, attachment_url, attachment_name, attachment_type)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING `+messageColumns,
		params.ConversationID, params.SenderID, params.SenderName, params.Content, attURL, attName, attType).
		StructScan(&msg)
	return msg, err
}

// ListMessages returns all messages of a conversation ordered by creation time.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+`
        FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC`, conversationID)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkConversationRead marks every unread message the reader did not send.
// Rows sent by the reader are never touched by this path.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, readerID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE, read_at = NOW()
        WHERE conversation_id=$1 AND sender_id<>$2 AND is_read = FALSE`, conversationID, readerID)
	return err
}

// MarkMessageRead marks a single message as read.
func (r *MessageRepo) MarkMessageRead(ctx context.Context, messageID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE, read_at = NOW()
        WHERE id=$1 AND is_read = FALSE`, messageID)
	return err
}

// MarkMessageDelivered stamps the delivery time once.
func (r *MessageRepo) MarkMessageDelivered(ctx context.Context, messageID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET delivered_at = NOW()
        WHERE id=$1 AND delivered_at IS NULL`, messageID)
	return err
}
