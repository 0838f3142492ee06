package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mentor-chat-service/internal/models"
	"mentor-chat-service/internal/notify"
	"mentor-chat-service/internal/realtime"
	"mentor-chat-service/internal/repositories"
)

// InboxHandler manages conversation and message endpoints.
type InboxHandler struct {
	convRepo    repositories.ConversationRepository
	msgRepo     repositories.MessageRepository
	profileRepo repositories.ProfileRepository
	notifier    realtime.Dispatcher
	logger      *zap.Logger
}

// NewInboxHandler builds an InboxHandler.
func NewInboxHandler(
	convRepo repositories.ConversationRepository,
	msgRepo repositories.MessageRepository,
	profileRepo repositories.ProfileRepository,
	notifier realtime.Dispatcher,
	logger *zap.Logger,
) *InboxHandler {
	return &InboxHandler{
		convRepo:    convRepo,
		msgRepo:     msgRepo,
		profileRepo: profileRepo,
		notifier:    notifier,
		logger:      logger,
	}
}

// ListConversations returns the caller's conversations with unread counts.
func (h *InboxHandler) ListConversations(c *gin.Context) {
	profileID := profileIDFromContext(c)

	conversations, err := h.convRepo.ListConversations(c.Request.Context(), profileID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	if conversations == nil {
		conversations = []models.ConversationSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// StartConversation creates or returns the single conversation between the
// caller and a counterpart; one side must be a mentor.
func (h *InboxHandler) StartConversation(c *gin.Context) {
	var req struct {
		CounterpartID string `json:"counterpart_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profileID := profileIDFromContext(c)
	if profileID == req.CounterpartID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start conversation with yourself"})
		return
	}

	me, err := h.profileRepo.GetProfile(c.Request.Context(), profileID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	other, err := h.profileRepo.GetProfile(c.Request.Context(), req.CounterpartID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrProfileNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "counterpart not found"})
		return
	}

	var userSide, mentorSide models.Profile
	switch {
	case me.Role == "mentor" && other.Role != "mentor":
		userSide, mentorSide = other, me
	case other.Role == "mentor" && me.Role != "mentor":
		userSide, mentorSide = me, other
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation requires one user and one mentor"})
		return
	}

	conv, err := h.convRepo.CreateOrGetConversation(c.Request.Context(),
		userSide.ID, mentorSide.ID, userSide.FallbackDisplayName(), mentorSide.FallbackDisplayName())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID})
}

// GetMessages returns all messages of a conversation, oldest first.
func (h *InboxHandler) GetMessages(c *gin.Context) {
	conv, ok := h.authorizedConversation(c)
	if !ok {
		return
	}

	msgs, err := h.msgRepo.ListMessages(c.Request.Context(), conv.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage stores a message. The change feed carries it to any live
// sessions; the counterpart notification is dispatched fire-and-forget.
func (h *InboxHandler) PostMessage(c *gin.Context) {
	conv, ok := h.authorizedConversation(c)
	if !ok {
		return
	}

	var req struct {
		Content    string             `json:"content"`
		Attachment *models.Attachment `json:"attachment,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" && req.Attachment == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty message"})
		return
	}

	profileID := profileIDFromContext(c)
	requestID := requestIDFromContext(c)
	senderName := h.resolveSenderName(c, profileID)

	msg, err := h.msgRepo.CreateMessage(c.Request.Context(), repositories.NewMessage{
		ConversationID: conv.ID,
		SenderID:       profileID,
		SenderName:     senderName,
		Content:        req.Content,
		Attachment:     req.Attachment,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	if err := h.convRepo.TouchConversation(c.Request.Context(), conv.ID, msg.CreatedAt); err != nil {
		h.logger.Warn("conversation timestamp bump failed",
			zap.String("conversation_id", conv.ID),
			zap.String("request_id", requestID),
			zap.Error(err))
	}

	go func() {
		notification := notify.MessageNotification{
			RecipientID:    conv.CounterpartID(profileID),
			SenderName:     senderName,
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			Excerpt:        req.Content,
		}
		if err := h.notifier.DispatchMessage(context.Background(), notification); err != nil {
			h.logger.Warn("notification dispatch failed",
				zap.String("message_id", msg.ID),
				zap.String("request_id", requestID),
				zap.Error(err))
		}
	}()

	c.JSON(http.StatusCreated, msg)
}

// MarkRead marks every counterpart message in the conversation as read.
func (h *InboxHandler) MarkRead(c *gin.Context) {
	conv, ok := h.authorizedConversation(c)
	if !ok {
		return
	}

	if err := h.msgRepo.MarkConversationRead(c.Request.Context(), conv.ID, profileIDFromContext(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark conversation read"})
		return
	}
	c.Status(http.StatusNoContent)
}

// authorizedConversation loads the conversation and enforces participancy,
// writing the error response itself on failure.
func (h *InboxHandler) authorizedConversation(c *gin.Context) (models.Conversation, bool) {
	conversationID := c.Param("conversation_id")

	conv, err := h.convRepo.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "conversation not found"})
		return models.Conversation{}, false
	}
	if !conv.IsParticipant(profileIDFromContext(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return models.Conversation{}, false
	}
	return conv, true
}

func (h *InboxHandler) resolveSenderName(c *gin.Context, profileID string) string {
	profile, err := h.profileRepo.GetProfile(c.Request.Context(), profileID)
	if err != nil {
		h.logger.Warn("profile lookup failed", zap.String("profile_id", profileID), zap.Error(err))
		return "Member"
	}
	return profile.FallbackDisplayName()
}
