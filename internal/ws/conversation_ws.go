package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"mentor-chat-service/internal/auth"
	"mentor-chat-service/internal/models"
	"mentor-chat-service/internal/observability"
	"mentor-chat-service/internal/realtime"
	"mentor-chat-service/internal/repositories"
)

// ConversationSocketHandler upgrades websocket connections and binds one
// synchronizer per connection: the synchronizer loads history, marks messages
// read, subscribes to the change feed, and streams updates back out.
type ConversationSocketHandler struct {
	hub           *Hub
	convRepo      repositories.ConversationRepository
	msgRepo       repositories.MessageRepository
	profileRepo   repositories.ProfileRepository
	feed          realtime.Feed
	notifier      realtime.Dispatcher
	authenticator auth.Authenticator
	logger        *zap.Logger

	// ReloadBackoff is forwarded to each synchronizer.
	ReloadBackoff time.Duration
}

// NewConversationSocketHandler constructs the handler.
func NewConversationSocketHandler(
	hub *Hub,
	convRepo repositories.ConversationRepository,
	msgRepo repositories.MessageRepository,
	profileRepo repositories.ProfileRepository,
	feed realtime.Feed,
	notifier realtime.Dispatcher,
	authenticator auth.Authenticator,
	logger *zap.Logger,
) *ConversationSocketHandler {
	return &ConversationSocketHandler{
		hub:           hub,
		convRepo:      convRepo,
		msgRepo:       msgRepo,
		profileRepo:   profileRepo,
		feed:          feed,
		notifier:      notifier,
		authenticator: authenticator,
		logger:        logger,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundFrame is what the client may send over the socket.
type inboundFrame struct {
	Type       string             `json:"type"`
	Content    string             `json:"content,omitempty"`
	Foreground bool               `json:"foreground,omitempty"`
	Attachment *models.Attachment `json:"attachment,omitempty"`
}

// Handle authenticates, verifies participancy, upgrades, and runs the session.
func (h *ConversationSocketHandler) Handle(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	if _, err := uuid.Parse(conversationID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	ctx, span := otel.Tracer("mentor-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	profileID, err := h.authenticator.Resolve(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conv, err := h.convRepo.GetConversation(ctx, conversationID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "conversation not found"})
		return
	}
	if !conv.IsParticipant(profileID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	profile, err := h.profileRepo.GetProfile(ctx, profileID)
	if err != nil {
		// The session token is valid; a missing profile row still identifies
		// the sender by id.
		profile = models.Profile{ID: profileID}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		ProfileID:   profileID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	syn := realtime.NewSynchronizer(h.convRepo, h.msgRepo, h.profileRepo, h.feed, h.notifier, h.logger)
	if h.ReloadBackoff > 0 {
		syn.ReloadBackoff = h.ReloadBackoff
	}

	session := &Session{Info: info, Sync: syn}
	h.hub.Add(conversationID, session)
	observability.IncWSActive()
	observability.IncWSEvent("connect")

	// Updates flow out until the synchronizer closes; closing the conn then
	// unblocks the reader below.
	go func() {
		for update := range syn.Updates() {
			if err := conn.WriteJSON(update); err != nil {
				h.logger.Warn("websocket write error",
					zap.String("conversation_id", conversationID),
					zap.String("conn_id", info.ConnID),
					zap.Error(err))
				break
			}
		}
		conn.Close()
	}()

	if err := syn.Open(ctx, conversationID, profile); err != nil {
		h.logger.Warn("synchronizer open failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}

	go func() {
		defer func() {
			syn.Close()
			h.hub.Remove(conversationID, info.ConnID)
			observability.DecWSActive()
			observability.IncWSEvent("disconnect")
			conn.Close()
		}()
		for {
			var frame inboundFrame
			if err := conn.ReadJSON(&frame); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("error")
				}
				return
			}
			h.handleFrame(syn, frame)
		}
	}()
}

func (h *ConversationSocketHandler) handleFrame(syn *realtime.Synchronizer, frame inboundFrame) {
	switch frame.Type {
	case "send":
		if frame.Attachment != nil {
			syn.SendAttachment(context.Background(), frame.Content, *frame.Attachment)
			return
		}
		syn.Send(context.Background(), frame.Content)
	case "visibility":
		syn.SetForeground(frame.Foreground)
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		const prefix = "Bearer "
		if len(header) > len(prefix) && header[:len(prefix)] == prefix {
			return header[len(prefix):]
		}
		return ""
	}
	return c.Query("token")
}
