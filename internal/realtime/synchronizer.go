package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mentor-chat-service/internal/changefeed"
	"mentor-chat-service/internal/models"
	"mentor-chat-service/internal/notify"
	"mentor-chat-service/internal/observability"
	"mentor-chat-service/internal/repositories"
)

// Status is the connection health of a synchronizer.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// UpdateKind discriminates Update values on the consumer stream.
type UpdateKind string

const (
	// UpdateHistory carries the full ordered list (initial load or reload).
	UpdateHistory UpdateKind = "history"
	// UpdateMessage carries one newly appended message.
	UpdateMessage UpdateKind = "message"
	// UpdateMessageChanged carries an in-place replacement (read receipts).
	UpdateMessageChanged UpdateKind = "message_updated"
	// UpdateStatus carries a connection-status transition.
	UpdateStatus UpdateKind = "status"
	// UpdateError carries a transient, non-blocking failure notice.
	UpdateError UpdateKind = "error"
)

// Update is one item on the consumer stream.
type Update struct {
	Kind     UpdateKind       `json:"type"`
	Message  *models.Message  `json:"message,omitempty"`
	Messages []models.Message `json:"messages,omitempty"`
	Status   Status           `json:"status,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Feed is the change-feed surface the synchronizer subscribes through.
type Feed interface {
	Subscribe(conversationID string, buf int) *changefeed.Subscription
}

// Dispatcher sends the best-effort counterpart notification.
type Dispatcher interface {
	DispatchMessage(ctx context.Context, n notify.MessageNotification) error
}

const (
	defaultReloadBackoff = 2500 * time.Millisecond
	subscriptionBuffer   = 64
	updatesBuffer        = 64
)

// Synchronizer maintains a live, ordered, de-duplicated view of one
// conversation and supports sending into it. One instance serves one open
// conversation; its dedup cache is created on Open and dropped on Close,
// never shared across instances.
//
// Every asynchronous completion re-checks a generation counter so that calls
// still in flight when Close runs cannot resurrect torn-down state.
type Synchronizer struct {
	convRepo    repositories.ConversationRepository
	msgRepo     repositories.MessageRepository
	profileRepo repositories.ProfileRepository
	feed        Feed
	notifier    Dispatcher
	logger      *zap.Logger

	// ReloadBackoff is the fixed delay before the single full reload
	// performed after a change-feed error.
	ReloadBackoff time.Duration

	mu             sync.Mutex
	generation     int
	opened         bool
	closed         bool
	conversationID string
	user           models.Profile
	conversation   *models.Conversation
	cache          *Cache
	status         Status
	sub            *changefeed.Subscription
	reloadPending  bool
	foreground     bool

	done    chan struct{}
	updates chan Update
}

// NewSynchronizer builds a synchronizer. Open must be called before use.
func NewSynchronizer(
	convRepo repositories.ConversationRepository,
	msgRepo repositories.MessageRepository,
	profileRepo repositories.ProfileRepository,
	feed Feed,
	notifier Dispatcher,
	logger *zap.Logger,
) *Synchronizer {
	return &Synchronizer{
		convRepo:      convRepo,
		msgRepo:       msgRepo,
		profileRepo:   profileRepo,
		feed:          feed,
		notifier:      notifier,
		logger:        logger,
		ReloadBackoff: defaultReloadBackoff,
		status:        StatusConnecting,
		foreground:    true,
		done:          make(chan struct{}),
		updates:       make(chan Update, updatesBuffer),
	}
}

// Updates returns the consumer stream. The channel is closed by Close.
func (s *Synchronizer) Updates() <-chan Update {
	return s.updates
}

// Status returns the current connection status.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Open begins the lifecycle: load metadata, load history, mark counterpart
// messages read, subscribe to the change feed. A missing conversation is not
// an error; the synchronizer settles into a not-found state where Send fails.
func (s *Synchronizer) Open(ctx context.Context, conversationID string, user models.Profile) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("synchronizer closed")
	}
	if s.opened {
		s.mu.Unlock()
		return errors.New("synchronizer already open")
	}
	s.opened = true
	s.conversationID = conversationID
	s.user = user
	s.cache = NewCache()
	gen := s.generation
	s.mu.Unlock()

	conv, err := s.convRepo.GetConversation(ctx, conversationID)
	switch {
	case errors.Is(err, repositories.ErrConversationNotFound):
		s.logger.Warn("conversation not found", zap.String("conversation_id", conversationID))
	case err != nil:
		s.logger.Warn("failed to load conversation", zap.String("conversation_id", conversationID), zap.Error(err))
		s.emit(gen, Update{Kind: UpdateError, Error: "failed to load conversation"})
	default:
		s.mu.Lock()
		if s.current(gen) {
			s.conversation = &conv
		}
		s.mu.Unlock()
	}

	msgs, err := s.msgRepo.ListMessages(ctx, conversationID)
	if err != nil {
		s.logger.Warn("failed to load messages", zap.String("conversation_id", conversationID), zap.Error(err))
		s.emit(gen, Update{Kind: UpdateError, Error: "failed to load messages"})
	} else {
		var snapshot []models.Message
		s.mu.Lock()
		if s.current(gen) {
			s.cache.Reset(msgs)
			snapshot = s.cache.Messages()
		}
		s.mu.Unlock()
		if snapshot != nil {
			s.emit(gen, Update{Kind: UpdateHistory, Messages: snapshot})
		}
	}

	if err := s.msgRepo.MarkConversationRead(ctx, conversationID, user.ID); err != nil {
		s.logger.Warn("mark-as-read failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}

	sub := s.feed.Subscribe(conversationID, subscriptionBuffer)
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		sub.Cancel()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()

	s.emit(gen, Update{Kind: UpdateStatus, Status: StatusConnecting})
	go s.loop(gen, sub)
	return nil
}

// Send writes a text message into the open conversation. Returns false with
// no side effects for blank content or when no authenticated user,
// conversation, or open conversation id is present.
func (s *Synchronizer) Send(ctx context.Context, content string) bool {
	return s.send(ctx, content, nil)
}

// SendAttachment sends a message carrying an attachment reference, with
// optional text content.
func (s *Synchronizer) SendAttachment(ctx context.Context, content string, att models.Attachment) bool {
	return s.send(ctx, content, &att)
}

func (s *Synchronizer) send(ctx context.Context, content string, att *models.Attachment) bool {
	content = strings.TrimSpace(content)
	if content == "" && att == nil {
		return false
	}

	s.mu.Lock()
	if s.closed || !s.opened || s.conversationID == "" || s.conversation == nil || s.user.ID == "" {
		s.mu.Unlock()
		return false
	}
	gen := s.generation
	conversationID := s.conversationID
	conv := *s.conversation
	user := s.user
	s.mu.Unlock()

	senderName := s.resolveSenderName(ctx, user)

	msg, err := s.msgRepo.CreateMessage(ctx, repositories.NewMessage{
		ConversationID: conversationID,
		SenderID:       user.ID,
		SenderName:     senderName,
		Content:        content,
		Attachment:     att,
	})
	if err != nil {
		s.logger.Error("send failed", zap.String("conversation_id", conversationID), zap.Error(err))
		s.emit(gen, Update{Kind: UpdateError, Error: "failed to send message"})
		return false
	}

	// Optimistic append, unless the feed echo of this insert won the race.
	appended := false
	s.mu.Lock()
	if s.current(gen) && !s.cache.Contains(msg.ID) {
		s.cache.Insert(msg)
		appended = true
	}
	s.mu.Unlock()
	if appended {
		s.emit(gen, Update{Kind: UpdateMessage, Message: &msg})
	}

	if err := s.convRepo.TouchConversation(ctx, conversationID, msg.CreatedAt); err != nil {
		s.logger.Warn("conversation timestamp bump failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}

	go func() {
		notification := notify.MessageNotification{
			RecipientID:    conv.CounterpartID(user.ID),
			SenderName:     senderName,
			ConversationID: conversationID,
			MessageID:      msg.ID,
			Excerpt:        content,
		}
		if err := s.notifier.DispatchMessage(context.Background(), notification); err != nil {
			s.logger.Warn("notification dispatch failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}()

	return true
}

// SetForeground records whether the owning view is visible. Returning to the
// foreground marks pending counterpart messages read, best-effort.
func (s *Synchronizer) SetForeground(foreground bool) {
	s.mu.Lock()
	if s.closed || !s.opened {
		s.mu.Unlock()
		return
	}
	was := s.foreground
	s.foreground = foreground
	conversationID := s.conversationID
	userID := s.user.ID
	s.mu.Unlock()

	if foreground && !was {
		if err := s.msgRepo.MarkConversationRead(context.Background(), conversationID, userID); err != nil {
			s.logger.Warn("mark-as-read failed", zap.String("conversation_id", conversationID), zap.Error(err))
		}
	}
}

// Close tears down the subscription and drops the cache. Idempotent; safe to
// call before Open or concurrently with in-flight operations.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	sub := s.sub
	s.sub = nil
	s.cache = nil
	close(s.done)
	close(s.updates)
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

func (s *Synchronizer) loop(gen int, sub *changefeed.Subscription) {
	for {
		select {
		case <-s.done:
			return
		case ev := <-sub.Events:
			switch ev.Op {
			case changefeed.OpInsert:
				s.handleInsert(gen, ev.Message)
			case changefeed.OpUpdate:
				s.handleUpdate(gen, ev.Message)
			}
		case st := <-sub.Status:
			switch st {
			case changefeed.StatusSubscribed:
				s.transition(gen, StatusConnected)
			case changefeed.StatusError:
				s.onFeedError(gen)
			}
		}
	}
}

func (s *Synchronizer) handleInsert(gen int, msg models.Message) {
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}
	inserted := s.cache.Insert(msg)
	foreground := s.foreground
	mine := msg.SenderID == s.user.ID
	s.mu.Unlock()

	if !inserted {
		// The optimistic local append got here first.
		observability.IncSyncDuplicate()
		return
	}
	s.emit(gen, Update{Kind: UpdateMessage, Message: &msg})

	if mine {
		return
	}
	go func() {
		var err error
		if foreground {
			err = s.msgRepo.MarkMessageRead(context.Background(), msg.ID)
		} else {
			err = s.msgRepo.MarkMessageDelivered(context.Background(), msg.ID)
		}
		if err != nil {
			s.logger.Warn("receipt write failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}()
}

func (s *Synchronizer) handleUpdate(gen int, msg models.Message) {
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}
	replaced := s.cache.Replace(msg)
	s.mu.Unlock()

	if replaced {
		s.emit(gen, Update{Kind: UpdateMessageChanged, Message: &msg})
	}
}

func (s *Synchronizer) onFeedError(gen int) {
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}
	changed := s.status != StatusDisconnected
	s.status = StatusDisconnected
	alreadyPending := s.reloadPending
	s.reloadPending = true
	s.mu.Unlock()

	if changed {
		s.emit(gen, Update{Kind: UpdateStatus, Status: StatusDisconnected})
	}
	if alreadyPending {
		return
	}
	// One bounded reload after a fixed delay, not a reconnect loop; the
	// listener re-establishes the subscription on its own.
	time.AfterFunc(s.ReloadBackoff, func() { s.reload(gen) })
}

func (s *Synchronizer) reload(gen int) {
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}
	conversationID := s.conversationID
	s.reloadPending = false
	s.mu.Unlock()

	observability.IncSyncReload()
	msgs, err := s.msgRepo.ListMessages(context.Background(), conversationID)
	if err != nil {
		s.logger.Warn("reload failed", zap.String("conversation_id", conversationID), zap.Error(err))
		s.emit(gen, Update{Kind: UpdateError, Error: "failed to reload messages"})
		return
	}

	var snapshot []models.Message
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}
	s.cache.Reset(msgs)
	snapshot = s.cache.Messages()
	s.mu.Unlock()

	s.emit(gen, Update{Kind: UpdateHistory, Messages: snapshot})
}

func (s *Synchronizer) transition(gen int, status Status) {
	s.mu.Lock()
	if !s.current(gen) || s.status == status {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.mu.Unlock()
	s.emit(gen, Update{Kind: UpdateStatus, Status: status})
}

func (s *Synchronizer) resolveSenderName(ctx context.Context, user models.Profile) string {
	profile, err := s.profileRepo.GetProfile(ctx, user.ID)
	if err != nil {
		s.logger.Warn("profile lookup failed", zap.String("profile_id", user.ID), zap.Error(err))
		return user.FallbackDisplayName()
	}
	return profile.FallbackDisplayName()
}

// current reports whether a completion started at gen may still touch state.
// Callers must hold mu.
func (s *Synchronizer) current(gen int) bool {
	return !s.closed && gen == s.generation
}

func (s *Synchronizer) emit(gen int, update Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		return
	}
	select {
	case s.updates <- update:
	default:
		observability.IncSyncDropped()
		s.logger.Warn("updates consumer full, dropping", zap.String("kind", string(update.Kind)))
	}
}
