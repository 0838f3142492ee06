package changefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"mentor-chat-service/internal/observability"
)

const notifyChannel = "message_events"

// Feed listens on the Postgres NOTIFY channel fed by the messages trigger and
// fans events out to per-conversation subscriptions.
type Feed struct {
	listener *pq.Listener
	logger   *zap.Logger

	mu        sync.RWMutex
	subs      map[int]*registration
	next      int
	connected bool
}

type registration struct {
	conversationID string
	sub            *Subscription
}

// New connects a listener to the message_events channel. Run must be called
// for events to flow.
func New(dsn string, logger *zap.Logger) (*Feed, error) {
	f := &Feed{
		logger: logger,
		subs:   make(map[int]*registration),
	}
	f.listener = pq.NewListener(dsn, 2*time.Second, time.Minute, f.handleListenerEvent)
	if err := f.listener.Listen(notifyChannel); err != nil {
		_ = f.listener.Close()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}
	return f, nil
}

// Run pumps notifications until the context is cancelled.
func (f *Feed) Run(ctx context.Context) {
	defer func() { _ = f.listener.Close() }()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-f.listener.Notify:
			if n == nil {
				// pq signals a re-established connection with a nil
				// notification; status is handled by the listener callback.
				continue
			}
			f.dispatch([]byte(n.Extra))
		}
	}
}

// Subscribe registers a consumer for one conversation's events. If the feed is
// currently connected the subscription observes StatusSubscribed immediately.
func (f *Feed) Subscribe(conversationID string, buf int) *Subscription {
	sub := NewSubscription(buf)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = &registration{conversationID: conversationID, sub: sub}
	connected := f.connected
	f.mu.Unlock()

	sub.cancel = func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}

	if connected {
		pushStatus(sub, StatusSubscribed)
	}
	return sub
}

func (f *Feed) dispatch(payload []byte) {
	event, err := ParseEvent(payload)
	if err != nil {
		f.logger.Warn("discarding malformed feed payload", zap.Error(err))
		return
	}
	observability.IncFeedEvent(string(event.Op))

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, reg := range f.subs {
		if reg.conversationID != event.Message.ConversationID {
			continue
		}
		select {
		case reg.sub.Events <- event:
		default:
			// Slow consumer: drop rather than block the feed. The consumer's
			// next reload restores the full list.
			observability.IncFeedDropped()
			f.logger.Warn("feed subscriber full, dropping event",
				zap.String("conversation_id", reg.conversationID),
				zap.String("message_id", event.Message.ID))
		}
	}
}

func (f *Feed) handleListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected, pq.ListenerEventReconnected:
		f.broadcastStatus(true, StatusSubscribed)
	case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
		if err != nil {
			f.logger.Warn("change feed connection lost", zap.Error(err))
		}
		f.broadcastStatus(false, StatusError)
	}
}

func (f *Feed) broadcastStatus(connected bool, status SubscriptionStatus) {
	f.mu.Lock()
	f.connected = connected
	regs := make([]*registration, 0, len(f.subs))
	for _, reg := range f.subs {
		regs = append(regs, reg)
	}
	f.mu.Unlock()

	for _, reg := range regs {
		pushStatus(reg.sub, status)
	}
}

func pushStatus(sub *Subscription, status SubscriptionStatus) {
	select {
	case sub.Status <- status:
	default:
	}
}
