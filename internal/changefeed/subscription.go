package changefeed

import "sync"

// Subscription is one consumer's view of the change feed, filtered to a single
// conversation. Events and Status are never closed while the subscription is
// live; Cancel detaches it from the feed and is safe to call more than once.
type Subscription struct {
	Events chan Event
	Status chan SubscriptionStatus

	once   sync.Once
	cancel func()
}

// NewSubscription builds a detached subscription. The feed attaches the cancel
// hook on registration; tests drive the channels directly.
func NewSubscription(buf int) *Subscription {
	return &Subscription{
		Events: make(chan Event, buf),
		Status: make(chan SubscriptionStatus, 4),
	}
}

// Cancel detaches the subscription from the feed. Idempotent.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
