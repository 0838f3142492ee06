package changefeed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFeed() *Feed {
	return &Feed{
		logger: zap.NewNop(),
		subs:   make(map[int]*registration),
	}
}

func TestParseEventInsert(t *testing.T) {
	payload := []byte(`{"op":"INSERT","row":{"id":"m1","conversation_id":"c1","sender_id":"u1","content":"hi","created_at":"2026-08-29T10:00:00Z"}}`)

	event, err := ParseEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, OpInsert, event.Op)
	assert.Equal(t, "m1", event.Message.ID)
	assert.Equal(t, "c1", event.Message.ConversationID)
	assert.Equal(t, "hi", event.Message.Content)
}

func TestParseEventUpdate(t *testing.T) {
	payload := []byte(`{"op":"UPDATE","row":{"id":"m1","conversation_id":"c1","is_read":true}}`)

	event, err := ParseEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, OpUpdate, event.Op)
	assert.True(t, event.Message.IsRead)
}

func TestParseEventRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"op":`,
		"unsupported op":  `{"op":"DELETE","row":{"id":"m1","conversation_id":"c1"}}`,
		"missing id":      `{"op":"INSERT","row":{"conversation_id":"c1"}}`,
		"missing convers": `{"op":"INSERT","row":{"id":"m1"}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEvent([]byte(payload))
			assert.Error(t, err)
		})
	}
}

func TestDispatchFiltersByConversation(t *testing.T) {
	f := newTestFeed()
	mine := f.Subscribe("c1", 4)
	other := f.Subscribe("c2", 4)

	f.dispatch([]byte(`{"op":"INSERT","row":{"id":"m1","conversation_id":"c1","content":"hi"}}`))

	select {
	case event := <-mine.Events:
		assert.Equal(t, "m1", event.Message.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber for c1 never received the event")
	}
	select {
	case <-other.Events:
		t.Fatal("subscriber for c2 must not see c1 events")
	default:
	}
}

func TestDispatchDropsWhenSubscriberFull(t *testing.T) {
	f := newTestFeed()
	sub := f.Subscribe("c1", 1)

	f.dispatch([]byte(`{"op":"INSERT","row":{"id":"m1","conversation_id":"c1"}}`))
	f.dispatch([]byte(`{"op":"INSERT","row":{"id":"m2","conversation_id":"c1"}}`))

	event := <-sub.Events
	assert.Equal(t, "m1", event.Message.ID)
	select {
	case <-sub.Events:
		t.Fatal("overflow event should have been dropped")
	default:
	}
}

func TestDispatchIgnoresMalformedPayload(t *testing.T) {
	f := newTestFeed()
	sub := f.Subscribe("c1", 4)

	f.dispatch([]byte(`garbage`))

	select {
	case <-sub.Events:
		t.Fatal("malformed payload must not produce an event")
	default:
	}
}

func TestSubscribeCancelDetaches(t *testing.T) {
	f := newTestFeed()
	sub := f.Subscribe("c1", 4)

	sub.Cancel()
	sub.Cancel()

	f.dispatch([]byte(`{"op":"INSERT","row":{"id":"m1","conversation_id":"c1"}}`))
	select {
	case <-sub.Events:
		t.Fatal("cancelled subscription must not receive events")
	default:
	}
}

func TestSubscribeOnConnectedFeedSeesSubscribed(t *testing.T) {
	f := newTestFeed()
	f.broadcastStatus(true, StatusSubscribed)

	sub := f.Subscribe("c1", 4)
	select {
	case status := <-sub.Status:
		assert.Equal(t, StatusSubscribed, status)
	default:
		t.Fatal("expected an immediate subscribed status")
	}
}

func TestBroadcastStatusReachesAllSubscribers(t *testing.T) {
	f := newTestFeed()
	a := f.Subscribe("c1", 4)
	b := f.Subscribe("c2", 4)

	f.broadcastStatus(false, StatusError)

	assert.Equal(t, StatusError, <-a.Status)
	assert.Equal(t, StatusError, <-b.Status)
}
