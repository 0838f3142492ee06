package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *publisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestDispatchMessageEnvelope(t *testing.T) {
	publisher := new(publisherMock)
	dispatcher := NewDispatcher(publisher, "notifications.message", "mentor-chat-service", "test")

	var captured Envelope
	publisher.On("Publish", mock.Anything, "notifications.message", mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(2).(Envelope)
	}).Return(nil).Once()

	err := dispatcher.DispatchMessage(context.Background(), MessageNotification{
		RecipientID:    "m1",
		SenderName:     "Uma",
		ConversationID: "c1",
		MessageID:      "msg1",
		Excerpt:        "hello there",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, captured.SchemaVersion)
	assert.Equal(t, "message_notification", captured.EventType)
	assert.Equal(t, "mentor-chat-service", captured.Service)
	assert.Equal(t, "test", captured.Environment)
	assert.Equal(t, "m1", captured.Payload.RecipientID)
	assert.Equal(t, "hello there", captured.Payload.Excerpt)

	occurred, err := time.Parse(time.RFC3339Nano, captured.OccurredAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), occurred, time.Minute)

	publisher.AssertExpectations(t)
}

func TestDispatchMessageTruncatesExcerpt(t *testing.T) {
	publisher := new(publisherMock)
	dispatcher := NewDispatcher(publisher, "k", "svc", "test")

	var captured Envelope
	publisher.On("Publish", mock.Anything, "k", mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(2).(Envelope)
	}).Return(nil).Once()

	long := strings.Repeat("é", 300)
	require.NoError(t, dispatcher.DispatchMessage(context.Background(), MessageNotification{Excerpt: long}))

	assert.Equal(t, excerptLimit, len([]rune(captured.Payload.Excerpt)))
	assert.Equal(t, strings.Repeat("é", excerptLimit), captured.Payload.Excerpt)
}

func TestDispatchMessageAttachmentPlaceholder(t *testing.T) {
	publisher := new(publisherMock)
	dispatcher := NewDispatcher(publisher, "k", "svc", "test")

	var captured Envelope
	publisher.On("Publish", mock.Anything, "k", mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(2).(Envelope)
	}).Return(nil).Once()

	require.NoError(t, dispatcher.DispatchMessage(context.Background(), MessageNotification{Excerpt: ""}))
	assert.Equal(t, "[attachment]", captured.Payload.Excerpt)
}

func TestDispatchMessagePropagatesPublishError(t *testing.T) {
	publisher := new(publisherMock)
	dispatcher := NewDispatcher(publisher, "k", "svc", "test")

	publisher.On("Publish", mock.Anything, "k", mock.Anything).Return(assert.AnError).Once()

	err := dispatcher.DispatchMessage(context.Background(), MessageNotification{Excerpt: "x"})
	assert.Error(t, err)
}
