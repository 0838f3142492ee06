package ws

import (
	"testing"

	"go.uber.org/zap"

	"mentor-chat-service/internal/realtime"
)

func newTestSession(connID string) *Session {
	return &Session{
		Info: ConnInfo{ConnID: connID, ProfileID: "u1"},
		Sync: realtime.NewSynchronizer(nil, nil, nil, nil, nil, zap.NewNop()),
	}
}

func TestHubAddAndRemove(t *testing.T) {
	hub := NewHub()

	hub.Add("c1", newTestSession("conn1"))
	if hub.Count("c1") != 1 {
		t.Fatalf("expected one session for c1")
	}

	hub.Remove("c1", "conn1")
	if hub.Count("c1") != 0 {
		t.Fatalf("expected session to be removed")
	}
	if len(hub.sessions) != 0 {
		t.Fatalf("expected empty conversation bucket to be deleted")
	}
}

func TestHubCountsPerConversation(t *testing.T) {
	hub := NewHub()

	hub.Add("c1", newTestSession("conn1"))
	hub.Add("c1", newTestSession("conn2"))
	hub.Add("c2", newTestSession("conn3"))

	if hub.Count("c1") != 2 {
		t.Fatalf("expected two sessions for c1, got %d", hub.Count("c1"))
	}
	if hub.Count("c2") != 1 {
		t.Fatalf("expected one session for c2, got %d", hub.Count("c2"))
	}
}

func TestHubCloseAll(t *testing.T) {
	hub := NewHub()
	a := newTestSession("conn1")
	b := newTestSession("conn2")
	hub.Add("c1", a)
	hub.Add("c2", b)

	hub.CloseAll()

	if hub.Count("c1") != 0 || hub.Count("c2") != 0 {
		t.Fatalf("expected all sessions dropped")
	}
	if _, ok := <-a.Sync.Updates(); ok {
		t.Fatalf("expected synchronizer a to be closed")
	}
	if _, ok := <-b.Sync.Updates(); ok {
		t.Fatalf("expected synchronizer b to be closed")
	}
}

func TestHubRemoveUnknownIsNoop(t *testing.T) {
	hub := NewHub()
	hub.Remove("c1", "ghost")
	if hub.Count("c1") != 0 {
		t.Fatalf("expected no sessions")
	}
}
