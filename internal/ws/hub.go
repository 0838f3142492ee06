package ws

import (
	"sync"

	"mentor-chat-service/internal/realtime"
)

// Session is one live websocket binding: a connection plus the synchronizer
// that owns its conversation view.
type Session struct {
	Info ConnInfo
	Sync *realtime.Synchronizer
}

// Hub tracks active conversation sessions. Message fan-out happens through
// the database change feed, not here; the hub exists for accounting and for
// tearing every session down on shutdown.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Session
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]map[string]*Session)}
}

// Add registers a session under its conversation.
func (h *Hub) Add(conversationID string, session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[conversationID]; !ok {
		h.sessions[conversationID] = make(map[string]*Session)
	}
	h.sessions[conversationID][session.Info.ConnID] = session
}

// Remove drops a session; empty conversation buckets are deleted.
func (h *Hub) Remove(conversationID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sessions, ok := h.sessions[conversationID]; ok {
		delete(sessions, connID)
		if len(sessions) == 0 {
			delete(h.sessions, conversationID)
		}
	}
}

// Count returns the number of live sessions for a conversation.
func (h *Hub) Count(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[conversationID])
}

// CloseAll closes every session's synchronizer. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := make([]*Session, 0)
	for _, sessions := range h.sessions {
		for _, session := range sessions {
			all = append(all, session)
		}
	}
	h.sessions = make(map[string]map[string]*Session)
	h.mu.Unlock()

	for _, session := range all {
		session.Sync.Close()
	}
}
