// Package notify delivers pipeline output back to the student surface:
// agent turns and crisis alerts over per-session websockets, with the
// transcript store as the durable record.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sparshcare/wellness-platform/internal/triage"
	"github.com/sparshcare/wellness-platform/pkg/logging"
)

const writeTimeout = 5 * time.Second

// Message is the wire frame pushed to websocket subscribers.
type Message struct {
	Type       string                 `json:"type"`
	Text       string                 `json:"text,omitempty"`
	Suggestion *triage.SlotSuggestion `json:"suggestion,omitempty"`
	SentAt     time.Time              `json:"sent_at"`
}

const (
	MessageTypeAgent  = "agent_message"
	MessageTypeCrisis = "crisis_alert"
)

// Hub fans messages out to the websocket connections subscribed to each
// session. A session with no subscribers drops the push silently; the
// transcript store is the durable record, the socket is best-effort.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*websocket.Conn]struct{}
	logger   *logging.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		sessions: make(map[string]map[*websocket.Conn]struct{}),
		logger:   logger,
	}
}

// Register subscribes a connection to a session's pushes.
func (h *Hub) Register(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.sessions[sessionID]
	if !ok {
		conns = make(map[*websocket.Conn]struct{})
		h.sessions[sessionID] = conns
	}
	conns[conn] = struct{}{}
}

// Unregister removes a connection; the caller still owns closing it.
func (h *Hub) Unregister(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.sessions, sessionID)
	}
}

// Push sends a message to every subscriber of a session. Connections that
// fail to write are dropped from the hub.
func (h *Hub) Push(sessionID string, msg Message) {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode push message", "error", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.sessions[sessionID]))
	for conn := range h.sessions[sessionID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		h.logger.Debug("no subscribers for session push", "session_id", sessionID, "type", msg.Type)
		return
	}

	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
			h.logger.Warn("dropping dead websocket subscriber", "session_id", sessionID, "error", err)
			h.Unregister(sessionID, conn)
			_ = conn.Close()
		}
	}
}

// SubscriberCount reports active connections for a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
