package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/sparshcare/wellness-platform/internal/chat"
	"github.com/sparshcare/wellness-platform/internal/notify"
	"github.com/sparshcare/wellness-platform/internal/triage"
	"github.com/sparshcare/wellness-platform/pkg/logging"
)

// ReplyHandler answers one inbound chat message.
type ReplyHandler interface {
	HandleMessage(ctx context.Context, msg chat.IncomingMessage) (chat.Reply, error)
}

// HistoryReader loads a session transcript.
type HistoryReader interface {
	History(ctx context.Context, sessionID string) ([]triage.Turn, error)
}

// ChatHandler exposes the conversation surface: message intake, transcript
// history, and the per-session websocket for pipeline pushes.
type ChatHandler struct {
	engine   ReplyHandler
	history  HistoryReader
	hub      *notify.Hub
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewChatHandler wires the chat endpoints.
func NewChatHandler(engine ReplyHandler, history HistoryReader, hub *notify.Hub, logger *logging.Logger) *ChatHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{
		engine:  engine,
		history: history,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// PostMessage handles POST /api/chat/message.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var msg chat.IncomingMessage
	if !decodeBody(w, r, h.logger, &msg) {
		return
	}
	if msg.StudentID == "" || msg.SessionID == "" {
		respondError(w, http.StatusBadRequest, "student_id and session_id are required")
		return
	}

	reply, err := h.engine.HandleMessage(r.Context(), msg)
	if err != nil {
		h.logger.Error("chat message failed", "error", err, "session_id", msg.SessionID)
		respondError(w, http.StatusUnprocessableEntity, "could not process message")
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

// GetHistory handles GET /api/chat/{sessionID}/history.
func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session id required")
		return
	}

	turns, err := h.history.History(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("history load failed", "error", err, "session_id", sessionID)
		respondError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "turns": turns})
}

// Subscribe handles GET /api/chat/{sessionID}/ws. The socket is push-only;
// inbound frames are drained and discarded.
func (h *ChatHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session id required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "session_id", sessionID)
		return
	}

	h.hub.Register(sessionID, conn)
	h.logger.Debug("websocket subscribed", "session_id", sessionID)

	go func() {
		defer func() {
			h.hub.Unregister(sessionID, conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
