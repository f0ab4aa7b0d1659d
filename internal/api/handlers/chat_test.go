package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparshcare/wellness-platform/internal/chat"
	"github.com/sparshcare/wellness-platform/internal/notify"
	"github.com/sparshcare/wellness-platform/internal/triage"
)

type fakeEngine struct {
	reply chat.Reply
	err   error
	last  chat.IncomingMessage
}

func (f *fakeEngine) HandleMessage(_ context.Context, msg chat.IncomingMessage) (chat.Reply, error) {
	f.last = msg
	return f.reply, f.err
}

type fakeHistory struct {
	turns []triage.Turn
	err   error
}

func (f *fakeHistory) History(_ context.Context, _ string) ([]triage.Turn, error) {
	return f.turns, f.err
}

func newChatRouter(engine *fakeEngine, history *fakeHistory) http.Handler {
	h := NewChatHandler(engine, history, notify.NewHub(nil), nil)
	r := chi.NewRouter()
	r.Post("/api/chat/message", h.PostMessage)
	r.Get("/api/chat/{sessionID}/history", h.GetHistory)
	return r
}

func TestPostMessageReturnsReply(t *testing.T) {
	engine := &fakeEngine{reply: chat.Reply{Text: "I'm listening."}}
	req := httptest.NewRequest(http.MethodPost, "/api/chat/message",
		strings.NewReader(`{"student_id":"stu-1","student_name":"Asha","session_id":"sess-1","text":"long week"}`))
	rec := httptest.NewRecorder()
	newChatRouter(engine, &fakeHistory{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var reply chat.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "I'm listening.", reply.Text)
	assert.Equal(t, "stu-1", engine.last.StudentID)
	assert.Equal(t, "long week", engine.last.Text)
}

func TestPostMessageCrisisReplyPassesThrough(t *testing.T) {
	engine := &fakeEngine{reply: chat.Reply{Text: chat.CrisisHoldingReply, Crisis: true}}
	req := httptest.NewRequest(http.MethodPost, "/api/chat/message",
		strings.NewReader(`{"student_id":"stu-1","session_id":"sess-1","text":"I want to die"}`))
	rec := httptest.NewRecorder()
	newChatRouter(engine, &fakeHistory{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var reply chat.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.True(t, reply.Crisis)
}

func TestPostMessageRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/chat/message",
		strings.NewReader(`{"text":"anonymous"}`))
	rec := httptest.NewRecorder()
	newChatRouter(&fakeEngine{}, &fakeHistory{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessageEngineFailure(t *testing.T) {
	engine := &fakeEngine{err: errors.New("empty message")}
	req := httptest.NewRequest(http.MethodPost, "/api/chat/message",
		strings.NewReader(`{"student_id":"stu-1","session_id":"sess-1","text":"  "}`))
	rec := httptest.NewRecorder()
	newChatRouter(engine, &fakeHistory{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetHistory(t *testing.T) {
	history := &fakeHistory{turns: []triage.Turn{
		{Role: triage.RoleUser, Text: "hello", Timestamp: time.Now().UTC()},
		{Role: triage.RoleAssistant, Text: "hi there", Timestamp: time.Now().UTC()},
	}}
	rec := httptest.NewRecorder()
	newChatRouter(&fakeEngine{}, history).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/chat/sess-1/history", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		SessionID string        `json:"session_id"`
		Turns     []triage.Turn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "sess-1", body.SessionID)
	require.Len(t, body.Turns, 2)
	assert.Equal(t, "hello", body.Turns[0].Text)
}

func TestGetHistoryStoreFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	newChatRouter(&fakeEngine{}, &fakeHistory{err: errors.New("redis down")}).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/chat/sess-1/history", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
