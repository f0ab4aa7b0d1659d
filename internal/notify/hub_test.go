package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparshcare/wellness-platform/internal/triage"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// dialHub spins up a websocket endpoint that registers incoming connections
// under sessionID and returns a connected client.
func dialHub(t *testing.T, hub *Hub, sessionID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		hub.Register(sessionID, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPushDeliversToSubscriber(t *testing.T) {
	hub := NewHub(nil)
	client := dialHub(t, hub, "sess-1")

	require.Eventually(t, func() bool {
		return hub.SubscriberCount("sess-1") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Push("sess-1", Message{
		Type:       MessageTypeAgent,
		Text:       "I've added a Grounding to your wellness tasks.",
		Suggestion: &triage.SlotSuggestion{SlotID: "slot-9", Label: "2026-09-02 at 11:00 with Dr. Kapoor"},
	})

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, body, err := client.ReadMessage()
	require.NoError(t, err)

	var got Message
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, MessageTypeAgent, got.Type)
	assert.Contains(t, got.Text, "Grounding")
	require.NotNil(t, got.Suggestion)
	assert.Equal(t, "slot-9", got.Suggestion.SlotID)
	assert.False(t, got.SentAt.IsZero())
}

func TestPushCrisisFrameHasDistinctType(t *testing.T) {
	hub := NewHub(nil)
	client := dialHub(t, hub, "sess-1")

	require.Eventually(t, func() bool {
		return hub.SubscriberCount("sess-1") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Push("sess-1", Message{Type: MessageTypeCrisis})

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, body, err := client.ReadMessage()
	require.NoError(t, err)

	var got Message
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, MessageTypeCrisis, got.Type)
	assert.Empty(t, got.Text)
}

func TestPushWithoutSubscribersIsSilent(t *testing.T) {
	hub := NewHub(nil)
	// Must not panic or block.
	hub.Push("nobody-home", Message{Type: MessageTypeAgent, Text: "hello?"})
	assert.Equal(t, 0, hub.SubscriberCount("nobody-home"))
}

func TestPushIsScopedToSession(t *testing.T) {
	hub := NewHub(nil)
	client := dialHub(t, hub, "sess-a")

	require.Eventually(t, func() bool {
		return hub.SubscriberCount("sess-a") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Push("sess-b", Message{Type: MessageTypeAgent, Text: "wrong room"})

	require.NoError(t, client.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := client.ReadMessage()
	assert.Error(t, err, "subscriber of sess-a must not receive sess-b pushes")
}
