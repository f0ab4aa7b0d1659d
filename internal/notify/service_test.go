package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparshcare/wellness-platform/internal/events"
	"github.com/sparshcare/wellness-platform/internal/triage"
)

type fakeTranscript struct {
	sessionID string
	turns     []triage.Turn
	err       error
}

func (f *fakeTranscript) Append(_ context.Context, sessionID string, turn triage.Turn) error {
	if f.err != nil {
		return f.err
	}
	f.sessionID = sessionID
	f.turns = append(f.turns, turn)
	return nil
}

func TestAppendAgentTurnRecordsTranscript(t *testing.T) {
	transcript := &fakeTranscript{}
	svc := NewService(transcript, NewHub(nil), nil)

	req := triage.CycleRequest{StudentID: "stu-1", SessionID: "sess-1"}
	err := svc.AppendAgentTurn(context.Background(), req, "take it one step at a time", nil)
	require.NoError(t, err)

	assert.Equal(t, "sess-1", transcript.sessionID)
	require.Len(t, transcript.turns, 1)
	assert.Equal(t, triage.RoleAgent, transcript.turns[0].Role)
	assert.Equal(t, "take it one step at a time", transcript.turns[0].Text)
	assert.False(t, transcript.turns[0].Timestamp.IsZero())
}

func TestAppendAgentTurnTranscriptFailureSurfaces(t *testing.T) {
	transcript := &fakeTranscript{err: errors.New("redis down")}
	svc := NewService(transcript, NewHub(nil), nil)

	err := svc.AppendAgentTurn(context.Background(), triage.CycleRequest{SessionID: "sess-1"}, "hello", nil)
	require.Error(t, err)
}

func TestSignalCrisisDoesNotTouchTranscript(t *testing.T) {
	transcript := &fakeTranscript{}
	svc := NewService(transcript, NewHub(nil), nil)

	err := svc.SignalCrisis(context.Background(), events.CrisisDetectedV1{
		EventID:   "evt-1",
		StudentID: "stu-1",
		SessionID: "sess-1",
		Source:    "keyword",
	})
	require.NoError(t, err)
	assert.Empty(t, transcript.turns, "crisis frames carry no transcript body")
}
