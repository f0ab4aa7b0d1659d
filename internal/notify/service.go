package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sparshcare/wellness-platform/internal/events"
	"github.com/sparshcare/wellness-platform/internal/triage"
	"github.com/sparshcare/wellness-platform/pkg/logging"
)

// TranscriptAppender records turns into the durable transcript.
type TranscriptAppender interface {
	Append(ctx context.Context, sessionID string, turn triage.Turn) error
}

// Service implements triage.Notifier: agent turns land in the transcript and
// are pushed to live subscribers; crisis signals are pushed as a distinct
// frame type so the client can render them outside the chat stream.
type Service struct {
	transcript TranscriptAppender
	hub        *Hub
	logger     *logging.Logger
}

// NewService wires the notifier.
func NewService(transcript TranscriptAppender, hub *Hub, logger *logging.Logger) *Service {
	if transcript == nil {
		panic("notify: transcript appender cannot be nil")
	}
	if hub == nil {
		panic("notify: hub cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{transcript: transcript, hub: hub, logger: logger}
}

// AppendAgentTurn persists the agent message and pushes it to the session.
// The transcript write is the durable part; push failures only cost liveness.
func (s *Service) AppendAgentTurn(ctx context.Context, req triage.CycleRequest, text string, suggestion *triage.SlotSuggestion) error {
	turn := triage.Turn{
		Role:      triage.RoleAgent,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	if err := s.transcript.Append(ctx, req.SessionID, turn); err != nil {
		return fmt.Errorf("notify: record agent turn: %w", err)
	}

	s.hub.Push(req.SessionID, Message{
		Type:       MessageTypeAgent,
		Text:       text,
		Suggestion: suggestion,
	})
	return nil
}

// SignalCrisis pushes the crisis frame to the session. The frame carries no
// transcript body; the support message travels separately as an agent turn.
func (s *Service) SignalCrisis(_ context.Context, evt events.CrisisDetectedV1) error {
	s.logger.Warn("pushing crisis alert",
		"event_id", evt.EventID,
		"student_id", evt.StudentID,
		"session_id", evt.SessionID,
		"source", evt.Source,
	)
	s.hub.Push(evt.SessionID, Message{Type: MessageTypeCrisis})
	return nil
}
