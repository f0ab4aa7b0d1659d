// Package chat produces the immediate conversational reply to each student
// message and hands the conversation to the triage queue. The reply path is
// adjacent to triage: it must answer fast even when every model is down.
package chat

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sparshcare/wellness-platform/internal/events"
	"github.com/sparshcare/wellness-platform/internal/triage"
	"github.com/sparshcare/wellness-platform/pkg/logging"
)

var tracer = otel.Tracer("sparsh.internal.chat")

const replyContextTurns = 10

const defaultReplyTimeout = 10 * time.Second

const replySystemPrompt = `You are SParsh, a warm and supportive wellness companion for university students. Reply briefly and empathetically to the student's latest message. Never diagnose, never promise outcomes, and never mention internal processes. If the student asks about appointments, tell them you can help arrange one.`

// FallbackReply is sent when the reply model is unavailable. The triage
// cycle still runs; only the conversational sparkle is lost.
const FallbackReply = "I'm here with you. Tell me more about what's on your mind?"

// CrisisHoldingReply is the canned response when the crisis filter fires on
// the inbound message, before anything else happens.
const CrisisHoldingReply = "Thank you for telling me. What you're feeling matters, and you deserve support right now — I'm alerting a counselor immediately. If you are in immediate danger, please call your local emergency number."

// moodTagPattern matches the optional client-side mood prefix, e.g.
// "[mood:sadness] I had a rough day".
var moodTagPattern = regexp.MustCompile(`^\s*\[mood:([a-z]+)\]\s*`)

// IncomingMessage is one student message entering the reply engine.
type IncomingMessage struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	SessionID   string `json:"session_id"`
	Text        string `json:"text"`
}

// Reply is what the student sees synchronously.
type Reply struct {
	Text   string `json:"text"`
	Crisis bool   `json:"crisis"`
}

// TranscriptStore is the engine's view of the transcript.
type TranscriptStore interface {
	Append(ctx context.Context, sessionID string, turn triage.Turn) error
	Recent(ctx context.Context, sessionID string, n int) ([]triage.Turn, error)
}

// TriagePublisher enqueues a cycle for background triage.
type TriagePublisher interface {
	Publish(ctx context.Context, req triage.CycleRequest) error
}

// CrisisSignaler raises the one-shot crisis signal.
type CrisisSignaler interface {
	SignalCrisis(ctx context.Context, evt events.CrisisDetectedV1) error
}

// ChatCompleter is the OpenAI-compatible completion surface the engine
// talks to.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ReplyEngine answers student messages and feeds the triage pipeline.
type ReplyEngine struct {
	client     ChatCompleter
	model      string
	timeout    time.Duration
	transcript TranscriptStore
	publisher  TriagePublisher
	crisis     CrisisSignaler
	logger     *logging.Logger
}

// NewReplyEngine wires the reply engine. The chat client may be nil; every
// reply then uses the canned fallback.
func NewReplyEngine(
	client ChatCompleter,
	model string,
	timeout time.Duration,
	transcript TranscriptStore,
	publisher TriagePublisher,
	crisis CrisisSignaler,
	logger *logging.Logger,
) *ReplyEngine {
	if transcript == nil {
		panic("chat: transcript store cannot be nil")
	}
	if publisher == nil {
		panic("chat: triage publisher cannot be nil")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = defaultReplyTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ReplyEngine{
		client:     client,
		model:      model,
		timeout:    timeout,
		transcript: transcript,
		publisher:  publisher,
		crisis:     crisis,
		logger:     logger,
	}
}

// HandleMessage records the student turn, answers it, and enqueues a triage
// cycle. The crisis keyword check runs before any network call; a crisis
// short-circuits to the holding reply and the signal, and the triage queue
// is skipped entirely.
func (e *ReplyEngine) HandleMessage(ctx context.Context, msg IncomingMessage) (Reply, error) {
	ctx, span := tracer.Start(ctx, "chat.handle_message")
	defer span.End()
	span.SetAttributes(
		attribute.String("sparsh.student_id", msg.StudentID),
		attribute.String("sparsh.session_id", msg.SessionID),
	)

	text, mood := stripMoodTag(msg.Text)
	if mood != "" {
		span.SetAttributes(attribute.String("sparsh.mood_tag", mood))
	}
	if strings.TrimSpace(text) == "" {
		return Reply{}, fmt.Errorf("chat: empty message")
	}

	userTurn := triage.Turn{Role: triage.RoleUser, Text: text, Timestamp: time.Now().UTC()}
	if err := e.transcript.Append(ctx, msg.SessionID, userTurn); err != nil {
		return Reply{}, fmt.Errorf("chat: record student turn: %w", err)
	}

	if triage.IsCrisis(text) {
		return e.handleCrisis(ctx, msg, text)
	}

	replyText := e.generateReply(ctx, msg.SessionID, text)
	assistantTurn := triage.Turn{Role: triage.RoleAssistant, Text: replyText, Timestamp: time.Now().UTC()}
	if err := e.transcript.Append(ctx, msg.SessionID, assistantTurn); err != nil {
		e.logger.Error("failed to record assistant turn", "error", err, "session_id", msg.SessionID)
	}

	e.enqueueTriage(ctx, msg)
	return Reply{Text: replyText}, nil
}

func (e *ReplyEngine) handleCrisis(ctx context.Context, msg IncomingMessage, text string) (Reply, error) {
	e.logger.Warn("crisis detected at intake",
		"student_id", msg.StudentID,
		"session_id", msg.SessionID,
	)

	if e.crisis != nil {
		evt := events.CrisisDetectedV1{
			EventID:    uuid.NewString(),
			StudentID:  msg.StudentID,
			SessionID:  msg.SessionID,
			Source:     "keyword",
			Excerpt:    text,
			DetectedAt: time.Now().UTC(),
		}
		if err := e.crisis.SignalCrisis(ctx, evt); err != nil {
			e.logger.Error("crisis signal delivery failed", "error", err, "event_id", evt.EventID)
		}
	}

	holdingTurn := triage.Turn{Role: triage.RoleAssistant, Text: CrisisHoldingReply, Timestamp: time.Now().UTC()}
	if err := e.transcript.Append(ctx, msg.SessionID, holdingTurn); err != nil {
		e.logger.Error("failed to record holding reply", "error", err, "session_id", msg.SessionID)
	}

	return Reply{Text: CrisisHoldingReply, Crisis: true}, nil
}

// generateReply asks the chat model, falling back to the canned reply on any
// failure. Reply generation is never allowed to fail the request.
func (e *ReplyEngine) generateReply(ctx context.Context, sessionID, latest string) string {
	if e.client == nil {
		return FallbackReply
	}

	history, err := e.transcript.Recent(ctx, sessionID, replyContextTurns)
	if err != nil {
		e.logger.Warn("could not load reply context", "error", err, "session_id", sessionID)
		history = []triage.Turn{{Role: triage.RoleUser, Text: latest}}
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: replySystemPrompt,
	})
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role != triage.RoleUser {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       e.model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		e.logger.Warn("reply model unavailable, using fallback", "error", err, "session_id", sessionID)
		return FallbackReply
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return FallbackReply
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// enqueueTriage publishes the cycle with the freshest transcript snapshot.
// Enqueue failure is logged, not surfaced: the student already has a reply.
func (e *ReplyEngine) enqueueTriage(ctx context.Context, msg IncomingMessage) {
	turns, err := e.transcript.Recent(ctx, msg.SessionID, replyContextTurns)
	if err != nil {
		e.logger.Error("could not snapshot transcript for triage", "error", err, "session_id", msg.SessionID)
		return
	}

	req := triage.CycleRequest{
		StudentID:   msg.StudentID,
		StudentName: msg.StudentName,
		SessionID:   msg.SessionID,
		Turns:       turns,
	}
	if err := e.publisher.Publish(ctx, req); err != nil {
		e.logger.Error("failed to enqueue triage cycle", "error", err, "session_id", msg.SessionID)
	}
}

// stripMoodTag removes the optional client mood prefix and returns the
// cleaned text plus the tag value, if any.
func stripMoodTag(text string) (string, string) {
	match := moodTagPattern.FindStringSubmatch(text)
	if match == nil {
		return text, ""
	}
	return text[len(match[0]):], match[1]
}
