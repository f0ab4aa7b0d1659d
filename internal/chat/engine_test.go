package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparshcare/wellness-platform/internal/events"
	"github.com/sparshcare/wellness-platform/internal/triage"
)

type memTranscript struct {
	turns     map[string][]triage.Turn
	appendErr error
}

func newMemTranscript() *memTranscript {
	return &memTranscript{turns: make(map[string][]triage.Turn)}
}

func (m *memTranscript) Append(_ context.Context, sessionID string, turn triage.Turn) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.turns[sessionID] = append(m.turns[sessionID], turn)
	return nil
}

func (m *memTranscript) Recent(_ context.Context, sessionID string, n int) ([]triage.Turn, error) {
	turns := m.turns[sessionID]
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return append([]triage.Turn(nil), turns...), nil
}

type capturePublisher struct {
	requests []triage.CycleRequest
}

func (p *capturePublisher) Publish(_ context.Context, req triage.CycleRequest) error {
	p.requests = append(p.requests, req)
	return nil
}

type captureSignaler struct {
	events []events.CrisisDetectedV1
}

func (s *captureSignaler) SignalCrisis(_ context.Context, evt events.CrisisDetectedV1) error {
	s.events = append(s.events, evt)
	return nil
}

type fakeChat struct {
	reply string
	err   error
	calls int
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.reply}},
		},
	}, nil
}

type chatFixture struct {
	transcript *memTranscript
	publisher  *capturePublisher
	signaler   *captureSignaler
	client     *fakeChat
	engine     *ReplyEngine
}

func newChatFixture(t *testing.T, client *fakeChat) *chatFixture {
	t.Helper()
	f := &chatFixture{
		transcript: newMemTranscript(),
		publisher:  &capturePublisher{},
		signaler:   &captureSignaler{},
		client:     client,
	}
	var cc ChatCompleter
	if client != nil {
		cc = client
	}
	f.engine = NewReplyEngine(cc, "", time.Second, f.transcript, f.publisher, f.signaler, nil)
	return f
}

func incoming(text string) IncomingMessage {
	return IncomingMessage{
		StudentID:   "stu-1",
		StudentName: "Asha",
		SessionID:   "sess-1",
		Text:        text,
	}
}

func TestHandleMessageRepliesAndEnqueuesTriage(t *testing.T) {
	f := newChatFixture(t, &fakeChat{reply: "That sounds like a lot to carry. What happened today?"})

	reply, err := f.engine.HandleMessage(context.Background(), incoming("rough day at college"))
	require.NoError(t, err)

	assert.False(t, reply.Crisis)
	assert.Equal(t, "That sounds like a lot to carry. What happened today?", reply.Text)

	turns := f.transcript.turns["sess-1"]
	require.Len(t, turns, 2)
	assert.Equal(t, triage.RoleUser, turns[0].Role)
	assert.Equal(t, triage.RoleAssistant, turns[1].Role)

	require.Len(t, f.publisher.requests, 1)
	req := f.publisher.requests[0]
	assert.Equal(t, "stu-1", req.StudentID)
	assert.Equal(t, "sess-1", req.SessionID)
	assert.NotEmpty(t, req.Turns)
	assert.Empty(t, f.signaler.events)
}

func TestHandleMessageCrisisShortCircuits(t *testing.T) {
	client := &fakeChat{reply: "should never be used"}
	f := newChatFixture(t, client)

	reply, err := f.engine.HandleMessage(context.Background(), incoming("I just want to end it all"))
	require.NoError(t, err)

	assert.True(t, reply.Crisis)
	assert.Equal(t, CrisisHoldingReply, reply.Text)
	assert.Equal(t, 0, client.calls, "crisis path must make no model call")
	assert.Empty(t, f.publisher.requests, "crisis path must not enqueue triage")

	require.Len(t, f.signaler.events, 1)
	assert.Equal(t, "keyword", f.signaler.events[0].Source)
	assert.Equal(t, "I just want to end it all", f.signaler.events[0].Excerpt)

	turns := f.transcript.turns["sess-1"]
	require.Len(t, turns, 2)
	assert.Equal(t, CrisisHoldingReply, turns[1].Text)
}

func TestHandleMessageModelFailureUsesFallback(t *testing.T) {
	f := newChatFixture(t, &fakeChat{err: errors.New("rate limited")})

	reply, err := f.engine.HandleMessage(context.Background(), incoming("feeling a bit flat"))
	require.NoError(t, err)

	assert.Equal(t, FallbackReply, reply.Text)
	require.Len(t, f.publisher.requests, 1, "triage still runs when the reply model is down")
}

func TestHandleMessageNilClientUsesFallback(t *testing.T) {
	f := newChatFixture(t, nil)

	reply, err := f.engine.HandleMessage(context.Background(), incoming("hello"))
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, reply.Text)
}

func TestHandleMessageStripsMoodTag(t *testing.T) {
	f := newChatFixture(t, &fakeChat{reply: "I'm glad you checked in."})

	_, err := f.engine.HandleMessage(context.Background(), incoming("[mood:sadness] everything went wrong today"))
	require.NoError(t, err)

	turns := f.transcript.turns["sess-1"]
	require.NotEmpty(t, turns)
	assert.Equal(t, "everything went wrong today", turns[0].Text)
}

func TestHandleMessageEmptyTextRejected(t *testing.T) {
	f := newChatFixture(t, nil)

	_, err := f.engine.HandleMessage(context.Background(), incoming("   "))
	require.Error(t, err)
	assert.Empty(t, f.transcript.turns["sess-1"])
	assert.Empty(t, f.publisher.requests)
}

func TestStripMoodTag(t *testing.T) {
	cases := []struct {
		in       string
		wantText string
		wantMood string
	}{
		{"[mood:joy] great news!", "great news!", "joy"},
		{"no tag here", "no tag here", ""},
		{"  [mood:fear]   spiraling again", "spiraling again", "fear"},
		{"[mood:] malformed", "[mood:] malformed", ""},
	}
	for _, tc := range cases {
		text, mood := stripMoodTag(tc.in)
		assert.Equal(t, tc.wantText, text, tc.in)
		assert.Equal(t, tc.wantMood, mood, tc.in)
	}
}
