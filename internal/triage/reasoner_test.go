package triage

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatClient struct {
	content string
	err     error
	calls   int
}

func (f *fakeChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func moderateAssessment() EmotionAssessment {
	return EmotionAssessment{
		Dominant:       EmotionFear,
		WellbeingScore: 40,
		RiskTier:       TierModerate,
		Source:         SourceRemoteModel,
	}
}

func TestDecideParsesFencedJSON(t *testing.T) {
	client := &fakeChatClient{content: "```json\n{\"recommendedAction\":\"ASSIGN_EXERCISE\",\"specificExercise\":\"Grounding\",\"reasoning\":\"panic\"}\n```"}
	r := NewReasoner(client, "", 0, nil)

	decision, err := r.Decide(context.Background(), moderateAssessment(), []Turn{userTurn("I keep panicking at night")})
	require.NoError(t, err)
	assert.Equal(t, ActionAssignExercise, decision.Action)
	assert.Equal(t, ExerciseGrounding, decision.Exercise)
	assert.Equal(t, "panic", decision.Reasoning)
}

func TestDecideExtractsJSONFromProse(t *testing.T) {
	client := &fakeChatClient{content: `Sure! Here is my decision: {"recommendedAction":"SUGGEST_BOOKING","reasoning":"needs to talk"} hope that helps`}
	r := NewReasoner(client, "", 0, nil)

	decision, err := r.Decide(context.Background(), moderateAssessment(), []Turn{userTurn("I really need to talk to someone")})
	require.NoError(t, err)
	assert.Equal(t, ActionSuggestBooking, decision.Action)
}

func TestDecideParseFailureIsReasonerError(t *testing.T) {
	client := &fakeChatClient{content: "I think the student is fine, no JSON for you"}
	r := NewReasoner(client, "", 0, nil)

	_, err := r.Decide(context.Background(), moderateAssessment(), []Turn{userTurn("whatever")})
	assert.ErrorIs(t, err, ErrReasonerUnavailable)
}

func TestDecideInvalidEnumIsReasonerError(t *testing.T) {
	cases := []string{
		`{"recommendedAction":"ESCALATE_EVERYTHING"}`,
		`{"recommendedAction":"ASSIGN_EXERCISE","specificExercise":"Yoga"}`,
	}
	for _, content := range cases {
		r := NewReasoner(&fakeChatClient{content: content}, "", 0, nil)
		_, err := r.Decide(context.Background(), moderateAssessment(), []Turn{userTurn("hi")})
		assert.ErrorIs(t, err, ErrReasonerUnavailable, "content: %s", content)
	}
}

func TestDecideTransportErrorIsReasonerError(t *testing.T) {
	r := NewReasoner(&fakeChatClient{err: errors.New("connection refused")}, "", 0, nil)
	_, err := r.Decide(context.Background(), moderateAssessment(), []Turn{userTurn("hello")})
	assert.ErrorIs(t, err, ErrReasonerUnavailable)
}

func TestDecideTimeoutStaysInErrorChain(t *testing.T) {
	r := NewReasoner(&fakeChatClient{err: context.DeadlineExceeded}, "", 0, nil)
	_, err := r.Decide(context.Background(), moderateAssessment(), []Turn{userTurn("hello")})

	// Callers distinguish timeouts from other failures via errors.Is, so the
	// deadline error must survive the wrapping.
	assert.ErrorIs(t, err, ErrReasonerUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDecideLocalBookingShortCircuit(t *testing.T) {
	client := &fakeChatClient{content: `{"recommendedAction":"NONE"}`}
	r := NewReasoner(client, "", 0, nil)

	decision, err := r.Decide(context.Background(), moderateAssessment(), []Turn{userTurn("can I book an appointment with a counselor?")})
	require.NoError(t, err)
	assert.Equal(t, ActionBookSlot, decision.Action)
	assert.Zero(t, client.calls, "explicit booking request must not call the model")
}

func TestIsExplicitBookingRequest(t *testing.T) {
	positives := []string{
		"can I book an appointment",
		"I'd like to schedule a session please",
		"book me in for tomorrow",
		"Can you book a slot for me",
		"set up an appointment",
	}
	for _, msg := range positives {
		if !isExplicitBookingRequest(msg) {
			t.Errorf("expected true for %q", msg)
		}
	}
	negatives := []string{
		"",
		"I read a good book yesterday",
		"my schedule is packed",
		"I'm overwhelmed",
	}
	for _, msg := range negatives {
		if isExplicitBookingRequest(msg) {
			t.Errorf("expected false for %q", msg)
		}
	}
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{`prefix {"a":{"b":2}} suffix`, `{"a":{"b":2}}`},
		{`{"s":"brace } inside"}`, `{"s":"brace } inside"}`},
		{`{"s":"escaped \" quote}"}`, `{"s":"escaped \" quote}"}`},
		{`no object here`, ``},
		{`{"unbalanced":`, ``},
	}
	for _, tc := range cases {
		if got := extractJSONObject(tc.in); got != tc.want {
			t.Errorf("extractJSONObject(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
