package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sparshcare/wellness-platform/pkg/logging"
)

var reasonerTracer = otel.Tracer("sparsh.internal.triage.reasoner")

// reasonerContextTurns is how many trailing turns the reasoner sees.
const reasonerContextTurns = 6

const defaultReasonerTimeout = 10 * time.Second

// reasonerSystemPrompt encodes the four decision rules. Evaluated in order,
// first applicable rule wins. Rule 3 is also pre-checked locally so an
// explicit booking request never depends on the model honoring the ordering.
const reasonerSystemPrompt = `You are the triage reasoner for a student wellness service. You receive an emotion assessment and recent conversation turns. Decide on exactly one intervention by applying these rules in order; the first applicable rule wins:

1. If fear or sadness dominates, or the risk tier is MODERATE or higher, AND the student mentions sleep disturbance, panic, or restlessness: recommendedAction is "ASSIGN_EXERCISE" and specificExercise is one of "Breathing Exercise", "Grounding", or "Journaling".
2. If the student uses sustained distress language such as "need to talk" or "overwhelmed": recommendedAction is "SUGGEST_BOOKING".
3. If the student explicitly asks to book or schedule an appointment: recommendedAction is "BOOK_SLOT".
4. Otherwise: recommendedAction is "NONE".

Respond with a single JSON object and nothing else:
{"recommendedAction": "...", "specificExercise": "...", "reasoning": "..."}`

// bookingRequestPatterns detect rule 3 locally, without a model call.
var bookingRequestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bbook\s+(an?\s+)?(appointment|session|slot|counsell?or)\b`),
	regexp.MustCompile(`(?i)\bschedule\s+(an?\s+)?(appointment|session|meeting)\b`),
	regexp.MustCompile(`(?i)\bcan\s+(i|you)\s+book\b`),
	regexp.MustCompile(`(?i)\bbook\s+me\s+in\b`),
	regexp.MustCompile(`(?i)\bset\s+up\s+(an?\s+)?appointment\b`),
}

// ErrReasonerUnavailable wraps any reasoner failure: timeout, transport
// error, or an undecodable response. Callers route it into the degraded
// fallback; it is never coerced to a NONE decision.
var ErrReasonerUnavailable = errors.New("triage: reasoner unavailable")

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Reasoner asks a general-purpose chat model for an intervention decision.
type Reasoner struct {
	client  chatClient
	model   string
	timeout time.Duration
	logger  *logging.Logger
}

// NewReasoner builds a reasoner around an OpenAI-compatible chat client.
func NewReasoner(client chatClient, model string, timeout time.Duration, logger *logging.Logger) *Reasoner {
	if client == nil {
		panic("triage: chat client cannot be nil")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = defaultReasonerTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Reasoner{client: client, model: model, timeout: timeout, logger: logger}
}

// Decide returns the intervention decision for an assessment. It must not be
// called for CRITICAL assessments; the pipeline short-circuits those before
// reasoning.
func (r *Reasoner) Decide(ctx context.Context, assessment EmotionAssessment, turns []Turn) (Decision, error) {
	ctx, span := reasonerTracer.Start(ctx, "triage.reason")
	defer span.End()
	span.SetAttributes(
		attribute.String("sparsh.risk_tier", string(assessment.RiskTier)),
		attribute.String("sparsh.dominant_emotion", string(assessment.Dominant)),
	)

	if latest := LatestUserText(turns); isExplicitBookingRequest(latest) {
		span.SetAttributes(attribute.String("sparsh.reasoner.path", "local-booking"))
		return Decision{
			Action:    ActionBookSlot,
			Reasoning: "explicit request to book an appointment",
		}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: reasonerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: formatReasonerInput(assessment, turns)},
		},
		Temperature: 0.1,
	})
	if err != nil {
		span.RecordError(err)
		return Decision{}, fmt.Errorf("%w: completion failed: %w", ErrReasonerUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return Decision{}, fmt.Errorf("%w: no choices returned", ErrReasonerUnavailable)
	}

	decision, err := decodeDecision(resp.Choices[0].Message.Content)
	if err != nil {
		span.RecordError(err)
		return Decision{}, err
	}
	span.SetAttributes(attribute.String("sparsh.reasoner.action", string(decision.Action)))
	return decision, nil
}

func isExplicitBookingRequest(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, pat := range bookingRequestPatterns {
		if pat.MatchString(text) {
			return true
		}
	}
	return false
}

// formatReasonerInput renders the assessment plus the last turns as
// role-prefixed lines.
func formatReasonerInput(assessment EmotionAssessment, turns []Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Emotion assessment: dominant=%s wellbeing_score=%d risk_tier=%s\n\n",
		assessment.Dominant, assessment.WellbeingScore, assessment.RiskTier)
	b.WriteString("Recent conversation:\n")

	start := 0
	if len(turns) > reasonerContextTurns {
		start = len(turns) - reasonerContextTurns
	}
	for _, turn := range turns[start:] {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, strings.TrimSpace(turn.Text))
	}
	return b.String()
}

// decodeDecision parses the model output into a validated Decision. The
// model may wrap JSON in markdown fences or surround it with prose; both are
// tolerated. Anything that still fails to decode or validate is a reasoner
// failure, not a NONE.
func decodeDecision(content string) (Decision, error) {
	payload := extractJSONObject(stripMarkdownFences(content))
	if payload == "" {
		return Decision{}, fmt.Errorf("%w: no JSON object in reply", ErrReasonerUnavailable)
	}

	var decision Decision
	if err := json.Unmarshal([]byte(payload), &decision); err != nil {
		return Decision{}, fmt.Errorf("%w: decode decision: %v", ErrReasonerUnavailable, err)
	}
	if err := decision.Validate(); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrReasonerUnavailable, err)
	}
	return decision, nil
}

func stripMarkdownFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// extractJSONObject returns the first balanced {...} substring, tracking
// string literals so braces inside values don't break the balance count.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
