package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sparshcare/wellness-platform/pkg/logging"
)

var classifierTracer = otel.Tracer("sparsh.internal.triage.classifier")

// classifierInputLimit is the maximum input length the remote emotion model
// accepts. Longer input is truncated silently.
const classifierInputLimit = 512

// classifierContextTurns is how many trailing user turns feed one assessment.
const classifierContextTurns = 3

// wellbeingBase maps each emotion label to its base wellbeing score. The
// assessment score is the distribution-weighted average of these values.
// Tunable constants, not clinically validated.
var wellbeingBase = map[Emotion]float64{
	EmotionJoy:      90,
	EmotionNeutral:  65,
	EmotionSurprise: 60,
	EmotionAnger:    20,
	EmotionDisgust:  15,
	EmotionFear:     10,
	EmotionSadness:  10,
}

// Classifier produces EmotionAssessments from recent user turns. The remote
// model is tried first; any failure falls to the deterministic offline
// scorer, so Assess always returns a usable assessment.
type Classifier struct {
	httpClient *http.Client
	url        string
	token      string
	logger     *logging.Logger
}

// NewClassifier builds a classifier against an emotion-inference endpoint.
// An empty URL disables the remote path entirely.
func NewClassifier(url, token string, httpClient *http.Client, logger *logging.Logger) *Classifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{
		httpClient: httpClient,
		url:        strings.TrimSpace(url),
		token:      token,
		logger:     logger,
	}
}

// Assess classifies the emotional state carried by the last few user turns.
// It never returns an error: remote failures degrade to the offline scorer.
func (c *Classifier) Assess(ctx context.Context, turns []Turn) EmotionAssessment {
	ctx, span := classifierTracer.Start(ctx, "triage.classify")
	defer span.End()

	input := classifierInput(turns)
	span.SetAttributes(attribute.Int("sparsh.classifier.input_len", len(input)))

	if input == "" {
		span.SetAttributes(attribute.String("sparsh.classifier.path", "empty-input"))
		return neutralAssessment()
	}
	if c.url == "" {
		span.SetAttributes(attribute.String("sparsh.classifier.path", "offline"))
		return scoreOffline(input)
	}

	assessment, err := c.assessRemote(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("sparsh.classifier.path", "offline"))
		c.logger.Warn("remote emotion model unavailable, using offline scorer", "error", err)
		return scoreOffline(input)
	}
	span.SetAttributes(
		attribute.String("sparsh.classifier.path", "remote"),
		attribute.String("sparsh.classifier.risk_tier", string(assessment.RiskTier)),
	)
	return assessment
}

func (c *Classifier) assessRemote(ctx context.Context, input string) (EmotionAssessment, error) {
	body, err := json.Marshal(map[string]string{"inputs": input})
	if err != nil {
		return EmotionAssessment{}, fmt.Errorf("triage: encode classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return EmotionAssessment{}, fmt.Errorf("triage: build classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return EmotionAssessment{}, fmt.Errorf("triage: classifier call failed: %w", err)
	}
	defer resp.Body.Close()

	// 503 is the model cold-start response; treated as unavailable like any
	// other non-2xx status.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return EmotionAssessment{}, fmt.Errorf("triage: classifier returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return EmotionAssessment{}, fmt.Errorf("triage: read classifier response: %w", err)
	}

	var parsed [][]struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return EmotionAssessment{}, fmt.Errorf("triage: decode classifier response: %w", err)
	}
	if len(parsed) == 0 || len(parsed[0]) == 0 {
		return EmotionAssessment{}, fmt.Errorf("triage: classifier returned empty distribution")
	}

	var dist []EmotionScore
	for _, pair := range parsed[0] {
		emotion := Emotion(strings.ToLower(strings.TrimSpace(pair.Label)))
		if _, known := wellbeingBase[emotion]; !known {
			continue
		}
		dist = append(dist, EmotionScore{Emotion: emotion, Score: pair.Score})
	}
	if len(dist) == 0 {
		return EmotionAssessment{}, fmt.Errorf("triage: classifier returned no known labels")
	}

	return buildAssessment(dist, SourceRemoteModel), nil
}

// buildAssessment computes the weighted wellbeing score and risk tier from a
// label distribution.
func buildAssessment(dist []EmotionScore, source AssessmentSource) EmotionAssessment {
	sort.SliceStable(dist, func(i, j int) bool { return dist[i].Score > dist[j].Score })

	var weighted, total float64
	for _, es := range dist {
		weighted += wellbeingBase[es.Emotion] * es.Score
		total += es.Score
	}
	score := 0
	if total > 0 {
		score = clampScore(int(math.Round(weighted / total)))
	}

	dominant := dist[0].Emotion
	return EmotionAssessment{
		Dominant:       dominant,
		Distribution:   dist,
		WellbeingScore: score,
		RiskTier:       deriveRiskTier(dominant, score),
		Source:         source,
	}
}

// deriveRiskTier maps (dominant emotion, wellbeing score) to a risk tier.
// Priority order, first match wins. Thresholds are tunable constants.
func deriveRiskTier(dominant Emotion, score int) RiskTier {
	switch {
	case dominant == EmotionSadness && score < 20:
		return TierCritical
	case dominant == EmotionFear && score < 20:
		return TierHigh
	case score >= 70:
		return TierLow
	case score >= 45:
		return TierModerate
	case score >= 20:
		return TierHigh
	default:
		return TierCritical
	}
}

// classifierInput joins the trailing user turns into a single trimmed string
// bounded to the model's input limit.
func classifierInput(turns []Turn) string {
	users := LastUserTurns(turns, classifierContextTurns)
	parts := make([]string, 0, len(users))
	for _, turn := range users {
		if text := strings.TrimSpace(turn.Text); text != "" {
			parts = append(parts, text)
		}
	}
	joined := strings.TrimSpace(strings.Join(parts, "\n"))
	if len(joined) > classifierInputLimit {
		// Back up to a rune boundary so the cut never splits a multibyte
		// character.
		cut := classifierInputLimit
		for cut > 0 && !utf8.RuneStart(joined[cut]) {
			cut--
		}
		joined = joined[:cut]
	}
	return joined
}

func neutralAssessment() EmotionAssessment {
	return EmotionAssessment{
		Dominant:       EmotionNeutral,
		Distribution:   []EmotionScore{{Emotion: EmotionNeutral, Score: 1}},
		WellbeingScore: 65,
		RiskTier:       TierLow,
		Source:         SourceOfflineFallback,
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
