package triage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sparshcare/wellness-platform/internal/events"
	"github.com/sparshcare/wellness-platform/internal/observability/metrics"
	"github.com/sparshcare/wellness-platform/pkg/logging"
)

var pipelineTracer = otel.Tracer("sparsh.internal.triage.pipeline")

// CrisisSupportMessage is appended as an agent turn when the pipeline
// detects a crisis. The inline reply-engine check has its own copy of the
// holding text; this one accompanies the escalation signal.
const CrisisSupportMessage = "I'm really concerned about what you've shared. You don't have to face this alone — a counselor is being alerted right now. If you are in immediate danger, please call your local emergency number or a suicide prevention helpline."

// Notifier delivers pipeline output to the student-facing surface: agent
// turns into the visible chat, and the one-shot crisis signal which is kept
// distinct from chat messages.
type Notifier interface {
	AppendAgentTurn(ctx context.Context, req CycleRequest, text string, suggestion *SlotSuggestion) error
	SignalCrisis(ctx context.Context, evt events.CrisisDetectedV1) error
}

// AssessmentProvider is the assessment stage surface; see triage.Classifier.
type AssessmentProvider interface {
	Assess(ctx context.Context, turns []Turn) EmotionAssessment
}

// DecisionProvider is the reasoning stage surface; see triage.Reasoner.
type DecisionProvider interface {
	Decide(ctx context.Context, assessment EmotionAssessment, turns []Turn) (Decision, error)
}

// Pipeline chains the triage stages. Each stage that can fail has a defined
// fallback, so a cycle always terminates with an Outcome and a nil error
// unless a side effect itself fails.
type Pipeline struct {
	classifier AssessmentProvider
	reasoner   DecisionProvider
	fallback   *DegradedFallback
	executor   *Executor
	notifier   Notifier
	metrics    *metrics.TriageMetrics
	logger     *logging.Logger
}

// NewPipeline wires the triage stages together.
func NewPipeline(
	classifier AssessmentProvider,
	reasoner DecisionProvider,
	fallback *DegradedFallback,
	executor *Executor,
	notifier Notifier,
	m *metrics.TriageMetrics,
	logger *logging.Logger,
) *Pipeline {
	if classifier == nil {
		panic("triage: classifier cannot be nil")
	}
	if fallback == nil {
		panic("triage: fallback cannot be nil")
	}
	if executor == nil {
		panic("triage: executor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Pipeline{
		classifier: classifier,
		reasoner:   reasoner,
		fallback:   fallback,
		executor:   executor,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
	}
}

// RunCycle executes one triage cycle over the newest batch of turns.
//
// Stage order is fixed: the keyword crisis check runs before anything that
// touches the network; classification can short-circuit on CRITICAL; the
// reasoner runs otherwise, and its failure routes into the degraded
// fallback. A crisis is a first-class outcome, never an error.
func (p *Pipeline) RunCycle(ctx context.Context, req CycleRequest) (Outcome, error) {
	started := time.Now()
	ctx, span := pipelineTracer.Start(ctx, "triage.cycle")
	defer span.End()
	span.SetAttributes(
		attribute.String("sparsh.student_id", req.StudentID),
		attribute.String("sparsh.session_id", req.SessionID),
	)

	latest := LatestUserText(req.Turns)
	if strings.TrimSpace(latest) == "" {
		span.SetAttributes(attribute.String("sparsh.outcome", "empty-input"))
		return Outcome{Status: OutcomeNone}, nil
	}

	if IsCrisis(latest) {
		return p.finishCrisis(ctx, req, "keyword", latest, nil, started)
	}

	assessment := p.classifier.Assess(ctx, req.Turns)
	if assessment.Source == SourceOfflineFallback {
		p.metrics.ObserveFallback("classifier", "offline")
	}
	span.SetAttributes(
		attribute.String("sparsh.risk_tier", string(assessment.RiskTier)),
		attribute.Int("sparsh.wellbeing_score", assessment.WellbeingScore),
	)

	if assessment.RiskTier == TierCritical {
		return p.finishCrisis(ctx, req, "classifier", latest, &assessment, started)
	}

	outcome := p.decideAndExecute(ctx, req, assessment)

	if outcome.Message != "" && p.notifier != nil {
		if err := p.notifier.AppendAgentTurn(ctx, req, outcome.Message, outcome.Suggestion); err != nil {
			p.logger.Error("failed to deliver agent message", "error", err, "student_id", req.StudentID)
		}
	}

	p.observe(outcome, started)
	return outcome, nil
}

// decideAndExecute runs the Primary -> Fallback -> Terminal stages for a
// non-crisis assessment.
func (p *Pipeline) decideAndExecute(ctx context.Context, req CycleRequest, assessment EmotionAssessment) Outcome {
	if p.reasoner == nil {
		p.metrics.ObserveFallback("reasoner", "not-configured")
		return p.fallback.Resolve(ctx, assessment)
	}

	decision, err := p.reasoner.Decide(ctx, assessment, req.Turns)
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		p.metrics.ObserveFallback("reasoner", reason)
		p.logger.Warn("reasoner failed, using degraded fallback",
			"error", err,
			"risk_tier", assessment.RiskTier,
			"student_id", req.StudentID,
		)
		return p.fallback.Resolve(ctx, assessment)
	}

	outcome, err := p.executor.Execute(ctx, req, assessment, decision)
	if err != nil {
		// A failed side effect must not crash the cycle; degrade like a
		// reasoner failure so HIGH risk still gets the deterministic nudge.
		p.metrics.ObserveFallback("executor", "error")
		p.logger.Error("executor failed, using degraded fallback",
			"error", err,
			"action", decision.Action,
			"student_id", req.StudentID,
		)
		return p.fallback.Resolve(ctx, assessment)
	}
	return outcome
}

func (p *Pipeline) finishCrisis(ctx context.Context, req CycleRequest, source, excerpt string, assessment *EmotionAssessment, started time.Time) (Outcome, error) {
	p.logger.Warn("crisis detected",
		"source", source,
		"student_id", req.StudentID,
		"session_id", req.SessionID,
	)
	p.metrics.ObserveCrisis()

	if p.notifier != nil {
		evt := events.CrisisDetectedV1{
			EventID:    uuid.NewString(),
			StudentID:  req.StudentID,
			SessionID:  req.SessionID,
			Source:     source,
			Excerpt:    excerpt,
			DetectedAt: time.Now().UTC(),
		}
		if err := p.notifier.SignalCrisis(ctx, evt); err != nil {
			// The signal is the one thing that must not be lost quietly.
			p.logger.Error("crisis signal delivery failed", "error", err, "event_id", evt.EventID)
		}
		if err := p.notifier.AppendAgentTurn(ctx, req, CrisisSupportMessage, nil); err != nil {
			p.logger.Error("failed to append crisis support message", "error", err)
		}
	}

	outcome := Outcome{
		Status:     OutcomeCrisis,
		Assessment: assessment,
		Message:    CrisisSupportMessage,
	}
	p.observe(outcome, started)
	return outcome, nil
}

func (p *Pipeline) observe(outcome Outcome, started time.Time) {
	tier := ""
	if outcome.Assessment != nil {
		tier = string(outcome.Assessment.RiskTier)
	}
	if outcome.Status == OutcomeCrisis && tier == "" {
		tier = string(TierCritical)
	}
	p.metrics.ObserveCycle(string(outcome.Status), tier, time.Since(started).Seconds())
}
