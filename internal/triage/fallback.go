package triage

import (
	"context"

	"github.com/sparshcare/wellness-platform/internal/appointments"
	"github.com/sparshcare/wellness-platform/pkg/logging"
)

// SlotLister reads open appointment slots in stable order.
type SlotLister interface {
	ListOpen(ctx context.Context) ([]appointments.Slot, error)
}

// DegradedFallback is the deterministic substitute invoked when the reasoner
// errors or times out. It inspects only the emotion assessment and never
// fails, so the pipeline always terminates with a defined outcome.
type DegradedFallback struct {
	slots  SlotLister
	logger *logging.Logger
}

// NewDegradedFallback constructs the fallback stage.
func NewDegradedFallback(slots SlotLister, logger *logging.Logger) *DegradedFallback {
	if logger == nil {
		logger = logging.Default()
	}
	return &DegradedFallback{slots: slots, logger: logger}
}

// Resolve returns the degraded outcome for an assessment. HIGH risk emits a
// booking suggestion against the earliest open slot; everything else emits
// no action. A slot lookup failure degrades to no action rather than
// surfacing an error.
func (f *DegradedFallback) Resolve(ctx context.Context, assessment EmotionAssessment) Outcome {
	outcome := Outcome{
		Status:     OutcomeDegraded,
		Assessment: &assessment,
	}
	if assessment.RiskTier != TierHigh {
		return outcome
	}

	if f.slots == nil {
		f.logger.Warn("degraded fallback has no slot store; emitting generic booking nudge")
		outcome.Message = fallbackBookingMessage("")
		return outcome
	}

	slots, err := f.slots.ListOpen(ctx)
	if err != nil {
		f.logger.Warn("degraded fallback could not list slots", "error", err)
		outcome.Message = fallbackBookingMessage("")
		return outcome
	}
	if len(slots) == 0 {
		outcome.Message = fallbackBookingMessage("")
		return outcome
	}

	first := slots[0]
	outcome.Message = fallbackBookingMessage(first.Label())
	outcome.Suggestion = &SlotSuggestion{SlotID: first.ID.String(), Label: first.Label()}
	return outcome
}

func fallbackBookingMessage(slotLabel string) string {
	if slotLabel == "" {
		return "It sounds like things have been really heavy. Talking to a counselor can help — would you like me to find you an appointment?"
	}
	return "It sounds like things have been really heavy. Talking to a counselor can help — the next open appointment is " + slotLabel + ". Would you like me to request it for you?"
}
