package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparshcare/wellness-platform/internal/appointments"
)

func TestResolveHighRiskSuggestsEarliestSlot(t *testing.T) {
	slot := openSlot("2026-09-02", "11:00", "Dr. Kapoor")
	f := NewDegradedFallback(&stubSlots{slots: []appointments.Slot{slot}}, nil)

	outcome := f.Resolve(context.Background(), EmotionAssessment{RiskTier: TierHigh, Dominant: EmotionFear})

	assert.Equal(t, OutcomeDegraded, outcome.Status)
	assert.Contains(t, outcome.Message, slot.Label())
	require.NotNil(t, outcome.Suggestion)
	assert.Equal(t, slot.ID.String(), outcome.Suggestion.SlotID)
}

func TestResolveHighRiskWithoutSlotsStillNudges(t *testing.T) {
	f := NewDegradedFallback(&stubSlots{}, nil)

	outcome := f.Resolve(context.Background(), EmotionAssessment{RiskTier: TierHigh})

	assert.Equal(t, OutcomeDegraded, outcome.Status)
	assert.NotEmpty(t, outcome.Message)
	assert.Nil(t, outcome.Suggestion)
}

func TestResolveSlotLookupErrorNeverFails(t *testing.T) {
	f := NewDegradedFallback(&stubSlots{err: errors.New("db unreachable")}, nil)

	outcome := f.Resolve(context.Background(), EmotionAssessment{RiskTier: TierHigh})

	assert.Equal(t, OutcomeDegraded, outcome.Status)
	assert.NotEmpty(t, outcome.Message)
	assert.Nil(t, outcome.Suggestion)
}

func TestResolveLowerTiersStayQuiet(t *testing.T) {
	f := NewDegradedFallback(&stubSlots{slots: []appointments.Slot{openSlot("2026-09-02", "11:00", "Dr. Kapoor")}}, nil)

	for _, tier := range []RiskTier{TierLow, TierModerate} {
		outcome := f.Resolve(context.Background(), EmotionAssessment{RiskTier: tier})
		assert.Equal(t, OutcomeDegraded, outcome.Status, "tier %s", tier)
		assert.Empty(t, outcome.Message, "tier %s must not message", tier)
		assert.Nil(t, outcome.Suggestion)
	}
}
