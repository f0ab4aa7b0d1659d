package triage

import (
	"fmt"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleAgent     = "agent"
)

// Turn is a single message in a conversation transcript. Turns are
// append-only; agent turns may reference but never mutate prior turns.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Emotion is one of the labels the emotion model can return.
type Emotion string

const (
	EmotionAnger    Emotion = "anger"
	EmotionDisgust  Emotion = "disgust"
	EmotionFear     Emotion = "fear"
	EmotionJoy      Emotion = "joy"
	EmotionNeutral  Emotion = "neutral"
	EmotionSadness  Emotion = "sadness"
	EmotionSurprise Emotion = "surprise"
)

// RiskTier is the coarse ordinal risk classification.
type RiskTier string

const (
	TierLow      RiskTier = "LOW"
	TierModerate RiskTier = "MODERATE"
	TierHigh     RiskTier = "HIGH"
	TierCritical RiskTier = "CRITICAL"
)

var tierRank = map[RiskTier]int{
	TierLow:      0,
	TierModerate: 1,
	TierHigh:     2,
	TierCritical: 3,
}

// AtLeast reports whether t is as severe as other or more so.
func (t RiskTier) AtLeast(other RiskTier) bool {
	return tierRank[t] >= tierRank[other]
}

// AssessmentSource records which classifier path produced the assessment.
type AssessmentSource string

const (
	SourceRemoteModel     AssessmentSource = "remote-model"
	SourceOfflineFallback AssessmentSource = "offline-fallback"
)

// EmotionScore is one (emotion, score) pair from the model distribution.
type EmotionScore struct {
	Emotion Emotion `json:"emotion"`
	Score   float64 `json:"score"`
}

// EmotionAssessment is the classifier output consumed by the reasoner.
// Callers never need to branch on Source: both paths produce the same shape.
type EmotionAssessment struct {
	Dominant       Emotion          `json:"dominant_emotion"`
	Distribution   []EmotionScore   `json:"emotion_distribution"`
	WellbeingScore int              `json:"wellbeing_score"`
	RiskTier       RiskTier         `json:"risk_tier"`
	Source         AssessmentSource `json:"source"`
}

// Action is the intervention the reasoner recommends.
type Action string

const (
	ActionNone           Action = "NONE"
	ActionSuggestBooking Action = "SUGGEST_BOOKING"
	ActionAssignExercise Action = "ASSIGN_EXERCISE"
	ActionBookSlot       Action = "BOOK_SLOT"
)

// Exercise is a wellness exercise the reasoner can assign.
type Exercise string

const (
	ExerciseBreathing  Exercise = "Breathing Exercise"
	ExerciseGrounding  Exercise = "Grounding"
	ExerciseJournaling Exercise = "Journaling"
)

// Decision is the reasoner's structured recommendation, one per triage cycle.
type Decision struct {
	Action    Action   `json:"recommendedAction"`
	Exercise  Exercise `json:"specificExercise,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// Validate rejects decisions outside the tagged-variant contract. A
// violation is a reasoner failure, never a silent NONE.
func (d Decision) Validate() error {
	switch d.Action {
	case ActionNone, ActionSuggestBooking, ActionBookSlot:
		return nil
	case ActionAssignExercise:
		switch d.Exercise {
		case ExerciseBreathing, ExerciseGrounding, ExerciseJournaling:
			return nil
		default:
			return fmt.Errorf("triage: unknown exercise %q", d.Exercise)
		}
	default:
		return fmt.Errorf("triage: unknown action %q", d.Action)
	}
}

// CycleRequest identifies one triage cycle: the newest batch of turns for a
// (student, session) pair.
type CycleRequest struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	SessionID   string `json:"session_id"`
	Turns       []Turn `json:"turns"`
}

// LastUserTurns returns up to n most recent user turns, oldest first.
func LastUserTurns(turns []Turn, n int) []Turn {
	var users []Turn
	for _, turn := range turns {
		if turn.Role == RoleUser {
			users = append(users, turn)
		}
	}
	if len(users) > n {
		users = users[len(users)-n:]
	}
	return users
}

// LatestUserText returns the text of the newest user turn, or "".
func LatestUserText(turns []Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			return turns[i].Text
		}
	}
	return ""
}

// OutcomeStatus is the terminal state of a triage cycle.
type OutcomeStatus string

const (
	OutcomeNone     OutcomeStatus = "none"     // pipeline decided nothing was needed
	OutcomeCrisis   OutcomeStatus = "crisis"   // crisis trigger fired
	OutcomeActed    OutcomeStatus = "acted"    // executor performed a side effect
	OutcomeDegraded OutcomeStatus = "degraded" // reasoner failed, deterministic fallback applied
)

// SlotSuggestion is the structured payload attached to a booking suggestion
// so the UI can render a one-click affordance.
type SlotSuggestion struct {
	SlotID string `json:"slot_id"`
	Label  string `json:"label"`
}

// Outcome is the result of one triage cycle. Message is the agent turn to
// append to the visible chat; empty means nothing is shown, which is how a
// deliberate NONE is distinguished from a failure.
type Outcome struct {
	Status     OutcomeStatus
	Assessment *EmotionAssessment
	Decision   *Decision
	Message    string
	Suggestion *SlotSuggestion
}
