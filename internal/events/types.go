package events

import "time"

// CrisisDetectedV1 is the one-shot crisis signal. It is delivered to the UI
// layer separately from chat messages and is never deduplicated: a duplicate
// alert is acceptable, a missed one is not.
type CrisisDetectedV1 struct {
	EventID    string    `json:"event_id"`
	StudentID  string    `json:"student_id"`
	SessionID  string    `json:"session_id"`
	Source     string    `json:"source"` // "keyword" or "classifier"
	Excerpt    string    `json:"excerpt,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

// TriageCompletedV1 records the terminal outcome of a triage cycle.
type TriageCompletedV1 struct {
	EventID     string    `json:"event_id"`
	StudentID   string    `json:"student_id"`
	SessionID   string    `json:"session_id"`
	Outcome     string    `json:"outcome"`
	RiskTier    string    `json:"risk_tier"`
	Action      string    `json:"action,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
