package auditlog

import "time"

// #region outcome

// Outcome is the user's reaction to a surfaced suggestion.
type Outcome string

const (
	OutcomeAccept Outcome = "accept"
	OutcomeReject Outcome = "reject"
)

// Valid reports whether the outcome is in the accepted vocabulary.
func (o Outcome) Valid() bool {
	return o == OutcomeAccept || o == OutcomeReject
}

// #endregion

// #region feedback-entry

// FeedbackEntry is a single row in the append-only feedback_log table.
type FeedbackEntry struct {
	ID             string // uuid
	RuleID         int64
	Outcome        Outcome
	ContextKey     string
	ChosenLeadTime int
	SnapshotJSON   string
	CreatedAt      time.Time
}

// #endregion

// #region context-entry

// ContextEntry is a single row in the append-only user_contexts audit table.
type ContextEntry struct {
	ID           string // uuid
	SnapshotJSON string
	Source       string // "infer" | "ingest"
	CreatedAt    time.Time
}

// #endregion
