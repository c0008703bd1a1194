package domain

import "time"

// Outcome classifies a reconciliation attempt against the remote source.
type Outcome string

const (
	OutcomeValid    Outcome = "Valid"
	OutcomeInvalid  Outcome = "Invalid"
	OutcomeNotFound Outcome = "NotFound"
	OutcomeError    Outcome = "Error"
)

// FieldDiff records one field whose raw local and remote values differ. Diffs
// are kept even for records that score above the validity threshold so audits
// can see every discrepancy.
type FieldDiff struct {
	Field  string `json:"field"`
	Local  string `json:"local"`
	Remote string `json:"remote"`
}

// ValidationResult is the scored comparison of one local record against the
// remote source. MatchScore is nil for NotFound and Error outcomes.
type ValidationResult struct {
	Record      RecordKey   `json:"record"`
	Outcome     Outcome     `json:"outcome"`
	MatchScore  *float64    `json:"match_score,omitempty"`
	Differences []FieldDiff `json:"differences,omitempty"`
	CheckedAt   time.Time   `json:"checked_at"`
}
