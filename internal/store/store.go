package store

import (
	"context"
	"encoding/json"

	"rollscan/internal/domain"
)

// VoterStore is interface-driven so the extraction pipeline, verifier, and
// HTTP layer can run against in-memory storage in tests and PostgreSQL in
// production without rewiring.
type VoterStore interface {
	// Save persists a record. Saving a record whose key already exists is a
	// no-op; the bool reports whether a new row was written.
	Save(ctx context.Context, record domain.VoterRecord) (bool, error)
	FindByKey(ctx context.Context, key domain.RecordKey) (domain.VoterRecord, error)
	ListByAC(ctx context.Context, acNumber int, page Page) ([]domain.VoterRecord, int, error)
	ListByPart(ctx context.Context, acNumber, partNumber int, page Page) ([]domain.VoterRecord, int, error)
	CountByPart(ctx context.Context, acNumber, partNumber int) (int, error)
	// MarkVerified overwrites any previous verification outcome for the record.
	MarkVerified(ctx context.Context, key domain.RecordKey, verified bool, result domain.ValidationResult, payload json.RawMessage) error
	VerificationStats(ctx context.Context, acNumber int) (VerificationStats, error)
	EpicCollisions(ctx context.Context, acNumber int) ([]EpicCollision, error)
	// RemoveExactDuplicates deletes rows that are identical in every voter
	// field, keeping the earliest-written row of each group. It returns the
	// number of rows removed.
	RemoveExactDuplicates(ctx context.Context) (int64, error)
}

// Page bounds list queries. A zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

// VerificationStats summarizes verification progress for one assembly
// constituency. Failed counts records that were checked and did not match;
// Pending counts records never checked.
type VerificationStats struct {
	Total    int `json:"total"`
	Verified int `json:"verified"`
	Failed   int `json:"failed"`
	Pending  int `json:"pending"`
}

// EpicCollision reports an EPIC identifier shared by more than one stored
// record. Records without an EPIC are never reported.
type EpicCollision struct {
	EpicID string `json:"epic_id"`
	Count  int    `json:"count"`
}
