package store

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"

	"rollscan/internal/domain"
)

// MemoryStore keeps records in memory. It favors clarity over performance and
// is the store used by unit tests and single-shot extraction runs.
type MemoryStore struct {
	mu      sync.RWMutex
	index   map[domain.RecordKey]int
	records []domain.VoterRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[domain.RecordKey]int)}
}

func (s *MemoryStore) Save(_ context.Context, record domain.VoterRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := record.Key()
	if _, ok := s.index[key]; ok {
		return false, nil
	}
	s.index[key] = len(s.records)
	s.records = append(s.records, record)
	return true, nil
}

func (s *MemoryStore) FindByKey(_ context.Context, key domain.RecordKey) (domain.VoterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.index[key]; ok {
		return s.records[i], nil
	}
	return domain.VoterRecord{}, ErrNotFound
}

func (s *MemoryStore) ListByAC(_ context.Context, acNumber int, page Page) ([]domain.VoterRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(s.filter(func(r domain.VoterRecord) bool {
		return r.ACNumber == acNumber
	}), page)
}

func (s *MemoryStore) ListByPart(_ context.Context, acNumber, partNumber int, page Page) ([]domain.VoterRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(s.filter(func(r domain.VoterRecord) bool {
		return r.ACNumber == acNumber && r.PartNumber == partNumber
	}), page)
}

func (s *MemoryStore) CountByPart(_ context.Context, acNumber, partNumber int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.records {
		if r.ACNumber == acNumber && r.PartNumber == partNumber {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) MarkVerified(_ context.Context, key domain.RecordKey, verified bool, result domain.ValidationResult, payload json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if !ok {
		return ErrNotFound
	}
	checkedAt := result.CheckedAt
	s.records[i].Verified = &verified
	s.records[i].VerifiedAt = &checkedAt
	s.records[i].RemotePayload = payload
	return nil
}

func (s *MemoryStore) VerificationStats(_ context.Context, acNumber int) (VerificationStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats VerificationStats
	for _, r := range s.records {
		if r.ACNumber != acNumber {
			continue
		}
		stats.Total++
		switch {
		case r.Verified == nil:
			stats.Pending++
		case *r.Verified:
			stats.Verified++
		default:
			stats.Failed++
		}
	}
	return stats, nil
}

func (s *MemoryStore) EpicCollisions(_ context.Context, acNumber int) ([]EpicCollision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, r := range s.records {
		if r.ACNumber != acNumber || r.EpicID == "" {
			continue
		}
		counts[r.EpicID]++
	}
	collisions := make([]EpicCollision, 0)
	for epic, n := range counts {
		if n > 1 {
			collisions = append(collisions, EpicCollision{EpicID: epic, Count: n})
		}
	}
	sort.Slice(collisions, func(i, j int) bool { return collisions[i].EpicID < collisions[j].EpicID })
	return collisions, nil
}

// RemoveExactDuplicates is a no-op for the in-memory store: Save is keyed, so
// exact duplicates cannot accumulate. The operation exists to mirror the
// PostgreSQL store, where concurrent writers can race past the conditional
// insert.
func (s *MemoryStore) RemoveExactDuplicates(_ context.Context) (int64, error) {
	return 0, nil
}

func (s *MemoryStore) filter(keep func(domain.VoterRecord) bool) []domain.VoterRecord {
	out := make([]domain.VoterRecord, 0)
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PartNumber != out[j].PartNumber {
			return out[i].PartNumber < out[j].PartNumber
		}
		return serialLess(out[i].SerialNo, out[j].SerialNo)
	})
	return out
}

// serialLess orders serial numbers numerically when both parse, falling back
// to lexical order for the unusual wrapped forms.
func serialLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

func paginate(records []domain.VoterRecord, page Page) ([]domain.VoterRecord, int, error) {
	total := len(records)
	if page.Offset >= total {
		return []domain.VoterRecord{}, total, nil
	}
	records = records[page.Offset:]
	if page.Limit > 0 && page.Limit < len(records) {
		records = records[:page.Limit]
	}
	return append([]domain.VoterRecord{}, records...), total, nil
}
