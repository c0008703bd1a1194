package verify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"rollscan/internal/domain"
	"rollscan/internal/store"
	"rollscan/internal/verify/cache"
	"rollscan/pkg/platform/circuit"
)

// Publisher receives every validation result for the event stream. A nil
// Publisher disables publishing.
type Publisher interface {
	PublishValidation(ctx context.Context, result domain.ValidationResult) error
}

// Config tunes a verification run. Zero values fall back to the defaults the
// remote service tolerates.
type Config struct {
	StateCode     string
	Threshold     float64
	MinDelay      time.Duration
	MaxConcurrent int
}

func (c Config) withDefaults() Config {
	if c.StateCode == "" {
		c.StateCode = "S25"
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.MinDelay <= 0 {
		c.MinDelay = 500 * time.Millisecond
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	return c
}

// RunState tracks the lifecycle of an asynchronous verification run.
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// RunSummary counts per-record outcomes of one run. Errors are counted, not
// fatal: a failed record stays pending and is retried on the next run.
type RunSummary struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Invalid  int `json:"invalid"`
	NotFound int `json:"not_found"`
	Errors   int `json:"errors"`
}

// Run is the status of one verification run.
type Run struct {
	ID         uuid.UUID  `json:"id"`
	ACNumber   int        `json:"ac_number"`
	State      RunState   `json:"state"`
	Summary    RunSummary `json:"summary"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Service reconciles stored records against the remote roll. Remote calls are
// paced by a shared minimum delay and bounded by a concurrency semaphore.
type Service struct {
	voters   store.VoterStore
	lookup   RemoteLookup
	payloads *cache.PayloadCache
	events   Publisher
	log      *log.Logger
	metrics  *Metrics
	cfg      Config
	pace     *pacer
	breaker  *circuit.Breaker

	// runCtx parents every asynchronous run so Close can cancel in-flight
	// verification on shutdown.
	runCtx   context.Context
	stopRuns context.CancelFunc

	mu     sync.Mutex
	runs   map[uuid.UUID]*Run
	active map[int]bool
}

func NewService(voters store.VoterStore, lookup RemoteLookup, payloads *cache.PayloadCache, events Publisher, logger *log.Logger, metrics *Metrics, cfg Config) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	runCtx, stopRuns := context.WithCancel(context.Background())
	return &Service{
		voters:   voters,
		runCtx:   runCtx,
		stopRuns: stopRuns,
		lookup:   lookup,
		payloads: payloads,
		events:   events,
		log:      logger,
		metrics:  metrics,
		cfg:      cfg,
		pace:     newPacer(cfg.MinDelay),
		breaker:  circuit.New("remote-lookup"),
		runs:     make(map[uuid.UUID]*Run),
		active:   make(map[int]bool),
	}
}

// StartRun launches an asynchronous run over one assembly constituency and
// returns its ID. Only one run per constituency may be in flight.
func (s *Service) StartRun(acNumber int) (uuid.UUID, error) {
	s.mu.Lock()
	if s.active[acNumber] {
		s.mu.Unlock()
		return uuid.Nil, ErrRunActive
	}
	run := &Run{
		ID:        uuid.New(),
		ACNumber:  acNumber,
		State:     RunStateRunning,
		StartedAt: time.Now().UTC(),
	}
	s.runs[run.ID] = run
	s.active[acNumber] = true
	s.mu.Unlock()

	go func() {
		summary, err := s.Run(s.runCtx, acNumber)

		s.mu.Lock()
		defer s.mu.Unlock()
		now := time.Now().UTC()
		run.FinishedAt = &now
		run.Summary = summary
		if err != nil {
			run.State = RunStateFailed
			run.Error = err.Error()
		} else {
			run.State = RunStateCompleted
		}
		delete(s.active, acNumber)
	}()

	return run.ID, nil
}

// Close cancels every in-flight asynchronous run. Cancelled runs finish as
// failed; their unprocessed records stay pending.
func (s *Service) Close() {
	s.stopRuns()
}

// RunStatus returns a snapshot of a run by ID.
func (s *Service) RunStatus(id uuid.UUID) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// Run verifies every stored record of one assembly constituency. It returns
// an error only when the record listing itself fails; per-record failures are
// counted in the summary.
func (s *Service) Run(ctx context.Context, acNumber int) (RunSummary, error) {
	records, _, err := s.voters.ListByAC(ctx, acNumber, store.Page{})
	if err != nil {
		return RunSummary{}, err
	}
	s.breaker.Reset()

	var (
		sem = semaphore.NewWeighted(int64(s.cfg.MaxConcurrent))
		mu  sync.Mutex
		sum RunSummary
		wg  sync.WaitGroup
	)
	sum.Total = len(records)

	for _, record := range records {
		// A string of retryable failures means the remote is down; abort
		// instead of pacing through every remaining record.
		if s.breaker.IsOpen() {
			wg.Wait()
			return sum, ErrLookupUnavailable
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			return sum, err
		}
		wg.Add(1)
		go func(record domain.VoterRecord) {
			defer wg.Done()
			defer sem.Release(1)

			result := s.verifyRecord(ctx, record)

			mu.Lock()
			switch result.Outcome {
			case domain.OutcomeValid:
				sum.Valid++
			case domain.OutcomeInvalid:
				sum.Invalid++
			case domain.OutcomeNotFound:
				sum.NotFound++
			default:
				sum.Errors++
			}
			mu.Unlock()
		}(record)
	}
	wg.Wait()

	s.log.Printf("verification run finished: ac=%d total=%d valid=%d invalid=%d not_found=%d errors=%d",
		acNumber, sum.Total, sum.Valid, sum.Invalid, sum.NotFound, sum.Errors)
	return sum, ctx.Err()
}

// verifyRecord resolves one record to an outcome and persists it. Error
// outcomes are not persisted so the record stays pending for the next run.
func (s *Service) verifyRecord(ctx context.Context, record domain.VoterRecord) domain.ValidationResult {
	result := domain.ValidationResult{
		Record:    record.Key(),
		CheckedAt: time.Now().UTC(),
	}

	persons, raw, err := s.fetch(ctx, record)
	if err != nil {
		s.metrics.IncFailure(string(categoryOf(err)))
		s.log.Printf("lookup failed: ac=%d part=%d serial=%s: %v", record.ACNumber, record.PartNumber, record.SerialNo, err)
		result.Outcome = domain.OutcomeError
	} else if len(persons) == 0 {
		result.Outcome = domain.OutcomeNotFound
	} else {
		score, diffs := BestMatch(record, persons)
		result.MatchScore = &score
		result.Differences = diffs
		if score >= s.cfg.Threshold {
			result.Outcome = domain.OutcomeValid
		} else {
			result.Outcome = domain.OutcomeInvalid
		}
	}
	s.metrics.IncOutcome(string(result.Outcome))

	if result.Outcome != domain.OutcomeError {
		verified := result.Outcome == domain.OutcomeValid
		if err := s.voters.MarkVerified(ctx, record.Key(), verified, result, raw); err != nil {
			s.log.Printf("persist verification: ac=%d part=%d serial=%s: %v", record.ACNumber, record.PartNumber, record.SerialNo, err)
		}
	}

	if s.events != nil {
		if err := s.events.PublishValidation(ctx, result); err != nil {
			s.log.Printf("publish validation result: %v", err)
		}
	}
	return result
}

// fetch returns remote payload entries for a record, consulting the payload
// cache before calling out.
func (s *Service) fetch(ctx context.Context, record domain.VoterRecord) ([]RemotePerson, json.RawMessage, error) {
	key := record.Key()

	if cached, ok, err := s.payloads.Get(ctx, key); err != nil {
		s.log.Printf("payload cache get: %v", err)
	} else if ok {
		var persons []RemotePerson
		if err := json.Unmarshal(cached, &persons); err == nil {
			return persons, cached, nil
		}
	}

	if err := s.pace.Wait(ctx); err != nil {
		return nil, nil, err
	}

	start := time.Now()
	lookup, err := s.lookup.LookupSerial(ctx, SerialQuery{
		StateCode:  s.cfg.StateCode,
		ACNumber:   record.ACNumber,
		PartNumber: record.PartNumber,
		SerialNo:   record.SerialNo,
	})
	s.metrics.ObserveLookup(time.Since(start))
	if err != nil {
		if IsRetryable(err) {
			s.breaker.RecordFailure()
		}
		return nil, nil, err
	}
	s.breaker.RecordSuccess()

	if err := s.payloads.Set(ctx, key, lookup.Raw); err != nil {
		s.log.Printf("payload cache set: %v", err)
	}
	return lookup.Persons, lookup.Raw, nil
}

// ReconcilePartCount compares the local record count of a part against the
// remote roll.
func (s *Service) ReconcilePartCount(ctx context.Context, acNumber, partNumber int) (local, remote int, err error) {
	local, err = s.voters.CountByPart(ctx, acNumber, partNumber)
	if err != nil {
		return 0, 0, err
	}
	if err := s.pace.Wait(ctx); err != nil {
		return 0, 0, err
	}
	remote, err = s.lookup.PartCount(ctx, acNumber, partNumber)
	if err != nil {
		return 0, 0, err
	}
	return local, remote, nil
}

func categoryOf(err error) ErrorCategory {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Category
	}
	return ErrorInternal
}

// pacer enforces a shared minimum interval between remote calls across all
// workers.
type pacer struct {
	mu    sync.Mutex
	delay time.Duration
	next  time.Time
}

func newPacer(delay time.Duration) *pacer {
	return &pacer{delay: delay}
}

func (p *pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	wait := p.next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	p.next = now.Add(wait + p.delay)
	p.mu.Unlock()

	if wait == 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
