package httptransport_test

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollscan/internal/domain"
	"rollscan/internal/report"
	"rollscan/internal/store"
	httptransport "rollscan/internal/transport/http"
	"rollscan/internal/verify"
	"rollscan/pkg/testutil"
)

type stubVerifier struct {
	runID    uuid.UUID
	startErr error
	run      verify.Run
	known    bool
	local    int
	remote   int
}

func (s *stubVerifier) StartRun(int) (uuid.UUID, error) {
	if s.startErr != nil {
		return uuid.Nil, s.startErr
	}
	return s.runID, nil
}

func (s *stubVerifier) RunStatus(uuid.UUID) (verify.Run, bool) {
	return s.run, s.known
}

func (s *stubVerifier) ReconcilePartCount(context.Context, int, int) (int, int, error) {
	return s.local, s.remote, nil
}

func seedVoter(t *testing.T, voters store.VoterStore, part int, serial, epic string) domain.VoterRecord {
	t.Helper()
	r := domain.VoterRecord{SerialNo: serial, VoterName: "RAM KUMAR DAS", EpicID: epic}
	r.ACNumber = 253
	r.PartNumber = part
	_, err := voters.Save(context.Background(), r)
	require.NoError(t, err)
	return r
}

func newRouter(voters store.VoterStore, verifier httptransport.Verifier) http.Handler {
	h := httptransport.NewHandler(voters, verifier, log.New(io.Discard, "", 0), nil)
	return httptransport.NewRouter(h, nil)
}

func TestListVoters(t *testing.T) {
	voters := store.NewMemoryStore()
	seedVoter(t, voters, 1, "1", "WB/A")
	seedVoter(t, voters, 1, "2", "WB/B")
	seedVoter(t, voters, 2, "1", "WB/C")
	router := newRouter(voters, &stubVerifier{})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/constituencies/253/voters"))
	require.Equal(t, http.StatusOK, rr.Code)

	type listResponse struct {
		Voters []domain.VoterRecord `json:"voters"`
		Total  int                  `json:"total"`
		Limit  int                  `json:"limit"`
	}
	resp := testutil.UnmarshalResponse[listResponse](t, rr)
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Voters, 3)
	assert.Equal(t, 100, resp.Limit)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/constituencies/253/voters?part=2"))
	require.Equal(t, http.StatusOK, rr.Code)
	resp = testutil.UnmarshalResponse[listResponse](t, rr)
	assert.Equal(t, 1, resp.Total)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/constituencies/253/voters?limit=1&offset=1"))
	require.Equal(t, http.StatusOK, rr.Code)
	resp = testutil.UnmarshalResponse[listResponse](t, rr)
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Voters, 1)
}

func TestListVotersRejectsBadParams(t *testing.T) {
	router := newRouter(store.NewMemoryStore(), &stubVerifier{})

	for _, path := range []string{
		"/api/v1/constituencies/abc/voters",
		"/api/v1/constituencies/253/voters?part=zero",
		"/api/v1/constituencies/253/voters?limit=0",
		"/api/v1/constituencies/253/voters?limit=5000",
		"/api/v1/constituencies/253/voters?offset=-1",
	} {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
	}
}

func TestStats(t *testing.T) {
	voters := store.NewMemoryStore()
	r := seedVoter(t, voters, 1, "1", "WB/A")
	seedVoter(t, voters, 1, "2", "WB/B")
	require.NoError(t, voters.MarkVerified(context.Background(), r.Key(), true,
		domain.ValidationResult{CheckedAt: time.Now()}, nil))
	router := newRouter(voters, &stubVerifier{})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/constituencies/253/stats"))
	require.Equal(t, http.StatusOK, rr.Code)

	stats := testutil.UnmarshalResponse[store.VerificationStats](t, rr)
	assert.Equal(t, store.VerificationStats{Total: 2, Verified: 1, Pending: 1}, *stats)
}

func TestDuplicates(t *testing.T) {
	voters := store.NewMemoryStore()
	seedVoter(t, voters, 1, "1", "WB/A")
	seedVoter(t, voters, 2, "9", "WB/A")
	router := newRouter(voters, &stubVerifier{})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/constituencies/253/duplicates"))
	require.Equal(t, http.StatusOK, rr.Code)

	type duplicatesResponse struct {
		EpicCollisions []store.EpicCollision `json:"epic_collisions"`
	}
	resp := testutil.UnmarshalResponse[duplicatesResponse](t, rr)
	require.Len(t, resp.EpicCollisions, 1)
	assert.Equal(t, store.EpicCollision{EpicID: "WB/A", Count: 2}, resp.EpicCollisions[0])

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodDelete, "/api/v1/duplicates"))
	require.Equal(t, http.StatusOK, rr.Code)
	removed := testutil.UnmarshalResponse[map[string]int64](t, rr)
	assert.Zero(t, (*removed)["removed"])
}

func TestReconciliation(t *testing.T) {
	router := newRouter(store.NewMemoryStore(), &stubVerifier{local: 120, remote: 118})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/constituencies/253/parts/4/reconciliation"))
	require.Equal(t, http.StatusOK, rr.Code)

	rec := testutil.UnmarshalResponse[report.PartReconciliation](t, rr)
	assert.Equal(t, report.PartReconciliation{ACNumber: 253, PartNumber: 4, Local: 120, Remote: 118, Delta: 2}, *rec)
}

func TestStartRun(t *testing.T) {
	id := uuid.New()
	verifier := &stubVerifier{runID: id, run: verify.Run{ID: id, State: verify.RunStateRunning}, known: true}
	router := newRouter(store.NewMemoryStore(), verifier)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/api/v1/constituencies/253/verification-runs"))
	require.Equal(t, http.StatusAccepted, rr.Code)

	run := testutil.UnmarshalResponse[verify.Run](t, rr)
	assert.Equal(t, id, run.ID)
	assert.Equal(t, verify.RunStateRunning, run.State)
}

func TestVerifierDisabled(t *testing.T) {
	router := newRouter(store.NewMemoryStore(), nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/api/v1/constituencies/253/verification-runs"))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/constituencies/253/parts/12/reconciliation"))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestStartRunConflict(t *testing.T) {
	router := newRouter(store.NewMemoryStore(), &stubVerifier{startErr: verify.ErrRunActive})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/api/v1/constituencies/253/verification-runs"))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRunStatus(t *testing.T) {
	router := newRouter(store.NewMemoryStore(), &stubVerifier{})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/verification-runs/not-a-uuid"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/verification-runs/"+uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealth(t *testing.T) {
	h := httptransport.NewHandler(store.NewMemoryStore(), &stubVerifier{}, log.New(io.Discard, "", 0), map[string]httptransport.Pinger{
		"postgres": func(context.Context) error { return nil },
	})
	router := httptransport.NewRouter(h, nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	assert.Equal(t, http.StatusOK, rr.Code)

	h = httptransport.NewHandler(store.NewMemoryStore(), &stubVerifier{}, log.New(io.Discard, "", 0), map[string]httptransport.Pinger{
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})
	router = httptransport.NewRouter(h, nil)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
