// Package httptransport is the thin HTTP layer over the voter store and the
// verification service. Handlers delegate to domain code so transport
// concerns stay isolated.
package httptransport

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollscan/internal/platform/metrics"
	"rollscan/internal/store"
	"rollscan/internal/verify"
)

// Verifier is the slice of the verification service the HTTP layer needs.
type Verifier interface {
	StartRun(acNumber int) (uuid.UUID, error)
	RunStatus(id uuid.UUID) (verify.Run, bool)
	ReconcilePartCount(ctx context.Context, acNumber, partNumber int) (local, remote int, err error)
}

// Pinger reports the health of one dependency.
type Pinger func(ctx context.Context) error

// Handler wires voter endpoints to the store and verifier.
type Handler struct {
	voters   store.VoterStore
	verifier Verifier
	log      *log.Logger
	pingers  map[string]Pinger
}

func NewHandler(voters store.VoterStore, verifier Verifier, logger *log.Logger, pingers map[string]Pinger) *Handler {
	return &Handler{
		voters:   voters,
		verifier: verifier,
		log:      logger,
		pingers:  pingers,
	}
}

// NewRouter mounts all endpoints, including health and Prometheus metrics.
// appMetrics may be nil.
func NewRouter(h *Handler, appMetrics *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(appMetrics.Middleware)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/constituencies/{ac}", func(r chi.Router) {
			r.Get("/voters", h.handleListVoters)
			r.Get("/stats", h.handleStats)
			r.Get("/duplicates", h.handleDuplicates)
			r.Get("/parts/{part}/reconciliation", h.handleReconciliation)
			r.Post("/verification-runs", h.handleStartRun)
		})
		r.Get("/verification-runs/{id}", h.handleRunStatus)
		r.Delete("/duplicates", h.handleRemoveDuplicates)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
