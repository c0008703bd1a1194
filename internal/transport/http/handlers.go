package httptransport

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"rollscan/internal/domain"
	"rollscan/internal/report"
	"rollscan/internal/store"
	"rollscan/internal/verify"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(h.pingers))
	for name, ping := range h.pingers {
		if err := ping(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			components[name] = "ok"
		}
	}
	writeJSON(w, status, map[string]any{
		"status":     healthWord(status),
		"components": components,
	})
}

func healthWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}

// handleListVoters serves GET /api/v1/constituencies/{ac}/voters with
// optional part, limit, and offset query parameters.
func (h *Handler) handleListVoters(w http.ResponseWriter, r *http.Request) {
	ac, ok := intParam(w, r, "ac")
	if !ok {
		return
	}
	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	if partRaw := r.URL.Query().Get("part"); partRaw != "" {
		part, err := strconv.Atoi(partRaw)
		if err != nil || part <= 0 {
			writeError(w, http.StatusBadRequest, "part must be a positive integer")
			return
		}
		voters, total, err := h.voters.ListByPart(r.Context(), ac, part, page)
		if err != nil {
			h.serverError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Voters: voters, Total: total, Limit: page.Limit, Offset: page.Offset})
		return
	}

	voters, total, err := h.voters.ListByAC(r.Context(), ac, page)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Voters: voters, Total: total, Limit: page.Limit, Offset: page.Offset})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ac, ok := intParam(w, r, "ac")
	if !ok {
		return
	}
	stats, err := h.voters.VerificationStats(r.Context(), ac)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	ac, ok := intParam(w, r, "ac")
	if !ok {
		return
	}
	collisions, err := h.voters.EpicCollisions(r.Context(), ac)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"epic_collisions": collisions})
}

func (h *Handler) handleRemoveDuplicates(w http.ResponseWriter, r *http.Request) {
	removed, err := h.voters.RemoveExactDuplicates(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.log.Printf("removed %d exact duplicate rows", removed)
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (h *Handler) handleReconciliation(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		writeError(w, http.StatusServiceUnavailable, "verification is not configured")
		return
	}
	ac, ok := intParam(w, r, "ac")
	if !ok {
		return
	}
	part, ok := intParam(w, r, "part")
	if !ok {
		return
	}
	local, remote, err := h.verifier.ReconcilePartCount(r.Context(), ac, part)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Reconcile(ac, part, local, remote))
}

func (h *Handler) handleStartRun(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		writeError(w, http.StatusServiceUnavailable, "verification is not configured")
		return
	}
	ac, ok := intParam(w, r, "ac")
	if !ok {
		return
	}
	id, err := h.verifier.StartRun(ac)
	if err != nil {
		if errors.Is(err, verify.ErrRunActive) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.serverError(w, r, err)
		return
	}
	run, _ := h.verifier.RunStatus(id)
	writeJSON(w, http.StatusAccepted, run)
}

func (h *Handler) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		writeError(w, http.StatusServiceUnavailable, "verification is not configured")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "run id must be a UUID")
		return
	}
	run, ok := h.verifier.RunStatus(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type listResponse struct {
	Voters []domain.VoterRecord `json:"voters"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	value, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || value <= 0 {
		writeError(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return value, true
}

func parsePage(w http.ResponseWriter, r *http.Request) (store.Page, bool) {
	page := store.Page{Limit: defaultPageLimit}
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxPageLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return store.Page{}, false
		}
		page.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "offset must not be negative")
			return store.Page{}, false
		}
		page.Offset = offset
	}
	return page, true
}
