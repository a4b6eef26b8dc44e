package httpapi

import (
	"errors"
	"net/http"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/storage"
	"github.com/R3E-Network/service_layer/internal/vigilerr"
)

type createReplayRequest struct {
	Mutations []domain.SpanMutation `json:"mutations"`
}

// createReplay handles POST /v1/traces/{id}/replay: it estimates the cost of
// re-executing every LLM span with a detectable provider (with any declared
// mutation merged into its input) without running anything yet.
func (h *Handler) createReplay(w http.ResponseWriter, r *http.Request, traceID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	projectID, ok := projectIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errUnauthorized)
		return
	}
	var req createReplayRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	run, err := h.app.Replay.Estimate(r.Context(), projectID, traceID, req.Mutations)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to estimate replay"))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// confirmReplay handles POST /v1/traces/{trace}/replay/{run}/confirm: it
// moves the run from estimating to confirmed and launches execution.
func (h *Handler) confirmReplay(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	run, err := h.app.Replay.Confirm(r.Context(), runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, vigilerr.NotFound("replay run", runID))
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// cancelReplay handles POST /v1/traces/{trace}/replay/{run}/cancel.
func (h *Handler) cancelReplay(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	run, err := h.app.Replay.Cancel(r.Context(), runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, vigilerr.NotFound("replay run", runID))
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// replayDetail handles GET /v1/traces/{trace}/replay/{run}.
func (h *Handler) replayDetail(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	run, err := h.app.Store.GetReplayRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, vigilerr.NotFound("replay run", runID))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// replayDiff handles GET /v1/traces/{trace}/replay/{run}/diff, returning just
// the run's stored per-span diff entries, whatever its status (empty until
// execution has recorded them).
func (h *Handler) replayDiff(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	run, err := h.app.Store.GetReplayRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, vigilerr.NotFound("replay run", runID))
		return
	}
	writeJSON(w, http.StatusOK, run.Diff)
}
