package httpapi

import (
	"errors"
	"net/http"

	"github.com/R3E-Network/service_layer/internal/vigilerr"
)

// driftAlerts handles GET /v1/drift/alerts, optionally filtered to only the
// unresolved alerts via ?open=true. Guest-accessible.
func (h *Handler) driftAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	projectID, ok := projectIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errUnauthorized)
		return
	}
	onlyOpen := r.URL.Query().Get("open") == "true"
	alerts, err := h.app.Store.ListDriftAlerts(r.Context(), projectID, onlyOpen)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to list drift alerts"))
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// driftAlertResource handles POST /v1/drift/alerts/{id}/resolve.
func (h *Handler) driftAlertResource(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, "/v1/drift/alerts/")
	if len(segments) != 2 || segments[1] != "resolve" {
		writeError(w, http.StatusNotFound, errors.New("unknown drift alert route"))
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}

	alert, err := h.app.Store.ResolveDriftAlert(r.Context(), segments[0], "dashboard")
	if err != nil {
		writeError(w, http.StatusNotFound, vigilerr.NotFound("drift alert", segments[0]))
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// driftSummary handles GET /v1/drift/summary. Guest-accessible.
func (h *Handler) driftSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	projectID, ok := projectIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errUnauthorized)
		return
	}
	summary, err := h.app.Store.GetDriftSummary(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to load drift summary"))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
