package httpapi

import (
	"errors"
	"net/http"

	"github.com/R3E-Network/service_layer/internal/vigilerr"
)

// notifications handles GET /v1/notifications, optionally narrowed to
// unread-only via ?unread=true.
func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	projectID, ok := projectIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errUnauthorized)
		return
	}
	onlyUnread := r.URL.Query().Get("unread") == "true"
	list, err := h.app.Notify.List(r.Context(), projectID, onlyUnread)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to list notifications"))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// notificationResource handles POST /v1/notifications/{id}/read.
func (h *Handler) notificationResource(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, "/v1/notifications/")
	if len(segments) != 2 || segments[1] != "read" {
		writeError(w, http.StatusNotFound, errors.New("unknown notification route"))
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	n, err := h.app.Notify.MarkRead(r.Context(), segments[0])
	if err != nil {
		writeError(w, http.StatusNotFound, vigilerr.NotFound("notification", segments[0]))
		return
	}
	writeJSON(w, http.StatusOK, n)
}
