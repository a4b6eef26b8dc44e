package httpapi

import (
	"net/http"
)

// liveUpdates handles GET /ws?token=..., upgrading the connection and
// registering it on the live-update hub under the resolved project.
// Authentication already ran in wrapWithAuth; the token travels as a query
// parameter here because browser WebSocket clients cannot set headers.
func (h *Handler) liveUpdates(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errUnauthorized)
		return
	}
	if err := h.app.Hub.Upgrade(w, r, projectID); err != nil {
		h.log.Errorf("httpapi: websocket upgrade for project %s: %v", projectID, err)
	}
}
