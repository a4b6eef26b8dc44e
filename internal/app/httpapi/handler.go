// Package httpapi exposes Vigil's REST and websocket surface over the
// application's services. Routing is a plain net/http.ServeMux with manual
// path-segment parsing for nested resources, matching the upstream
// convention of avoiding a router dependency for a handful of routes.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/R3E-Network/service_layer/internal/app"
	"github.com/R3E-Network/service_layer/internal/app/metrics"
	"github.com/R3E-Network/service_layer/pkg/logger"
)

// Handler wires every Vigil route to the underlying application services.
type Handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler builds the full routing table.
func NewHandler(application *app.Application, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &Handler{app: application, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", health)
	mux.HandleFunc("/ready", health)

	mux.HandleFunc("/v1/auth/register", h.register)
	mux.HandleFunc("/v1/auth/login", h.login)

	mux.HandleFunc("/v1/projects", h.projects)
	mux.HandleFunc("/v1/projects/", h.projectResource)

	mux.HandleFunc("/v1/traces", h.traces)
	mux.HandleFunc("/v1/traces/", h.traceResource)
	mux.HandleFunc("/v1/spans", h.spans)

	mux.HandleFunc("/v1/drift/alerts", h.driftAlerts)
	mux.HandleFunc("/v1/drift/alerts/", h.driftAlertResource)
	mux.HandleFunc("/v1/drift/summary", h.driftSummary)

	mux.HandleFunc("/v1/notifications", h.notifications)
	mux.HandleFunc("/v1/notifications/", h.notificationResource)

	mux.HandleFunc("/ws", h.liveUpdates)
	mux.Handle("/metrics", metrics.Handler())

	// Outermost first: request-id, rate-limit, auth, CORS, Prometheus, then the mux.
	limiter := newRateLimiter(120, time.Minute)
	var handler http.Handler = mux
	handler = metrics.InstrumentHandler(handler)
	handler = wrapWithCORS(handler)
	handler = wrapWithAuth(h.app.Resolver, handler)
	handler = wrapWithRateLimit(limiter, handler)
	handler = wrapWithRequestID(handler)
	return handler
}

// pathSegments splits the remainder of a URL path after a known prefix into
// its non-empty segments, e.g. "/v1/traces/t1/replay/r1/confirm" with prefix
// "/v1/traces/" yields ["t1", "replay", "r1", "confirm"].
func pathSegments(path, prefix string) []string {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
