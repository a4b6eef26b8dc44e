// Package metrics exposes Vigil's Prometheus collectors: generic HTTP
// instrumentation plus counters/histograms for the ingest, drift and replay
// subsystems.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vigil",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vigil",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	spansIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "ingest",
			Name:      "spans_total",
			Help:      "Total number of spans ingested, by span kind.",
		},
		[]string{"kind"},
	)

	tracesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "ingest",
			Name:      "traces_total",
			Help:      "Total number of distinct traces created by ingest.",
		},
		[]string{"status"},
	)

	driftChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "drift",
			Name:      "checks_total",
			Help:      "Total number of drift checks run, by result.",
		},
		[]string{"result"},
	)

	driftCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vigil",
			Subsystem: "drift",
			Name:      "check_duration_seconds",
			Help:      "Duration of a single drift check comparison.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	driftAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "drift",
			Name:      "alerts_total",
			Help:      "Total number of drift alerts raised, by severity.",
		},
		[]string{"severity"},
	)

	replayRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "replay",
			Name:      "runs_total",
			Help:      "Total number of replay runs, by terminal status.",
		},
		[]string{"status"},
	)

	replayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vigil",
			Subsystem: "replay",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a replay run from confirm to completion.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		spansIngested,
		tracesIngested,
		driftChecks,
		driftCheckDuration,
		driftAlerts,
		replayRuns,
		replayDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
// It is the innermost layer of the middleware chain, applied after auth and
// CORS so every routed request is counted exactly once.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordSpanIngested records a single ingested span by kind (llm, tool, retriever, ...).
func RecordSpanIngested(kind string) {
	spansIngested.WithLabelValues(nonEmpty(kind)).Inc()
}

// RecordTraceIngested records the creation of a new trace by its resulting status.
func RecordTraceIngested(status string) {
	tracesIngested.WithLabelValues(nonEmpty(status)).Inc()
}

// RecordDriftCheck records a single PSI comparison, its outcome ("stable" or
// "drifted"), and how long the comparison took.
func RecordDriftCheck(result string, duration time.Duration) {
	driftChecks.WithLabelValues(nonEmpty(result)).Inc()
	if duration < 0 {
		duration = 0
	}
	driftCheckDuration.Observe(duration.Seconds())
}

// RecordDriftAlert records a raised drift alert by severity.
func RecordDriftAlert(severity string) {
	driftAlerts.WithLabelValues(nonEmpty(severity)).Inc()
}

// RecordReplayRun records a replay run reaching a terminal status
// ("completed", "failed", "cancelled") and the time it took to get there.
func RecordReplayRun(status string, duration time.Duration) {
	status = nonEmpty(status)
	if duration < 0 {
		duration = 0
	}
	replayRuns.WithLabelValues(status).Inc()
	replayDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func nonEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses an id segment into a ":id" placeholder so per-route
// cardinality stays bounded regardless of how many projects/traces/runs
// exist, e.g. "/v1/traces/t_123/replay/r_456" becomes "/v1/traces/:id".
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) <= 2 {
		return "/" + strings.Join(parts, "/")
	}
	return "/" + parts[0] + "/" + parts[1] + "/:id"
}
