package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	io_prometheus_client "github.com/prometheus/client_model/go"
)

func TestInstrumentHandlerRecordsMetrics(t *testing.T) {
	handler := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/traces/t_123", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	if !metricCounterGreaterOrEqual(t, "vigil_http_requests_total", map[string]string{
		"method": "GET",
		"path":   "/v1/traces/:id",
		"status": "202",
	}, 1) {
		t.Fatalf("expected http request counter to increment")
	}

	if !metricHistogramCountGreaterOrEqual(t, "vigil_http_request_duration_seconds", map[string]string{
		"method": "GET",
		"path":   "/v1/traces/:id",
	}, 1) {
		t.Fatalf("expected http duration histogram to record samples")
	}
}

func TestInstrumentHandler_MetricsPathPassthrough(t *testing.T) {
	called := false
	handler := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("expected /metrics path to pass through to handler")
	}
}

func TestRecordSpanAndTraceIngested(t *testing.T) {
	RecordSpanIngested("llm")
	if !metricCounterGreaterOrEqual(t, "vigil_ingest_spans_total", map[string]string{"kind": "llm"}, 1) {
		t.Fatal("expected span ingest counter to increase")
	}

	RecordTraceIngested("")
	if !metricCounterGreaterOrEqual(t, "vigil_ingest_traces_total", map[string]string{"status": "unknown"}, 1) {
		t.Fatal("expected trace ingest counter with unknown status to increase")
	}
}

func TestRecordDriftCheckAndAlert(t *testing.T) {
	RecordDriftCheck("drifted", 10*time.Millisecond)
	if !metricCounterGreaterOrEqual(t, "vigil_drift_checks_total", map[string]string{"result": "drifted"}, 1) {
		t.Fatal("expected drift check counter to increase")
	}
	if !metricHistogramCountGreaterOrEqual(t, "vigil_drift_check_duration_seconds", nil, 1) {
		t.Fatal("expected drift check duration histogram to record")
	}

	RecordDriftAlert("high")
	if !metricCounterGreaterOrEqual(t, "vigil_drift_alerts_total", map[string]string{"severity": "high"}, 1) {
		t.Fatal("expected drift alert counter to increase")
	}

	// Negative duration should be clamped to zero rather than rejected.
	RecordDriftCheck("stable", -5*time.Millisecond)
}

func TestRecordReplayRun(t *testing.T) {
	RecordReplayRun("completed", 2*time.Second)
	if !metricCounterGreaterOrEqual(t, "vigil_replay_runs_total", map[string]string{"status": "completed"}, 1) {
		t.Fatal("expected replay run counter to increase")
	}
	if !metricHistogramCountGreaterOrEqual(t, "vigil_replay_run_duration_seconds", map[string]string{"status": "completed"}, 1) {
		t.Fatal("expected replay run duration histogram to record")
	}

	RecordReplayRun("", -time.Second)
	if !metricCounterGreaterOrEqual(t, "vigil_replay_runs_total", map[string]string{"status": "unknown"}, 1) {
		t.Fatal("expected replay run counter with unknown status")
	}
}

func TestHandler(t *testing.T) {
	h := Handler()
	if h == nil {
		t.Fatal("Handler() should return non-nil handler")
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected non-empty metrics response")
	}
}

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/", "/"},
		{"//", "/"},
		{"/health", "/health"},
		{"/v1/projects", "/v1/projects"},
		{"/v1/projects/", "/v1/projects"},
		{"/v1/projects/p_1", "/v1/projects/:id"},
		{"/v1/traces/t_1/replay/r_1/confirm", "/v1/traces/:id"},
		{"v1/traces", "/v1/traces"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := canonicalPath(tt.input); got != tt.expected {
				t.Errorf("canonicalPath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}
	sr.WriteHeader(http.StatusNotFound)
	if sr.status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", sr.status)
	}

	rec2 := httptest.NewRecorder()
	sr2 := &statusRecorder{ResponseWriter: rec2, status: 0}
	n, err := sr2.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 bytes written, got %d", n)
	}
	if sr2.status != http.StatusOK {
		t.Errorf("expected default status 200, got %d", sr2.status)
	}

	rec3 := httptest.NewRecorder()
	sr3 := &statusRecorder{ResponseWriter: rec3, status: http.StatusCreated}
	sr3.Write([]byte("test"))
	if sr3.status != http.StatusCreated {
		t.Errorf("expected status 201 preserved, got %d", sr3.status)
	}
}

func metricCounterGreaterOrEqual(t *testing.T, name string, labels map[string]string, min float64) bool {
	t.Helper()
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) && metric.GetCounter() != nil {
				return metric.GetCounter().GetValue() >= min
			}
		}
	}
	return false
}

func metricHistogramCountGreaterOrEqual(t *testing.T, name string, labels map[string]string, min uint64) bool {
	t.Helper()
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) && metric.GetHistogram() != nil {
				return metric.GetHistogram().GetSampleCount() >= min
			}
		}
	}
	return false
}

func labelsMatch(metric *io_prometheus_client.Metric, labels map[string]string) bool {
	if len(labels) == 0 {
		return true
	}
	if len(metric.GetLabel()) < len(labels) {
		return false
	}
	matched := 0
	for _, lbl := range metric.GetLabel() {
		if val, ok := labels[lbl.GetName()]; ok && val == lbl.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}
