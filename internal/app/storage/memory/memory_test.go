package memory

import (
	"context"
	"testing"
	"time"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/storage"
)

func TestProjectLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	p, err := s.CreateProject(ctx, domain.Project{ID: "p1", Name: "demo", CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	got, err := s.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.Name != "demo" {
		t.Fatalf("expected name 'demo', got %q", got.Name)
	}

	if _, err := s.GetProject(ctx, "missing"); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSettingsLazyDefaults(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.GetSettings(ctx, "p1"); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound before settings exist, got %v", err)
	}

	def := domain.DefaultProjectSettings("p1")
	if err := s.PutSettings(ctx, def); err != nil {
		t.Fatalf("put settings: %v", err)
	}

	got, err := s.GetSettings(ctx, "p1")
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got.PSIBaselineWindow != 100 {
		t.Fatalf("expected default baseline window 100, got %d", got.PSIBaselineWindow)
	}
}

func TestAPIKeyRotationDeactivatesPriorKeys(t *testing.T) {
	ctx := context.Background()
	s := New()

	k1, _ := s.CreateAPIKey(ctx, domain.APIKey{ID: "k1", ProjectID: "p1", Key: "key-one", Active: true, CreatedAt: time.Now()})
	if _, err := s.GetAPIKeyByValue(ctx, k1.Key); err != nil {
		t.Fatalf("expected key lookup to succeed: %v", err)
	}

	if err := s.DeactivateProjectKeys(ctx, "p1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := s.GetAPIKeyByValue(ctx, k1.Key); err != storage.ErrNotFound {
		t.Fatalf("expected deactivated key to no longer resolve, got %v", err)
	}

	keys, err := s.ListAPIKeys(ctx, "p1")
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 1 || keys[0].Active {
		t.Fatalf("expected single inactive key, got %+v", keys)
	}
}

func TestTraceAndSpanQueries(t *testing.T) {
	ctx := context.Background()
	s := New()

	tr, _ := s.CreateTrace(ctx, domain.Trace{ID: "t1", ProjectID: "p1", Name: "run", StartedAt: time.Now()})
	spans := []domain.Span{
		{ID: "s1", TraceID: tr.ID, ProjectID: "p1", Name: "llm_call", Kind: domain.SpanKindLLM, StartedAt: time.Now()},
		{ID: "s2", TraceID: tr.ID, ProjectID: "p1", Name: "llm_call", Kind: domain.SpanKindLLM, StartedAt: time.Now().Add(time.Second)},
	}
	if err := s.CreateSpans(ctx, spans); err != nil {
		t.Fatalf("create spans: %v", err)
	}

	got, err := s.ListSpans(ctx, tr.ID)
	if err != nil || len(got) != 2 {
		t.Fatalf("expected 2 spans, got %d (err=%v)", len(got), err)
	}

	byKind, err := s.ListSpansByKind(ctx, "p1", domain.SpanKindLLM, 1)
	if err != nil || len(byKind) != 1 {
		t.Fatalf("expected limit=1 to return 1 span, got %d (err=%v)", len(byKind), err)
	}
}

func TestDriftSummaryCountsOnlyOpenAlerts(t *testing.T) {
	ctx := context.Background()
	s := New()

	resolvedAt := time.Now()
	s.CreateDriftAlert(ctx, domain.DriftAlert{ID: "a1", ProjectID: "p1", Severity: domain.DriftSeverityHigh, DetectedAt: time.Now()})
	s.CreateDriftAlert(ctx, domain.DriftAlert{ID: "a2", ProjectID: "p1", Severity: domain.DriftSeverityLow, DetectedAt: time.Now(), ResolvedAt: &resolvedAt})

	summary, err := s.GetDriftSummary(ctx, "p1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.OpenTotal != 1 || summary.OpenHigh != 1 || summary.OpenLow != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
