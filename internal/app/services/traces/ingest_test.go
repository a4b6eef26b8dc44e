package traces

import (
	"context"
	"testing"
	"time"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/storage"
	"github.com/R3E-Network/service_layer/internal/app/storage/memory"
)

func TestIngestCreatesTraceAndExtendsEndTime(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store)

	start := time.Now()
	end := start.Add(2 * time.Second)

	trace, err := svc.Ingest(ctx, "p1", "", "run-1", []IngestSpan{
		{Name: "llm_call", Kind: domain.SpanKindLLM, StartedAt: start, EndedAt: &end},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if trace.EndedAt == nil || !trace.EndedAt.Equal(end) {
		t.Fatalf("expected trace end time %v, got %v", end, trace.EndedAt)
	}

	loaded, err := svc.Get(ctx, trace.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(loaded.Spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(loaded.Spans))
	}
}

func TestIngestAppendsToExistingTrace(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store)

	start := time.Now()
	trace, err := svc.Ingest(ctx, "p1", "t1", "run-1", []IngestSpan{
		{Name: "step_one", StartedAt: start},
	})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	if _, err := svc.Ingest(ctx, "p1", trace.ID, "run-1", []IngestSpan{
		{Name: "step_two", StartedAt: start.Add(time.Second)},
	}); err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	loaded, err := svc.Get(ctx, trace.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(loaded.Spans) != 2 {
		t.Fatalf("expected 2 spans across both ingests, got %d", len(loaded.Spans))
	}
}

func TestListReturnsEveryIngestedTrace(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store)

	for i := 0; i < 3; i++ {
		if _, err := svc.Ingest(ctx, "p1", "", "run", []IngestSpan{{Name: "step", StartedAt: time.Now()}}); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	traces, err := svc.List(ctx, "p1", storage.TraceFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(traces) != 3 {
		t.Fatalf("expected 3 traces, got %d", len(traces))
	}
}
