package replay

import (
	"context"
	"testing"
	"time"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/services/llm"
	"github.com/R3E-Network/service_layer/internal/app/storage/memory"
)

type noCredentials struct{}

func (noCredentials) ResolveCredentials(ctx context.Context, projectID string, provider llm.Provider) (llm.Credentials, error) {
	return llm.Credentials{}, nil
}

func TestEstimateSumsOnlyLLMSpans(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	eng := New(store, store, noCredentials{}, llm.New(nil), nil)

	trace, _ := store.CreateTrace(ctx, domain.Trace{ID: "t1", ProjectID: "p1", Name: "run", StartedAt: time.Now()})
	store.CreateSpans(ctx, []domain.Span{
		{ID: "s1", TraceID: trace.ID, ProjectID: "p1", Name: "llm_call", Kind: domain.SpanKindLLM, Input: map[string]any{"model": "gpt-4o", "prompt": "hi"}},
		{ID: "s2", TraceID: trace.ID, ProjectID: "p1", Name: "tool_call", Kind: domain.SpanKindTool},
	})

	run, err := eng.Estimate(ctx, "p1", trace.ID, []domain.SpanMutation{
		{SpanID: "s1", MutatedInput: map[string]any{"prompt": "hi there"}},
		{SpanID: "s2", MutatedInput: map[string]any{"prompt": "ignored, not an LLM span"}},
	})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if run.Status != domain.ReplayStatusEstimating {
		t.Fatalf("expected estimating status, got %v", run.Status)
	}
	if run.EstimatedCost <= 0 {
		t.Fatalf("expected positive estimated cost, got %v", run.EstimatedCost)
	}
}

func TestConfirmRejectsNonEstimatingRun(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	eng := New(store, store, noCredentials{}, llm.New(nil), nil)

	run, _ := store.CreateReplayRun(ctx, domain.ReplayRun{ID: "r1", ProjectID: "p1", TraceID: "t1", Status: domain.ReplayStatusCompleted})
	if _, err := eng.Confirm(ctx, run.ID); err == nil {
		t.Fatal("expected error confirming a completed run")
	}
}

func TestNonLLMSpansAreCopiedVerbatimOnReplay(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	eng := New(store, store, noCredentials{}, llm.New(nil), nil)

	trace, _ := store.CreateTrace(ctx, domain.Trace{ID: "t1", ProjectID: "p1", Name: "run", StartedAt: time.Now()})
	store.CreateSpans(ctx, []domain.Span{
		{ID: "s1", TraceID: trace.ID, ProjectID: "p1", Name: "tool_call", Kind: domain.SpanKindTool, Output: map[string]any{"result": "42"}},
	})

	run, _ := store.CreateReplayRun(ctx, domain.ReplayRun{ID: "r1", ProjectID: "p1", TraceID: trace.ID, Status: domain.ReplayStatusConfirmed})

	diff, cost, err := eng.replayTrace(ctx, run)
	if err != nil {
		t.Fatalf("replay trace: %v", err)
	}
	if cost != 0 {
		t.Fatalf("expected zero cost for a trace with no LLM spans, got %v", cost)
	}
	if len(diff) != 1 || diff[0].WasExecuted {
		t.Fatalf("expected the tool span to be copied verbatim, got %+v", diff)
	}
}

func TestRecoverCrashedRunsMarksRunningAsFailed(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	eng := New(store, store, noCredentials{}, llm.New(nil), nil)

	store.CreateReplayRun(ctx, domain.ReplayRun{ID: "r1", ProjectID: "p1", TraceID: "t1", Status: domain.ReplayStatusRunning})

	if err := eng.RecoverCrashedRuns(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}

	run, err := store.GetReplayRun(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if run.Status != domain.ReplayStatusFailed {
		t.Fatalf("expected failed status after recovery, got %v", run.Status)
	}
}
