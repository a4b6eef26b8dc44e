package drift

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/storage/memory"
)

func TestComputePSIIsZeroForIdenticalDistributions(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	psi := ComputePSI(values, values)
	if math.Abs(psi) > 1e-9 {
		t.Fatalf("expected ~0 psi for identical distributions, got %v", psi)
	}
}

func TestComputePSIIsPositiveForShiftedDistribution(t *testing.T) {
	baseline := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 5, 5, 5, 5, 5}
	current := []float64{5, 5, 5, 5, 5}
	psi := ComputePSI(baseline, current)
	if psi <= 0 {
		t.Fatalf("expected positive psi for a shifted distribution, got %v", psi)
	}
}

func TestSeverityThresholds(t *testing.T) {
	cases := []struct {
		psi      float64
		expected domain.DriftSeverity
	}{
		{0.05, domain.DriftSeverityLow},
		{0.15, domain.DriftSeverityMedium},
		{0.25, domain.DriftSeverityHigh},
	}
	for _, c := range cases {
		if got := domain.SeverityFromPSI(c.psi); got != c.expected {
			t.Fatalf("psi=%v: expected %v, got %v", c.psi, c.expected, got)
		}
	}
}

func TestDetectDriftRequiresMinimumSampleSizes(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	det := New(store, store)

	for i := 0; i < 3; i++ {
		store.CreateSpans(ctx, []domain.Span{{
			ID: uuidFor(i), TraceID: "t1", ProjectID: "p1", Name: "llm_call", Kind: domain.SpanKindLLM,
			DurationMS: float64(100 + i), StartedAt: time.Now(),
		}})
	}

	alert, err := det.DetectDrift(ctx, "p1", domain.SpanKindLLM, 100, 20)
	if err != nil {
		t.Fatalf("detect drift: %v", err)
	}
	if alert != nil {
		t.Fatalf("expected no alert with only 3 samples, got %+v", alert)
	}
}

func TestDetectDriftPersistsAlertWhenSampleIsLargeEnough(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	det := New(store, store)

	for i := 0; i < 20; i++ {
		store.CreateSpans(ctx, []domain.Span{{
			ID: uuidFor(i), TraceID: "t1", ProjectID: "p1", Name: "llm_call", Kind: domain.SpanKindLLM,
			DurationMS: float64(100 + i*10), StartedAt: time.Now().Add(time.Duration(i) * time.Second),
		}})
	}

	alert, err := det.DetectDrift(ctx, "p1", domain.SpanKindLLM, 100, 5)
	if err != nil {
		t.Fatalf("detect drift: %v", err)
	}
	if alert == nil {
		t.Fatal("expected an alert to be created")
	}
	if alert.SpanKind != domain.SpanKindLLM || alert.ProjectID != "p1" {
		t.Fatalf("unexpected alert: %+v", alert)
	}
	if alert.BaselineMean <= 0 || alert.CurrentMean <= 0 {
		t.Fatalf("expected non-zero baseline/current means, got %+v", alert)
	}
}

// TestDetectDriftDoesNotAlertBelowPSIThreshold guards the psi >= 0.1 gate: a
// current window drawn from the same distribution as the baseline must not
// raise an alert even once the sample-size gate passes.
func TestDetectDriftDoesNotAlertBelowPSIThreshold(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	det := New(store, store)

	for i := 0; i < 20; i++ {
		store.CreateSpans(ctx, []domain.Span{{
			ID: uuidFor(i), TraceID: "t1", ProjectID: "p1", Name: "llm_call", Kind: domain.SpanKindLLM,
			DurationMS: 100, StartedAt: time.Now().Add(time.Duration(i) * time.Second),
		}})
	}

	alert, err := det.DetectDrift(ctx, "p1", domain.SpanKindLLM, 100, 20)
	if err != nil {
		t.Fatalf("detect drift: %v", err)
	}
	if alert != nil {
		t.Fatalf("expected no alert when psi is below the 0.1 threshold, got %+v", alert)
	}
}

func uuidFor(i int) string {
	return string(rune('a' + i%26))
}
