// Package drift computes Population Stability Index drift between a span's
// baseline and current latency distributions, and runs the periodic
// background check that turns a detected shift into an alert.
package drift

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/metrics"
	"github.com/R3E-Network/service_layer/internal/app/storage"
)

const (
	psiEpsilon     = 1e-4
	psiBinCount    = 10
	minBaselineLen = 10
	minCurrentLen  = 5
	// psiLow is the minimum PSI value that warrants raising an alert at all;
	// anything below it is treated as noise rather than drift.
	psiLow = 0.1
)

// mean returns the arithmetic mean of xs, or 0 for an empty slice.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

// Detector computes PSI-based drift for a project's spans and persists any
// alert it finds.
type Detector struct {
	store storage.DriftStore
	spans storage.TraceStore
}

// New returns a Detector backed by the given stores.
func New(spans storage.TraceStore, alerts storage.DriftStore) *Detector {
	return &Detector{store: alerts, spans: spans}
}

// ComputePSI computes the Population Stability Index between a baseline and
// a current sample, using 10 equal-width bins spanning the combined range of
// both samples. Each bin's proportion is floored at psiEpsilon before the
// psi += (c-b)*ln(c/b) contribution is added, avoiding log(0) or division by
// zero when a bin is empty in either sample.
func ComputePSI(baseline, current []float64) float64 {
	if len(baseline) == 0 || len(current) == 0 {
		return 0
	}

	lo, hi := baseline[0], baseline[0]
	for _, v := range append(append([]float64{}, baseline...), current...) {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return 0
	}
	width := (hi - lo) / float64(psiBinCount)

	binOf := func(v float64) int {
		idx := int((v - lo) / width)
		if idx < 0 {
			idx = 0
		}
		if idx >= psiBinCount {
			idx = psiBinCount - 1
		}
		return idx
	}

	var baseCounts, currCounts [psiBinCount]int
	for _, v := range baseline {
		baseCounts[binOf(v)]++
	}
	for _, v := range current {
		currCounts[binOf(v)]++
	}

	var psi float64
	for i := 0; i < psiBinCount; i++ {
		b := float64(baseCounts[i]) / float64(len(baseline))
		c := float64(currCounts[i]) / float64(len(current))
		if b < psiEpsilon {
			b = psiEpsilon
		}
		if c < psiEpsilon {
			c = psiEpsilon
		}
		psi += (c - b) * math.Log(c/b)
	}
	return psi
}

// DetectDrift samples the baseline and current latency windows for a span
// kind within a project, computes PSI, and persists a DriftAlert if the
// sample sizes are large enough to be meaningful AND the computed PSI meets
// the psiLow threshold. It returns nil, nil when there is not yet enough
// data to check, or when PSI indicates no meaningful drift.
//
// The current window is a subset of the baseline window (the most recent
// currentWindow spans out of the most recent baselineWindow), not a
// disjoint split; this mirrors the reference behaviour and was a deliberate
// choice, not an oversight.
func (d *Detector) DetectDrift(ctx context.Context, projectID string, spanKind domain.SpanKind, baselineWindow, currentWindow int) (*domain.DriftAlert, error) {
	recent, err := d.spans.ListSpansByKind(ctx, projectID, spanKind, baselineWindow)
	if err != nil {
		return nil, fmt.Errorf("list spans for drift check: %w", err)
	}
	if len(recent) < minBaselineLen {
		return nil, nil
	}

	baseline := make([]float64, 0, len(recent))
	for _, sp := range recent {
		baseline = append(baseline, sp.DurationMS)
	}

	n := currentWindow
	if n > len(baseline) {
		n = len(baseline)
	}
	current := baseline[:n]
	if len(current) < minCurrentLen {
		return nil, nil
	}

	start := time.Now()
	psi := ComputePSI(baseline, current)
	result := "stable"
	if psi >= psiLow {
		result = "drifted"
	}
	metrics.RecordDriftCheck(result, time.Since(start))
	if psi < psiLow {
		return nil, nil
	}
	severity := domain.SeverityFromPSI(psi)
	metrics.RecordDriftAlert(string(severity))

	alert := domain.DriftAlert{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		SpanKind:      spanKind,
		Metric:        "duration_ms",
		PSI:           psi,
		Severity:      severity,
		BaselineMean:  mean(baseline),
		CurrentMean:   mean(current),
		BaselineCount: len(baseline),
		CurrentCount:  len(current),
		DetectedAt:    time.Now(),
	}
	created, err := d.store.CreateDriftAlert(ctx, alert)
	if err != nil {
		return nil, fmt.Errorf("persist drift alert: %w", err)
	}
	return &created, nil
}
