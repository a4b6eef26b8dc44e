// Package traces implements trace ingestion and query: accepting a batch of
// spans for a trace, inferring the trace's start/end bounds, and serving
// traces and spans back out for the dashboard and replay engine.
package traces

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/metrics"
	"github.com/R3E-Network/service_layer/internal/app/storage"
)

// IngestSpan is the wire shape of one span in an ingest request; IDs are
// optional and generated if omitted; a supplied ID is stored as given.
type IngestSpan struct {
	ID           string
	ParentSpanID *string
	Name         string
	Kind         domain.SpanKind
	Status       domain.TraceStatus
	Input        map[string]any
	Output       map[string]any
	StartedAt    time.Time
	EndedAt      *time.Time
	Metadata     map[string]any
}

// Validation bounds mirrored from the span/trace wire schema: a span name
// may run up to 512 bytes, an id (span or parent-span) up to 128.
const (
	MaxNameLength = 512
	MaxIDLength   = 128
)

// ValidateSpans checks the batch-level and per-span constraints the ingest
// endpoint must enforce: a non-empty batch, bounded id/name lengths, and
// enumerated kind/status values. The zero-value kind/status default to
// "custom"/"unset" before validation, matching the wire schema's defaults.
func ValidateSpans(spans []IngestSpan) error {
	if len(spans) < 1 {
		return fmt.Errorf("spans: at least one span is required")
	}
	for i, sp := range spans {
		if len(sp.ID) > MaxIDLength {
			return fmt.Errorf("spans[%d].id: must not exceed %d characters", i, MaxIDLength)
		}
		if sp.ParentSpanID != nil && len(*sp.ParentSpanID) > MaxIDLength {
			return fmt.Errorf("spans[%d].parent_span_id: must not exceed %d characters", i, MaxIDLength)
		}
		if len(sp.Name) > MaxNameLength {
			return fmt.Errorf("spans[%d].name: must not exceed %d characters", i, MaxNameLength)
		}
		kind := sp.Kind
		if kind == "" {
			kind = domain.SpanKindCustom
		}
		if !kind.Valid() {
			return fmt.Errorf("spans[%d].kind: must be one of %v, got %q", i, domain.ValidSpanKinds, sp.Kind)
		}
		status := sp.Status
		if status == "" {
			status = domain.TraceStatusUnset
		}
		if !status.Valid() {
			return fmt.Errorf("spans[%d].status: invalid status %q", i, sp.Status)
		}
	}
	return nil
}

// Service implements ingestion and query over traces and spans.
type Service struct {
	store storage.TraceStore
}

// New constructs a Service.
func New(store storage.TraceStore) *Service {
	return &Service{store: store}
}

// Ingest upserts a trace (creating it if traceID is new) and appends the
// given spans to it. The trace's EndedAt is extended to the latest span end
// time seen so far.
func (s *Service) Ingest(ctx context.Context, projectID, traceID, traceName string, spans []IngestSpan) (domain.Trace, error) {
	if err := ValidateSpans(spans); err != nil {
		return domain.Trace{}, err
	}

	if traceID == "" {
		traceID = uuid.NewString()
	}

	trace, err := s.store.GetTrace(ctx, traceID)
	if err == storage.ErrNotFound {
		name := traceName
		if name == "" {
			name = "untitled"
		}
		started := time.Now()
		if len(spans) > 0 {
			started = spans[0].StartedAt
		}
		trace, err = s.store.CreateTrace(ctx, domain.Trace{
			ID:        traceID,
			ProjectID: projectID,
			Name:      name,
			StartedAt: started,
			Metadata:  map[string]any{},
		})
		if err != nil {
			return domain.Trace{}, fmt.Errorf("create trace: %w", err)
		}
		metrics.RecordTraceIngested(string(trace.Status))
	} else if err != nil {
		return domain.Trace{}, fmt.Errorf("load trace: %w", err)
	}

	domainSpans := make([]domain.Span, 0, len(spans))
	var latestEnd *time.Time
	for _, sp := range spans {
		id := sp.ID
		if id == "" {
			id = uuid.NewString()
		}
		kind := sp.Kind
		if kind == "" {
			kind = domain.SpanKindCustom
		}
		status := sp.Status
		if status == "" {
			status = domain.TraceStatusUnset
		}
		var duration float64
		if sp.EndedAt != nil {
			duration = sp.EndedAt.Sub(sp.StartedAt).Seconds() * 1000
			if latestEnd == nil || sp.EndedAt.After(*latestEnd) {
				latestEnd = sp.EndedAt
			}
		}
		domainSpans = append(domainSpans, domain.Span{
			ID:           id,
			TraceID:      traceID,
			ProjectID:    projectID,
			ParentSpanID: sp.ParentSpanID,
			Name:         sp.Name,
			Kind:         kind,
			Status:       status,
			Input:        sp.Input,
			Output:       sp.Output,
			StartedAt:    sp.StartedAt,
			EndedAt:      sp.EndedAt,
			DurationMS:   duration,
			Metadata:     sp.Metadata,
		})
		metrics.RecordSpanIngested(string(kind))
	}

	if err := s.store.CreateSpans(ctx, domainSpans); err != nil {
		return domain.Trace{}, fmt.Errorf("create spans: %w", err)
	}

	if latestEnd != nil && (trace.EndedAt == nil || latestEnd.After(*trace.EndedAt)) {
		if err := s.store.EndTrace(ctx, traceID, *latestEnd); err != nil {
			return domain.Trace{}, fmt.Errorf("end trace: %w", err)
		}
		trace.EndedAt = latestEnd
	}

	return trace, nil
}
