package traces

import (
	"context"
	"fmt"
	"time"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/storage"
)

// Get loads a trace and its spans, ordered by start time.
func (s *Service) Get(ctx context.Context, traceID string) (domain.TraceWithSpans, error) {
	trace, err := s.store.GetTrace(ctx, traceID)
	if err != nil {
		return domain.TraceWithSpans{}, err
	}
	spans, err := s.store.ListSpans(ctx, traceID)
	if err != nil {
		return domain.TraceWithSpans{}, fmt.Errorf("list spans: %w", err)
	}
	return domain.TraceWithSpans{Trace: trace, Spans: spans}, nil
}

// List returns a project's traces, most recent first, paginated and
// optionally filtered by status.
func (s *Service) List(ctx context.Context, projectID string, filter storage.TraceFilter) ([]domain.Trace, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	traces, err := s.store.ListTraces(ctx, projectID, filter)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	return traces, nil
}

// ListSpans returns a project's spans, optionally filtered by kind, status
// or trace id.
func (s *Service) ListSpans(ctx context.Context, projectID string, filter storage.TraceFilter) ([]domain.Span, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	spans, err := s.store.ListSpansFiltered(ctx, projectID, filter)
	if err != nil {
		return nil, fmt.Errorf("list spans: %w", err)
	}
	return spans, nil
}

// ListSpansByKind samples a project's recent spans of a given kind, used by
// the drift detector to build baseline and current latency windows.
func (s *Service) ListSpansByKind(ctx context.Context, projectID string, kind domain.SpanKind, limit int) ([]domain.Span, error) {
	spans, err := s.store.ListSpansByKind(ctx, projectID, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("list spans by kind: %w", err)
	}
	return spans, nil
}

// UpdateTrace sets a trace's status and/or additively merges metadata keys.
func (s *Service) UpdateTrace(ctx context.Context, traceID string, status domain.TraceStatus, metadataMerge map[string]any) (domain.Trace, error) {
	trace, err := s.store.UpdateTrace(ctx, traceID, status, metadataMerge)
	if err != nil {
		return domain.Trace{}, err
	}
	return trace, nil
}

// AppendEvent appends a timestamped event to a span within a trace.
func (s *Service) AppendEvent(ctx context.Context, traceID, spanID, name string, attributes map[string]any) (domain.Span, error) {
	event := domain.SpanEvent{Name: name, Timestamp: time.Now().UTC(), Attributes: attributes}
	span, err := s.store.AppendSpanEvent(ctx, traceID, spanID, event)
	if err != nil {
		return domain.Span{}, err
	}
	return span, nil
}
