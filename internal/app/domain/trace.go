package domain

import "time"

// SpanKind distinguishes spans that represent an LLM call (subject to cost
// estimation and replay re-execution) from every other kind of work, which
// replay always copies verbatim.
type SpanKind string

const (
	SpanKindLLM       SpanKind = "llm"
	SpanKindTool      SpanKind = "tool"
	SpanKindChain     SpanKind = "chain"
	SpanKindRetriever SpanKind = "retriever"
	SpanKindAgent     SpanKind = "agent"
	SpanKindCustom    SpanKind = "custom"
)

// ValidSpanKinds is the full enumerated set a span's Kind may take at
// ingest. Used by validation and to iterate drift detection groups.
var ValidSpanKinds = []SpanKind{
	SpanKindLLM, SpanKindTool, SpanKindChain, SpanKindRetriever, SpanKindAgent, SpanKindCustom,
}

// Valid reports whether k is one of the enumerated SpanKind values.
func (k SpanKind) Valid() bool {
	switch k {
	case SpanKindLLM, SpanKindTool, SpanKindChain, SpanKindRetriever, SpanKindAgent, SpanKindCustom:
		return true
	default:
		return false
	}
}

// TraceStatus summarises how a trace's run concluded.
type TraceStatus string

const (
	TraceStatusUnset TraceStatus = "unset"
	TraceStatusOK    TraceStatus = "ok"
	TraceStatusError TraceStatus = "error"
)

// Valid reports whether s is one of the enumerated TraceStatus values.
func (s TraceStatus) Valid() bool {
	switch s {
	case TraceStatusUnset, TraceStatusOK, TraceStatusError:
		return true
	default:
		return false
	}
}

// Trace groups the spans produced by a single run of an agent pipeline.
type Trace struct {
	ID         string
	ProjectID  string
	Name       string
	Status     TraceStatus
	ExternalID *string
	StartedAt  time.Time
	EndedAt    *time.Time
	Metadata   map[string]any
	CreatedAt  time.Time
}

// SpanEvent is a point-in-time annotation appended to a span after ingest,
// e.g. a retry or a tool-call warning.
type SpanEvent struct {
	Name       string
	Timestamp  time.Time
	Attributes map[string]any
}

// Span is one unit of work within a Trace: an LLM call, a tool invocation,
// or any other instrumented step. Input/Output are opaque JSON payloads
// whose shape depends on the span's kind.
type Span struct {
	ID           string
	TraceID      string
	ProjectID    string
	ParentSpanID *string
	Name         string
	Kind         SpanKind
	Status       TraceStatus
	Input        map[string]any
	Output       map[string]any
	Events       []SpanEvent
	StartedAt    time.Time
	EndedAt      *time.Time
	DurationMS   float64
	Metadata     map[string]any
	CreatedAt    time.Time
}

// TraceWithSpans bundles a trace and its spans, ordered by StartedAt, for
// API responses and replay input.
type TraceWithSpans struct {
	Trace Trace
	Spans []Span
}
