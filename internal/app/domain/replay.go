package domain

import "time"

// ReplayStatus is the state of a two-phase replay run: an estimate must be
// confirmed before it executes, and a run left running by a crash is marked
// failed at the next startup.
type ReplayStatus string

const (
	ReplayStatusEstimating ReplayStatus = "estimating"
	ReplayStatusConfirmed  ReplayStatus = "confirmed"
	ReplayStatusRunning    ReplayStatus = "running"
	ReplayStatusCompleted  ReplayStatus = "completed"
	ReplayStatusFailed     ReplayStatus = "failed"
	ReplayStatusCancelled  ReplayStatus = "cancelled"
)

// SpanMutation overrides one span's input before a replay re-executes it.
// Only spans of kind SpanKindLLM are re-executed; every other span is
// copied into the replay diff verbatim regardless of any mutation entry
// naming it.
type SpanMutation struct {
	SpanID       string
	MutatedInput map[string]any
}

// ReplayDiffEntry records, for one span in a replay run, how its output
// changed (or did not) between the original trace and the re-executed one.
type ReplayDiffEntry struct {
	SpanID         string
	SpanName       string
	OriginalInput  map[string]any
	MutatedInput   map[string]any
	OriginalOutput map[string]any
	NewOutput      map[string]any
	WasExecuted    bool
	Note           string
}

// ReplayRun tracks one estimate-confirm-execute cycle over a trace.
type ReplayRun struct {
	ID             string
	ProjectID      string
	TraceID        string
	Status         ReplayStatus
	Mutations      []SpanMutation
	EstimatedCost  float64
	ActualCost     float64
	LLMSpansCount  int
	Diff           []ReplayDiffEntry
	Error          string
	CreatedAt      time.Time
	ConfirmedAt    *time.Time
	CompletedAt    *time.Time
}
