// Package replay implements Vigil's estimate-confirm-execute replay engine:
// a trace is re-run with one or more span inputs mutated, LLM spans are
// re-executed against the live provider while every other span is copied
// verbatim, and a run left running by a crash is marked failed at the next
// startup.
package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/service_layer/internal/app/core/service"
	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/metrics"
	"github.com/R3E-Network/service_layer/internal/app/services/llm"
	"github.com/R3E-Network/service_layer/internal/app/storage"
	"github.com/R3E-Network/service_layer/pkg/logger"
)

// providerCallRetryPolicy governs retries of a single live provider call
// during replay execution: one retry after a short backoff, since provider
// APIs occasionally fail transiently under load.
var providerCallRetryPolicy = service.RetryPolicy{
	Attempts:       2,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	Multiplier:     2,
}

// CredentialResolver decrypts a project's provider API key so the engine
// can re-execute an LLM span.
type CredentialResolver interface {
	ResolveCredentials(ctx context.Context, projectID string, provider llm.Provider) (llm.Credentials, error)
}

// Engine runs replay estimation and execution.
type Engine struct {
	traces storage.TraceStore
	runs   storage.ReplayStore
	creds  CredentialResolver
	exec   *llm.Executor
	log    *logger.Logger
	hooks  service.ObservationHooks

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// New constructs an Engine.
func New(traces storage.TraceStore, runs storage.ReplayStore, creds CredentialResolver, exec *llm.Executor, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewDefault("replay")
	}
	e := &Engine{
		traces:  traces,
		runs:    runs,
		creds:   creds,
		exec:    exec,
		log:     log,
		running: map[string]context.CancelFunc{},
	}
	e.hooks = service.ObservationHooks{
		OnComplete: func(_ context.Context, meta map[string]string, err error, d time.Duration) {
			if err != nil {
				e.log.Errorf("replay: span %s provider call failed after %s: %v", meta["span_id"], d, err)
			} else {
				e.log.Debugf("replay: span %s provider call completed in %s", meta["span_id"], d)
			}
		},
	}
	return e
}

// Estimate creates a replay run in the "estimating" state: it loads the
// trace and, for every span of kind SpanKindLLM whose provider can be
// detected, merges any declared mutation into that span's input and adds
// its estimated cost to the total. A mutation entry is optional per span —
// an unmutated LLM span with a known provider still contributes its cost,
// since replay always re-executes it.
func (e *Engine) Estimate(ctx context.Context, projectID, traceID string, mutations []domain.SpanMutation) (domain.ReplayRun, error) {
	spans, err := e.traces.ListSpans(ctx, traceID)
	if err != nil {
		return domain.ReplayRun{}, fmt.Errorf("load spans for estimate: %w", err)
	}
	mutationBySpan := make(map[string]domain.SpanMutation, len(mutations))
	for _, m := range mutations {
		mutationBySpan[m.SpanID] = m
	}

	var total float64
	var llmSpansCount int
	for _, sp := range spans {
		if sp.Kind != domain.SpanKindLLM {
			continue
		}
		provider := llm.DetectProvider(sp.Name, sp.Input)
		if provider == llm.ProviderUnknown {
			continue
		}
		llmSpansCount++
		input := sp.Input
		if m, ok := mutationBySpan[sp.ID]; ok {
			input = mergeInput(sp.Input, m.MutatedInput)
		}
		total += llm.EstimateCost(provider, input)
	}

	run := domain.ReplayRun{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		TraceID:       traceID,
		Status:        domain.ReplayStatusEstimating,
		Mutations:     mutations,
		EstimatedCost: total,
		LLMSpansCount: llmSpansCount,
		CreatedAt:     time.Now(),
	}
	return e.runs.CreateReplayRun(ctx, run)
}

// mergeInput overlays mutation onto original, with mutation's keys winning.
// Neither argument is modified.
func mergeInput(original, mutation map[string]any) map[string]any {
	merged := make(map[string]any, len(original)+len(mutation))
	for k, v := range original {
		merged[k] = v
	}
	for k, v := range mutation {
		merged[k] = v
	}
	return merged
}

// Confirm moves a run from "estimating" to "confirmed" and launches its
// background execution. It returns an error if the run is not currently
// estimating.
func (e *Engine) Confirm(ctx context.Context, runID string) (domain.ReplayRun, error) {
	run, err := e.runs.GetReplayRun(ctx, runID)
	if err != nil {
		return domain.ReplayRun{}, err
	}
	if run.Status != domain.ReplayStatusEstimating {
		return domain.ReplayRun{}, fmt.Errorf("replay run %s is not awaiting confirmation (status=%s)", runID, run.Status)
	}

	now := time.Now()
	run.Status = domain.ReplayStatusConfirmed
	run.ConfirmedAt = &now
	run, err = e.runs.UpdateReplayRun(ctx, run)
	if err != nil {
		return domain.ReplayRun{}, err
	}

	e.launch(run)
	return run, nil
}

// Cancel marks an estimating or confirmed run as cancelled. A running
// execution cannot be cancelled once Confirm has launched its goroutine.
func (e *Engine) Cancel(ctx context.Context, runID string) (domain.ReplayRun, error) {
	run, err := e.runs.GetReplayRun(ctx, runID)
	if err != nil {
		return domain.ReplayRun{}, err
	}
	if run.Status != domain.ReplayStatusEstimating && run.Status != domain.ReplayStatusConfirmed {
		return domain.ReplayRun{}, fmt.Errorf("replay run %s cannot be cancelled from status %s", runID, run.Status)
	}
	run.Status = domain.ReplayStatusCancelled
	updated, err := e.runs.UpdateReplayRun(ctx, run)
	if err == nil {
		metrics.RecordReplayRun(string(updated.Status), 0)
	}
	return updated, err
}

// RecoverCrashedRuns marks every run left in the "running" state at startup
// as failed, since its in-memory execution goroutine did not survive the
// crash. Called once during application startup, before the drift scheduler
// and HTTP listener come up.
func (e *Engine) RecoverCrashedRuns(ctx context.Context) error {
	stuck, err := e.runs.ListRunningReplayRuns(ctx)
	if err != nil {
		return fmt.Errorf("list running replay runs: %w", err)
	}
	for _, run := range stuck {
		run.Status = domain.ReplayStatusFailed
		run.Error = "Server restarted during execution"
		completed := time.Now()
		run.CompletedAt = &completed
		if _, err := e.runs.UpdateReplayRun(ctx, run); err != nil {
			e.log.Errorf("replay: failed to mark run %s as failed after crash recovery: %v", run.ID, err)
		}
	}
	if len(stuck) > 0 {
		e.log.Infof("replay: recovered %d run(s) interrupted by restart", len(stuck))
	}
	return nil
}

func (e *Engine) launch(run domain.ReplayRun) {
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.running[run.ID] = cancel
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.running, run.ID)
			e.mu.Unlock()
		}()
		e.execute(ctx, run)
	}()
}

func (e *Engine) execute(ctx context.Context, run domain.ReplayRun) {
	start := time.Now()
	run.Status = domain.ReplayStatusRunning
	run, err := e.runs.UpdateReplayRun(ctx, run)
	if err != nil {
		e.log.Errorf("replay: mark run %s running: %v", run.ID, err)
		return
	}

	diff, actualCost, execErr := e.replayTrace(ctx, run)

	now := time.Now()
	run.CompletedAt = &now
	run.Diff = diff
	run.ActualCost = actualCost
	if execErr != nil {
		run.Status = domain.ReplayStatusFailed
		run.Error = execErr.Error()
	} else {
		run.Status = domain.ReplayStatusCompleted
	}
	metrics.RecordReplayRun(string(run.Status), time.Since(start))

	if _, err := e.runs.UpdateReplayRun(ctx, run); err != nil {
		e.log.Errorf("replay: persist completed run %s: %v", run.ID, err)
	}
}

// replayTrace walks every span of the run's trace in start order. Every span
// of kind SpanKindLLM with a detectable provider is re-executed against the
// live provider — with any declared mutation merged into its original input,
// mutation or not — while every other span is copied into the diff verbatim
// with WasExecuted=false.
func (e *Engine) replayTrace(ctx context.Context, run domain.ReplayRun) ([]domain.ReplayDiffEntry, float64, error) {
	spans, err := e.traces.ListSpans(ctx, run.TraceID)
	if err != nil {
		return nil, 0, fmt.Errorf("load spans for replay: %w", err)
	}

	mutationBySpan := make(map[string]domain.SpanMutation, len(run.Mutations))
	for _, m := range run.Mutations {
		mutationBySpan[m.SpanID] = m
	}

	var diff []domain.ReplayDiffEntry
	var totalCost float64

	for _, sp := range spans {
		entry := domain.ReplayDiffEntry{
			SpanID:         sp.ID,
			SpanName:       sp.Name,
			OriginalInput:  sp.Input,
			OriginalOutput: sp.Output,
			NewOutput:      sp.Output,
		}

		mutation, mutated := mutationBySpan[sp.ID]
		if mutated {
			entry.MutatedInput = mutation.MutatedInput
		}

		if sp.Kind != domain.SpanKindLLM {
			entry.Note = "Copied (not re-executed)"
			diff = append(diff, entry)
			continue
		}

		provider := llm.DetectProvider(sp.Name, sp.Input)
		if provider == llm.ProviderUnknown {
			entry.Note = "Copied (not re-executed)"
			diff = append(diff, entry)
			continue
		}

		effectiveInput := sp.Input
		if mutated {
			effectiveInput = mergeInput(sp.Input, mutation.MutatedInput)
		}

		creds, err := e.creds.ResolveCredentials(ctx, run.ProjectID, provider)
		if err != nil {
			entry.Note = "Copied (not re-executed)"
			diff = append(diff, entry)
			continue
		}

		done := service.StartObservation(ctx, e.hooks, map[string]string{"span_id": sp.ID, "provider": string(provider)})
		var result llm.Result
		err = service.Retry(ctx, providerCallRetryPolicy, func() error {
			var execErr error
			result, execErr = e.exec.Execute(ctx, provider, creds, effectiveInput)
			return execErr
		})
		done(err)
		if err != nil {
			e.log.Errorf("replay: re-execute span %s: %v", sp.ID, err)
			entry.NewOutput = map[string]any{"error": "LLM call failed"}
			entry.WasExecuted = true
			diff = append(diff, entry)
			continue
		}

		entry.NewOutput = map[string]any{
			"provider": string(result.Provider),
			"model":    result.Model,
			"content":  result.Content,
			"usage":    result.Usage,
			"raw":      result.Raw,
		}
		entry.WasExecuted = true
		totalCost += llm.EstimateCost(provider, effectiveInput)
		diff = append(diff, entry)
	}

	return diff, totalCost, nil
}
