// Package storage defines the persistence interfaces consumed by Vigil's
// services. Concrete implementations live in the memory and postgres
// subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/R3E-Network/service_layer/internal/app/domain"
)

// ErrNotFound is returned by every store method when the requested entity
// does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrConflict is returned when a write would violate a uniqueness
// constraint, such as registering a second user with the same email.
var ErrConflict = errors.New("storage: conflict")

// ProjectStore persists Project records and their lazily-created settings.
type ProjectStore interface {
	CreateProject(ctx context.Context, p domain.Project) (domain.Project, error)
	GetProject(ctx context.Context, id string) (domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)

	GetSettings(ctx context.Context, projectID string) (domain.ProjectSettings, error)
	PutSettings(ctx context.Context, s domain.ProjectSettings) error
}

// APIKeyStore persists per-project API keys.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, k domain.APIKey) (domain.APIKey, error)
	GetAPIKeyByValue(ctx context.Context, key string) (domain.APIKey, error)
	ListAPIKeys(ctx context.Context, projectID string) ([]domain.APIKey, error)
	DeactivateProjectKeys(ctx context.Context, projectID string) error
}

// UserStore persists dashboard operator accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
}

// TraceFilter narrows a project-scoped span or trace listing.
type TraceFilter struct {
	Status  string
	TraceID string
	Kind    string
	Limit   int
	Offset  int
}

// TraceStore persists traces and their spans.
type TraceStore interface {
	CreateTrace(ctx context.Context, t domain.Trace) (domain.Trace, error)
	GetTrace(ctx context.Context, id string) (domain.Trace, error)
	ListTraces(ctx context.Context, projectID string, filter TraceFilter) ([]domain.Trace, error)
	EndTrace(ctx context.Context, id string, endedAt time.Time) error
	// UpdateTrace sets status (when non-empty) and additively merges
	// metadata keys (existing keys not present in the merge are untouched).
	UpdateTrace(ctx context.Context, id string, status domain.TraceStatus, metadataMerge map[string]any) (domain.Trace, error)

	CreateSpans(ctx context.Context, spans []domain.Span) error
	ListSpans(ctx context.Context, traceID string) ([]domain.Span, error)
	// ListSpansFiltered lists spans across a project's traces, optionally
	// narrowed by kind, status and trace id.
	ListSpansFiltered(ctx context.Context, projectID string, filter TraceFilter) ([]domain.Span, error)
	// ListSpansByKind returns the most recent `limit` spans of the given kind
	// within a project, ordered by StartedAt, for drift-baseline and
	// current-window sampling.
	ListSpansByKind(ctx context.Context, projectID string, kind domain.SpanKind, limit int) ([]domain.Span, error)
	// AppendSpanEvent appends an event to a span located by (traceID, spanID).
	AppendSpanEvent(ctx context.Context, traceID, spanID string, event domain.SpanEvent) (domain.Span, error)
}

// DriftStore persists drift alerts.
type DriftStore interface {
	CreateDriftAlert(ctx context.Context, a domain.DriftAlert) (domain.DriftAlert, error)
	ListDriftAlerts(ctx context.Context, projectID string, onlyOpen bool) ([]domain.DriftAlert, error)
	ResolveDriftAlert(ctx context.Context, id, resolvedBy string) (domain.DriftAlert, error)
	GetDriftSummary(ctx context.Context, projectID string) (domain.DriftSummary, error)
}

// ReplayStore persists replay runs, including crash-recovery bookkeeping.
type ReplayStore interface {
	CreateReplayRun(ctx context.Context, r domain.ReplayRun) (domain.ReplayRun, error)
	GetReplayRun(ctx context.Context, id string) (domain.ReplayRun, error)
	UpdateReplayRun(ctx context.Context, r domain.ReplayRun) (domain.ReplayRun, error)
	ListReplayRuns(ctx context.Context, projectID string) ([]domain.ReplayRun, error)
	// ListRunningReplayRuns returns every run left in the "running" state,
	// consulted once at startup to mark them failed after a crash.
	ListRunningReplayRuns(ctx context.Context) ([]domain.ReplayRun, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n domain.Notification) (domain.Notification, error)
	ListNotifications(ctx context.Context, projectID string, onlyUnread bool) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (domain.Notification, error)
}

// Store aggregates every persistence interface Vigil's services depend on.
type Store interface {
	ProjectStore
	APIKeyStore
	UserStore
	TraceStore
	DriftStore
	ReplayStore
	NotificationStore
}
