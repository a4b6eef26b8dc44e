// Package memory provides an in-process Store implementation backed by maps
// guarded by a single mutex. It is the default store when no Postgres DSN is
// configured, and the store used throughout the test suite.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/storage"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu sync.Mutex

	projects map[string]domain.Project
	settings map[string]domain.ProjectSettings
	apiKeys  map[string]domain.APIKey
	users    map[string]domain.User

	traces map[string]domain.Trace
	spans  map[string]domain.Span // keyed by span id

	driftAlerts map[string]domain.DriftAlert
	replayRuns  map[string]domain.ReplayRun

	notifications map[string]domain.Notification
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		projects:      map[string]domain.Project{},
		settings:      map[string]domain.ProjectSettings{},
		apiKeys:       map[string]domain.APIKey{},
		users:         map[string]domain.User{},
		traces:        map[string]domain.Trace{},
		spans:         map[string]domain.Span{},
		driftAlerts:   map[string]domain.DriftAlert{},
		replayRuns:    map[string]domain.ReplayRun{},
		notifications: map[string]domain.Notification{},
	}
}

var _ storage.Store = (*Store)(nil)

// --- projects ---

func (s *Store) CreateProject(_ context.Context, p domain.Project) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	return p, nil
}

func (s *Store) GetProject(_ context.Context, id string) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return domain.Project{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProjects(_ context.Context) ([]domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetSettings(_ context.Context, projectID string) (domain.ProjectSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[projectID]
	if !ok {
		return domain.ProjectSettings{}, storage.ErrNotFound
	}
	return st, nil
}

func (s *Store) PutSettings(_ context.Context, st domain.ProjectSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.UpdatedAt = time.Now()
	s.settings[st.ProjectID] = st
	return nil
}

// --- api keys ---

func (s *Store) CreateAPIKey(_ context.Context, k domain.APIKey) (domain.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKeys[k.ID] = k
	return k, nil
}

func (s *Store) GetAPIKeyByValue(_ context.Context, key string) (domain.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.apiKeys {
		if k.Key == key && k.Active {
			return k, nil
		}
	}
	return domain.APIKey{}, storage.ErrNotFound
}

func (s *Store) ListAPIKeys(_ context.Context, projectID string) ([]domain.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.APIKey, 0)
	for _, k := range s.apiKeys {
		if k.ProjectID == projectID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeactivateProjectKeys(_ context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, k := range s.apiKeys {
		if k.ProjectID == projectID && k.Active {
			k.Active = false
			k.DeactivatedAt = &now
			s.apiKeys[id] = k
		}
	}
	return nil
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return domain.User{}, storage.ErrConflict
		}
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, storage.ErrNotFound
}

func (s *Store) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, storage.ErrNotFound
	}
	return u, nil
}

// --- traces & spans ---

func (s *Store) CreateTrace(_ context.Context, t domain.Trace) (domain.Trace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[t.ID] = t
	return t, nil
}

func (s *Store) GetTrace(_ context.Context, id string) (domain.Trace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.traces[id]
	if !ok {
		return domain.Trace{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTraces(_ context.Context, projectID string, filter storage.TraceFilter) ([]domain.Trace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]domain.Trace, 0)
	for _, t := range s.traces {
		if t.ProjectID != projectID {
			continue
		}
		if filter.Status != "" && string(t.Status) != filter.Status {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartedAt.After(matched[j].StartedAt) })
	offset := filter.Offset
	if offset >= len(matched) {
		return []domain.Trace{}, nil
	}
	matched = matched[offset:]
	if limit := filter.Limit; limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) EndTrace(_ context.Context, id string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.traces[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.EndedAt = &endedAt
	s.traces[id] = t
	return nil
}

func (s *Store) UpdateTrace(_ context.Context, id string, status domain.TraceStatus, metadataMerge map[string]any) (domain.Trace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.traces[id]
	if !ok {
		return domain.Trace{}, storage.ErrNotFound
	}
	if status != "" {
		t.Status = status
	}
	if len(metadataMerge) > 0 {
		if t.Metadata == nil {
			t.Metadata = map[string]any{}
		}
		for k, v := range metadataMerge {
			t.Metadata[k] = v
		}
	}
	s.traces[id] = t
	return t, nil
}

func (s *Store) CreateSpans(_ context.Context, spans []domain.Span) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sp := range spans {
		s.spans[sp.ID] = sp
	}
	return nil
}

func (s *Store) ListSpans(_ context.Context, traceID string) ([]domain.Span, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Span, 0)
	for _, sp := range s.spans {
		if sp.TraceID == traceID {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *Store) ListSpansFiltered(_ context.Context, projectID string, filter storage.TraceFilter) ([]domain.Span, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]domain.Span, 0)
	for _, sp := range s.spans {
		if sp.ProjectID != projectID {
			continue
		}
		if filter.TraceID != "" && sp.TraceID != filter.TraceID {
			continue
		}
		if filter.Kind != "" && string(sp.Kind) != filter.Kind {
			continue
		}
		if filter.Status != "" && string(sp.Status) != filter.Status {
			continue
		}
		matched = append(matched, sp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartedAt.After(matched[j].StartedAt) })
	offset := filter.Offset
	if offset >= len(matched) {
		return []domain.Span{}, nil
	}
	matched = matched[offset:]
	if limit := filter.Limit; limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) AppendSpanEvent(_ context.Context, traceID, spanID string, event domain.SpanEvent) (domain.Span, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spans[spanID]
	if !ok || sp.TraceID != traceID {
		return domain.Span{}, storage.ErrNotFound
	}
	if _, ok := s.traces[traceID]; !ok {
		return domain.Span{}, storage.ErrNotFound
	}
	sp.Events = append(sp.Events, event)
	s.spans[spanID] = sp
	return sp, nil
}

func (s *Store) ListSpansByKind(_ context.Context, projectID string, kind domain.SpanKind, limit int) ([]domain.Span, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Span, 0)
	for _, sp := range s.spans {
		if sp.ProjectID == projectID && sp.Kind == kind {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// --- drift ---

func (s *Store) CreateDriftAlert(_ context.Context, a domain.DriftAlert) (domain.DriftAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driftAlerts[a.ID] = a
	return a, nil
}

func (s *Store) ListDriftAlerts(_ context.Context, projectID string, onlyOpen bool) ([]domain.DriftAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.DriftAlert, 0)
	for _, a := range s.driftAlerts {
		if a.ProjectID != projectID {
			continue
		}
		if onlyOpen && a.ResolvedAt != nil {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	return out, nil
}

func (s *Store) ResolveDriftAlert(_ context.Context, id, resolvedBy string) (domain.DriftAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.driftAlerts[id]
	if !ok {
		return domain.DriftAlert{}, storage.ErrNotFound
	}
	now := time.Now()
	a.ResolvedAt = &now
	a.ResolvedBy = &resolvedBy
	s.driftAlerts[id] = a
	return a, nil
}

func (s *Store) GetDriftSummary(_ context.Context, projectID string) (domain.DriftSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := domain.DriftSummary{ProjectID: projectID}
	for _, a := range s.driftAlerts {
		if a.ProjectID != projectID || a.ResolvedAt != nil {
			continue
		}
		summary.OpenTotal++
		switch a.Severity {
		case domain.DriftSeverityLow:
			summary.OpenLow++
		case domain.DriftSeverityMedium:
			summary.OpenMedium++
		case domain.DriftSeverityHigh:
			summary.OpenHigh++
		}
		if summary.LastChecked == nil || a.DetectedAt.After(*summary.LastChecked) {
			detected := a.DetectedAt
			summary.LastChecked = &detected
		}
	}
	return summary, nil
}

// --- replay ---

func (s *Store) CreateReplayRun(_ context.Context, r domain.ReplayRun) (domain.ReplayRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replayRuns[r.ID] = r
	return r, nil
}

func (s *Store) GetReplayRun(_ context.Context, id string) (domain.ReplayRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.replayRuns[id]
	if !ok {
		return domain.ReplayRun{}, storage.ErrNotFound
	}
	return r, nil
}

func (s *Store) UpdateReplayRun(_ context.Context, r domain.ReplayRun) (domain.ReplayRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.replayRuns[r.ID]; !ok {
		return domain.ReplayRun{}, storage.ErrNotFound
	}
	s.replayRuns[r.ID] = r
	return r, nil
}

func (s *Store) ListReplayRuns(_ context.Context, projectID string) ([]domain.ReplayRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ReplayRun, 0)
	for _, r := range s.replayRuns {
		if r.ProjectID == projectID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListRunningReplayRuns(_ context.Context) ([]domain.ReplayRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ReplayRun, 0)
	for _, r := range s.replayRuns {
		if r.Status == domain.ReplayStatusRunning {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- notifications ---

func (s *Store) CreateNotification(_ context.Context, n domain.Notification) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) ListNotifications(_ context.Context, projectID string, onlyUnread bool) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Notification, 0)
	for _, n := range s.notifications {
		if n.ProjectID != projectID {
			continue
		}
		if onlyUnread && n.Read {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id string) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return domain.Notification{}, storage.ErrNotFound
	}
	n.Read = true
	s.notifications[id] = n
	return n, nil
}
