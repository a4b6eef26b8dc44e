// Package postgres implements storage.Store against a PostgreSQL database
// using plain database/sql and github.com/lib/pq, with JSON-marshaled
// metadata columns.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/storage"
)

// Store is a PostgreSQL-backed storage.Store.
type Store struct {
	db *sql.DB
}

// New wraps an already-connected *sql.DB.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ storage.Store = (*Store)(nil)

func marshal(v any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func unmarshalMap(raw []byte, out *map[string]any) error {
	if len(raw) == 0 {
		*out = map[string]any{}
		return nil
	}
	return json.Unmarshal(raw, out)
}

// --- projects ---

func (s *Store) CreateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Name, p.Description, p.CreatedAt)
	if err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.Project{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Project, 0)
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetSettings(ctx context.Context, projectID string) (domain.ProjectSettings, error) {
	var st domain.ProjectSettings
	st.ProjectID = projectID
	var providerKeys, thresholds, defaultModels []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT provider_keys, psi_baseline_window, psi_current_window, drift_thresholds,
		        default_models, drift_check_enabled, drift_check_interval_minutes, updated_at
		 FROM project_settings WHERE project_id = $1`, projectID,
	).Scan(&providerKeys, &st.PSIBaselineWindow, &st.PSICurrentWindow, &thresholds,
		&defaultModels, &st.DriftCheckEnabled, &st.DriftCheckIntervalMinutes, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.ProjectSettings{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.ProjectSettings{}, fmt.Errorf("get settings: %w", err)
	}
	if err := json.Unmarshal(providerKeys, &st.ProviderKeys); err != nil {
		return domain.ProjectSettings{}, fmt.Errorf("decode provider keys: %w", err)
	}
	if err := json.Unmarshal(thresholds, &st.DriftThresholds); err != nil {
		return domain.ProjectSettings{}, fmt.Errorf("decode drift thresholds: %w", err)
	}
	if err := json.Unmarshal(defaultModels, &st.DefaultModels); err != nil {
		return domain.ProjectSettings{}, fmt.Errorf("decode default models: %w", err)
	}
	return st, nil
}

func (s *Store) PutSettings(ctx context.Context, st domain.ProjectSettings) error {
	providerKeys, err := marshal(st.ProviderKeys)
	if err != nil {
		return fmt.Errorf("encode provider keys: %w", err)
	}
	thresholds, err := marshal(st.DriftThresholds)
	if err != nil {
		return fmt.Errorf("encode drift thresholds: %w", err)
	}
	defaultModels, err := marshal(st.DefaultModels)
	if err != nil {
		return fmt.Errorf("encode default models: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO project_settings (project_id, provider_keys, psi_baseline_window, psi_current_window,
		   drift_thresholds, default_models, drift_check_enabled, drift_check_interval_minutes, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 ON CONFLICT (project_id) DO UPDATE SET
		   provider_keys = EXCLUDED.provider_keys,
		   psi_baseline_window = EXCLUDED.psi_baseline_window,
		   psi_current_window = EXCLUDED.psi_current_window,
		   drift_thresholds = EXCLUDED.drift_thresholds,
		   default_models = EXCLUDED.default_models,
		   drift_check_enabled = EXCLUDED.drift_check_enabled,
		   drift_check_interval_minutes = EXCLUDED.drift_check_interval_minutes,
		   updated_at = now()`,
		st.ProjectID, providerKeys, st.PSIBaselineWindow, st.PSICurrentWindow, thresholds,
		defaultModels, st.DriftCheckEnabled, st.DriftCheckIntervalMinutes)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

// --- api keys ---

func (s *Store) CreateAPIKey(ctx context.Context, k domain.APIKey) (domain.APIKey, error) {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, project_id, name, key, active, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		k.ID, k.ProjectID, k.Name, k.Key, k.Active, k.CreatedAt)
	if err != nil {
		return domain.APIKey{}, fmt.Errorf("insert api key: %w", err)
	}
	return k, nil
}

func (s *Store) GetAPIKeyByValue(ctx context.Context, key string) (domain.APIKey, error) {
	var k domain.APIKey
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, name, key, active, created_at, deactivated_at
		 FROM api_keys WHERE key = $1 AND active = true`, key,
	).Scan(&k.ID, &k.ProjectID, &k.Name, &k.Key, &k.Active, &k.CreatedAt, &k.DeactivatedAt)
	if err == sql.ErrNoRows {
		return domain.APIKey{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.APIKey{}, fmt.Errorf("get api key: %w", err)
	}
	return k, nil
}

func (s *Store) ListAPIKeys(ctx context.Context, projectID string) ([]domain.APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, key, active, created_at, deactivated_at
		 FROM api_keys WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	out := make([]domain.APIKey, 0)
	for rows.Next() {
		var k domain.APIKey
		if err := rows.Scan(&k.ID, &k.ProjectID, &k.Name, &k.Key, &k.Active, &k.CreatedAt, &k.DeactivatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *Store) DeactivateProjectKeys(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET active = false, deactivated_at = now() WHERE project_id = $1 AND active = true`,
		projectID)
	if err != nil {
		return fmt.Errorf("deactivate api keys: %w", err)
	}
	return nil
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domain.User{}, storage.ErrConflict
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.User{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.User{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// --- traces & spans ---

const traceColumns = `id, project_id, name, status, external_id, started_at, ended_at, metadata, created_at`

func scanTrace(row interface{ Scan(...any) error }) (domain.Trace, error) {
	var t domain.Trace
	var metadata []byte
	var status string
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Name, &status, &t.ExternalID, &t.StartedAt, &t.EndedAt, &metadata, &t.CreatedAt); err != nil {
		return domain.Trace{}, err
	}
	t.Status = domain.TraceStatus(status)
	if err := unmarshalMap(metadata, &t.Metadata); err != nil {
		return domain.Trace{}, err
	}
	return t, nil
}

func (s *Store) CreateTrace(ctx context.Context, t domain.Trace) (domain.Trace, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.Status == "" {
		t.Status = domain.TraceStatusUnset
	}
	metadata, err := marshal(t.Metadata)
	if err != nil {
		return domain.Trace{}, fmt.Errorf("encode trace metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO traces (id, project_id, name, status, external_id, started_at, ended_at, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.ProjectID, t.Name, string(t.Status), t.ExternalID, t.StartedAt, t.EndedAt, metadata, t.CreatedAt)
	if err != nil {
		return domain.Trace{}, fmt.Errorf("insert trace: %w", err)
	}
	return t, nil
}

func (s *Store) GetTrace(ctx context.Context, id string) (domain.Trace, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+traceColumns+` FROM traces WHERE id = $1`, id)
	t, err := scanTrace(row)
	if err == sql.ErrNoRows {
		return domain.Trace{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Trace{}, fmt.Errorf("get trace: %w", err)
	}
	return t, nil
}

func (s *Store) ListTraces(ctx context.Context, projectID string, filter storage.TraceFilter) ([]domain.Trace, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + traceColumns + ` FROM traces WHERE project_id = $1`
	args := []any{projectID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Trace, 0)
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTrace sets status (when non-empty) and additively merges metadata:
// it loads the current row, merges in the new keys, then writes back.
func (s *Store) UpdateTrace(ctx context.Context, id string, status domain.TraceStatus, metadataMerge map[string]any) (domain.Trace, error) {
	current, err := s.GetTrace(ctx, id)
	if err != nil {
		return domain.Trace{}, err
	}
	if status != "" {
		current.Status = status
	}
	if len(metadataMerge) > 0 {
		if current.Metadata == nil {
			current.Metadata = map[string]any{}
		}
		for k, v := range metadataMerge {
			current.Metadata[k] = v
		}
	}
	metadata, err := marshal(current.Metadata)
	if err != nil {
		return domain.Trace{}, fmt.Errorf("encode trace metadata: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE traces SET status = $2, metadata = $3 WHERE id = $1`,
		id, string(current.Status), metadata)
	if err != nil {
		return domain.Trace{}, fmt.Errorf("update trace: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Trace{}, fmt.Errorf("update trace rows affected: %w", err)
	}
	if n == 0 {
		return domain.Trace{}, storage.ErrNotFound
	}
	return current, nil
}

func (s *Store) EndTrace(ctx context.Context, id string, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE traces SET ended_at = $1 WHERE id = $2`, endedAt, id)
	if err != nil {
		return fmt.Errorf("end trace: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end trace rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CreateSpans(ctx context.Context, spans []domain.Span) error {
	if len(spans) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin span tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO spans (id, trace_id, project_id, parent_span_id, name, kind, status, input, output, started_at, ended_at, duration_ms, metadata, events, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`)
	if err != nil {
		return fmt.Errorf("prepare span insert: %w", err)
	}
	defer stmt.Close()

	for _, sp := range spans {
		if sp.ID == "" {
			sp.ID = uuid.NewString()
		}
		if sp.CreatedAt.IsZero() {
			sp.CreatedAt = time.Now()
		}
		if sp.Status == "" {
			sp.Status = domain.TraceStatusUnset
		}
		input, err := marshal(sp.Input)
		if err != nil {
			return fmt.Errorf("encode span input: %w", err)
		}
		output, err := marshal(sp.Output)
		if err != nil {
			return fmt.Errorf("encode span output: %w", err)
		}
		metadata, err := marshal(sp.Metadata)
		if err != nil {
			return fmt.Errorf("encode span metadata: %w", err)
		}
		events, err := marshal(sp.Events)
		if err != nil {
			return fmt.Errorf("encode span events: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			sp.ID, sp.TraceID, sp.ProjectID, sp.ParentSpanID, sp.Name, sp.Kind, string(sp.Status),
			input, output, sp.StartedAt, sp.EndedAt, sp.DurationMS, metadata, events, sp.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert span: %w", err)
		}
	}
	return tx.Commit()
}

func scanSpan(row interface{ Scan(...any) error }) (domain.Span, error) {
	var sp domain.Span
	var input, output, metadata, events []byte
	var kind, status string
	if err := row.Scan(&sp.ID, &sp.TraceID, &sp.ProjectID, &sp.ParentSpanID, &sp.Name, &kind, &status,
		&input, &output, &sp.StartedAt, &sp.EndedAt, &sp.DurationMS, &metadata, &events, &sp.CreatedAt); err != nil {
		return domain.Span{}, err
	}
	sp.Kind = domain.SpanKind(kind)
	sp.Status = domain.TraceStatus(status)
	if err := unmarshalMap(input, &sp.Input); err != nil {
		return domain.Span{}, err
	}
	if err := unmarshalMap(output, &sp.Output); err != nil {
		return domain.Span{}, err
	}
	if err := unmarshalMap(metadata, &sp.Metadata); err != nil {
		return domain.Span{}, err
	}
	if len(events) > 0 {
		if err := json.Unmarshal(events, &sp.Events); err != nil {
			return domain.Span{}, err
		}
	}
	return sp, nil
}

const spanColumns = `id, trace_id, project_id, parent_span_id, name, kind, status, input, output, started_at, ended_at, duration_ms, metadata, events, created_at`

func (s *Store) ListSpans(ctx context.Context, traceID string) ([]domain.Span, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+spanColumns+` FROM spans WHERE trace_id = $1 ORDER BY started_at`, traceID)
	if err != nil {
		return nil, fmt.Errorf("list spans: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Span, 0)
	for rows.Next() {
		sp, err := scanSpan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// ListSpansFiltered lists spans across a project's traces, optionally
// narrowed by kind, status and trace id.
func (s *Store) ListSpansFiltered(ctx context.Context, projectID string, filter storage.TraceFilter) ([]domain.Span, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + spanColumns + ` FROM spans WHERE project_id = $1`
	args := []any{projectID}
	if filter.TraceID != "" {
		args = append(args, filter.TraceID)
		query += fmt.Sprintf(" AND trace_id = $%d", len(args))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list spans filtered: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Span, 0)
	for rows.Next() {
		sp, err := scanSpan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// AppendSpanEvent appends an event to a span located by (traceID, spanID),
// failing with ErrNotFound if either the trace or the span is missing.
func (s *Store) AppendSpanEvent(ctx context.Context, traceID, spanID string, event domain.SpanEvent) (domain.Span, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+spanColumns+` FROM spans WHERE id = $1 AND trace_id = $2`, spanID, traceID)
	sp, err := scanSpan(row)
	if err == sql.ErrNoRows {
		return domain.Span{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Span{}, fmt.Errorf("get span: %w", err)
	}
	sp.Events = append(sp.Events, event)
	events, err := marshal(sp.Events)
	if err != nil {
		return domain.Span{}, fmt.Errorf("encode span events: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE spans SET events = $2 WHERE id = $1`, sp.ID, events); err != nil {
		return domain.Span{}, fmt.Errorf("append span event: %w", err)
	}
	return sp, nil
}

func (s *Store) ListSpansByKind(ctx context.Context, projectID string, kind domain.SpanKind, limit int) ([]domain.Span, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+spanColumns+` FROM spans WHERE project_id = $1 AND kind = $2 ORDER BY started_at DESC LIMIT $3`,
		projectID, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("list spans by kind: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Span, 0)
	for rows.Next() {
		sp, err := scanSpan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// --- drift ---

func (s *Store) CreateDriftAlert(ctx context.Context, a domain.DriftAlert) (domain.DriftAlert, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.DetectedAt.IsZero() {
		a.DetectedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drift_alerts (id, project_id, span_kind, metric, psi, severity, baseline_mean, current_mean, baseline_count, current_count, detected_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.ProjectID, string(a.SpanKind), a.Metric, a.PSI, string(a.Severity), a.BaselineMean, a.CurrentMean, a.BaselineCount, a.CurrentCount, a.DetectedAt)
	if err != nil {
		return domain.DriftAlert{}, fmt.Errorf("insert drift alert: %w", err)
	}
	return a, nil
}

func scanDriftAlert(row interface{ Scan(...any) error }) (domain.DriftAlert, error) {
	var a domain.DriftAlert
	var severity, spanKind string
	if err := row.Scan(&a.ID, &a.ProjectID, &spanKind, &a.Metric, &a.PSI, &severity,
		&a.BaselineMean, &a.CurrentMean, &a.BaselineCount, &a.CurrentCount, &a.DetectedAt, &a.ResolvedAt, &a.ResolvedBy); err != nil {
		return domain.DriftAlert{}, err
	}
	a.Severity = domain.DriftSeverity(severity)
	a.SpanKind = domain.SpanKind(spanKind)
	return a, nil
}

const driftAlertColumns = `id, project_id, span_kind, metric, psi, severity, baseline_mean, current_mean, baseline_count, current_count, detected_at, resolved_at, resolved_by`

func (s *Store) ListDriftAlerts(ctx context.Context, projectID string, onlyOpen bool) ([]domain.DriftAlert, error) {
	query := `SELECT ` + driftAlertColumns + ` FROM drift_alerts WHERE project_id = $1`
	if onlyOpen {
		query += ` AND resolved_at IS NULL`
	}
	query += ` ORDER BY detected_at DESC`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list drift alerts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DriftAlert, 0)
	for rows.Next() {
		a, err := scanDriftAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan drift alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ResolveDriftAlert(ctx context.Context, id, resolvedBy string) (domain.DriftAlert, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE drift_alerts SET resolved_at = now(), resolved_by = $2
		 WHERE id = $1 RETURNING `+driftAlertColumns, id, resolvedBy)
	a, err := scanDriftAlert(row)
	if err == sql.ErrNoRows {
		return domain.DriftAlert{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.DriftAlert{}, fmt.Errorf("resolve drift alert: %w", err)
	}
	return a, nil
}

func (s *Store) GetDriftSummary(ctx context.Context, projectID string) (domain.DriftSummary, error) {
	summary := domain.DriftSummary{ProjectID: projectID}
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE resolved_at IS NULL),
		   COUNT(*) FILTER (WHERE resolved_at IS NULL AND severity = 'low'),
		   COUNT(*) FILTER (WHERE resolved_at IS NULL AND severity = 'medium'),
		   COUNT(*) FILTER (WHERE resolved_at IS NULL AND severity = 'high'),
		   MAX(detected_at)
		 FROM drift_alerts WHERE project_id = $1`, projectID,
	).Scan(&summary.OpenTotal, &summary.OpenLow, &summary.OpenMedium, &summary.OpenHigh, &summary.LastChecked)
	if err != nil {
		return domain.DriftSummary{}, fmt.Errorf("drift summary: %w", err)
	}
	return summary, nil
}

// --- replay ---

func (s *Store) CreateReplayRun(ctx context.Context, r domain.ReplayRun) (domain.ReplayRun, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	mutations, err := marshal(r.Mutations)
	if err != nil {
		return domain.ReplayRun{}, fmt.Errorf("encode mutations: %w", err)
	}
	diff, err := marshal(r.Diff)
	if err != nil {
		return domain.ReplayRun{}, fmt.Errorf("encode diff: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO replay_runs (id, project_id, trace_id, status, mutations, estimated_cost, actual_cost, llm_spans_count, diff, error, created_at, confirmed_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.ProjectID, r.TraceID, string(r.Status), mutations, r.EstimatedCost, r.ActualCost, r.LLMSpansCount, diff, r.Error, r.CreatedAt, r.ConfirmedAt, r.CompletedAt)
	if err != nil {
		return domain.ReplayRun{}, fmt.Errorf("insert replay run: %w", err)
	}
	return r, nil
}

func scanReplayRun(row interface{ Scan(...any) error }) (domain.ReplayRun, error) {
	var r domain.ReplayRun
	var status string
	var mutations, diff []byte
	if err := row.Scan(&r.ID, &r.ProjectID, &r.TraceID, &status, &mutations, &r.EstimatedCost, &r.ActualCost, &r.LLMSpansCount,
		&diff, &r.Error, &r.CreatedAt, &r.ConfirmedAt, &r.CompletedAt); err != nil {
		return domain.ReplayRun{}, err
	}
	r.Status = domain.ReplayStatus(status)
	if len(mutations) > 0 {
		if err := json.Unmarshal(mutations, &r.Mutations); err != nil {
			return domain.ReplayRun{}, err
		}
	}
	if len(diff) > 0 {
		if err := json.Unmarshal(diff, &r.Diff); err != nil {
			return domain.ReplayRun{}, err
		}
	}
	return r, nil
}

const replayRunColumns = `id, project_id, trace_id, status, mutations, estimated_cost, actual_cost, llm_spans_count, diff, error, created_at, confirmed_at, completed_at`

func (s *Store) GetReplayRun(ctx context.Context, id string) (domain.ReplayRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+replayRunColumns+` FROM replay_runs WHERE id = $1`, id)
	r, err := scanReplayRun(row)
	if err == sql.ErrNoRows {
		return domain.ReplayRun{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.ReplayRun{}, fmt.Errorf("get replay run: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateReplayRun(ctx context.Context, r domain.ReplayRun) (domain.ReplayRun, error) {
	mutations, err := marshal(r.Mutations)
	if err != nil {
		return domain.ReplayRun{}, fmt.Errorf("encode mutations: %w", err)
	}
	diff, err := marshal(r.Diff)
	if err != nil {
		return domain.ReplayRun{}, fmt.Errorf("encode diff: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE replay_runs SET status = $2, mutations = $3, estimated_cost = $4, actual_cost = $5,
		   llm_spans_count = $6, diff = $7, error = $8, confirmed_at = $9, completed_at = $10 WHERE id = $1`,
		r.ID, string(r.Status), mutations, r.EstimatedCost, r.ActualCost, r.LLMSpansCount, diff, r.Error, r.ConfirmedAt, r.CompletedAt)
	if err != nil {
		return domain.ReplayRun{}, fmt.Errorf("update replay run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.ReplayRun{}, fmt.Errorf("update replay run rows affected: %w", err)
	}
	if n == 0 {
		return domain.ReplayRun{}, storage.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListReplayRuns(ctx context.Context, projectID string) ([]domain.ReplayRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+replayRunColumns+` FROM replay_runs WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list replay runs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ReplayRun, 0)
	for rows.Next() {
		r, err := scanReplayRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan replay run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListRunningReplayRuns(ctx context.Context) ([]domain.ReplayRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+replayRunColumns+` FROM replay_runs WHERE status = $1`, string(domain.ReplayStatusRunning))
	if err != nil {
		return nil, fmt.Errorf("list running replay runs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ReplayRun, 0)
	for rows.Next() {
		r, err := scanReplayRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan replay run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- notifications ---

func (s *Store) CreateNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	payload, err := marshal(n.Payload)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("encode payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, project_id, kind, message, payload, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.ProjectID, string(n.Kind), n.Message, payload, n.Read, n.CreatedAt)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

func scanNotification(row interface{ Scan(...any) error }) (domain.Notification, error) {
	var n domain.Notification
	var kind string
	var payload []byte
	if err := row.Scan(&n.ID, &n.ProjectID, &kind, &n.Message, &payload, &n.Read, &n.CreatedAt); err != nil {
		return domain.Notification{}, err
	}
	n.Kind = domain.NotificationKind(kind)
	if err := unmarshalMap(payload, &n.Payload); err != nil {
		return domain.Notification{}, err
	}
	return n, nil
}

const notificationColumns = `id, project_id, kind, message, payload, read, created_at`

func (s *Store) ListNotifications(ctx context.Context, projectID string, onlyUnread bool) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE project_id = $1`
	if onlyUnread {
		query += ` AND read = false`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) (domain.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE notifications SET read = true WHERE id = $1 RETURNING `+notificationColumns, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return domain.Notification{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Notification{}, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}
