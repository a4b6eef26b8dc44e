package domain

import "time"

// NotificationKind identifies what produced a Notification.
type NotificationKind string

const (
	NotificationDriftAlert  NotificationKind = "drift_alert"
	NotificationReplayDone  NotificationKind = "replay_completed"
	NotificationReplayError NotificationKind = "replay_failed"
)

// Notification is a project-scoped event surfaced to the dashboard, both
// over the REST API and the live-update hub.
type Notification struct {
	ID        string
	ProjectID string
	Kind      NotificationKind
	Message   string
	Payload   map[string]any
	Read      bool
	CreatedAt time.Time
}
