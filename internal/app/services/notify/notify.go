// Package notify creates and lists project-scoped notifications.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/storage"
)

// Broadcaster pushes a notification to every live-update hub connection for
// a project. Implemented by hub.Hub.
type Broadcaster interface {
	Broadcast(projectID string, event string, payload any)
}

// Service creates notifications and fans them out over the live-update hub.
type Service struct {
	store storage.NotificationStore
	hub   Broadcaster
}

// New constructs a Service. hub may be nil if no live-update fan-out is
// configured (e.g. in tests).
func New(store storage.NotificationStore, hub Broadcaster) *Service {
	return &Service{store: store, hub: hub}
}

// Create persists a notification and broadcasts it to connected clients.
func (s *Service) Create(ctx context.Context, projectID string, kind domain.NotificationKind, message string, payload map[string]any) (domain.Notification, error) {
	n := domain.Notification{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Kind:      kind,
		Message:   message,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	created, err := s.store.CreateNotification(ctx, n)
	if err != nil {
		return domain.Notification{}, err
	}
	if s.hub != nil {
		s.hub.Broadcast(projectID, "notification", created)
	}
	return created, nil
}

// List returns a project's notifications, most recent first.
func (s *Service) List(ctx context.Context, projectID string, onlyUnread bool) ([]domain.Notification, error) {
	return s.store.ListNotifications(ctx, projectID, onlyUnread)
}

// MarkRead marks a notification as read.
func (s *Service) MarkRead(ctx context.Context, id string) (domain.Notification, error) {
	return s.store.MarkNotificationRead(ctx, id)
}

// NotifyDriftAlert implements drift.NotificationSink: it turns a freshly
// detected alert into a notification, so the scheduler does not need to know
// about notification storage or message formatting.
func (s *Service) NotifyDriftAlert(ctx context.Context, alert domain.DriftAlert) {
	message := "drift detected on " + string(alert.SpanKind)
	payload := map[string]any{
		"alert_id":  alert.ID,
		"span_kind": string(alert.SpanKind),
		"psi_score": alert.PSI,
		"severity":  string(alert.Severity),
	}
	if _, err := s.Create(ctx, alert.ProjectID, domain.NotificationDriftAlert, message, payload); err != nil {
		return
	}
}
