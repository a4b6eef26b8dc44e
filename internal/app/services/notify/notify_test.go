package notify

import (
	"context"
	"testing"
	"time"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/storage/memory"
)

type recordingBroadcaster struct {
	events []string
}

func (r *recordingBroadcaster) Broadcast(projectID string, event string, payload any) {
	r.events = append(r.events, event)
}

func TestCreateBroadcastsToHub(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := &recordingBroadcaster{}
	svc := New(store, rec)

	if _, err := svc.Create(ctx, "p1", domain.NotificationDriftAlert, "drift found", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(rec.events) != 1 || rec.events[0] != "notification" {
		t.Fatalf("expected one broadcast event, got %v", rec.events)
	}

	list, err := svc.List(ctx, "p1", false)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 notification, got %d (err=%v)", len(list), err)
	}
}

func TestNotifyDriftAlertCreatesNotification(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store, nil)

	svc.NotifyDriftAlert(ctx, domain.DriftAlert{
		ID: "a1", ProjectID: "p1", SpanKind: domain.SpanKindLLM,
		Severity: domain.DriftSeverityHigh, DetectedAt: time.Now(),
	})

	list, err := svc.List(ctx, "p1", false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Kind != domain.NotificationDriftAlert {
		t.Fatalf("expected one drift alert notification, got %+v", list)
	}
}
