package app

import (
	"context"
	"testing"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/services/traces"
	"github.com/google/uuid"
)

func TestApplicationLifecycle(t *testing.T) {
	application, err := New(NewMemoryStoresForTest(), nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	project, err := application.Store.CreateProject(ctx, domain.Project{ID: uuid.NewString(), Name: "acme"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	trace, err := application.Traces.Ingest(ctx, project.ID, "", "checkout", []traces.IngestSpan{
		{Name: "llm-call", Kind: domain.SpanKindLLM},
	})
	if err != nil {
		t.Fatalf("ingest trace: %v", err)
	}
	if trace.ProjectID != project.ID {
		t.Fatalf("expected trace scoped to project %s, got %s", project.ID, trace.ProjectID)
	}

	if err := application.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestApplicationDescriptors(t *testing.T) {
	application, err := New(Stores{}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	descriptors := application.Descriptors()
	if len(descriptors) == 0 {
		t.Fatal("expected at least the drift scheduler to be registered")
	}
}
