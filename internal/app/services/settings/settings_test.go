package settings

import (
	"context"
	"testing"

	"github.com/R3E-Network/service_layer/internal/app/storage/memory"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")[:32]

func TestGetReturnsDefaultsForUnknownProject(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(), testKey)

	got, err := svc.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PSIBaselineWindow != 100 || got.PSICurrentWindow != 20 {
		t.Fatalf("expected default windows, got %+v", got)
	}
}

func TestSetProviderKeyRoundTripsThroughResolveCredentials(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(), testKey)

	if err := svc.SetProviderKey(ctx, "p1", "openai", "sk-test-123"); err != nil {
		t.Fatalf("set provider key: %v", err)
	}

	creds, err := svc.ResolveCredentials(ctx, "p1", "openai")
	if err != nil {
		t.Fatalf("resolve credentials: %v", err)
	}
	if creds.APIKey != "sk-test-123" {
		t.Fatalf("expected round-tripped API key, got %q", creds.APIKey)
	}
}

func TestResolveCredentialsErrorsWithoutAConfiguredKey(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(), testKey)

	if _, err := svc.ResolveCredentials(ctx, "p1", "anthropic"); err == nil {
		t.Fatal("expected an error when no key is configured")
	}
}
