package app

import (
	"net/http"
	"testing"
	"time"

	core "github.com/R3E-Network/service_layer/internal/app/core/service"
)

type fakeEnv map[string]string

func (f fakeEnv) Lookup(key string) string {
	return f[key]
}

func TestResolveBuilderOptions_FromEnvironment(t *testing.T) {
	env := fakeEnv{
		"VIGIL_JWT_SECRET":     "from-env-secret",
		"VIGIL_JWT_TTL":        "2h",
		"VIGIL_ENCRYPTION_KEY": "from-env-encryption-key",
		"VIGIL_DEV_API_KEY":    "dev-key-123",
	}
	resolved := resolveBuilderOptions(WithEnvironment(env))
	if resolved.runtime.JWTSecret != "from-env-secret" {
		t.Fatalf("expected JWT secret from env, got %q", resolved.runtime.JWTSecret)
	}
	if resolved.runtime.JWTTTL != 2*time.Hour {
		t.Fatalf("expected JWT TTL 2h, got %s", resolved.runtime.JWTTTL)
	}
	if resolved.runtime.EncryptionKey != "from-env-encryption-key" {
		t.Fatalf("expected encryption key from env, got %q", resolved.runtime.EncryptionKey)
	}
	if resolved.runtime.DevAPIKey != "dev-key-123" {
		t.Fatalf("expected dev API key from env, got %q", resolved.runtime.DevAPIKey)
	}
}

func TestResolveBuilderOptions_WithRuntimeConfigOverridesEnv(t *testing.T) {
	env := fakeEnv{"VIGIL_JWT_SECRET": "from-env"}
	cfg := RuntimeConfig{JWTSecret: "from-explicit-config"}
	resolved := resolveBuilderOptions(WithEnvironment(env), WithRuntimeConfig(cfg))
	if resolved.runtime.JWTSecret != "from-explicit-config" {
		t.Fatalf("expected explicit runtime config to win, got %q", resolved.runtime.JWTSecret)
	}
}

func TestResolveBuilderOptions_DefaultsWhenUnset(t *testing.T) {
	resolved := resolveBuilderOptions()
	if resolved.runtime.JWTSecret == "" {
		t.Fatal("expected a non-empty development fallback JWT secret")
	}
	if resolved.runtime.JWTTTL <= 0 {
		t.Fatal("expected a positive default JWT TTL")
	}
	if resolved.tracer == nil {
		t.Fatal("expected tracer to default to a non-nil noop implementation")
	}
}

func TestResolveBuilderOptions_CustomHTTPClient(t *testing.T) {
	client := &http.Client{Timeout: time.Second}
	resolved := resolveBuilderOptions(WithHTTPClient(client))
	if resolved.httpClient != client {
		t.Fatalf("custom http client not applied")
	}
}

func TestResolveBuilderOptions_WithTracer(t *testing.T) {
	tracer := core.NoopTracer
	resolved := resolveBuilderOptions(WithTracer(tracer))
	if resolved.tracer != tracer {
		t.Fatalf("custom tracer not applied")
	}
}
