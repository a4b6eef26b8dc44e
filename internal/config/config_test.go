package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VIGIL_ENV", "")
	t.Setenv("VIGIL_HOST", "")
	t.Setenv("VIGIL_PORT", "")
	t.Setenv("VIGIL_JWT_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != Development {
		t.Errorf("expected default env development, got %s", cfg.Env)
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %s", cfg.Host)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.JWTAlgorithm != "HS256" {
		t.Errorf("expected default JWT algorithm HS256, got %s", cfg.JWTAlgorithm)
	}
	if cfg.RateLimitRequests != 120 {
		t.Errorf("expected default rate limit requests 120, got %d", cfg.RateLimitRequests)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VIGIL_ENV", "testing")
	t.Setenv("VIGIL_HOST", "127.0.0.1")
	t.Setenv("VIGIL_PORT", "9090")
	t.Setenv("VIGIL_JWT_EXPIRE_MINUTES", "30")
	t.Setenv("VIGIL_RATE_LIMIT_REQUESTS", "50")
	t.Setenv("VIGIL_RATE_LIMIT_WINDOW_SECONDS", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != Testing {
		t.Errorf("expected env testing, got %s", cfg.Env)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Errorf("expected addr 127.0.0.1:9090, got %s", cfg.Addr())
	}
	if cfg.JWTTTL().Minutes() != 30 {
		t.Errorf("expected JWT TTL 30m, got %s", cfg.JWTTTL())
	}
	if cfg.RateLimitWindow().Seconds() != 10 {
		t.Errorf("expected rate limit window 10s, got %s", cfg.RateLimitWindow())
	}
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Setenv("VIGIL_ENV", "not-a-real-environment")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid VIGIL_ENV")
	}
}

func TestValidateProductionRequiresSecrets(t *testing.T) {
	cfg := &Config{Env: Production, Port: 8080}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when production secrets are unset")
	}

	cfg.JWTSecret = "prod-secret"
	cfg.EncryptionKey = "prod-encryption-key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error once secrets are set: %v", err)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := &Config{Env: Development, Port: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}
