package main

import (
	"context"
	"testing"

	core "github.com/R3E-Network/service_layer/internal/app/core/service"
	"github.com/R3E-Network/service_layer/internal/config"
	"github.com/R3E-Network/service_layer/pkg/logger"
)

func TestResolveDSNPrecedence(t *testing.T) {
	cfg := &config.Config{DatabaseURL: "postgres://env"}

	if got := resolveDSN("postgres://flag", cfg); got != "postgres://flag" {
		t.Fatalf("expected flag to win, got %q", got)
	}
	if got := resolveDSN("", cfg); got != "postgres://env" {
		t.Fatalf("expected config DSN when flag empty, got %q", got)
	}
	if got := resolveDSN("", &config.Config{}); got != "" {
		t.Fatalf("expected empty DSN when nothing provided, got %q", got)
	}
}

func TestDetermineAddr(t *testing.T) {
	cfg := &config.Config{Host: "127.0.0.1", Port: 9090}

	if got := determineAddr(":4000", cfg); got != ":4000" {
		t.Fatalf("expected flag to win, got %q", got)
	}
	if got := determineAddr("", cfg); got != "127.0.0.1:9090" {
		t.Fatalf("expected config addr, got %q", got)
	}
	if got := determineAddr("", &config.Config{}); got != "0.0.0.0:8080" {
		t.Fatalf("expected default addr, got %q", got)
	}
}

func TestConfigureTracingNoopWithoutEndpoint(t *testing.T) {
	log := logger.NewDefault("test")
	tracer, shutdown := configureTracing(context.Background(), &config.Config{}, log)
	if tracer != core.NoopTracer {
		t.Fatalf("expected noop tracer when no endpoint configured")
	}
	if shutdown != nil {
		t.Fatalf("expected nil shutdown func when no endpoint configured")
	}
}

func TestConfigureTracingReturnsUsableTracerWithEndpoint(t *testing.T) {
	log := logger.NewDefault("test")
	cfg := &config.Config{OTLPEndpoint: "127.0.0.1:4317", OTLPInsecure: true, OTLPServiceName: "vigil-test"}
	tracer, shutdown := configureTracing(context.Background(), cfg, log)
	if tracer == nil {
		t.Fatal("expected a non-nil tracer even when the collector is unreachable")
	}
	if shutdown != nil {
		defer shutdown(context.Background())
	}
}
