// Package config loads Vigil's runtime configuration from VIGIL_-prefixed
// environment variables, with an optional .env file per deployment
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	slruntime "github.com/R3E-Network/service_layer/internal/runtime"
	"github.com/joho/godotenv"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	Env Environment

	// HTTP
	Host string
	Port int

	// Storage
	DatabaseURL string
	RedisURL    string

	// Logging
	LogLevel string

	// CORS
	CORSOrigins []string

	// Auth
	APIKey           string
	JWTSecret        string
	JWTAlgorithm     string
	JWTExpireMinutes int

	// Rate limiting
	RateLimitRequests      int
	RateLimitWindowSeconds int

	// Encryption (credential-at-rest for replay runs)
	EncryptionKey string

	// Tracing (optional OTLP export of drift-scheduler spans)
	OTLPEndpoint    string
	OTLPInsecure    bool
	OTLPServiceName string
}

// Load loads configuration based on the VIGIL_ENV environment variable,
// optionally layering a per-environment .env file underneath explicit
// environment variables.
func Load() (*Config, error) {
	envStr := os.Getenv("VIGIL_ENV")
	if envStr == "" {
		envStr = string(slruntime.Development)
	}

	parsedEnv, ok := slruntime.ParseEnvironment(envStr)
	if !ok {
		return nil, fmt.Errorf("invalid VIGIL_ENV: %s (must be development, testing, or production)", envStr)
	}
	env := Environment(parsedEnv)

	configFile := filepath.Join("config", fmt.Sprintf("%s.env", env))
	if err := godotenv.Load(configFile); err != nil {
		// Config file is optional; only warn on non-"file not found" errors
		// (e.g. parse errors) to avoid noisy logs during tests and CI runs.
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Printf("Warning: Could not load %s: %v\n", configFile, err)
		}
	}

	cfg := &Config{Env: env}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// loadFromEnv loads configuration from VIGIL_-prefixed environment variables.
func (c *Config) loadFromEnv() error {
	c.Host = getEnv("VIGIL_HOST", "0.0.0.0")
	c.Port = getIntEnv("VIGIL_PORT", 8080)

	c.DatabaseURL = getEnv("VIGIL_DATABASE_URL", "")
	c.RedisURL = getEnv("VIGIL_REDIS_URL", "")

	c.LogLevel = getEnv("VIGIL_LOG_LEVEL", "info")

	c.CORSOrigins = strings.Split(getEnv("VIGIL_CORS_ORIGINS", "*"), ",")

	c.APIKey = getEnv("VIGIL_API_KEY", "")
	c.JWTSecret = getEnv("VIGIL_JWT_SECRET", "")
	c.JWTAlgorithm = getEnv("VIGIL_JWT_ALGORITHM", "HS256")
	c.JWTExpireMinutes = getIntEnv("VIGIL_JWT_EXPIRE_MINUTES", 60*24)

	c.RateLimitRequests = getIntEnv("VIGIL_RATE_LIMIT_REQUESTS", 120)
	c.RateLimitWindowSeconds = getIntEnv("VIGIL_RATE_LIMIT_WINDOW_SECONDS", 60)

	c.EncryptionKey = getEnv("VIGIL_ENCRYPTION_KEY", "")

	c.OTLPEndpoint = getEnv("VIGIL_OTLP_ENDPOINT", "")
	c.OTLPInsecure = getEnv("VIGIL_OTLP_INSECURE", "true") == "true"
	c.OTLPServiceName = getEnv("VIGIL_OTLP_SERVICE_NAME", "vigil")

	if c.IsProduction() && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("VIGIL_JWT_SECRET is required in production")
	}

	return nil
}

// JWTTTL converts JWTExpireMinutes into a time.Duration for auth.NewManager.
func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTExpireMinutes) * time.Minute
}

// RateLimitWindow converts RateLimitWindowSeconds into a time.Duration.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

// Addr returns the host:port pair the HTTP server should bind to.
func (c *Config) Addr() string {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.Port
	if port <= 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func (c *Config) IsDevelopment() bool { return c.Env == Development }
func (c *Config) IsTesting() bool     { return c.Env == Testing }
func (c *Config) IsProduction() bool  { return c.Env == Production }

// Validate checks production-safety invariants.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("VIGIL_JWT_SECRET must be set in production")
		}
		if strings.TrimSpace(c.EncryptionKey) == "" {
			return fmt.Errorf("VIGIL_ENCRYPTION_KEY must be set in production")
		}
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", c.Port)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
