package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	core "github.com/R3E-Network/service_layer/internal/app/core/service"
	"github.com/R3E-Network/service_layer/internal/app/auth"
	"github.com/R3E-Network/service_layer/internal/app/services/drift"
	"github.com/R3E-Network/service_layer/internal/app/services/hub"
	"github.com/R3E-Network/service_layer/internal/app/services/llm"
	"github.com/R3E-Network/service_layer/internal/app/services/notify"
	"github.com/R3E-Network/service_layer/internal/app/services/replay"
	"github.com/R3E-Network/service_layer/internal/app/services/settings"
	"github.com/R3E-Network/service_layer/internal/app/services/traces"
	"github.com/R3E-Network/service_layer/internal/app/storage"
	"github.com/R3E-Network/service_layer/internal/app/storage/memory"
	"github.com/R3E-Network/service_layer/internal/app/system"
	"github.com/R3E-Network/service_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation, which is also what the test suite exercises.
type Stores struct {
	Store storage.Store
}

func (s *Stores) applyDefaults(mem *memory.Store) storage.Store {
	if s == nil || s.Store == nil {
		return mem
	}
	return s.Store
}

// RuntimeConfig captures environment-dependent wiring.
type RuntimeConfig struct {
	JWTSecret       string
	JWTTTL          time.Duration
	EncryptionKey   string
	DevAPIKey       string
	DriftCheckEvery time.Duration
}

// Option customises the application runtime.
type Option func(*builderConfig)

// Environment exposes a simple lookup mechanism which callers can implement
// to inject custom environment sources (for example when testing).
type Environment interface {
	Lookup(key string) string
}

type builderConfig struct {
	httpClient     *http.Client
	environment    Environment
	runtime        RuntimeConfig
	runtimeDefined bool
	tracer         core.Tracer
}

// WithRuntimeConfig overrides the runtime configuration used when wiring
// services. When omitted, environment variables are consulted.
func WithRuntimeConfig(cfg RuntimeConfig) Option {
	return func(b *builderConfig) {
		b.runtime = cfg
		b.runtimeDefined = true
	}
}

// WithHTTPClient injects a shared HTTP client used by the LLM executor. A nil
// client falls back to the default timeout client.
func WithHTTPClient(client *http.Client) Option {
	return func(b *builderConfig) {
		b.httpClient = client
	}
}

// WithEnvironment provides a custom environment lookup used when no explicit
// runtime configuration was supplied. Passing nil retains the default.
func WithEnvironment(env Environment) Option {
	return func(b *builderConfig) {
		if env != nil {
			b.environment = env
		}
	}
}

// WithTracer wires the drift scheduler's spans to the given tracer. Passing
// nil retains core.NoopTracer.
func WithTracer(tracer core.Tracer) Option {
	return func(b *builderConfig) {
		if tracer != nil {
			b.tracer = tracer
		}
	}
}

// Application ties Vigil's services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Store      storage.Store
	Auth       *auth.Manager
	Resolver   *auth.ProjectResolver
	Settings   *settings.Service
	Traces     *traces.Service
	Drift      *drift.Detector
	Scheduler  *drift.Scheduler
	LLM        *llm.Executor
	Replay     *replay.Engine
	Notify     *notify.Service
	Hub        *hub.Hub

	descriptors []core.Descriptor
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, log *logger.Logger, opts ...Option) (*Application, error) {
	options := resolveBuilderOptions(opts...)
	if log == nil {
		log = logger.NewDefault("vigil")
	}

	mem := memory.New()
	store := stores.applyDefaults(mem)

	manager := system.NewManager()

	jwtManager := auth.NewManager(options.runtime.JWTSecret, options.runtime.JWTTTL)
	resolver := auth.NewProjectResolver(jwtManager, store, options.runtime.DevAPIKey)

	encKey := []byte(normalizeEncryptionKey(options.runtime.EncryptionKey))
	settingsService := settings.New(store, encKey)

	tracesService := traces.New(store)
	liveHub := hub.New(log)
	notifyService := notify.New(store, liveHub)

	detector := drift.New(store, store)
	scheduler := drift.NewScheduler(detector, store, store, notifyService, options.tracer, log)

	executor := llm.New(options.httpClient)
	replayEngine := replay.New(store, store, settingsService, executor, log)

	if err := manager.Register(scheduler); err != nil {
		return nil, fmt.Errorf("register drift scheduler: %w", err)
	}

	descriptors := manager.Descriptors()

	return &Application{
		manager:     manager,
		log:         log,
		Store:       store,
		Auth:        jwtManager,
		Resolver:    resolver,
		Settings:    settingsService,
		Traces:      tracesService,
		Drift:       detector,
		Scheduler:   scheduler,
		LLM:         executor,
		Replay:      replayEngine,
		Notify:      notifyService,
		Hub:         liveHub,
		descriptors: descriptors,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start recovers any replay runs interrupted by a prior crash, then begins
// every registered service: the drift scheduler plus anything added with
// Attach.
func (a *Application) Start(ctx context.Context) error {
	if err := a.Replay.RecoverCrashedRuns(ctx); err != nil {
		return fmt.Errorf("recover crashed replay runs: %w", err)
	}
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Descriptors returns advertised service descriptors for orchestration/CLI
// introspection.
func (a *Application) Descriptors() []core.Descriptor {
	out := make([]core.Descriptor, len(a.descriptors))
	copy(out, a.descriptors)
	return out
}

func resolveBuilderOptions(opts ...Option) struct {
	httpClient *http.Client
	runtime    RuntimeConfig
	tracer     core.Tracer
} {
	cfg := builderConfig{environment: osEnvironment{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.environment == nil {
		cfg.environment = osEnvironment{}
	}
	if cfg.httpClient == nil {
		cfg.httpClient = defaultHTTPClient()
	}
	if cfg.tracer == nil {
		cfg.tracer = core.NoopTracer
	}
	runtimeCfg := cfg.runtime
	if !cfg.runtimeDefined {
		runtimeCfg = runtimeConfigFromEnv(cfg.environment)
	}
	return struct {
		httpClient *http.Client
		runtime    RuntimeConfig
		tracer     core.Tracer
	}{
		httpClient: cfg.httpClient,
		runtime:    normalizeRuntimeConfig(runtimeCfg),
		tracer:     cfg.tracer,
	}
}

func runtimeConfigFromEnv(env Environment) RuntimeConfig {
	if env == nil {
		env = osEnvironment{}
	}
	var ttl time.Duration
	if raw := env.Lookup("VIGIL_JWT_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			ttl = parsed
		}
	}
	return RuntimeConfig{
		JWTSecret:     env.Lookup("VIGIL_JWT_SECRET"),
		JWTTTL:        ttl,
		EncryptionKey: env.Lookup("VIGIL_ENCRYPTION_KEY"),
		DevAPIKey:     env.Lookup("VIGIL_DEV_API_KEY"),
	}
}

func normalizeRuntimeConfig(cfg RuntimeConfig) RuntimeConfig {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		cfg.JWTSecret = "development-secret-do-not-use-in-production"
	}
	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = 24 * time.Hour
	}
	if cfg.DriftCheckEvery <= 0 {
		cfg.DriftCheckEvery = 30 * time.Second
	}
	return cfg
}

// normalizeEncryptionKey pads or truncates the configured key to 32 bytes so
// AES-256-GCM always has a usable key, even in development where no key was
// explicitly configured.
func normalizeEncryptionKey(key string) string {
	const keyLen = 32
	if key == "" {
		key = "development-encryption-key-change-me"
	}
	if len(key) >= keyLen {
		return key[:keyLen]
	}
	return key + strings.Repeat("0", keyLen-len(key))
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
}

type osEnvironment struct{}

func (osEnvironment) Lookup(key string) string {
	return os.Getenv(key)
}
