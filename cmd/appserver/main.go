package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	app "github.com/R3E-Network/service_layer/internal/app"
	core "github.com/R3E-Network/service_layer/internal/app/core/service"
	"github.com/R3E-Network/service_layer/internal/app/httpapi"
	"github.com/R3E-Network/service_layer/internal/app/storage/postgres"
	"github.com/R3E-Network/service_layer/internal/config"
	"github.com/R3E-Network/service_layer/internal/platform/database"
	"github.com/R3E-Network/service_layer/internal/platform/migrations"
	"github.com/R3E-Network/service_layer/pkg/logger"
	"github.com/R3E-Network/service_layer/pkg/tracing"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (defaults to VIGIL_HOST:VIGIL_PORT or 0.0.0.0:8080)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides VIGIL_DATABASE_URL; in-memory storage when empty)")
	runMigrations := flag.Bool("migrate", true, "run embedded database migrations on startup (ignored for in-memory)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log := logger.New(logger.LoggingConfig{Level: cfg.LogLevel, Format: "text", Output: "stdout"})

	rootCtx := context.Background()

	var db *sql.DB
	stores := app.Stores{}

	dsnVal := resolveDSN(*dsn, cfg)
	if dsnVal != "" {
		db, err = database.Open(rootCtx, dsnVal)
		if err != nil {
			log.Fatalf("connect to postgres: %v", err)
		}
		if *runMigrations {
			if err := migrations.Apply(rootCtx, db); err != nil {
				log.Fatalf("apply migrations: %v", err)
			}
		}
		stores.Store = postgres.New(db)
	}
	if db != nil {
		defer db.Close()
	}

	tracer, shutdownTracing := configureTracing(rootCtx, cfg, log)
	if shutdownTracing != nil {
		defer shutdownTracing(context.Background())
	}

	application, err := app.New(stores, log,
		app.WithRuntimeConfig(app.RuntimeConfig{
			JWTSecret:     cfg.JWTSecret,
			JWTTTL:        cfg.JWTTTL(),
			EncryptionKey: cfg.EncryptionKey,
			DevAPIKey:     strings.TrimSpace(os.Getenv("VIGIL_DEV_API_KEY")),
		}),
		app.WithTracer(tracer),
	)
	if err != nil {
		log.Fatalf("initialise application: %v", err)
	}

	listenAddr := determineAddr(*addr, cfg)
	httpService := httpapi.NewService(application, listenAddr, log)
	if err := application.Attach(httpService); err != nil {
		log.Fatalf("attach http service: %v", err)
	}

	if err := application.Start(rootCtx); err != nil {
		log.Fatalf("start application: %v", err)
	}
	log.Infof("vigil listening on %s", listenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Stop(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}

func determineAddr(flagAddr string, cfg *config.Config) string {
	if addr := strings.TrimSpace(flagAddr); addr != "" {
		return addr
	}
	return cfg.Addr()
}

func resolveDSN(flagDSN string, cfg *config.Config) string {
	if trimmed := strings.TrimSpace(flagDSN); trimmed != "" {
		return trimmed
	}
	return strings.TrimSpace(cfg.DatabaseURL)
}

// configureTracing builds an OTLP exporter for the drift scheduler's spans
// when VIGIL_OTLP_ENDPOINT is set, returning core.NoopTracer and a nil
// shutdown func otherwise.
func configureTracing(ctx context.Context, cfg *config.Config, log *logger.Logger) (core.Tracer, func(context.Context) error) {
	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	if endpoint == "" {
		return core.NoopTracer, nil
	}

	provider, shutdown, err := tracing.NewOTLPTracerProvider(ctx, tracing.OTLPConfig{
		Endpoint:    endpoint,
		Insecure:    cfg.OTLPInsecure,
		ServiceName: cfg.OTLPServiceName,
	})
	if err != nil {
		log.Errorf("tracing: failed to configure otlp exporter at %s, falling back to noop: %v", endpoint, err)
		return core.NoopTracer, nil
	}
	return tracing.ConfigureGlobalTracer(provider, "vigil-drift-scheduler"), shutdown
}
