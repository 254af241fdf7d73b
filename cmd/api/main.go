// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

// Command api is the entry point for the Vendora identity API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire the audit pipeline, stores, and domain services.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vendora/vendora/internal/api"
	"github.com/vendora/vendora/internal/identity/auth"
	"github.com/vendora/vendora/internal/platform/audit"
	"github.com/vendora/vendora/internal/platform/config"
	"github.com/vendora/vendora/internal/platform/constants"
	"github.com/vendora/vendora/internal/platform/migration"
	"github.com/vendora/vendora/internal/platform/notify"
	pgstore "github.com/vendora/vendora/internal/platform/postgres"
	redisstore "github.com/vendora/vendora/internal/platform/redis"
	"github.com/vendora/vendora/internal/platform/sec"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Vendora] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	mfaKey, err := cfg.MFAKey()
	must(log, err, "decode mfa encryption key")

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Audit Pipeline ─────────────────────────────────────────────────
	// The slog sink is always on; Kafka joins the fan-out when brokers are set.
	var emitter audit.Emitter = audit.NewSlogEmitter(log)
	if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
		kafkaEmitter := audit.NewKafkaEmitter(brokers, cfg.AuditKafkaTopic, log)
		defer func() {
			if cerr := kafkaEmitter.Close(); cerr != nil {
				log.Error("kafka close error", slog.Any("error", cerr))
			}
		}()
		emitter = audit.Fanout{audit.NewSlogEmitter(log), kafkaEmitter}
		log.Info("audit_kafka_enabled", slog.String("topic", cfg.AuditKafkaTopic))
	}

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	accountStore := auth.NewAccountStore(pool)
	historyStore := auth.NewPasswordHistoryStore(pool)
	backupCodeStore := auth.NewBackupCodeStore(pool)
	sessionStore := auth.NewSessionStore(rdb)

	dispatcher := notify.NewLogDispatcher(log)

	historyGuard := auth.NewPasswordHistoryGuard(historyStore)
	credentialValidator := auth.NewCredentialValidator(accountStore, emitter)
	sessionService := auth.NewSessionService(sessionStore, accountStore, emitter)

	csrfService := sec.NewCSRFService([]byte(cfg.SessionSecret), auth.CSRFTokenTTL)
	deviceTokens := sec.NewDeviceTokenService([]byte(cfg.SessionSecret), constants.AppName)

	mfaManager := auth.NewMFAManager(
		accountStore,
		backupCodeStore,
		credentialValidator,
		deviceTokens,
		dispatcher,
		emitter,
		mfaKey,
		"Vendora",
	)
	resetFlow := auth.NewPasswordResetFlow(accountStore, historyGuard, sessionService, dispatcher, emitter)
	accountService := auth.NewAccountService(accountStore, historyGuard, sessionService, credentialValidator, dispatcher, emitter)

	authHandler := auth.NewHandler(
		accountService,
		credentialValidator,
		sessionService,
		mfaManager,
		resetFlow,
		csrfService,
		cfg.IsProduction(),
	)

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, sessionService, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
