// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Api is the entry point for the PostgreSQL-to-REST compiler server.

The server introspects a PostgreSQL schema at startup and serves a REST API
over it directly: every exposed table gets a `/{table}` resource and every
callable function a `/rpc/{fn}` endpoint, with no hand-written handler code
per resource.

Usage:

	go run cmd/api/main.go [flags]

The environment variables are documented on [config.Config]; all are
prefixed PGRST_ except ENVIRONMENT/DEBUG/EXTRA_ORIGINS.

Startup Sequence:

 1. Logger: Initialize structured JSON logging (slog).
 2. Config: Load and validate environment variables.
 3. Storage: Establish the PostgreSQL connection pool.
 4. Schema Cache: Introspect the exposed schemas and build the first snapshot.
 5. Wiring: Construct the JWT verifier, transaction executor, and engine.
 6. Server: Bind HTTP listener and handle graceful shutdown.

No business logic lives here. This file is strictly for orchestration and wiring.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relaybase/pgrestcore/internal/api"
	"github.com/relaybase/pgrestcore/internal/catalog"
	"github.com/relaybase/pgrestcore/internal/platform/config"
	"github.com/relaybase/pgrestcore/internal/platform/constants"
	pgstore "github.com/relaybase/pgrestcore/internal/platform/postgres"
	"github.com/relaybase/pgrestcore/internal/platform/respond"
	"github.com/relaybase/pgrestcore/internal/platform/sec"
	"github.com/relaybase/pgrestcore/internal/txexec"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application_startup_failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// # 1. Logger
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing")

	// # 2. Configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}
	respond.SetDebug(cfg.Debug)

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Any("schemas", cfg.DBSchemas),
	)

	// Root context for startup. A 30s deadline prevents the app from hanging.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// # 3. PostgreSQL
	pool, err := pgstore.NewPool(startupCtx, cfg.DBURI, cfg.DBPool, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// # 4. Schema Cache
	snapshot, err := catalog.Load(startupCtx, pool, cfg.DBSchemas)
	if err != nil {
		return fmt.Errorf("load schema cache: %w", err)
	}
	cache := &catalog.Cache{}
	cache.Swap(snapshot)
	log.Info("schema_cache_loaded", slog.Any("schemas", cfg.DBSchemas))

	// # 5. Platform Services
	verifier := sec.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTAud, cfg.JWTRoleClaimKey)
	executor := txexec.NewExecutor(pool, cfg.DBAnonRole, cfg.DBPreRequest)
	engine := api.NewEngine(cache, cfg, executor)

	// Create a background context for the whole application lifecycle.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// # 6. Reload Listener
	// Optional: rebuild the cache on NOTIFY instead of requiring a restart.
	if cfg.DBChannelEnabled {
		go catalog.WatchReload(appCtx, pool, cfg.DBChannel, cfg.DBSchemas, cache, log)
	}

	// # 7. Health Wiring
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckSchemaCache: func() error {
			if cache.Load() == nil {
				return fmt.Errorf("schema cache not loaded")
			}
			return nil
		},
	}, log)

	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
	}

	server := api.NewServer(appCtx, cfg, log, verifier, handlers, engine)

	// # 8. Lifecycle Handling
	shutdownErr := make(chan error, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownErr <- fmt.Errorf("http_server_crash: %w", err)
		}
	}()

	log.Info("api_running", slog.String("port", cfg.ServerPort))

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-shutdownErr:
		return err
	}

	appCancel()

	log.Info("shutting_down_api_server", slog.Duration("timeout", constants.ShutdownTimeout))
	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		return fmt.Errorf("server_shutdown_failed: %w", err)
	}

	log.Info("graceful_shutdown_complete")
	return nil
}
