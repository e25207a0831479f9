// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api wires together the HTTP router, middleware chain, and the
request/response engine into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/relaybase/pgrestcore/internal/platform/config"
	"github.com/relaybase/pgrestcore/internal/platform/constants"
	"github.com/relaybase/pgrestcore/internal/platform/middleware"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups the endpoints that sit outside the generic engine: the
// two health probes. Every relation/routine/info route is served by
// [Engine] itself, registered directly against the router below.
type Handlers struct {
	// Liveness is the /health handler — always returns 200 if process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler — returns 200 when all deps are healthy.
	Readiness http.HandlerFunc
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// mounts the health probes plus the generic engine routes: the root schema
// document, every `/{table}`, and `/rpc/{fn}`.
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger, verifier middleware.TokenVerifier, h Handlers, engine *Engine) *Server {
	rte := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	rte.Use(middleware.RequestID())
	rte.Use(middleware.StructuredLogger(log))
	rte.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	rte.Use(middleware.RateLimit(ctx))
	rte.Use(middleware.PanicRecovery(log))
	rte.Use(middleware.Authenticate(verifier))
	rte.Use(middleware.CORS(cfg))
	rte.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	rte.Get("/health", h.Liveness)
	rte.Get("/ready", h.Readiness)

	// # Engine Endpoints
	// Every relation and routine is served by one generic engine; there is
	// no per-resource handler to register as the schema cache grows.
	rte.Get("/", engine.ServeRootInfo)
	rte.Options("/", engine.ServeRootInfo)

	rte.Route("/{table}", func(table chi.Router) {
		table.Get("/", engine.ServeDb)
		table.Head("/", engine.ServeDb)
		table.Post("/", engine.ServeDb)
		table.Patch("/", engine.ServeDb)
		table.Put("/", engine.ServeDb)
		table.Delete("/", engine.ServeDb)
		table.Options("/", engine.ServeResourceInfo)
	})

	rte.Route("/rpc/{fn}", func(fn chi.Router) {
		fn.Get("/", engine.ServeDb)
		fn.Head("/", engine.ServeDb)
		fn.Post("/", engine.ServeDb)
		fn.Options("/", engine.ServeResourceInfo)
	})

	return &Server{
		router: rte,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           rte,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
