// Package api provides the HTTP API of the PMON port monitor.
// This package implements a small RESTful surface using the Gin framework.
//
// Example usage:
//
//	server := api.NewServer(cfg.Server, engine, storage, hub.HandleConnect)
//	err := server.Start()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pmon/internal/api/v1/alerts"
	"pmon/internal/api/v1/monitors"
	"pmon/internal/config"
)

// Engine is the monitoring engine as seen by the API.
type Engine interface {
	monitors.Checker

	IsRunning() bool
	IsLeader() bool
	InstanceID() string
}

// Store is the persistence as seen by the API.
type Store interface {
	alerts.HistoryStore

	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	config config.ServerConfig
	engine Engine
	store  Store
	events http.HandlerFunc
	router *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP API server instance.
//
// Parameters:
//   - cfg: Server configuration containing address and timeout settings
//   - engine: Core monitoring engine instance
//   - store: Storage used for health and history
//   - events: Websocket handler for live events, may be nil
//
// Returns:
//   - *Server: Initialized server instance
func NewServer(cfg config.ServerConfig, engine Engine, store Store, events http.HandlerFunc) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config: cfg,
		engine: engine,
		store:  store,
		events: events,
		router: gin.New(),
	}

	// Setup middleware and routes
	server.setupMiddleware()
	server.setupRoutes()

	// Create HTTP server
	server.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return server
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it is shut down.
func (s *Server) Start() error {
	log.Info().Str("addr", s.config.Addr).Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// setupMiddleware configures middleware for the Gin router.
func (s *Server) setupMiddleware() {
	// Request ID middleware (should be first)
	s.router.Use(RequestID())

	// Custom panic recovery middleware
	s.router.Use(PanicRecovery())

	// Custom logger middleware
	s.router.Use(LoggerMiddleware())
}
