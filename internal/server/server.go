// Package server provides the main server orchestration for the PMON port monitor.
//
// The server follows a structured lifecycle:
//  1. Storage initialization
//  2. Event hub and alert dispatcher setup
//  3. Core engine startup
//  4. HTTP API server launch
//  5. Graceful shutdown on context cancellation
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pmon/internal/alert"
	"pmon/internal/api"
	"pmon/internal/checks"
	"pmon/internal/config"
	"pmon/internal/core"
	"pmon/internal/hub"
	"pmon/internal/storage"
)

// shutdownTimeout bounds how long components get to stop cleanly.
const shutdownTimeout = 30 * time.Second

// Server represents the main PMON server orchestrator.
type Server struct {
	// cfg holds the application configuration
	cfg *config.Config
}

// New creates a new server instance with the provided configuration.
//
// The server is not started until Start() is called.
func New(cfg *config.Config) *Server {
	return &Server{
		cfg: cfg,
	}
}

// Start initializes and starts all server components in order.
//
// This method blocks until:
//   - A component fails to start
//   - The provided context is cancelled (shutdown signal)
//   - The HTTP server encounters an unrecoverable error
func (s *Server) Start(ctx context.Context) error {
	// Phase 1: storage, everything else depends on it
	store, err := storage.New(s.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close storage")
		}
	}()
	log.Info().Str("driver", s.cfg.Storage.Driver).Msg("Storage initialized")

	// Phase 2: event hub and alerting
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	events := hub.New(nil)
	go events.Run(hubCtx)

	dispatcher := alert.NewDispatcher(store, s.cfg.Alert)

	// Phase 3: engine
	engine := core.NewEngine(s.cfg.Scheduler, store, checks.NewManager(s.cfg.Checks), dispatcher, events)
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer engine.Stop()

	if !s.cfg.Server.Enabled {
		log.Info().Msg("HTTP server disabled, running engine only")
		<-ctx.Done()
		log.Info().Msg("Shutdown signal received, starting graceful shutdown")
		return nil
	}

	// Phase 4: HTTP API
	httpServer := api.NewServer(s.cfg.Server, engine, store, events.HandleConnect)

	// Buffered so the goroutine never leaks
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Phase 5: wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received, starting graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting requests first, then the deferred engine stop lets the
	// running batch finish.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped gracefully")
	return nil
}
