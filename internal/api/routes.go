package api

import (
	v1 "pmon/internal/api/v1"
)

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	// Initialize handlers
	baseHandler := NewHandler(s.engine, s.store)

	// Base api router group
	apiGroup := s.router.Group("/api")

	// Base endpoints
	apiGroup.GET("/ping", baseHandler.Ping)
	apiGroup.GET("/health", baseHandler.Health)

	// API v1 routes
	v1Group := apiGroup.Group("/v1")
	v1.SetupRoutes(v1Group, s.engine, s.store, s.events)
}
