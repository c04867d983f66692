package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
)

// Handler manages public endpoints.
//
// It provides system-level information suitable for liveness probes and
// basic diagnostics.
type Handler struct {
	engine    Engine
	store     Store
	startTime time.Time
}

// NewHandler initializes a new public API handler.
//
// Parameters:
//   - engine: Core monitoring engine (maybe nil in test environments)
//   - store: Database storage layer (maybe nil in test environments)
func NewHandler(engine Engine, store Store) *Handler {
	return &Handler{
		engine:    engine,
		store:     store,
		startTime: time.Now(),
	}
}

// Ping handles GET /api/ping
//
// Response:
//   - 200 OK with {"message": "pong"}
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// Health handles GET /api/health
//
// Reports database latency and the engine's running and leadership state.
// Overall status is "healthy" only if the database answers and the engine
// runs; otherwise it is "degraded". A follower that does not hold the lease
// is still healthy.
//
// Response:
//   - 200 OK with the health report
func (h *Handler) Health(c *gin.Context) {
	dbStatus, dbResponseTime := h.checkDatabaseHealth(c.Request.Context())
	engineStatus, running, leader, instanceID := h.checkEngineHealth()

	overallStatus := statusHealthy
	if dbStatus != statusHealthy || engineStatus != statusHealthy {
		overallStatus = statusDegraded
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startTime).String(),
		"components": gin.H{
			"database": gin.H{
				"status":           dbStatus,
				"response_time_ms": dbResponseTime,
			},
			"engine": gin.H{
				"status":      engineStatus,
				"running":     running,
				"leader":      leader,
				"instance_id": instanceID,
			},
		},
	})
}

// checkDatabaseHealth pings the database and measures the round trip.
func (h *Handler) checkDatabaseHealth(ctx context.Context) (string, int64) {
	if h.store == nil {
		return statusUnhealthy, 0
	}

	start := time.Now()
	err := h.store.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()
	if err != nil {
		return statusUnhealthy, responseTime
	}

	return statusHealthy, responseTime
}

// checkEngineHealth reports the engine's running state and lease.
func (h *Handler) checkEngineHealth() (status string, running, leader bool, instanceID string) {
	if h.engine == nil {
		return statusUnhealthy, false, false, ""
	}

	running = h.engine.IsRunning()
	leader = h.engine.IsLeader()
	instanceID = h.engine.InstanceID()

	if !running {
		return statusUnhealthy, running, leader, instanceID
	}
	return statusHealthy, running, leader, instanceID
}
