// Package core provides the monitoring engine for PMON.
//
// The engine is responsible for:
//   - Holding the scheduler lease so only one instance probes at a time
//   - Running the tick loop that picks up due monitors
//   - Probing, recording stats and rescheduling each monitor
//   - Evaluating alert rules and handing them to the dispatcher
//   - Publishing probe and alert events to live subscribers
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pmon/internal/alert"
	"pmon/internal/checks"
	"pmon/internal/config"
	"pmon/internal/hub"
	"pmon/internal/storage"
)

// Store is the persistence the engine drives.
type Store interface {
	LeaseStore

	DueMonitors(ctx context.Context, now time.Time, limit int) ([]storage.MonitorTarget, error)
	MonitorTarget(ctx context.Context, id int64) (*storage.MonitorTarget, error)
	RecordProbe(ctx context.Context, id int64, res storage.ProbeResult) (*storage.Monitor, error)
	ScheduleNextRun(ctx context.Context, id int64, intervalSeconds int, now time.Time) (time.Time, error)
	RulesFor(ctx context.Context, monitorID int64) ([]storage.RuleBinding, error)
}

// Prober runs a single protocol probe.
type Prober interface {
	CheckPort(ctx context.Context, host string, port int, protocol string, timeout time.Duration) checks.Result
}

// Dispatcher delivers triggered alerts.
type Dispatcher interface {
	Dispatch(ctx context.Context, t alert.Triggered) (alert.Outcome, error)
}

// Publisher receives engine events.
type Publisher interface {
	Publish(evt hub.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(hub.Event) {}

// Engine represents the core monitoring engine.
// It orchestrates leasing, scheduling, probing and alerting.
type Engine struct {
	config     config.SchedulerConfig
	store      Store
	prober     Prober
	dispatcher Dispatcher
	publisher  Publisher

	lease     *LeaseManager
	scheduler *Scheduler
	now       func() time.Time

	// Internal state
	running bool
	mu      sync.RWMutex
}

// NewEngine creates a new monitoring engine.
//
// Parameters:
//   - cfg: Scheduler configuration
//   - store: Persistence for monitors, rules and the lease
//   - prober: Probe engine
//   - dispatcher: Alert dispatcher
//   - publisher: Event sink, may be nil
//
// Returns:
//   - *Engine: Initialized engine instance
func NewEngine(cfg config.SchedulerConfig, store Store, prober Prober, dispatcher Dispatcher, publisher Publisher) *Engine {
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}

	e := &Engine{
		config:     cfg,
		store:      store,
		prober:     prober,
		dispatcher: dispatcher,
		publisher:  publisher,
		lease:      NewLeaseManager(store, cfg.InstanceID, cfg.LeaseTTL),
		now:        func() time.Time { return time.Now().UTC() },
	}
	e.scheduler = NewScheduler(cfg.PollInterval, e.tick)

	return e
}

// SetClock replaces the engine's time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// InstanceID returns the lease owner id of this engine.
func (e *Engine) InstanceID() string {
	return e.lease.OwnerID()
}

// Start starts the tick loop. When the scheduler is disabled by
// configuration the engine stays idle and Start returns nil.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("engine is already running")
	}

	if !e.config.Enabled {
		log.Warn().Msg("Scheduler disabled by configuration, engine not started")
		return nil
	}

	log.Info().
		Str("instance_id", e.lease.OwnerID()).
		Dur("poll_interval", e.config.PollInterval).
		Dur("lease_ttl", e.config.LeaseTTL).
		Int("batch_limit", e.config.BatchLimit).
		Msg("Starting monitoring engine")

	if err := e.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	e.running = true
	log.Info().Msg("Monitoring engine started successfully")

	return nil
}

// IsRunning returns whether the engine is currently running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// IsLeader reports whether this instance held the lease on its last attempt.
func (e *Engine) IsLeader() bool {
	return e.lease.IsLeader()
}

// Stop stops the tick loop. The in-flight batch, if any, runs to completion
// before Stop returns.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	log.Info().Msg("Stopping monitoring engine")
	e.scheduler.Stop()
	e.running = false
	log.Info().Msg("Monitoring engine stopped")
}

// CheckNow probes a monitor immediately and persists its status and stats.
// It neither evaluates alert rules nor moves the monitor's next run.
func (e *Engine) CheckNow(ctx context.Context, monitorID int64) (*storage.Monitor, error) {
	target, err := e.store.MonitorTarget(ctx, monitorID)
	if err != nil {
		return nil, err
	}

	updated, err := e.probe(ctx, *target)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("monitor_id", monitorID).
		Str("status", derefString(updated.LastStatus)).
		Msg("On-demand check completed")

	return updated, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
