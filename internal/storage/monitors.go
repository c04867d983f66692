package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"pmon/internal/stats"
)

// MinIntervalSeconds is the floor applied when computing the next run.
const MinIntervalSeconds = 5

// MonitorTarget is a monitor together with the server and service it checks.
// It is assembled with explicit lookups so callers never touch lazy relations.
type MonitorTarget struct {
	Monitor Monitor
	Server  Server
	Service Service
}

// ProbeResult is one probe outcome to fold into a monitor row.
type ProbeResult struct {
	Success   bool
	LatencyMs *float64
	Error     string
	CheckedAt time.Time
}

// CreateMonitor inserts a monitor that is due immediately.
func (s *Storage) CreateMonitor(ctx context.Context, m *Monitor, now time.Time) error {
	next := now.UTC()
	m.NextRunAt = &next
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}
	return nil
}

// GetMonitor returns a monitor by id.
func (s *Storage) GetMonitor(ctx context.Context, id int64) (*Monitor, error) {
	var m Monitor
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// DueMonitors returns enabled monitors whose next run is at or before now,
// oldest first, at most limit of them.
func (s *Storage) DueMonitors(ctx context.Context, now time.Time, limit int) ([]MonitorTarget, error) {
	var monitors []Monitor
	err := s.db.WithContext(ctx).
		Where("enabled = ? AND next_run_at IS NOT NULL AND next_run_at <= ?", true, now.UTC()).
		Order("next_run_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&monitors).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due monitors: %w", err)
	}
	return s.targets(ctx, monitors)
}

// MonitorTarget returns the joined view of a single monitor.
func (s *Storage) MonitorTarget(ctx context.Context, id int64) (*MonitorTarget, error) {
	m, err := s.GetMonitor(ctx, id)
	if err != nil {
		return nil, err
	}
	targets, err := s.targets(ctx, []Monitor{*m})
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, ErrNotFound
	}
	return &targets[0], nil
}

func (s *Storage) targets(ctx context.Context, monitors []Monitor) ([]MonitorTarget, error) {
	if len(monitors) == 0 {
		return nil, nil
	}

	serverIDs := make([]int64, 0, len(monitors))
	serviceIDs := make([]int64, 0, len(monitors))
	for _, m := range monitors {
		serverIDs = append(serverIDs, m.ServerID)
		serviceIDs = append(serviceIDs, m.ServiceID)
	}

	var servers []Server
	if err := s.db.WithContext(ctx).Where("id IN ?", serverIDs).Find(&servers).Error; err != nil {
		return nil, fmt.Errorf("failed to load servers: %w", err)
	}
	var services []Service
	if err := s.db.WithContext(ctx).Where("id IN ?", serviceIDs).Find(&services).Error; err != nil {
		return nil, fmt.Errorf("failed to load services: %w", err)
	}

	serverByID := make(map[int64]Server, len(servers))
	for _, srv := range servers {
		serverByID[srv.ID] = srv
	}
	serviceByID := make(map[int64]Service, len(services))
	for _, svc := range services {
		serviceByID[svc.ID] = svc
	}

	targets := make([]MonitorTarget, 0, len(monitors))
	for _, m := range monitors {
		srv, okServer := serverByID[m.ServerID]
		svc, okService := serviceByID[m.ServiceID]
		if !okServer || !okService {
			log.Warn().
				Int64("monitor_id", m.ID).
				Msg("Monitor references a missing server or service, skipping")
			continue
		}
		targets = append(targets, MonitorTarget{Monitor: m, Server: srv, Service: svc})
	}
	return targets, nil
}

// RecordProbe stores a probe outcome and the resulting statistics in one
// transaction, so readers never see stats that belong to an older probe.
// It returns the updated monitor.
func (s *Storage) RecordProbe(ctx context.Context, id int64, res ProbeResult) (*Monitor, error) {
	var updated Monitor
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m Monitor
		if err := tx.First(&m, id).Error; err != nil {
			return notFound(err)
		}

		applyProbe(&m, res)
		applyStats(&m, res.Success)

		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record probe for monitor %d: %w", id, err)
	}
	return &updated, nil
}

func applyProbe(m *Monitor, res ProbeResult) {
	status := StatusDown
	if res.Success {
		status = StatusUp
	}
	checkedAt := res.CheckedAt.UTC()

	m.LastStatus = &status
	m.LastLatencyMs = res.LatencyMs
	m.LastCheckedAt = &checkedAt
	m.LastError = nil
	if res.Error != "" {
		errText := res.Error
		m.LastError = &errText
	}
}

func applyStats(m *Monitor, success bool) {
	c := stats.Apply(stats.Counters{
		ConsecutiveFailures:  m.ConsecutiveFailures,
		ConsecutiveSuccesses: m.ConsecutiveSuccesses,
		TotalChecks:          m.TotalChecks,
		TotalFailures:        m.TotalFailures,
		UptimePercentage:     m.UptimePercentage,
	}, success)

	m.ConsecutiveFailures = c.ConsecutiveFailures
	m.ConsecutiveSuccesses = c.ConsecutiveSuccesses
	m.TotalChecks = c.TotalChecks
	m.TotalFailures = c.TotalFailures
	m.UptimePercentage = c.UptimePercentage
}

// NextRunAt returns now plus the monitor interval, never less than five seconds.
func NextRunAt(intervalSeconds int, now time.Time) time.Time {
	return now.UTC().Add(time.Duration(max(MinIntervalSeconds, intervalSeconds)) * time.Second)
}

// ScheduleNextRun moves the monitor's next run to NextRunAt(interval, now).
func (s *Storage) ScheduleNextRun(ctx context.Context, id int64, intervalSeconds int, now time.Time) (time.Time, error) {
	next := NextRunAt(intervalSeconds, now)
	err := s.db.WithContext(ctx).
		Model(&Monitor{}).
		Where("id = ?", id).
		UpdateColumn("next_run_at", next).Error
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to schedule monitor %d: %w", id, err)
	}
	return next, nil
}
