package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"pmon/internal/alert"
	"pmon/internal/hub"
	"pmon/internal/storage"
)

// tick runs one scheduling round: lease, fetch, probe batch, renew.
func (e *Engine) tick(ctx context.Context) {
	held, err := e.lease.Acquire(ctx, e.now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to acquire scheduler lease")
		return
	}
	if !held {
		log.Debug().Str("instance_id", e.lease.OwnerID()).Msg("Lease held by another instance, skipping tick")
		return
	}

	targets, err := e.store.DueMonitors(ctx, e.now(), e.config.BatchLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch due monitors")
		return
	}

	if len(targets) > 0 {
		log.Debug().Int("count", len(targets)).Msg("Running due monitors")
		e.runBatch(ctx, targets)
	}

	if _, err := e.lease.Renew(ctx, e.now()); err != nil {
		log.Error().Err(err).Msg("Failed to renew scheduler lease")
	}
}

// runBatch runs every target's pipeline concurrently, at most WorkerCount
// at a time, and returns once all of them have finished.
func (e *Engine) runBatch(ctx context.Context, targets []storage.MonitorTarget) {
	workers := e.config.WorkerCount
	if workers <= 0 || workers > len(targets) {
		workers = len(targets)
	}
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for _, target := range targets {
		sem <- struct{}{}
		wg.Add(1)
		go func(t storage.MonitorTarget) {
			defer wg.Done()
			defer func() { <-sem }()
			e.runMonitor(ctx, t)
		}(target)
	}
	wg.Wait()
}

// runMonitor is the isolation boundary for one monitor. Whatever happens
// inside, the monitor is rescheduled and nothing escapes to its siblings.
func (e *Engine) runMonitor(ctx context.Context, target storage.MonitorTarget) {
	m := target.Monitor

	defer func() {
		if r := recover(); r != nil {
			log.Error().Int64("monitor_id", m.ID).Interface("panic", r).Msg("Monitor pipeline panicked")
		}
	}()
	defer func() {
		next, err := e.store.ScheduleNextRun(ctx, m.ID, m.IntervalSeconds, e.now())
		if err != nil {
			log.Error().Int64("monitor_id", m.ID).Err(err).Msg("Failed to schedule next run")
			return
		}
		log.Debug().Int64("monitor_id", m.ID).Time("next_run_at", next).Msg("Monitor rescheduled")
	}()

	updated, err := e.probe(ctx, target)
	if err != nil {
		log.Error().Int64("monitor_id", m.ID).Err(err).Msg("Failed to record probe")
		return
	}

	target.Monitor = *updated
	if err := e.evaluate(ctx, target); err != nil {
		log.Error().Int64("monitor_id", m.ID).Err(err).Msg("Failed to evaluate alert rules")
	}
}

// probe runs the protocol check for target and persists the outcome.
func (e *Engine) probe(ctx context.Context, target storage.MonitorTarget) (*storage.Monitor, error) {
	m := target.Monitor

	log.Debug().
		Int64("monitor_id", m.ID).
		Str("host", target.Server.Host).
		Int("port", target.Service.Port).
		Str("protocol", target.Service.Protocol).
		Msg("Executing probe")

	res := e.prober.CheckPort(ctx, target.Server.Host, target.Service.Port, target.Service.Protocol, 0)
	if res.Weak && res.Success {
		log.Debug().Int64("monitor_id", m.ID).Msg("UDP probe only confirms local socket setup")
	}

	updated, err := e.store.RecordProbe(ctx, m.ID, storage.ProbeResult{
		Success:   res.Success,
		LatencyMs: res.LatencyMs,
		Error:     res.Error,
		CheckedAt: e.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record probe for monitor %d: %w", m.ID, err)
	}

	e.publisher.Publish(hub.Event{
		Type:      hub.EventMonitorProbed,
		TenantID:  updated.TenantID,
		MonitorID: updated.ID,
		Payload:   updated,
	})

	return updated, nil
}

// evaluate fires the monitor's alert rules against its fresh state.
func (e *Engine) evaluate(ctx context.Context, target storage.MonitorTarget) error {
	rules, err := e.store.RulesFor(ctx, target.Monitor.ID)
	if err != nil {
		return fmt.Errorf("failed to load alert rules: %w", err)
	}

	for _, t := range alert.Evaluate(target, rules) {
		outcome, err := e.dispatcher.Dispatch(ctx, t)
		if err != nil {
			log.Error().Int64("rule_id", t.Binding.Rule.ID).Err(err).Msg("Failed to dispatch alert")
			continue
		}
		if !outcome.Attempted {
			log.Debug().Int64("rule_id", t.Binding.Rule.ID).Str("reason", outcome.SkipReason).Msg("Alert skipped")
			continue
		}

		e.publisher.Publish(hub.Event{
			Type:      hub.EventAlertDispatched,
			TenantID:  target.Monitor.TenantID,
			MonitorID: target.Monitor.ID,
			Payload: map[string]any{
				"rule_id":    t.Binding.Rule.ID,
				"alert_type": t.Binding.Rule.AlertType,
				"channel_id": t.Binding.Channel.ID,
				"message":    t.Message,
				"success":    outcome.Success,
				"error":      outcome.Error,
			},
		})
	}

	return nil
}
