// Package alert decides which alert rules fire for a monitor and delivers
// them through the rule's channel, honouring per-rule cooldown.
package alert

import (
	"fmt"
	"net"
	"strconv"

	"pmon/internal/storage"
)

// Triggered is a rule whose condition holds for the monitor's latest probe.
type Triggered struct {
	Binding storage.RuleBinding
	Message string
	Details map[string]any
}

// Evaluate returns the rules that fire for target's current state.
// Disabled rules, unknown kinds and rules without a threshold are skipped.
//
// status_change and consecutive_failures are edge-triggered: they fire only
// on the probe that enters the condition. latency_threshold and
// uptime_percentage are level-triggered and rely on cooldown.
func Evaluate(target storage.MonitorTarget, rules []storage.RuleBinding) []Triggered {
	var triggered []Triggered
	for _, binding := range rules {
		if !binding.Rule.Enabled {
			continue
		}

		var (
			message string
			details map[string]any
			fired   bool
		)
		switch binding.Rule.AlertType {
		case storage.AlertTypeStatusChange:
			message, details, fired = evaluateStatusChange(target)
		case storage.AlertTypeConsecutiveFailures:
			message, details, fired = evaluateConsecutiveFailures(target, binding.Rule)
		case storage.AlertTypeLatencyThreshold:
			message, details, fired = evaluateLatency(target, binding.Rule)
		case storage.AlertTypeUptimePercentage:
			message, details, fired = evaluateUptime(target, binding.Rule)
		}

		if fired {
			triggered = append(triggered, Triggered{Binding: binding, Message: message, Details: details})
		}
	}
	return triggered
}

func evaluateStatusChange(t storage.MonitorTarget) (string, map[string]any, bool) {
	m := t.Monitor
	if m.LastStatus == nil {
		return "", nil, false
	}

	switch {
	case *m.LastStatus == storage.StatusDown && m.ConsecutiveFailures == 1:
		details := baseDetails(t)
		details["status"] = storage.StatusDown
		details["error"] = m.LastError
		msg := fmt.Sprintf("%s (%s) is DOWN", t.Server.Name, endpoint(t))
		if m.LastError != nil {
			msg += ": " + *m.LastError
		}
		return msg, details, true

	case *m.LastStatus == storage.StatusUp && m.ConsecutiveSuccesses == 1:
		details := baseDetails(t)
		details["status"] = storage.StatusUp
		details["latency_ms"] = m.LastLatencyMs
		msg := fmt.Sprintf("%s (%s) is UP again", t.Server.Name, endpoint(t))
		if m.LastLatencyMs != nil {
			msg += fmt.Sprintf(" (latency %.1fms)", *m.LastLatencyMs)
		}
		return msg, details, true
	}
	return "", nil, false
}

func evaluateConsecutiveFailures(t storage.MonitorTarget, r storage.AlertRule) (string, map[string]any, bool) {
	m := t.Monitor
	// Equality keeps the rule edge-triggered: each probe moves the streak by one.
	if r.ConsecutiveFailuresThreshold == nil || m.ConsecutiveFailures != *r.ConsecutiveFailuresThreshold {
		return "", nil, false
	}

	details := baseDetails(t)
	details["consecutive_failures"] = m.ConsecutiveFailures
	details["threshold"] = *r.ConsecutiveFailuresThreshold
	details["error"] = m.LastError

	msg := fmt.Sprintf("%s (%s) failed %d consecutive checks", t.Server.Name, endpoint(t), m.ConsecutiveFailures)
	if m.LastError != nil {
		msg += ": " + *m.LastError
	}
	return msg, details, true
}

func evaluateLatency(t storage.MonitorTarget, r storage.AlertRule) (string, map[string]any, bool) {
	m := t.Monitor
	if r.LatencyThresholdMs == nil || m.LastLatencyMs == nil || *m.LastLatencyMs <= *r.LatencyThresholdMs {
		return "", nil, false
	}

	details := baseDetails(t)
	details["current_latency_ms"] = *m.LastLatencyMs
	details["threshold_ms"] = *r.LatencyThresholdMs

	msg := fmt.Sprintf("%s (%s) is slow: latency %.1fms exceeds %.1fms",
		t.Server.Name, endpoint(t), *m.LastLatencyMs, *r.LatencyThresholdMs)
	return msg, details, true
}

func evaluateUptime(t storage.MonitorTarget, r storage.AlertRule) (string, map[string]any, bool) {
	m := t.Monitor
	if r.UptimeThresholdPercentage == nil || m.UptimePercentage == nil || *m.UptimePercentage >= *r.UptimeThresholdPercentage {
		return "", nil, false
	}

	details := baseDetails(t)
	details["current_uptime_percentage"] = *m.UptimePercentage
	details["threshold_percentage"] = *r.UptimeThresholdPercentage
	details["total_checks"] = m.TotalChecks
	details["total_failures"] = m.TotalFailures

	msg := fmt.Sprintf("%s (%s) uptime dropped to %.1f%% (threshold %.1f%%, %d of %d checks failed)",
		t.Server.Name, endpoint(t), *m.UptimePercentage, *r.UptimeThresholdPercentage, m.TotalFailures, m.TotalChecks)
	return msg, details, true
}

func baseDetails(t storage.MonitorTarget) map[string]any {
	return map[string]any{
		"monitor_id": t.Monitor.ID,
		"server":     t.Server.Name,
		"host":       t.Server.Host,
		"port":       t.Service.Port,
		"protocol":   t.Service.Protocol,
	}
}

// endpoint renders host:port/protocol, or host/ping for ping services.
func endpoint(t storage.MonitorTarget) string {
	if t.Service.Protocol == storage.ProtocolPing {
		return t.Server.Host + "/" + t.Service.Protocol
	}
	return net.JoinHostPort(t.Server.Host, strconv.Itoa(t.Service.Port)) + "/" + t.Service.Protocol
}
