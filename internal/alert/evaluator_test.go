package alert

import (
	"math/rand"
	"strings"
	"testing"

	"pmon/internal/stats"
	"pmon/internal/storage"
)

func newTarget() storage.MonitorTarget {
	return storage.MonitorTarget{
		Monitor: storage.Monitor{ID: 7, TenantID: 1, ServerID: 2, ServiceID: 3, IntervalSeconds: 60, Enabled: true},
		Server:  storage.Server{ID: 2, TenantID: 1, Name: "web-1", Host: "10.0.0.1"},
		Service: storage.Service{ID: 3, Name: "https", Protocol: storage.ProtocolTCP, Port: 443},
	}
}

// probe applies one outcome to the target the way the store does.
func probe(t *storage.MonitorTarget, success bool, latency *float64) {
	m := &t.Monitor
	c := stats.Apply(stats.Counters{
		ConsecutiveFailures:  m.ConsecutiveFailures,
		ConsecutiveSuccesses: m.ConsecutiveSuccesses,
		TotalChecks:          m.TotalChecks,
		TotalFailures:        m.TotalFailures,
	}, success)

	status := storage.StatusDown
	m.LastError = nil
	m.LastLatencyMs = nil
	if success {
		status = storage.StatusUp
		m.LastLatencyMs = latency
	} else {
		errText := "connection refused"
		m.LastError = &errText
	}
	m.LastStatus = &status
	m.ConsecutiveFailures = c.ConsecutiveFailures
	m.ConsecutiveSuccesses = c.ConsecutiveSuccesses
	m.TotalChecks = c.TotalChecks
	m.TotalFailures = c.TotalFailures
	m.UptimePercentage = c.UptimePercentage
}

func binding(kind string) storage.RuleBinding {
	rule := storage.AlertRule{ID: 11, MonitorID: 7, AlertChannelID: 5, Name: kind, AlertType: kind, Enabled: true, CooldownMinutes: 5}
	return storage.RuleBinding{
		Rule:    rule,
		Channel: storage.AlertChannel{ID: 5, Name: "ops", ChannelType: storage.ChannelTypeWebhook, Enabled: true},
	}
}

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestStatusChangeFiresOncePerTransition(t *testing.T) {
	rules := []storage.RuleBinding{binding(storage.AlertTypeStatusChange)}
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 100; run++ {
		target := newTarget()
		fires, transitions := 0, 0
		var previous *bool

		for i := 0; i < 1+rng.Intn(60); i++ {
			ok := rng.Intn(2) == 0
			if previous == nil || *previous != ok {
				transitions++
			}
			previous = &ok

			probe(&target, ok, floatPtr(5))
			fires += len(Evaluate(target, rules))
		}

		if fires != transitions {
			t.Fatalf("Expected %d fires for %d transitions, got %d", transitions, transitions, fires)
		}
	}
}

func TestConsecutiveFailuresFiresOnStreakReachingThreshold(t *testing.T) {
	rule := binding(storage.AlertTypeConsecutiveFailures)
	rule.Rule.ConsecutiveFailuresThreshold = intPtr(3)
	rules := []storage.RuleBinding{rule}

	target := newTarget()
	outcomes := []bool{false, false, false, false, false, true, false, false, false, true}
	var firedAt []int
	for i, ok := range outcomes {
		probe(&target, ok, nil)
		if len(Evaluate(target, rules)) > 0 {
			firedAt = append(firedAt, i)
		}
	}

	if len(firedAt) != 2 || firedAt[0] != 2 || firedAt[1] != 8 {
		t.Errorf("Expected fires at probes 2 and 8, got %v", firedAt)
	}
}

func TestLevelTriggeredRules(t *testing.T) {
	t.Run("Latency fires on every slow probe", func(t *testing.T) {
		rule := binding(storage.AlertTypeLatencyThreshold)
		rule.Rule.LatencyThresholdMs = floatPtr(100)
		target := newTarget()

		for i := 0; i < 3; i++ {
			probe(&target, true, floatPtr(150))
			got := Evaluate(target, []storage.RuleBinding{rule})
			if len(got) != 1 {
				t.Fatalf("Expected latency rule to fire on probe %d", i)
			}
			if got[0].Details["current_latency_ms"] != 150.0 || got[0].Details["threshold_ms"] != 100.0 {
				t.Errorf("Unexpected details: %v", got[0].Details)
			}
		}
	})

	t.Run("Latency equal to threshold does not fire", func(t *testing.T) {
		rule := binding(storage.AlertTypeLatencyThreshold)
		rule.Rule.LatencyThresholdMs = floatPtr(100)
		target := newTarget()
		probe(&target, true, floatPtr(100))

		if got := Evaluate(target, []storage.RuleBinding{rule}); len(got) != 0 {
			t.Errorf("Expected no fire, got %d", len(got))
		}
	})

	t.Run("Failed probe without latency does not fire latency", func(t *testing.T) {
		rule := binding(storage.AlertTypeLatencyThreshold)
		rule.Rule.LatencyThresholdMs = floatPtr(100)
		target := newTarget()
		probe(&target, false, nil)

		if got := Evaluate(target, []storage.RuleBinding{rule}); len(got) != 0 {
			t.Errorf("Expected no fire, got %d", len(got))
		}
	})

	t.Run("Zero uptime fires", func(t *testing.T) {
		rule := binding(storage.AlertTypeUptimePercentage)
		rule.Rule.UptimeThresholdPercentage = floatPtr(99)
		target := newTarget()
		probe(&target, false, nil)

		got := Evaluate(target, []storage.RuleBinding{rule})
		if len(got) != 1 {
			t.Fatalf("Expected uptime rule to fire at 0%%, got %d", len(got))
		}
		if got[0].Details["total_checks"] != 1 || got[0].Details["total_failures"] != 1 {
			t.Errorf("Unexpected details: %v", got[0].Details)
		}
	})

	t.Run("Uptime before any probe does not fire", func(t *testing.T) {
		rule := binding(storage.AlertTypeUptimePercentage)
		rule.Rule.UptimeThresholdPercentage = floatPtr(99)

		if got := Evaluate(newTarget(), []storage.RuleBinding{rule}); len(got) != 0 {
			t.Errorf("Expected no fire, got %d", len(got))
		}
	})
}

func TestEvaluateSkips(t *testing.T) {
	target := newTarget()
	probe(&target, false, nil)

	t.Run("Disabled rule", func(t *testing.T) {
		rule := binding(storage.AlertTypeStatusChange)
		rule.Rule.Enabled = false
		if got := Evaluate(target, []storage.RuleBinding{rule}); len(got) != 0 {
			t.Errorf("Expected disabled rule to be skipped, got %d", len(got))
		}
	})

	t.Run("Missing threshold", func(t *testing.T) {
		rule := binding(storage.AlertTypeConsecutiveFailures)
		if got := Evaluate(target, []storage.RuleBinding{rule}); len(got) != 0 {
			t.Errorf("Expected rule without threshold to be skipped, got %d", len(got))
		}
	})

	t.Run("Unknown kind", func(t *testing.T) {
		if got := Evaluate(target, []storage.RuleBinding{binding("disk_full")}); len(got) != 0 {
			t.Errorf("Expected unknown kind to be skipped, got %d", len(got))
		}
	})
}

func TestMessages(t *testing.T) {
	target := newTarget()
	probe(&target, false, nil)

	got := Evaluate(target, []storage.RuleBinding{binding(storage.AlertTypeStatusChange)})
	if len(got) != 1 {
		t.Fatalf("Expected one alert, got %d", len(got))
	}

	msg := got[0].Message
	for _, want := range []string{"web-1", "10.0.0.1:443/tcp", "DOWN", "connection refused"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected message to contain '%s', got '%s'", want, msg)
		}
	}
	if got[0].Details["host"] != "10.0.0.1" || got[0].Details["port"] != 443 || got[0].Details["protocol"] != "tcp" {
		t.Errorf("Unexpected details: %v", got[0].Details)
	}

	t.Run("Ping endpoint omits port", func(t *testing.T) {
		pingTarget := newTarget()
		pingTarget.Service.Protocol = storage.ProtocolPing
		pingTarget.Service.Port = 0
		if got := endpoint(pingTarget); got != "10.0.0.1/ping" {
			t.Errorf("Expected '10.0.0.1/ping', got '%s'", got)
		}
	})
}
