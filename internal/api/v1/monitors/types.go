package monitors

import (
	"time"

	"pmon/internal/storage"
)

// CheckResponse is the state of a monitor right after an on-demand check.
type CheckResponse struct {
	ID                   int64      `json:"id"`
	Status               *string    `json:"status"`
	LastError            *string    `json:"last_error"`
	LastLatencyMs        *float64   `json:"last_latency_ms"`
	LastCheckedAt        *time.Time `json:"last_checked_at"`
	NextRunAt            *time.Time `json:"next_run_at"`
	ConsecutiveFailures  int        `json:"consecutive_failures"`
	ConsecutiveSuccesses int        `json:"consecutive_successes"`
	TotalChecks          int        `json:"total_checks"`
	TotalFailures        int        `json:"total_failures"`
	UptimePercentage     *float64   `json:"uptime_percentage"`
}

func toCheckResponse(m *storage.Monitor) CheckResponse {
	return CheckResponse{
		ID:                   m.ID,
		Status:               m.LastStatus,
		LastError:            m.LastError,
		LastLatencyMs:        m.LastLatencyMs,
		LastCheckedAt:        m.LastCheckedAt,
		NextRunAt:            m.NextRunAt,
		ConsecutiveFailures:  m.ConsecutiveFailures,
		ConsecutiveSuccesses: m.ConsecutiveSuccesses,
		TotalChecks:          m.TotalChecks,
		TotalFailures:        m.TotalFailures,
		UptimePercentage:     m.UptimePercentage,
	}
}
