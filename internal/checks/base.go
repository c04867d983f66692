// Package checks provides base functionality for all checker implementations.
package checks

import (
	"time"
)

// Target is one (host, port) pair to probe.
// A zero Timeout selects the checker's configured default.
type Target struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// Result is the outcome of one probe.
type Result struct {
	Success bool `json:"success"`
	// LatencyMs is nil when the probe failed.
	LatencyMs *float64 `json:"latency_ms"`
	Error     string   `json:"error,omitempty"`
	// Weak marks a success that only proves local socket setup (UDP).
	Weak bool `json:"weak,omitempty"`
}

// BaseChecker provides common result helpers for all checker implementations.
type BaseChecker struct{}

// NewBaseChecker creates a new base checker instance.
func NewBaseChecker() *BaseChecker {
	return &BaseChecker{}
}

// CreateErrorResult creates a standardized failed result. Failed probes carry no latency.
func (b *BaseChecker) CreateErrorResult(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// CreateSuccessResult creates a standardized success result.
func (b *BaseChecker) CreateSuccessResult(latency time.Duration) Result {
	ms := durationMs(latency)
	return Result{Success: true, LatencyMs: &ms}
}

// timeoutOr returns t unless it is zero or negative.
func timeoutOr(t, fallback time.Duration) time.Duration {
	if t <= 0 {
		return fallback
	}
	return t
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
