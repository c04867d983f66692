// Package stats keeps the rolling health counters of a monitor.
package stats

// Counters is the statistical state of one monitor.
type Counters struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	TotalChecks          int
	TotalFailures        int
	UptimePercentage     *float64
}

// Apply folds one probe outcome into c and returns the updated counters.
// Exactly one of the consecutive counters is nonzero afterwards.
func Apply(c Counters, success bool) Counters {
	c.TotalChecks++
	if success {
		c.ConsecutiveSuccesses++
		c.ConsecutiveFailures = 0
	} else {
		c.ConsecutiveFailures++
		c.ConsecutiveSuccesses = 0
		c.TotalFailures++
	}

	uptime := Uptime(c.TotalChecks, c.TotalFailures)
	c.UptimePercentage = &uptime
	return c
}

// Uptime returns the share of successful checks as 0..100.
// It returns 0 when no check has run yet.
func Uptime(totalChecks, totalFailures int) float64 {
	if totalChecks <= 0 {
		return 0
	}
	return float64(totalChecks-totalFailures) / float64(totalChecks) * 100
}
