package config

import "strings"

// normalizeConfig normalizes configuration values.
func normalizeConfig(c *Config) {
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Scheduler.InstanceID = strings.TrimSpace(c.Scheduler.InstanceID)

	// A pool wider than one batch never gets used.
	if c.Scheduler.WorkerCount > c.Scheduler.BatchLimit {
		c.Scheduler.WorkerCount = c.Scheduler.BatchLimit
	}
}
