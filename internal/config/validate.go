package config

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	validLogLevels      = []string{"debug", "info", "warn", "error", "fatal", "panic"}
	validStorageDrivers = []string{"sqlite", "postgres"}
)

// validateConfig validates the configuration and returns an error if invalid.
func validateConfig(c *Config) error {
	for _, validate := range []func() error{
		func() error { return validateServerConfig(c.Server) },
		func() error { return validateStorageConfig(c.Storage) },
		func() error { return validateAlertConfig(c.Alert) },
		func() error { return validateSchedulerConfig(c.Scheduler) },
		func() error { return validateChecksConfig(c.Checks) },
		func() error { return validateLogConfig(c.Log) },
	} {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// validateServerConfig validates server configuration.
func validateServerConfig(s ServerConfig) error {
	if !s.Enabled {
		return nil
	}
	if s.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	_, portStr, err := net.SplitHostPort(s.Addr)
	if err != nil {
		return fmt.Errorf("server.addr invalid format: %w", err)
	}

	if portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("server.addr invalid port: %w", err)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("server.addr port out of range (1-65535)")
		}
	}

	if s.ReadTimeout < time.Second {
		return fmt.Errorf("server.read_timeout too small (min 1s)")
	}
	if s.WriteTimeout < time.Second {
		return fmt.Errorf("server.write_timeout too small (min 1s)")
	}
	if s.IdleTimeout <= 0 {
		return fmt.Errorf("server.idle_timeout must be greater than 0")
	}
	if s.ReadTimeout > 5*time.Minute || s.WriteTimeout > 5*time.Minute {
		return fmt.Errorf("server read/write timeout too large (max 5m)")
	}

	return nil
}

// validateStorageConfig validates storage configuration.
func validateStorageConfig(s StorageConfig) error {
	if !slices.Contains(validStorageDrivers, s.Driver) {
		return fmt.Errorf("storage.driver must be one of: %s", strings.Join(validStorageDrivers, ", "))
	}
	if s.DSN == "" {
		return fmt.Errorf("storage.dsn cannot be empty")
	}

	if s.MaxOpenConns <= 0 {
		return fmt.Errorf("storage.max_open_conns must be greater than 0")
	}
	if s.MaxIdleConns < 0 {
		return fmt.Errorf("storage.max_idle_conns cannot be negative")
	}
	if s.MaxIdleConns > s.MaxOpenConns {
		return fmt.Errorf("storage.max_idle_conns cannot be greater than max_open_conns")
	}
	if s.MaxOpenConns > 1000 {
		return fmt.Errorf("storage.max_open_conns too large (max 1000)")
	}
	if s.ConnMaxLifetime < time.Minute {
		return fmt.Errorf("storage.conn_max_lifetime too small (min 1m)")
	}
	if s.ConnMaxLifetime > 24*time.Hour {
		return fmt.Errorf("storage.conn_max_lifetime too large (max 24h)")
	}

	return nil
}

// validateAlertConfig validates alert configuration.
func validateAlertConfig(a AlertConfig) error {
	if a.Webhook.Timeout < time.Second {
		return fmt.Errorf("alert.webhook.timeout too small (min 1s)")
	}
	if a.Webhook.Timeout > 2*time.Minute {
		return fmt.Errorf("alert.webhook.timeout too large (max 2m)")
	}

	if a.Email.SendGridAPIKey != "" && !strings.Contains(a.Email.From, "@") {
		return fmt.Errorf("alert.email.from must be an email address when sendgrid is configured")
	}

	return nil
}

// validateSchedulerConfig validates scheduler configuration.
func validateSchedulerConfig(s SchedulerConfig) error {
	if s.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("scheduler.poll_interval too small (min 100ms)")
	}
	if s.PollInterval > time.Hour {
		return fmt.Errorf("scheduler.poll_interval too large (max 1h)")
	}

	// A lease shorter than one tick would lapse between renewals.
	if s.LeaseTTL <= s.PollInterval {
		return fmt.Errorf("scheduler.lease_ttl must be greater than scheduler.poll_interval")
	}

	if s.BatchLimit <= 0 {
		return fmt.Errorf("scheduler.batch_limit must be greater than 0")
	}
	if s.BatchLimit > 1000 {
		return fmt.Errorf("scheduler.batch_limit too large (max 1000)")
	}

	if s.WorkerCount <= 0 {
		return fmt.Errorf("scheduler.worker_count must be greater than 0")
	}

	if len(s.InstanceID) > 128 {
		return fmt.Errorf("scheduler.instance_id too long (max 128 chars)")
	}

	return nil
}

// validateChecksConfig validates probe defaults.
func validateChecksConfig(c ChecksConfig) error {
	for name, timeout := range map[string]time.Duration{
		"checks.tcp.timeout":  c.TCP.Timeout,
		"checks.udp.timeout":  c.UDP.Timeout,
		"checks.ping.timeout": c.Ping.Timeout,
	} {
		if timeout <= 0 {
			return fmt.Errorf("%s must be greater than 0", name)
		}
		if timeout > time.Minute {
			return fmt.Errorf("%s too large (max 1m)", name)
		}
	}

	if c.Ping.Count < 1 || c.Ping.Count > 10 {
		return fmt.Errorf("checks.ping.count must be between 1 and 10")
	}

	return nil
}

// validateLogConfig validates log configuration.
func validateLogConfig(l LogConfig) error {
	if !slices.Contains(validLogLevels, strings.ToLower(l.Level)) {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error, fatal, panic")
	}
	return nil
}
