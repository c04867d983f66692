package config

import "github.com/spf13/viper"

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "pmon.db")
	v.SetDefault("storage.max_open_conns", 32)
	v.SetDefault("storage.max_idle_conns", 8)
	v.SetDefault("storage.conn_max_lifetime", "1h")

	// Alert defaults
	v.SetDefault("alert.webhook.timeout", "10s")
	v.SetDefault("alert.email.sendgrid_api_key", "")
	v.SetDefault("alert.email.from", "alerts@pmon.local")
	v.SetDefault("alert.email.from_name", "PMON")
	v.SetDefault("alert.email.api_host", "https://api.sendgrid.com")

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.instance_id", "")
	v.SetDefault("scheduler.poll_interval", "2s")
	v.SetDefault("scheduler.lease_ttl", "10s")
	v.SetDefault("scheduler.batch_limit", 50)
	v.SetDefault("scheduler.worker_count", 50)

	// Probe defaults
	v.SetDefault("checks.tcp.timeout", "3s")
	v.SetDefault("checks.udp.timeout", "1s")
	v.SetDefault("checks.udp.payload", "ping")
	v.SetDefault("checks.ping.count", 3)
	v.SetDefault("checks.ping.timeout", "5s")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}
