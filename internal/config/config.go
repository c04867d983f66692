package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete configuration schema for the PMON port monitor.
//
// Configuration sources (in order of precedence):
//  1. Defaults
//  2. Configuration file (optional)
//  3. Environment variables
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Alert     AlertConfig     `mapstructure:"alert" yaml:"alert"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Checks    ChecksConfig    `mapstructure:"checks" yaml:"checks"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

type StorageConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"` // sqlite, postgres
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

type AlertConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook" yaml:"webhook"`
	Email   EmailConfig   `mapstructure:"email" yaml:"email"`
}

type WebhookConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type EmailConfig struct {
	SendGridAPIKey string `mapstructure:"sendgrid_api_key" yaml:"sendgrid_api_key"`
	From           string `mapstructure:"from" yaml:"from"`
	FromName       string `mapstructure:"from_name" yaml:"from_name"`
	APIHost        string `mapstructure:"api_host" yaml:"api_host"`
}

// SchedulerConfig holds the operational knobs of the tick loop.
type SchedulerConfig struct {
	// Enabled is the kill-switch; when false the tick loop never starts.
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	InstanceID   string        `mapstructure:"instance_id" yaml:"instance_id"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	LeaseTTL     time.Duration `mapstructure:"lease_ttl" yaml:"lease_ttl"`
	BatchLimit   int           `mapstructure:"batch_limit" yaml:"batch_limit"`
	WorkerCount  int           `mapstructure:"worker_count" yaml:"worker_count"`
}

type ChecksConfig struct {
	TCP  TCPDefaultsConfig  `mapstructure:"tcp" yaml:"tcp"`
	UDP  UDPDefaultsConfig  `mapstructure:"udp" yaml:"udp"`
	Ping PingDefaultsConfig `mapstructure:"ping" yaml:"ping"`
}

type TCPDefaultsConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type UDPDefaultsConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Payload string        `mapstructure:"payload" yaml:"payload"`
}

type PingDefaultsConfig struct {
	Count   int           `mapstructure:"count" yaml:"count"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error, fatal, panic
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"` // human-readable console output
}

// Load loads configuration from defaults, configuration file,
// and environment variables, then validates the result.
//
// The function fails fast on:
//   - Invalid configuration file
//   - Invalid or missing required configuration values
func Load() (*Config, error) {
	v := viper.New()

	// Register default values
	setDefaults(v)

	// Environment variable support
	v.SetEnvPrefix("PMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(false)
	v.AutomaticEnv()

	// Optional configuration file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if configDir := getConfigDir(); configDir != "" {
		v.AddConfigPath(configDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	// PMON_INSTANCE_ID predates the scheduler section and is still honoured.
	if _, exists := os.LookupEnv("PMON_INSTANCE_ID"); exists {
		v.BindEnv("scheduler.instance_id", "PMON_SCHEDULER_INSTANCE_ID", "PMON_INSTANCE_ID")
	}
	if _, exists := os.LookupEnv("PMON_ALERT_EMAIL_SENDGRID_API_KEY"); exists {
		v.BindEnv("alert.email.sendgrid_api_key", "PMON_ALERT_EMAIL_SENDGRID_API_KEY")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalizeConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// getConfigDir returns the appropriate config directory for the current OS
func getConfigDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "pmon")
		}
		return ""
	}

	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".pmon")
	}
	return ""
}
