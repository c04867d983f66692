// Package storage defines the data models for the PMON port monitor.
//
// All models use GORM struct tags for column mapping, indexes and
// foreign-key constraints. Relation fields exist only so that AutoMigrate
// emits ON DELETE CASCADE constraints; they are never loaded or traversed.
// Queries that need related rows assemble them explicitly (see MonitorTarget
// and RuleBinding).
package storage

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tenant is an isolated customer owning servers, services, monitors and channels.
type Tenant struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null;uniqueIndex" json:"name"`
	APIKey    string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// Server is a host owned by a tenant.
type Server struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	TenantID  int64     `gorm:"not null;uniqueIndex:uq_server_tenant_host" json:"tenant_id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Host      string    `gorm:"size:255;not null;index;uniqueIndex:uq_server_tenant_host" json:"host"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	Tenant *Tenant `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Service is a (protocol, port) definition. Global services have no tenant.
type Service struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	TenantID  *int64    `gorm:"uniqueIndex:uq_service_tenant_proto_port" json:"tenant_id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Protocol  string    `gorm:"size:8;not null;uniqueIndex:uq_service_tenant_proto_port" json:"protocol"`
	Port      int       `gorm:"not null;uniqueIndex:uq_service_tenant_proto_port" json:"port"`
	IsGlobal  bool      `gorm:"not null" json:"is_global"`
	Location  *string   `gorm:"size:100" json:"location,omitempty"`
	Country   *string   `gorm:"size:50" json:"country,omitempty"`
	City      *string   `gorm:"size:100" json:"city,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	Tenant *Tenant `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Monitor binds one server to one service and carries its probe state.
type Monitor struct {
	ID        int64 `gorm:"primaryKey" json:"id"`
	TenantID  int64 `gorm:"not null;index;uniqueIndex:uq_monitor_tenant_server_service" json:"tenant_id"`
	ServerID  int64 `gorm:"not null;index;uniqueIndex:uq_monitor_tenant_server_service" json:"server_id"`
	ServiceID int64 `gorm:"not null;index;uniqueIndex:uq_monitor_tenant_server_service" json:"service_id"`

	IntervalSeconds int  `gorm:"not null" json:"interval_seconds"`
	Enabled         bool `gorm:"not null;index:idx_monitor_due,priority:1" json:"enabled"`

	// LastStatus is StatusUp, StatusDown or nil before the first probe.
	LastStatus    *string    `gorm:"size:32" json:"last_status"`
	LastError     *string    `gorm:"size:500" json:"last_error"`
	LastLatencyMs *float64   `json:"last_latency_ms"`
	LastCheckedAt *time.Time `json:"last_checked_at"`
	NextRunAt     *time.Time `gorm:"index:idx_monitor_due,priority:2" json:"next_run_at"`

	ConsecutiveFailures  int      `gorm:"not null" json:"consecutive_failures"`
	ConsecutiveSuccesses int      `gorm:"not null" json:"consecutive_successes"`
	TotalChecks          int      `gorm:"not null" json:"total_checks"`
	TotalFailures        int      `gorm:"not null" json:"total_failures"`
	UptimePercentage     *float64 `json:"uptime_percentage"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	Tenant  *Tenant  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Server  *Server  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Service *Service `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// AlertChannel is a delivery target. Config is an opaque JSON object whose
// shape depends on ChannelType.
type AlertChannel struct {
	ID          int64          `gorm:"primaryKey" json:"id"`
	TenantID    int64          `gorm:"not null;uniqueIndex:uq_alert_channel_tenant_name" json:"tenant_id"`
	Name        string         `gorm:"size:200;not null;uniqueIndex:uq_alert_channel_tenant_name" json:"name"`
	ChannelType string         `gorm:"size:16;not null" json:"channel_type"`
	Config      datatypes.JSON `gorm:"not null" json:"config"`
	Enabled     bool           `gorm:"not null" json:"enabled"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`

	Tenant *Tenant `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// AlertRule attaches an alert condition on a monitor to a channel.
type AlertRule struct {
	ID             int64  `gorm:"primaryKey" json:"id"`
	TenantID       int64  `gorm:"not null;index" json:"tenant_id"`
	MonitorID      int64  `gorm:"not null;index;uniqueIndex:uq_alert_rule_monitor_type" json:"monitor_id"`
	AlertChannelID int64  `gorm:"not null;index" json:"alert_channel_id"`
	Name           string `gorm:"size:200;not null" json:"name"`
	AlertType      string `gorm:"size:32;not null;uniqueIndex:uq_alert_rule_monitor_type" json:"alert_type"`

	ConsecutiveFailuresThreshold *int     `json:"consecutive_failures_threshold"`
	LatencyThresholdMs           *float64 `json:"latency_threshold_ms"`
	UptimeThresholdPercentage    *float64 `json:"uptime_threshold_percentage"`

	Enabled         bool       `gorm:"not null" json:"enabled"`
	CooldownMinutes int        `gorm:"not null" json:"cooldown_minutes"`
	LastTriggeredAt *time.Time `json:"last_triggered_at"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`

	Tenant       *Tenant       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Monitor      *Monitor      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	AlertChannel *AlertChannel `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// AlertHistory is an append-only record of one dispatch attempt.
type AlertHistory struct {
	ID               int64          `gorm:"primaryKey" json:"id"`
	AlertRuleID      int64          `gorm:"not null;index" json:"alert_rule_id"`
	AlertType        string         `gorm:"size:32;not null" json:"alert_type"`
	Message          string         `gorm:"type:text;not null" json:"message"`
	Details          datatypes.JSON `json:"details"`
	SentAt           time.Time      `gorm:"not null;index" json:"sent_at"`
	SentSuccessfully bool           `gorm:"not null" json:"sent_successfully"`
	ErrorMessage     *string        `gorm:"size:500" json:"error_message"`

	AlertRule *AlertRule `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// SchedulerLease is the single leadership row shared by all scheduler instances.
type SchedulerLease struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false"`
	OwnerID   string    `gorm:"size:100;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for Tenant.
func (*Tenant) TableName() string {
	return "tenants"
}

// TableName returns the database table name for Server.
func (*Server) TableName() string {
	return "servers"
}

// TableName returns the database table name for Service.
func (*Service) TableName() string {
	return "service_definitions"
}

// TableName returns the database table name for Monitor.
func (*Monitor) TableName() string {
	return "monitors"
}

// TableName returns the database table name for AlertChannel.
func (*AlertChannel) TableName() string {
	return "alert_channels"
}

// TableName returns the database table name for AlertRule.
func (*AlertRule) TableName() string {
	return "alert_rules"
}

// TableName returns the database table name for AlertHistory.
func (*AlertHistory) TableName() string {
	return "alert_histories"
}

// TableName returns the database table name for SchedulerLease.
func (*SchedulerLease) TableName() string {
	return "scheduler_leases"
}

// Validate validates the Server entity.
func (s *Server) Validate() error {
	return ValidateServer(s)
}

// Validate validates the Service entity.
func (s *Service) Validate() error {
	return ValidateService(s)
}

// Validate validates the Monitor entity.
func (m *Monitor) Validate() error {
	return ValidateMonitor(m)
}

// Validate validates the AlertChannel entity.
func (c *AlertChannel) Validate() error {
	return ValidateAlertChannel(c)
}

// Validate validates the AlertRule entity.
func (r *AlertRule) Validate() error {
	return ValidateAlertRule(r)
}

// BeforeSave runs Validate on every create and full save.
func (s *Server) BeforeSave(*gorm.DB) error { return s.Validate() }

// BeforeSave runs Validate on every create and full save.
func (s *Service) BeforeSave(*gorm.DB) error { return s.Validate() }

// BeforeSave runs Validate on every create and full save.
func (m *Monitor) BeforeSave(*gorm.DB) error { return m.Validate() }

// BeforeSave runs Validate on every create and full save.
func (c *AlertChannel) BeforeSave(*gorm.DB) error { return c.Validate() }

// BeforeSave runs Validate on every create and full save.
func (r *AlertRule) BeforeSave(*gorm.DB) error { return r.Validate() }

// Protocol constants define the supported probe protocols.
const (
	ProtocolTCP  = "tcp"
	ProtocolUDP  = "udp"
	ProtocolPing = "ping"
)

// Monitor status constants.
const (
	StatusUp   = "up"
	StatusDown = "down"
)

// AlertType constants define the supported alert rule kinds.
const (
	AlertTypeStatusChange        = "status_change"
	AlertTypeConsecutiveFailures = "consecutive_failures"
	AlertTypeLatencyThreshold    = "latency_threshold"
	AlertTypeUptimePercentage    = "uptime_percentage"
)

// ChannelType constants define the supported alert channel kinds.
const (
	ChannelTypeEmail   = "email"
	ChannelTypeSMS     = "sms"
	ChannelTypePush    = "push"
	ChannelTypeWebhook = "webhook"
)

// DefaultCooldownMinutes is applied to rules created without a cooldown.
const DefaultCooldownMinutes = 5
