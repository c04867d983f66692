package storage

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

var (
	validProtocols    = []string{ProtocolTCP, ProtocolUDP, ProtocolPing}
	validAlertTypes   = []string{AlertTypeStatusChange, AlertTypeConsecutiveFailures, AlertTypeLatencyThreshold, AlertTypeUptimePercentage}
	validChannelTypes = []string{ChannelTypeEmail, ChannelTypeSMS, ChannelTypePush, ChannelTypeWebhook}
)

// IsValidProtocol reports whether protocol is one the probe engine knows.
func IsValidProtocol(protocol string) bool {
	return slices.Contains(validProtocols, protocol)
}

// IsValidAlertType reports whether alertType is a known rule kind.
func IsValidAlertType(alertType string) bool {
	return slices.Contains(validAlertTypes, alertType)
}

// IsValidChannelType reports whether channelType is a known channel kind.
func IsValidChannelType(channelType string) bool {
	return slices.Contains(validChannelTypes, channelType)
}

// ValidateServer validates a Server entity before database operations.
func ValidateServer(s *Server) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("server name cannot be empty")
	}
	if len(s.Name) > 200 {
		return fmt.Errorf("server name too long (max 200 chars)")
	}
	if strings.TrimSpace(s.Host) == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if len(s.Host) > 255 {
		return fmt.Errorf("server host too long (max 255 chars)")
	}
	if strings.ContainsAny(s.Host, " /") {
		return fmt.Errorf("server host must be a hostname or IP address")
	}
	return nil
}

// ValidateService validates a Service entity before database operations.
func ValidateService(s *Service) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if !IsValidProtocol(s.Protocol) {
		return fmt.Errorf("unsupported protocol: %s", s.Protocol)
	}
	// Ping ignores the port, tcp and udp need a real one.
	if s.Protocol != ProtocolPing && (s.Port < 1 || s.Port > 65535) {
		return fmt.Errorf("service port out of range (1-65535)")
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("service port out of range (0-65535)")
	}
	if s.IsGlobal && s.TenantID != nil {
		return fmt.Errorf("global service cannot belong to a tenant")
	}
	if !s.IsGlobal && s.TenantID == nil {
		return fmt.Errorf("tenant service requires tenant_id")
	}
	return nil
}

// ValidateMonitor validates a Monitor entity before database operations.
func ValidateMonitor(m *Monitor) error {
	if m.TenantID == 0 || m.ServerID == 0 || m.ServiceID == 0 {
		return fmt.Errorf("monitor requires tenant_id, server_id and service_id")
	}
	if m.IntervalSeconds < 5 {
		return fmt.Errorf("monitor interval too short (minimum 5 seconds)")
	}
	if m.IntervalSeconds > 86400 {
		return fmt.Errorf("monitor interval too long (maximum 24 hours)")
	}
	if m.LastStatus != nil && *m.LastStatus != StatusUp && *m.LastStatus != StatusDown {
		return fmt.Errorf("invalid monitor status: %s", *m.LastStatus)
	}
	if m.LastError != nil && len(*m.LastError) > 500 {
		truncated := (*m.LastError)[:500]
		m.LastError = &truncated
	}
	if m.ConsecutiveFailures < 0 || m.ConsecutiveSuccesses < 0 || m.TotalFailures < 0 || m.TotalChecks < 0 {
		return fmt.Errorf("monitor counters cannot be negative")
	}
	if m.TotalFailures > m.TotalChecks {
		return fmt.Errorf("monitor total_failures cannot exceed total_checks")
	}
	return nil
}

// ValidateAlertChannel validates an AlertChannel entity before database operations.
func ValidateAlertChannel(c *AlertChannel) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("alert channel name cannot be empty")
	}
	if !IsValidChannelType(c.ChannelType) {
		return fmt.Errorf("unsupported channel type: %s", c.ChannelType)
	}
	if len(c.Config) == 0 {
		c.Config = []byte("{}")
	}

	var cfg map[string]any
	if err := json.Unmarshal(c.Config, &cfg); err != nil {
		return fmt.Errorf("alert channel config must be a JSON object: %w", err)
	}

	if c.ChannelType == ChannelTypeWebhook {
		return validateWebhookConfig(cfg)
	}
	return nil
}

func validateWebhookConfig(cfg map[string]any) error {
	raw, _ := cfg["url"].(string)
	if raw == "" {
		return fmt.Errorf("webhook config requires url")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webhook url must be an absolute http(s) URL")
	}
	if method, ok := cfg["method"]; ok {
		m, _ := method.(string)
		if m = strings.ToUpper(m); m != "POST" && m != "PUT" {
			return fmt.Errorf("webhook method must be POST or PUT")
		}
	}
	return nil
}

// ValidateAlertRule validates an AlertRule entity before database operations.
func ValidateAlertRule(r *AlertRule) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("alert rule name cannot be empty")
	}
	if r.MonitorID == 0 || r.AlertChannelID == 0 {
		return fmt.Errorf("alert rule requires monitor_id and alert_channel_id")
	}
	if !IsValidAlertType(r.AlertType) {
		return fmt.Errorf("unsupported alert type: %s", r.AlertType)
	}

	if r.CooldownMinutes == 0 {
		r.CooldownMinutes = DefaultCooldownMinutes
	}
	if r.CooldownMinutes < 1 || r.CooldownMinutes > 1440 {
		return fmt.Errorf("alert rule cooldown out of range (1-1440 minutes)")
	}

	switch r.AlertType {
	case AlertTypeConsecutiveFailures:
		if r.ConsecutiveFailuresThreshold == nil || *r.ConsecutiveFailuresThreshold < 1 {
			return fmt.Errorf("consecutive_failures rule requires a positive threshold")
		}
	case AlertTypeLatencyThreshold:
		if r.LatencyThresholdMs == nil || *r.LatencyThresholdMs <= 0 {
			return fmt.Errorf("latency_threshold rule requires a positive threshold")
		}
	case AlertTypeUptimePercentage:
		if r.UptimeThresholdPercentage == nil || *r.UptimeThresholdPercentage <= 0 || *r.UptimeThresholdPercentage > 100 {
			return fmt.Errorf("uptime_percentage rule requires a threshold in (0, 100]")
		}
	}
	return nil
}
