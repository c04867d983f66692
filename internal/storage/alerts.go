package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// History listing bounds.
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// RuleBinding is an alert rule together with the channel it delivers through.
type RuleBinding struct {
	Rule    AlertRule
	Channel AlertChannel
}

// GetAlertRule returns an alert rule by id.
func (s *Storage) GetAlertRule(ctx context.Context, id int64) (*AlertRule, error) {
	var r AlertRule
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// RulesFor returns every rule attached to monitorID with its channel, ordered by rule id.
func (s *Storage) RulesFor(ctx context.Context, monitorID int64) ([]RuleBinding, error) {
	var rules []AlertRule
	err := s.db.WithContext(ctx).
		Where("monitor_id = ?", monitorID).
		Order("id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}

	channelIDs := make([]int64, 0, len(rules))
	for _, r := range rules {
		channelIDs = append(channelIDs, r.AlertChannelID)
	}
	var channels []AlertChannel
	if err := s.db.WithContext(ctx).Where("id IN ?", channelIDs).Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("failed to load alert channels: %w", err)
	}
	channelByID := make(map[int64]AlertChannel, len(channels))
	for _, c := range channels {
		channelByID[c.ID] = c
	}

	bindings := make([]RuleBinding, 0, len(rules))
	for _, r := range rules {
		ch, ok := channelByID[r.AlertChannelID]
		if !ok {
			log.Warn().Int64("rule_id", r.ID).Msg("Alert rule references a missing channel, skipping")
			continue
		}
		bindings = append(bindings, RuleBinding{Rule: r, Channel: ch})
	}
	return bindings, nil
}

// CanTrigger re-reads the rule and reports whether it is enabled and out of cooldown at now.
func (s *Storage) CanTrigger(ctx context.Context, ruleID int64, now time.Time) (bool, error) {
	r, err := s.GetAlertRule(ctx, ruleID)
	if err != nil {
		return false, err
	}
	return CooldownElapsed(r, now), nil
}

// CooldownElapsed reports whether r may fire at now.
func CooldownElapsed(r *AlertRule, now time.Time) bool {
	if !r.Enabled {
		return false
	}
	if r.LastTriggeredAt == nil {
		return true
	}
	cooldown := time.Duration(r.CooldownMinutes) * time.Minute
	return !now.Before(r.LastTriggeredAt.Add(cooldown))
}

// MarkTriggered stamps the rule's last trigger time.
func (s *Storage) MarkTriggered(ctx context.Context, ruleID int64, now time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&AlertRule{}).
		Where("id = ?", ruleID).
		UpdateColumn("last_triggered_at", now.UTC()).Error
	if err != nil {
		return fmt.Errorf("failed to mark rule %d triggered: %w", ruleID, err)
	}
	return nil
}

// RecordHistory appends one dispatch attempt.
func (s *Storage) RecordHistory(ctx context.Context, h *AlertHistory) error {
	h.SentAt = h.SentAt.UTC()
	if h.ErrorMessage != nil && len(*h.ErrorMessage) > 500 {
		truncated := (*h.ErrorMessage)[:500]
		h.ErrorMessage = &truncated
	}
	if err := s.db.WithContext(ctx).Create(h).Error; err != nil {
		return fmt.Errorf("failed to record alert history: %w", err)
	}
	return nil
}

// ListAlertHistory returns a tenant's dispatch attempts, newest first.
// limit is clamped to [1, MaxHistoryLimit].
func (s *Storage) ListAlertHistory(ctx context.Context, tenantID int64, limit int) ([]AlertHistory, error) {
	limit = min(max(limit, 1), MaxHistoryLimit)

	var history []AlertHistory
	err := s.db.WithContext(ctx).
		Joins("JOIN alert_rules ON alert_rules.id = alert_histories.alert_rule_id").
		Where("alert_rules.tenant_id = ?", tenantID).
		Order("alert_histories.sent_at DESC").
		Order("alert_histories.id DESC").
		Limit(limit).
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alert history: %w", err)
	}
	return history, nil
}
