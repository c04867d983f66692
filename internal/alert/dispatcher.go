package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pmon/internal/config"
	"pmon/internal/storage"
)

// Store is the persistence the dispatcher needs for cooldown and history.
type Store interface {
	CanTrigger(ctx context.Context, ruleID int64, now time.Time) (bool, error)
	MarkTriggered(ctx context.Context, ruleID int64, now time.Time) error
	RecordHistory(ctx context.Context, h *storage.AlertHistory) error
}

// Outcome describes what Dispatch did with one triggered rule.
type Outcome struct {
	// Attempted is false when the rule was skipped before any send.
	Attempted bool
	// SkipReason explains a skip: "cooldown" or "channel disabled".
	SkipReason string
	Success    bool
	Error      string
}

// Dispatcher sends triggered alerts through their channels.
type Dispatcher struct {
	store   Store
	senders map[string]Sender
	now     func() time.Time
}

// NewDispatcher creates a dispatcher with the webhook, email, sms and push senders.
func NewDispatcher(store Store, cfg config.AlertConfig) *Dispatcher {
	d := &Dispatcher{
		store:   store,
		senders: make(map[string]Sender),
		now:     func() time.Time { return time.Now().UTC() },
	}

	d.RegisterSender(NewWebhookSender(cfg.Webhook))
	d.RegisterSender(NewEmailSender(cfg.Email))
	d.RegisterSender(NewSMSSender())
	d.RegisterSender(NewPushSender())

	return d
}

// RegisterSender adds or replaces the sender for its channel type.
func (d *Dispatcher) RegisterSender(s Sender) {
	d.senders[s.Type()] = s
}

// SetClock replaces the dispatcher's time source.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Dispatch delivers one triggered alert.
//
// Cooldown is checked against the stored rule right before sending. Every
// attempted send leaves exactly one history row; only a successful send
// starts a new cooldown window. Delivery failures are reported in the
// Outcome, never as an error. The error return is reserved for store
// failures.
func (d *Dispatcher) Dispatch(ctx context.Context, t Triggered) (Outcome, error) {
	rule := t.Binding.Rule
	channel := t.Binding.Channel
	now := d.now()

	allowed, err := d.store.CanTrigger(ctx, rule.ID, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to check cooldown for rule %d: %w", rule.ID, err)
	}
	if !allowed {
		log.Debug().Int64("rule_id", rule.ID).Msg("Alert rule cooling down, skipping")
		return Outcome{SkipReason: "cooldown"}, nil
	}

	if !channel.Enabled {
		log.Debug().Int64("rule_id", rule.ID).Int64("channel_id", channel.ID).Msg("Alert channel disabled, skipping")
		return Outcome{SkipReason: "channel disabled"}, nil
	}

	sendErr := d.send(ctx, channel, Message{Text: t.Message, Timestamp: now, Details: t.Details})
	outcome := Outcome{Attempted: true, Success: sendErr == nil}
	if sendErr != nil {
		outcome.Error = sendErr.Error()
	}

	history := &storage.AlertHistory{
		AlertRuleID:      rule.ID,
		AlertType:        rule.AlertType,
		Message:          t.Message,
		Details:          encodeDetails(t.Details),
		SentAt:           now,
		SentSuccessfully: outcome.Success,
	}
	if sendErr != nil {
		errText := outcome.Error
		history.ErrorMessage = &errText
	}
	if err := d.store.RecordHistory(ctx, history); err != nil {
		return outcome, err
	}

	if outcome.Success {
		if err := d.store.MarkTriggered(ctx, rule.ID, now); err != nil {
			return outcome, err
		}
		log.Info().
			Int64("rule_id", rule.ID).
			Str("alert_type", rule.AlertType).
			Str("channel", channel.ChannelType).
			Msg("Alert sent")
	} else {
		log.Warn().
			Int64("rule_id", rule.ID).
			Str("alert_type", rule.AlertType).
			Str("channel", channel.ChannelType).
			Str("error", outcome.Error).
			Msg("Alert delivery failed")
	}

	return outcome, nil
}

// send resolves the channel's sender and turns panics into errors.
func (d *Dispatcher) send(ctx context.Context, channel storage.AlertChannel, msg Message) (err error) {
	sender, ok := d.senders[channel.ChannelType]
	if !ok {
		return fmt.Errorf("unsupported channel type: %s", channel.ChannelType)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s sender panicked: %v", channel.ChannelType, r)
		}
	}()
	return sender.Send(ctx, channel, msg)
}

func encodeDetails(details map[string]any) []byte {
	if details == nil {
		return []byte("{}")
	}
	raw, err := json.Marshal(details)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode alert details")
		return []byte("{}")
	}
	return raw
}
