package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pmon/internal/storage"
)

// Message is the payload handed to a channel.
type Message struct {
	Text      string
	Timestamp time.Time
	Details   map[string]any
}

// Sender delivers a message through one kind of channel.
// A nil error means the channel accepted the message.
type Sender interface {
	Send(ctx context.Context, channel storage.AlertChannel, msg Message) error

	// Type returns the channel type identifier.
	Type() string
}

// decodeConfig parses a channel's JSON configuration into out.
func decodeConfig(channel storage.AlertChannel, out any) error {
	raw := []byte(channel.Config)
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid %s channel config: %w", channel.ChannelType, err)
	}
	return nil
}

// simulatedSender logs the delivery instead of performing it. It stands in
// for channels without a real integration and fails only on bad config.
type simulatedSender struct {
	channelType string
	recipient   string // config key naming the recipient
}

// NewSMSSender returns a simulated SMS sender.
func NewSMSSender() Sender {
	return &simulatedSender{channelType: storage.ChannelTypeSMS, recipient: "phone_number"}
}

// NewPushSender returns a simulated push notification sender.
func NewPushSender() Sender {
	return &simulatedSender{channelType: storage.ChannelTypePush, recipient: "device_token"}
}

func (s *simulatedSender) Type() string {
	return s.channelType
}

func (s *simulatedSender) Send(ctx context.Context, channel storage.AlertChannel, msg Message) error {
	var cfg map[string]any
	if err := decodeConfig(channel, &cfg); err != nil {
		return err
	}

	to, _ := cfg[s.recipient].(string)
	log.Info().
		Str("channel", s.channelType).
		Int64("channel_id", channel.ID).
		Str("to", to).
		Str("message", msg.Text).
		Msg("Simulated alert delivery")
	return nil
}
