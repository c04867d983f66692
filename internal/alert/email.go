package alert

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"pmon/internal/config"
	"pmon/internal/storage"
)

const defaultEmailSubject = "PMON Alert"

// EmailConfig is the channel configuration of an email channel.
type EmailConfig struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	// APIKey overrides the global SendGrid key for this channel.
	APIKey string `json:"api_key"`
}

// EmailSender delivers alerts through SendGrid. Without an API key the
// delivery is simulated and only logged.
type EmailSender struct {
	cfg config.EmailConfig
}

// NewEmailSender creates an email sender.
func NewEmailSender(cfg config.EmailConfig) *EmailSender {
	return &EmailSender{cfg: cfg}
}

// Type returns "email".
func (e *EmailSender) Type() string {
	return storage.ChannelTypeEmail
}

// Send delivers msg to the channel's recipient.
func (e *EmailSender) Send(ctx context.Context, channel storage.AlertChannel, msg Message) error {
	var cfg EmailConfig
	if err := decodeConfig(channel, &cfg); err != nil {
		return err
	}

	subject := cfg.Subject
	if subject == "" {
		subject = defaultEmailSubject
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = e.cfg.SendGridAPIKey
	}
	if apiKey == "" {
		log.Info().
			Str("channel", storage.ChannelTypeEmail).
			Int64("channel_id", channel.ID).
			Str("to", cfg.To).
			Str("subject", subject).
			Str("message", msg.Text).
			Msg("Simulated alert delivery")
		return nil
	}

	if !strings.Contains(cfg.To, "@") {
		return fmt.Errorf("email channel requires a recipient address")
	}

	body := fmt.Sprintf("%s\n\nTime: %s\n", msg.Text, msg.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	from := mail.NewEmail(e.cfg.FromName, e.cfg.From)
	to := mail.NewEmail("", cfg.To)
	message := mail.NewSingleEmail(from, subject, to, body, "<pre>"+html.EscapeString(body)+"</pre>")

	client := sendgrid.NewSendClient(apiKey)
	if e.cfg.APIHost != "" {
		client.BaseURL = strings.TrimRight(e.cfg.APIHost, "/") + "/v3/mail/send"
	}

	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid responded with status %d", response.StatusCode)
	}
	return nil
}
