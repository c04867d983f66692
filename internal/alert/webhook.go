package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pmon/internal/config"
	"pmon/internal/storage"
)

// WebhookConfig is the channel configuration of a webhook channel.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
}

// webhookPayload is the JSON body sent to webhook endpoints.
type webhookPayload struct {
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Details   map[string]any `json:"details"`
}

// WebhookSender posts alerts as JSON to an HTTP endpoint.
type WebhookSender struct {
	client *http.Client
}

// NewWebhookSender creates a webhook sender with the configured request timeout.
func NewWebhookSender(cfg config.WebhookConfig) *WebhookSender {
	return &WebhookSender{client: &http.Client{Timeout: cfg.Timeout}}
}

// Type returns "webhook".
func (w *WebhookSender) Type() string {
	return storage.ChannelTypeWebhook
}

// Send issues a POST or PUT with body {message, timestamp, details}.
// Any non-2xx response is an error.
func (w *WebhookSender) Send(ctx context.Context, channel storage.AlertChannel, msg Message) error {
	var cfg WebhookConfig
	if err := decodeConfig(channel, &cfg); err != nil {
		return err
	}
	if cfg.URL == "" {
		return fmt.Errorf("webhook url is not configured")
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}
	if method != http.MethodPost && method != http.MethodPut {
		return fmt.Errorf("unsupported webhook method: %s", cfg.Method)
	}

	details := msg.Details
	if details == nil {
		details = map[string]any{}
	}
	body, err := json.Marshal(webhookPayload{
		Message:   msg.Text,
		Timestamp: msg.Timestamp.UTC().Format(time.RFC3339),
		Details:   details,
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PMON-Alert/1.0")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}
