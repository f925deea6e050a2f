package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// WebhookConfig holds webhook configuration.
type WebhookConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
	Headers map[string]string
}

// WebhookDeliverer posts notifications to an HTTP endpoint.
type WebhookDeliverer struct {
	config     WebhookConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// WebhookPayload is the webhook request body.
type WebhookPayload struct {
	Event            string    `json:"event"`
	RecipientID      string    `json:"recipient_id"`
	Message          string    `json:"message"`
	IdempotencyToken string    `json:"idempotency_token"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewWebhookDeliverer creates a webhook deliverer.
func NewWebhookDeliverer(config WebhookConfig) *WebhookDeliverer {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &WebhookDeliverer{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: slog.Default(),
	}
}

func (d *WebhookDeliverer) Deliver(ctx context.Context, recipientID, message, idempotencyToken string) error {
	payload := WebhookPayload{
		Event:            "reminder.fired",
		RecipientID:      recipientID,
		Message:          message,
		IdempotencyToken: idempotencyToken,
		Timestamp:        time.Now(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyToken)
	if d.config.Secret != "" {
		req.Header.Set("X-Webhook-Secret", d.config.Secret)
	}
	for k, v := range d.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Error("webhook request failed", "url", d.config.URL, "error", err)
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		d.logger.Error("webhook returned error",
			"url", d.config.URL,
			"status", resp.StatusCode,
			"response", string(respBody))
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	d.logger.Debug("webhook notification sent",
		"recipient", recipientID,
		"url", d.config.URL,
		"status", resp.StatusCode)

	return nil
}

func (d *WebhookDeliverer) Name() string {
	return "webhook"
}

var _ Deliverer = (*WebhookDeliverer)(nil)
