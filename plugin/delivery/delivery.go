// Package delivery hands finished notifications to the outside world.
// Delivery is at-least-once: the scheduler retries on failure, so every
// send carries an idempotency token receivers can deduplicate on.
package delivery

import (
	"context"
	"log/slog"
)

// Deliverer sends one notification to one recipient.
type Deliverer interface {
	// Deliver sends message to the recipient. Redeliveries of the same
	// notification reuse the same idempotency token.
	Deliver(ctx context.Context, recipientID, message, idempotencyToken string) error
	Name() string
}

// ConsoleDeliverer writes notifications to the structured log. Used in
// demo mode and as the fallback channel.
type ConsoleDeliverer struct {
	logger *slog.Logger
}

// NewConsoleDeliverer creates a console deliverer.
func NewConsoleDeliverer(logger *slog.Logger) *ConsoleDeliverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleDeliverer{logger: logger}
}

func (d *ConsoleDeliverer) Deliver(_ context.Context, recipientID, message, idempotencyToken string) error {
	d.logger.Info("notification",
		"recipient", recipientID,
		"message", message,
		"idempotency_token", idempotencyToken)
	return nil
}

func (d *ConsoleDeliverer) Name() string {
	return "console"
}

var _ Deliverer = (*ConsoleDeliverer)(nil)
