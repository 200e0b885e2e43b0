package store

import (
	"context"

	"github.com/514-labs/cla-bot-sub001/pkg/db"
)

// WebhookDeliveryStore deduplicates inbound webhook deliveries.
type WebhookDeliveryStore interface {
	// ReserveWebhookDelivery atomically records a delivery id. It returns
	// false when the id was already recorded, closing the race between two
	// near-simultaneous retries of the same delivery.
	ReserveWebhookDelivery(ctx context.Context, h db.Handler, deliveryID, event string) (bool, error)
}
