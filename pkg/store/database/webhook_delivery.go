package database

import (
	"context"
	"errors"

	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
)

var _ store.WebhookDeliveryStore = (*webhookDeliveryStore)(nil)

type webhookDeliveryStore struct{}

// ReserveWebhookDelivery implements store.WebhookDeliveryStore.
// The primary key on delivery_id makes the insert the atomic
// reserve-if-new operation.
func (*webhookDeliveryStore) ReserveWebhookDelivery(ctx context.Context, h db.Handler, deliveryID, event string) (bool, error) {
	query := h.Rebind(`
		INSERT INTO
		  webhook_deliveries (delivery_id, event)
		VALUES
		  (?, ?)
	`)
	if _, err := h.ExecContext(ctx, query, deliveryID, event); err != nil {
		if errors.Is(db.WrapError(err), db.ErrDuplicateKey) {
			return false, nil
		}
		return false, db.WrapError(err)
	}
	return true, nil
}
