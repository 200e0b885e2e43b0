package models

import "time"

// WebhookDelivery records one processed inbound webhook delivery id. The
// primary key on DeliveryID backs the at-most-once processing guarantee for
// externally retried deliveries. Rows are never updated.
type WebhookDelivery struct {
	DeliveryID string    `db:"delivery_id"`
	Event      string    `db:"event"`
	ReceivedAt time.Time `db:"received_at"`
}
