// Package store defines the persistence contracts for cla-bot.
package store

// Store is an interface for managing organizations, signatures, and the
// bookkeeping around webhook processing.
type Store interface {
	OrgStore
	SignatureStore
	BypassStore
	WebhookDeliveryStore
	AuditLogStore
}
