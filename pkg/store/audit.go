package store

import (
	"context"

	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/db/models"
)

// AuditEventParams are the attributes of one audit log entry.
type AuditEventParams struct {
	EventType  string
	OrgID      int64
	UserID     int64
	ActorID    int64
	ActorLogin string
	// Payload is marshaled to JSON; nil records an empty object.
	Payload any
}

// AuditLogStore is an append-only store of audit events.
type AuditLogStore interface {
	CreateAuditEvent(ctx context.Context, h db.Handler, p AuditEventParams) error
	ListAuditEventsForOrg(ctx context.Context, h db.Handler, orgID int64, limit int) ([]models.AuditEvent, error)
}
