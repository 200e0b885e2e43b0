package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/db/models"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
)

var _ store.AuditLogStore = (*auditLogStore)(nil)

type auditLogStore struct{}

// CreateAuditEvent implements store.AuditLogStore.
func (*auditLogStore) CreateAuditEvent(ctx context.Context, h db.Handler, p store.AuditEventParams) error {
	payload := "{}"
	if p.Payload != nil {
		b, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
		payload = string(b)
	}

	query := h.Rebind(`
		INSERT INTO
		  audit_events (event_type, org_id, user_github_id, actor_github_id, actor_github_login, payload)
		VALUES
		  (?, ?, ?, ?, ?, ?)
	`)
	_, err := h.ExecContext(ctx, query,
		p.EventType, nullInt64(p.OrgID), nullInt64(p.UserID),
		nullInt64(p.ActorID), nullString(p.ActorLogin), payload,
	)
	return db.WrapError(err)
}

// ListAuditEventsForOrg implements store.AuditLogStore.
func (*auditLogStore) ListAuditEventsForOrg(ctx context.Context, h db.Handler, orgID int64, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var m []models.AuditEvent
	query := h.Rebind(`
		SELECT * FROM audit_events
		WHERE
		  org_id = ?
		ORDER BY id DESC
		LIMIT ?
	`)
	err := h.SelectContext(ctx, &m, query, orgID, limit)
	return m, db.WrapError(err)
}
