package models

import (
	"database/sql"
	"time"
)

// AuditEvent is one append-only audit log entry. Every state-changing
// operation and every compliance decision applied to a pull request writes
// one event.
type AuditEvent struct {
	ID          int64          `db:"id"`
	EventType   string         `db:"event_type"`
	OrgID       sql.NullInt64  `db:"org_id"`
	UserID      sql.NullInt64  `db:"user_github_id"`
	ActorID     sql.NullInt64  `db:"actor_github_id"`
	ActorLogin  sql.NullString `db:"actor_github_login"`
	PayloadJSON string         `db:"payload"`
	CreatedAt   time.Time      `db:"created_at"`
}
