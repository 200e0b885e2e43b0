package models

import (
	"database/sql"
	"time"
)

// BypassAccount is an allow-list entry exempting a GitHub user from signing
// the CLA for one organization.
type BypassAccount struct {
	ID           int64         `db:"id"`
	OrgID        int64         `db:"org_id"`
	GithubUserID int64         `db:"github_user_id"`
	GithubLogin  string        `db:"github_login"`
	CreatedBy    sql.NullInt64 `db:"created_by"`
	CreatedAt    time.Time     `db:"created_at"`
}
