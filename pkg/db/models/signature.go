package models

import (
	"database/sql"
	"time"
)

// Signature records one user's consent to one specific CLA hash for one
// organization. A user may hold signatures across multiple historical hashes,
// at most one per hash. Re-signing always inserts a new row.
type Signature struct {
	ID                 int64          `db:"id"`
	OrgID              int64          `db:"org_id"`
	UserGithubID       int64          `db:"user_github_id"`
	CLASHA256          string         `db:"cla_sha256"`
	GithubLogin        string         `db:"github_login"`
	Name               sql.NullString `db:"name"`
	AvatarURL          sql.NullString `db:"avatar_url"`
	ConsentTextVersion sql.NullString `db:"consent_text_version"`
	RequestEvidence    sql.NullString `db:"request_evidence"`
	SignedAt           time.Time      `db:"signed_at"`
}
