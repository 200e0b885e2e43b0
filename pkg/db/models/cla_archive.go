package models

import "time"

// CLAArchive is an immutable snapshot of a CLA text, keyed by its SHA-256.
// Rows are created lazily the first time a hash is published or signed and
// are never updated or deleted.
type CLAArchive struct {
	ID        int64     `db:"id"`
	OrgID     int64     `db:"org_id"`
	SHA256    string    `db:"sha256"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
}
