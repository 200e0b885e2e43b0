package store

import (
	"context"

	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/db/models"
)

// CreateSignatureParams are the attributes of a new signature row.
type CreateSignatureParams struct {
	OrgID              int64
	UserGithubID       int64
	CLASHA256          string
	GithubLogin        string
	Name               string
	AvatarURL          string
	ConsentTextVersion string
	RequestEvidence    string
}

// SignatureStore is a store for CLA signatures. Signatures are append-only:
// re-signing after a CLA update inserts a new row and never mutates an old
// one.
type SignatureStore interface {
	// CreateSignature inserts a signature row. It returns
	// db.ErrDuplicateKey when the (org, user, sha) signature already
	// exists.
	CreateSignature(ctx context.Context, h db.Handler, p CreateSignatureParams) (models.Signature, error)
	GetSignature(ctx context.Context, h db.Handler, orgID, userGithubID int64, sha256 string) (models.Signature, error)
	ListSignaturesForUser(ctx context.Context, h db.Handler, orgID, userGithubID int64) ([]models.Signature, error)
	ListSignaturesForOrg(ctx context.Context, h db.Handler, orgID int64) ([]models.Signature, error)
}
