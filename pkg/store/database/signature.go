package database

import (
	"context"

	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/db/models"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
)

var _ store.SignatureStore = (*signatureStore)(nil)

type signatureStore struct{}

// CreateSignature implements store.SignatureStore.
func (s *signatureStore) CreateSignature(ctx context.Context, h db.Handler, p store.CreateSignatureParams) (models.Signature, error) {
	query := h.Rebind(`
		INSERT INTO
		  signatures (org_id, user_github_id, cla_sha256, github_login, name, avatar_url, consent_text_version, request_evidence)
		VALUES
		  (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id;
	`)
	var id int64
	if err := h.GetContext(ctx, &id, query,
		p.OrgID, p.UserGithubID, p.CLASHA256, p.GithubLogin,
		nullString(p.Name), nullString(p.AvatarURL),
		nullString(p.ConsentTextVersion), nullString(p.RequestEvidence),
	); err != nil {
		return models.Signature{}, db.WrapError(err)
	}

	var m models.Signature
	if err := h.GetContext(ctx, &m, h.Rebind(`SELECT * FROM signatures WHERE id = ?;`), id); err != nil {
		return models.Signature{}, db.WrapError(err)
	}
	return m, nil
}

// GetSignature implements store.SignatureStore.
func (*signatureStore) GetSignature(ctx context.Context, h db.Handler, orgID, userGithubID int64, sha256 string) (models.Signature, error) {
	var m models.Signature
	query := h.Rebind(`
		SELECT * FROM signatures
		WHERE
		  org_id = ?
		  AND user_github_id = ?
		  AND cla_sha256 = ?
	`)
	err := h.GetContext(ctx, &m, query, orgID, userGithubID, sha256)
	return m, db.WrapError(err)
}

// ListSignaturesForUser implements store.SignatureStore.
func (*signatureStore) ListSignaturesForUser(ctx context.Context, h db.Handler, orgID, userGithubID int64) ([]models.Signature, error) {
	var m []models.Signature
	query := h.Rebind(`
		SELECT * FROM signatures
		WHERE
		  org_id = ?
		  AND user_github_id = ?
		ORDER BY signed_at DESC
	`)
	err := h.SelectContext(ctx, &m, query, orgID, userGithubID)
	return m, db.WrapError(err)
}

// ListSignaturesForOrg implements store.SignatureStore.
func (*signatureStore) ListSignaturesForOrg(ctx context.Context, h db.Handler, orgID int64) ([]models.Signature, error) {
	var m []models.Signature
	query := h.Rebind(`SELECT * FROM signatures WHERE org_id = ? ORDER BY signed_at DESC;`)
	err := h.SelectContext(ctx, &m, query, orgID)
	return m, db.WrapError(err)
}
