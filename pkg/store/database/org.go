package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/db/models"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
)

var _ store.OrgStore = (*orgStore)(nil)

type orgStore struct{}

// UpsertOrg implements store.OrgStore.
func (s *orgStore) UpsertOrg(ctx context.Context, h db.Handler, p store.UpsertOrgParams) (models.Organization, error) {
	existing, err := s.FindOrgBySlug(ctx, h, p.Slug)
	switch {
	case err == nil:
		query := h.Rebind(`
			UPDATE organizations
			SET
			  account_type = ?,
			  github_account_id = ?,
			  installation_id = ?,
			  is_active = true,
			  updated_at = CURRENT_TIMESTAMP
			WHERE
			  id = ?
		`)
		if _, err := h.ExecContext(ctx, query, p.AccountType, p.GithubAccountID, p.InstallationID, existing.ID); err != nil {
			return models.Organization{}, db.WrapError(err)
		}
		return s.GetOrgByID(ctx, h, existing.ID)
	case errors.Is(err, sql.ErrNoRows):
		query := h.Rebind(`
			INSERT INTO
			  organizations (slug, account_type, github_account_id, installation_id, admin_github_id, admin_github_login, is_active, updated_at)
			VALUES
			  (?, ?, ?, ?, ?, ?, true, CURRENT_TIMESTAMP) RETURNING id;
		`)
		var id int64
		if err := h.GetContext(ctx, &id, query,
			p.Slug, p.AccountType, nullInt64(p.GithubAccountID), nullInt64(p.InstallationID),
			nullInt64(p.AdminGithubID), nullString(p.AdminLogin),
		); err != nil {
			return models.Organization{}, db.WrapError(err)
		}
		return s.GetOrgByID(ctx, h, id)
	default:
		return models.Organization{}, err
	}
}

// GetOrgByID implements store.OrgStore.
func (*orgStore) GetOrgByID(ctx context.Context, h db.Handler, id int64) (models.Organization, error) {
	var m models.Organization
	query := h.Rebind(`SELECT * FROM organizations WHERE id = ?;`)
	err := h.GetContext(ctx, &m, query, id)
	return m, db.WrapError(err)
}

// FindOrgBySlug implements store.OrgStore.
func (*orgStore) FindOrgBySlug(ctx context.Context, h db.Handler, slug string) (models.Organization, error) {
	var m models.Organization
	query := h.Rebind(`SELECT * FROM organizations WHERE LOWER(slug) = LOWER(?);`)
	err := h.GetContext(ctx, &m, query, slug)
	return m, db.WrapError(err)
}

// ListActiveOrgs implements store.OrgStore.
func (*orgStore) ListActiveOrgs(ctx context.Context, h db.Handler) ([]models.Organization, error) {
	var m []models.Organization
	query := h.Rebind(`SELECT * FROM organizations WHERE is_active = true ORDER BY slug;`)
	err := h.SelectContext(ctx, &m, query)
	return m, db.WrapError(err)
}

// SetOrgActive implements store.OrgStore.
func (*orgStore) SetOrgActive(ctx context.Context, h db.Handler, id int64, active, clearInstallation bool) error {
	query := h.Rebind(`
		UPDATE organizations
		SET
		  is_active = ?,
		  updated_at = CURRENT_TIMESTAMP
		WHERE
		  id = ?
	`)
	if clearInstallation {
		query = h.Rebind(`
			UPDATE organizations
			SET
			  is_active = ?,
			  installation_id = NULL,
			  updated_at = CURRENT_TIMESTAMP
			WHERE
			  id = ?
		`)
	}
	_, err := h.ExecContext(ctx, query, active, id)
	return db.WrapError(err)
}

// SetOrgInstallation implements store.OrgStore.
func (*orgStore) SetOrgInstallation(ctx context.Context, h db.Handler, id int64, installationID int64, accountID int64, accountType models.AccountType) error {
	query := h.Rebind(`
		UPDATE organizations
		SET
		  installation_id = ?,
		  github_account_id = ?,
		  account_type = ?,
		  updated_at = CURRENT_TIMESTAMP
		WHERE
		  id = ?
	`)
	_, err := h.ExecContext(ctx, query, nullInt64(installationID), nullInt64(accountID), accountType, id)
	return db.WrapError(err)
}

// UpdateOrgCLA implements store.OrgStore.
func (*orgStore) UpdateOrgCLA(ctx context.Context, h db.Handler, id int64, text, sha256 string) error {
	query := h.Rebind(`
		UPDATE organizations
		SET
		  cla_text = ?,
		  cla_text_sha256 = ?,
		  updated_at = CURRENT_TIMESTAMP
		WHERE
		  id = ?
	`)
	_, err := h.ExecContext(ctx, query, text, nullString(sha256), id)
	return db.WrapError(err)
}

// CreateCLAArchiveIfAbsent implements store.OrgStore.
func (s *orgStore) CreateCLAArchiveIfAbsent(ctx context.Context, h db.Handler, orgID int64, sha256, text string) error {
	if _, err := s.GetCLAArchive(ctx, h, orgID, sha256); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	query := h.Rebind(`
		INSERT INTO
		  cla_archives (org_id, sha256, text)
		VALUES
		  (?, ?, ?)
	`)
	if _, err := h.ExecContext(ctx, query, orgID, sha256, text); err != nil {
		// A concurrent insert of the same hash is fine, the snapshot is
		// identical.
		if errors.Is(db.WrapError(err), db.ErrDuplicateKey) {
			return nil
		}
		return db.WrapError(err)
	}
	return nil
}

// GetCLAArchive implements store.OrgStore.
func (*orgStore) GetCLAArchive(ctx context.Context, h db.Handler, orgID int64, sha256 string) (models.CLAArchive, error) {
	var m models.CLAArchive
	query := h.Rebind(`SELECT * FROM cla_archives WHERE org_id = ? AND sha256 = ?;`)
	err := h.GetContext(ctx, &m, query, orgID, sha256)
	return m, db.WrapError(err)
}

// ListCLAArchives implements store.OrgStore.
func (*orgStore) ListCLAArchives(ctx context.Context, h db.Handler, orgID int64) ([]models.CLAArchive, error) {
	var m []models.CLAArchive
	query := h.Rebind(`SELECT * FROM cla_archives WHERE org_id = ? ORDER BY created_at DESC;`)
	err := h.SelectContext(ctx, &m, query, orgID)
	return m, db.WrapError(err)
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
