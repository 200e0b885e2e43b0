package database

import (
	"context"

	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/db/models"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
)

var _ store.BypassStore = (*bypassStore)(nil)

type bypassStore struct{}

// AddBypassAccount implements store.BypassStore.
func (s *bypassStore) AddBypassAccount(ctx context.Context, h db.Handler, orgID, githubUserID int64, githubLogin string, createdBy int64) (models.BypassAccount, error) {
	var count int
	if err := h.GetContext(ctx, &count, h.Rebind(`SELECT COUNT(*) FROM bypass_accounts WHERE org_id = ?;`), orgID); err != nil {
		return models.BypassAccount{}, db.WrapError(err)
	}
	if count >= store.MaxBypassAccounts {
		return models.BypassAccount{}, store.ErrBypassLimitReached
	}

	query := h.Rebind(`
		INSERT INTO
		  bypass_accounts (org_id, github_user_id, github_login, created_by)
		VALUES
		  (?, ?, ?, ?) RETURNING id;
	`)
	var id int64
	if err := h.GetContext(ctx, &id, query, orgID, githubUserID, githubLogin, nullInt64(createdBy)); err != nil {
		return models.BypassAccount{}, db.WrapError(err)
	}

	var m models.BypassAccount
	if err := h.GetContext(ctx, &m, h.Rebind(`SELECT * FROM bypass_accounts WHERE id = ?;`), id); err != nil {
		return models.BypassAccount{}, db.WrapError(err)
	}
	return m, nil
}

// RemoveBypassAccount implements store.BypassStore.
func (*bypassStore) RemoveBypassAccount(ctx context.Context, h db.Handler, orgID int64, githubLogin string) error {
	query := h.Rebind(`
		DELETE FROM bypass_accounts
		WHERE
		  org_id = ?
		  AND LOWER(github_login) = LOWER(?)
	`)
	res, err := h.ExecContext(ctx, query, orgID, githubLogin)
	if err != nil {
		return db.WrapError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return db.ErrRecordNotFound
	}
	return nil
}

// ListBypassAccounts implements store.BypassStore.
func (*bypassStore) ListBypassAccounts(ctx context.Context, h db.Handler, orgID int64) ([]models.BypassAccount, error) {
	var m []models.BypassAccount
	query := h.Rebind(`SELECT * FROM bypass_accounts WHERE org_id = ? ORDER BY created_at;`)
	err := h.SelectContext(ctx, &m, query, orgID)
	return m, db.WrapError(err)
}

// FindBypassAccount implements store.BypassStore.
func (*bypassStore) FindBypassAccount(ctx context.Context, h db.Handler, orgID, githubUserID int64, githubLogin string) (models.BypassAccount, error) {
	var m models.BypassAccount
	query := h.Rebind(`
		SELECT * FROM bypass_accounts
		WHERE
		  org_id = ?
		  AND (github_user_id = ? OR LOWER(github_login) = LOWER(?))
		LIMIT 1
	`)
	err := h.GetContext(ctx, &m, query, orgID, githubUserID, githubLogin)
	return m, db.WrapError(err)
}
