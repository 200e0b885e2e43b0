package store

import (
	"context"
	"errors"

	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/db/models"
)

// MaxBypassAccounts is the maximum number of bypass entries per organization.
const MaxBypassAccounts = 50

// ErrBypassLimitReached is returned when an organization already holds the
// maximum number of bypass entries.
var ErrBypassLimitReached = errors.New("bypass account limit reached")

// BypassStore is a store for per-organization bypass allow-lists.
type BypassStore interface {
	// AddBypassAccount inserts an allow-list entry. It returns
	// ErrBypassLimitReached past MaxBypassAccounts entries and
	// db.ErrDuplicateKey when the user is already listed.
	AddBypassAccount(ctx context.Context, h db.Handler, orgID, githubUserID int64, githubLogin string, createdBy int64) (models.BypassAccount, error)
	RemoveBypassAccount(ctx context.Context, h db.Handler, orgID int64, githubLogin string) error
	ListBypassAccounts(ctx context.Context, h db.Handler, orgID int64) ([]models.BypassAccount, error)
	// FindBypassAccount matches on GitHub user id or, failing that,
	// case-insensitive login. Returns db.ErrRecordNotFound when absent.
	FindBypassAccount(ctx context.Context, h db.Handler, orgID, githubUserID int64, githubLogin string) (models.BypassAccount, error)
}
