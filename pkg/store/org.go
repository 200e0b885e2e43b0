package store

import (
	"context"

	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/db/models"
)

// UpsertOrgParams are the attributes resolved from an installation webhook or
// an admin setup action.
type UpsertOrgParams struct {
	Slug            string
	AccountType     models.AccountType
	GithubAccountID int64
	InstallationID  int64
	AdminGithubID   int64
	AdminLogin      string
}

// OrgStore is a store for organizations and their CLA archives.
type OrgStore interface {
	// UpsertOrg creates the organization if it does not exist, otherwise
	// reactivates it and refreshes the account metadata. Used by
	// installation created/unsuspend events.
	UpsertOrg(ctx context.Context, h db.Handler, p UpsertOrgParams) (models.Organization, error)
	GetOrgByID(ctx context.Context, h db.Handler, id int64) (models.Organization, error)
	FindOrgBySlug(ctx context.Context, h db.Handler, slug string) (models.Organization, error)
	ListActiveOrgs(ctx context.Context, h db.Handler) ([]models.Organization, error)
	// SetOrgActive toggles the active flag. Deactivating also clears the
	// installation id when clearInstallation is set.
	SetOrgActive(ctx context.Context, h db.Handler, id int64, active, clearInstallation bool) error
	// SetOrgInstallation updates installation metadata without touching the
	// active flag. Used by installation_repositories events.
	SetOrgInstallation(ctx context.Context, h db.Handler, id int64, installationID int64, accountID int64, accountType models.AccountType) error
	// UpdateOrgCLA replaces the current CLA text and hash. Empty text clears
	// both. Callers are responsible for archiving the new hash in the same
	// transaction.
	UpdateOrgCLA(ctx context.Context, h db.Handler, id int64, text, sha256 string) error

	// CreateCLAArchiveIfAbsent inserts the (org, sha256) snapshot unless one
	// already exists. Archives are append-only.
	CreateCLAArchiveIfAbsent(ctx context.Context, h db.Handler, orgID int64, sha256, text string) error
	GetCLAArchive(ctx context.Context, h db.Handler, orgID int64, sha256 string) (models.CLAArchive, error)
	ListCLAArchives(ctx context.Context, h db.Handler, orgID int64) ([]models.CLAArchive, error)
}
