package database

import (
	"context"
	"errors"
	"testing"

	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/db/models"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
	"github.com/514-labs/cla-bot-sub001/pkg/test"
	"github.com/matryer/is"
)

func setup(t *testing.T) (context.Context, *db.DB, store.Store) {
	t.Helper()
	ctx := context.TODO()
	dbx := test.OpenMigratedSqlite(ctx, t)
	return ctx, dbx, New(ctx, dbx)
}

func createOrg(t *testing.T, ctx context.Context, dbx *db.DB, s store.Store, slug string) models.Organization {
	t.Helper()
	org, err := s.UpsertOrg(ctx, dbx, store.UpsertOrgParams{
		Slug:            slug,
		AccountType:     models.AccountTypeOrganization,
		GithubAccountID: 1000,
		InstallationID:  42,
	})
	if err != nil {
		t.Fatal(err)
	}
	return org
}

func TestUpsertOrgCreateThenReactivate(t *testing.T) {
	is := is.New(t)
	ctx, dbx, s := setup(t)

	org := createOrg(t, ctx, dbx, s, "acme")
	is.Equal(org.Slug, "acme")
	is.True(org.IsActive)
	is.Equal(org.InstallationID.Int64, int64(42))

	is.NoErr(s.SetOrgActive(ctx, dbx, org.ID, false, true))
	got, err := s.GetOrgByID(ctx, dbx, org.ID)
	is.NoErr(err)
	is.True(!got.IsActive)
	is.True(!got.InstallationID.Valid)

	// Reinstall revives the same row.
	again, err := s.UpsertOrg(ctx, dbx, store.UpsertOrgParams{
		Slug:           "acme",
		AccountType:    models.AccountTypeOrganization,
		InstallationID: 77,
	})
	is.NoErr(err)
	is.Equal(again.ID, org.ID)
	is.True(again.IsActive)
	is.Equal(again.InstallationID.Int64, int64(77))
}

func TestFindOrgBySlugCaseInsensitive(t *testing.T) {
	is := is.New(t)
	ctx, dbx, s := setup(t)
	org := createOrg(t, ctx, dbx, s, "acme")

	got, err := s.FindOrgBySlug(ctx, dbx, "ACME")
	is.NoErr(err)
	is.Equal(got.ID, org.ID)

	_, err = s.FindOrgBySlug(ctx, dbx, "nope")
	is.True(errors.Is(err, db.ErrRecordNotFound))
}

func TestUpdateOrgCLAAndArchive(t *testing.T) {
	is := is.New(t)
	ctx, dbx, s := setup(t)
	org := createOrg(t, ctx, dbx, s, "acme")

	const sha = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	is.NoErr(s.CreateCLAArchiveIfAbsent(ctx, dbx, org.ID, sha, "please sign"))
	is.NoErr(s.UpdateOrgCLA(ctx, dbx, org.ID, "please sign", sha))

	got, err := s.GetOrgByID(ctx, dbx, org.ID)
	is.NoErr(err)
	is.True(got.HasCLA())
	is.Equal(got.CLATextSHA256.String, sha)

	// Re-archiving the same hash is a no-op, not a duplicate.
	is.NoErr(s.CreateCLAArchiveIfAbsent(ctx, dbx, org.ID, sha, "please sign"))
	archives, err := s.ListCLAArchives(ctx, dbx, org.ID)
	is.NoErr(err)
	is.Equal(len(archives), 1)
}

func TestCreateSignatureUniquePerHash(t *testing.T) {
	is := is.New(t)
	ctx, dbx, s := setup(t)
	org := createOrg(t, ctx, dbx, s, "acme")

	p := store.CreateSignatureParams{
		OrgID:        org.ID,
		UserGithubID: 7,
		CLASHA256:    "h1",
		GithubLogin:  "alice",
	}
	_, err := s.CreateSignature(ctx, dbx, p)
	is.NoErr(err)

	_, err = s.CreateSignature(ctx, dbx, p)
	is.True(errors.Is(err, db.ErrDuplicateKey))

	// A new hash is a new row, the old one stays.
	p.CLASHA256 = "h2"
	_, err = s.CreateSignature(ctx, dbx, p)
	is.NoErr(err)

	sigs, err := s.ListSignaturesForUser(ctx, dbx, org.ID, 7)
	is.NoErr(err)
	is.Equal(len(sigs), 2)
}

func TestBypassAccounts(t *testing.T) {
	is := is.New(t)
	ctx, dbx, s := setup(t)
	org := createOrg(t, ctx, dbx, s, "acme")

	_, err := s.AddBypassAccount(ctx, dbx, org.ID, 99, "bob", 1)
	is.NoErr(err)

	_, err = s.AddBypassAccount(ctx, dbx, org.ID, 99, "bob", 1)
	is.True(errors.Is(err, db.ErrDuplicateKey))

	// Match by id.
	m, err := s.FindBypassAccount(ctx, dbx, org.ID, 99, "someone-else")
	is.NoErr(err)
	is.Equal(m.GithubLogin, "bob")

	// Match by login, case-insensitive.
	m, err = s.FindBypassAccount(ctx, dbx, org.ID, 0, "BOB")
	is.NoErr(err)
	is.Equal(m.GithubUserID, int64(99))

	_, err = s.FindBypassAccount(ctx, dbx, org.ID, 1, "carol")
	is.True(errors.Is(err, db.ErrRecordNotFound))

	is.NoErr(s.RemoveBypassAccount(ctx, dbx, org.ID, "Bob"))
	_, err = s.FindBypassAccount(ctx, dbx, org.ID, 99, "bob")
	is.True(errors.Is(err, db.ErrRecordNotFound))

	// Removing a login that is not on the list reports not-found.
	err = s.RemoveBypassAccount(ctx, dbx, org.ID, "bob")
	is.True(errors.Is(err, db.ErrRecordNotFound))
}

func TestBypassAccountLimit(t *testing.T) {
	is := is.New(t)
	ctx, dbx, s := setup(t)
	org := createOrg(t, ctx, dbx, s, "acme")

	for i := 0; i < store.MaxBypassAccounts; i++ {
		_, err := s.AddBypassAccount(ctx, dbx, org.ID, int64(i+1), "", 1)
		is.NoErr(err)
	}
	_, err := s.AddBypassAccount(ctx, dbx, org.ID, 9999, "overflow", 1)
	is.True(errors.Is(err, store.ErrBypassLimitReached))
}

func TestReserveWebhookDelivery(t *testing.T) {
	is := is.New(t)
	ctx, dbx, s := setup(t)

	created, err := s.ReserveWebhookDelivery(ctx, dbx, "delivery-1", "pull_request")
	is.NoErr(err)
	is.True(created)

	created, err = s.ReserveWebhookDelivery(ctx, dbx, "delivery-1", "pull_request")
	is.NoErr(err)
	is.True(!created)
}

func TestAuditEvents(t *testing.T) {
	is := is.New(t)
	ctx, dbx, s := setup(t)
	org := createOrg(t, ctx, dbx, s, "acme")

	is.NoErr(s.CreateAuditEvent(ctx, dbx, store.AuditEventParams{
		EventType: "cla_published",
		OrgID:     org.ID,
		Payload:   map[string]string{"sha256": "h1"},
	}))
	is.NoErr(s.CreateAuditEvent(ctx, dbx, store.AuditEventParams{
		EventType: "pr_decision",
		OrgID:     org.ID,
	}))

	events, err := s.ListAuditEventsForOrg(ctx, dbx, org.ID, 10)
	is.NoErr(err)
	is.Equal(len(events), 2)
	is.Equal(events[0].EventType, "pr_decision")
	is.Equal(events[1].PayloadJSON, `{"sha256":"h1"}`)
}
