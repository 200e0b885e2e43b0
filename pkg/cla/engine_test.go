package cla

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/514-labs/cla-bot-sub001/pkg/config"
	"github.com/514-labs/cla-bot-sub001/pkg/db/models"
	"github.com/514-labs/cla-bot-sub001/pkg/github"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
	"github.com/514-labs/cla-bot-sub001/pkg/store/database"
	"github.com/514-labs/cla-bot-sub001/pkg/test"
)

// syncScheduler runs scheduled tasks inline so tests observe their effects
// deterministically.
type syncScheduler struct{ fail bool }

func (s syncScheduler) Schedule(_ string, fn func(context.Context) error) (string, error) {
	if s.fail {
		return "", errors.New("scheduler unavailable")
	}
	_ = fn(context.TODO())
	return "test-run", nil
}

func newTestEngine(t *testing.T) (context.Context, *Engine, *github.MemoryGateway) {
	t.Helper()
	ctx := context.TODO()
	dbx := test.OpenMigratedSqlite(ctx, t)

	cfg := config.DefaultConfig()
	cfg.AuthMode = config.AuthorizationPermissive
	cfg.HTTP.PublicURL = "https://cla.example.com"

	gw := github.NewMemoryGateway()
	e := NewEngine(cfg, dbx, database.New(ctx, dbx), gw, nil)
	return ctx, e, gw
}

func createOrg(t *testing.T, ctx context.Context, e *Engine, slug string, accountType models.AccountType, accountID int64) models.Organization {
	t.Helper()
	org, err := e.store.UpsertOrg(ctx, e.db, store.UpsertOrgParams{
		Slug:            slug,
		AccountType:     accountType,
		GithubAccountID: accountID,
		InstallationID:  42,
	})
	if err != nil {
		t.Fatal(err)
	}
	return org
}

func publish(t *testing.T, ctx context.Context, e *Engine, slug, text string) models.Organization {
	t.Helper()
	if _, err := e.PublishCLA(ctx, slug, text, Actor{GithubID: 1, Login: "admin"}); err != nil {
		t.Fatal(err)
	}
	org, err := e.OrgBySlug(ctx, slug)
	if err != nil {
		t.Fatal(err)
	}
	return org
}

func openPR(gw *github.MemoryGateway, number int, authorID int64, author string) github.PullRequestRef {
	pr := github.PullRequestRef{
		Owner:       "acme",
		Repo:        "widgets",
		Number:      number,
		HeadSHA:     "head-sha-" + author,
		AuthorID:    authorID,
		AuthorLogin: author,
	}
	gw.AddPullRequest(pr)
	return pr
}

func hasAuditEvent(t *testing.T, ctx context.Context, e *Engine, orgID int64, eventType string) bool {
	t.Helper()
	events, err := e.store.ListAuditEventsForOrg(ctx, e.db, orgID, 100)
	if err != nil {
		t.Fatal(err)
	}
	for _, ev := range events {
		if ev.EventType == eventType {
			return true
		}
	}
	return false
}

func TestDecideAndSyncUnconfigured(t *testing.T) {
	is := is.New(t)
	ctx, e, gw := newTestEngine(t)

	org := createOrg(t, ctx, e, "acme", models.AccountTypeOrganization, 1000)
	pr := openPR(gw, 1, 7, "alice")

	out, err := e.DecideAndSync(ctx, PRContext{Org: org, PR: pr})
	is.NoErr(err)
	is.Equal(out.Decision, DecisionCLAUnconfigured)
	is.Equal(out.Conclusion, ConclusionFailure)
	is.Equal(out.Comment, CommentCreated)

	comments := gw.Comments("acme", "widgets", 1)
	is.Equal(len(comments), 1)
	is.True(strings.Contains(comments[0].Body, "@alice"))
	is.True(strings.Contains(comments[0].Body, "https://cla.example.com/admin/acme"))

	runs := gw.CheckRuns("acme", "widgets", pr.HeadSHA)
	is.Equal(len(runs), 1)
	is.Equal(runs[0].Name, CheckRunName)
	is.Equal(runs[0].Conclusion, ConclusionFailure)

	is.True(hasAuditEvent(t, ctx, e, org.ID, "decision_applied"))
}

func TestDecideAndSyncIdempotent(t *testing.T) {
	is := is.New(t)
	ctx, e, gw := newTestEngine(t)

	createOrg(t, ctx, e, "acme", models.AccountTypeOrganization, 1000)
	org := publish(t, ctx, e, "acme", "please sign this agreement")
	pr := openPR(gw, 1, 7, "alice")

	out, err := e.DecideAndSync(ctx, PRContext{Org: org, PR: pr})
	is.NoErr(err)
	is.Equal(out.Decision, DecisionUnsigned)
	is.Equal(out.Comment, CommentCreated)

	// Re-applying the unchanged decision leaves exactly one live comment.
	out, err = e.DecideAndSync(ctx, PRContext{Org: org, PR: pr})
	is.NoErr(err)
	is.Equal(out.Decision, DecisionUnsigned)
	is.Equal(out.Comment, CommentNone)

	is.Equal(len(gw.Comments("acme", "widgets", 1)), 1)
}

func TestPublishRoundTrip(t *testing.T) {
	is := is.New(t)
	ctx, e, _ := newTestEngine(t)

	createOrg(t, ctx, e, "acme", models.AccountTypeOrganization, 1000)

	const text = "the agreement text"
	res, err := e.PublishCLA(ctx, "acme", text, Actor{GithubID: 1, Login: "admin"})
	is.NoErr(err)
	is.Equal(res.SHA256, HashText(text))
	is.True(!res.RecheckScheduled) // no scheduler configured

	org, err := e.OrgBySlug(ctx, "acme")
	is.NoErr(err)
	is.True(org.HasCLA())
	is.Equal(org.CLATextSHA256.String, HashText(text))

	_, err = e.store.GetCLAArchive(ctx, e.db, org.ID, HashText(text))
	is.NoErr(err)

	// Republishing identical text reuses the same hash and archive row.
	_, err = e.PublishCLA(ctx, "acme", text, Actor{GithubID: 1, Login: "admin"})
	is.NoErr(err)
	archives, err := e.store.ListCLAArchives(ctx, e.db, org.ID)
	is.NoErr(err)
	is.Equal(len(archives), 1)
}

func TestSignedFlow(t *testing.T) {
	is := is.New(t)
	ctx, e, gw := newTestEngine(t)

	createOrg(t, ctx, e, "acme", models.AccountTypeOrganization, 1000)
	org := publish(t, ctx, e, "acme", "the agreement")

	res, err := e.RecordSignature(ctx, "acme", SignerParams{GithubID: 7, Login: "alice"})
	is.NoErr(err)
	is.True(!res.AlreadySigned)
	is.Equal(res.Version, VersionLabel(org.CLATextSHA256.String))

	pr := openPR(gw, 1, 7, "alice")
	out, err := e.DecideAndSync(ctx, PRContext{Org: org, PR: pr})
	is.NoErr(err)
	is.Equal(out.Decision, DecisionSigned)
	is.Equal(out.Conclusion, ConclusionSuccess)
	is.Equal(len(gw.Comments("acme", "widgets", 1)), 0)

	// Signing the same version twice is a no-op.
	res, err = e.RecordSignature(ctx, "acme", SignerParams{GithubID: 7, Login: "alice"})
	is.NoErr(err)
	is.True(res.AlreadySigned)
}

func TestRecordSignatureRequiresCLA(t *testing.T) {
	is := is.New(t)
	ctx, e, _ := newTestEngine(t)

	createOrg(t, ctx, e, "acme", models.AccountTypeOrganization, 1000)
	_, err := e.RecordSignature(ctx, "acme", SignerParams{GithubID: 7, Login: "alice"})
	is.True(errors.Is(err, ErrNoCLA))
}

func TestRepublishFlipsToNeedsResign(t *testing.T) {
	is := is.New(t)
	ctx, e, gw := newTestEngine(t)

	createOrg(t, ctx, e, "acme", models.AccountTypeOrganization, 1000)
	org := publish(t, ctx, e, "acme", "version one")
	_, err := e.RecordSignature(ctx, "acme", SignerParams{GithubID: 7, Login: "alice"})
	is.NoErr(err)

	pr := openPR(gw, 1, 7, "alice")
	out, err := e.DecideAndSync(ctx, PRContext{Org: org, PR: pr})
	is.NoErr(err)
	is.Equal(out.Decision, DecisionSigned)

	// Publishing a new version triggers the inline recheck, flipping the
	// previously passing PR.
	e.tasks = syncScheduler{}
	res, err := e.PublishCLA(ctx, "acme", "version two", Actor{GithubID: 1, Login: "admin"})
	is.NoErr(err)
	is.True(res.RecheckScheduled)

	comments := gw.Comments("acme", "widgets", 1)
	is.Equal(len(comments), 1)
	is.True(strings.Contains(comments[0].Body, "Re-signing Required"))
	is.True(strings.Contains(comments[0].Body, VersionLabel(HashText("version two"))))

	runs := gw.CheckRuns("acme", "widgets", pr.HeadSHA)
	is.Equal(runs[len(runs)-1].Conclusion, ConclusionFailure)
}

func TestBypassAddRecheckDeletesPrompt(t *testing.T) {
	is := is.New(t)
	ctx, e, gw := newTestEngine(t)

	createOrg(t, ctx, e, "acme", models.AccountTypeOrganization, 1000)
	org := publish(t, ctx, e, "acme", "the agreement")
	pr := openPR(gw, 2, 8, "bob")

	out, err := e.DecideAndSync(ctx, PRContext{Org: org, PR: pr})
	is.NoErr(err)
	is.Equal(out.Decision, DecisionUnsigned)
	is.Equal(len(gw.Comments("acme", "widgets", 2)), 1)

	e.tasks = syncScheduler{}
	res, err := e.AddBypass(ctx, "acme", 8, "bob", Actor{GithubID: 1, Login: "admin"})
	is.NoErr(err)
	is.True(res.RecheckScheduled)

	is.Equal(len(gw.Comments("acme", "widgets", 2)), 0)
	runs := gw.CheckRuns("acme", "widgets", pr.HeadSHA)
	is.Equal(runs[len(runs)-1].Conclusion, ConclusionSuccess)
	is.True(hasAuditEvent(t, ctx, e, org.ID, "bypass_added"))
}

func TestOrgMemberExempt(t *testing.T) {
	is := is.New(t)
	ctx, e, gw := newTestEngine(t)

	createOrg(t, ctx, e, "acme", models.AccountTypeOrganization, 1000)
	org := publish(t, ctx, e, "acme", "the agreement")
	gw.SetMembership("acme", "carol", github.MembershipActive)

	pr := openPR(gw, 3, 9, "carol")
	out, err := e.DecideAndSync(ctx, PRContext{Org: org, PR: pr})
	is.NoErr(err)
	is.Equal(out.Decision, DecisionOrgMember)
	is.Equal(out.Comment, CommentNone)
	is.Equal(len(gw.Comments("acme", "widgets", 3)), 0)
}

func TestPersonalAccountOwner(t *testing.T) {
	is := is.New(t)
	ctx, e, gw := newTestEngine(t)

	org := createOrg(t, ctx, e, "dave", models.AccountTypeUser, 77)

	pr := github.PullRequestRef{
		Owner: "dave", Repo: "dotfiles", Number: 1,
		HeadSHA: "abc", AuthorID: 77, AuthorLogin: "dave",
	}
	gw.AddPullRequest(pr)

	out, err := e.DecideAndSync(ctx, PRContext{Org: org, PR: pr})
	is.NoErr(err)
	is.Equal(out.Decision, DecisionAccountOwner)
	is.Equal(out.Conclusion, ConclusionSuccess)
}

func TestInactiveDeletesPrompt(t *testing.T) {
	is := is.New(t)
	ctx, e, gw := newTestEngine(t)

	createOrg(t, ctx, e, "acme", models.AccountTypeOrganization, 1000)
	org := publish(t, ctx, e, "acme", "the agreement")
	pr := openPR(gw, 1, 7, "alice")

	_, err := e.DecideAndSync(ctx, PRContext{Org: org, PR: pr})
	is.NoErr(err)
	is.Equal(len(gw.Comments("acme", "widgets", 1)), 1)

	is.NoErr(e.store.SetOrgActive(ctx, e.db, org.ID, false, false))
	org, err = e.OrgBySlug(ctx, "acme")
	is.NoErr(err)

	out, err := e.DecideAndSync(ctx, PRContext{Org: org, PR: pr})
	is.NoErr(err)
	is.Equal(out.Decision, DecisionInactive)
	is.Equal(out.Conclusion, ConclusionSuccess)
	is.Equal(out.Comment, CommentDeleted)
	is.Equal(len(gw.Comments("acme", "widgets", 1)), 0)
}

func TestRecheckSkipsInactiveOrg(t *testing.T) {
	is := is.New(t)
	ctx, e, _ := newTestEngine(t)

	org := createOrg(t, ctx, e, "acme", models.AccountTypeOrganization, 1000)
	is.NoErr(e.store.SetOrgActive(ctx, e.db, org.ID, false, false))

	report, err := e.RecheckOrganization(ctx, "acme", RecheckOptions{})
	is.NoErr(err)
	is.True(report.SkippedInactive)
	is.Equal(report.Attempted, 0)
	is.True(hasAuditEvent(t, ctx, e, org.ID, "bulk_recheck"))
}

func TestRecheckIsolatesFailures(t *testing.T) {
	is := is.New(t)
	ctx, e, gw := newTestEngine(t)

	createOrg(t, ctx, e, "acme", models.AccountTypeOrganization, 1000)
	publish(t, ctx, e, "acme", "the agreement")

	openPR(gw, 1, 7, "alice")
	pr2 := github.PullRequestRef{
		Owner: "acme", Repo: "widgets", Number: 2,
		HeadSHA: "sha-2", AuthorID: 8, AuthorLogin: "bob",
	}
	gw.AddPullRequest(pr2)
	gw.FailPull("acme", "widgets", 2, errors.New("rate limited"))

	report, err := e.RecheckOrganization(ctx, "acme", RecheckOptions{})
	is.NoErr(err)
	is.Equal(report.Attempted, 2)
	is.Equal(report.Rechecked, 1)
	is.Equal(report.Errors, 1)
	is.Equal(len(report.Failures), 1)
	is.Equal(report.Failures[0].Number, 2)
	is.Equal(report.ByDecision[DecisionUnsigned], 1)
}

func TestRecheckOnlyAuthor(t *testing.T) {
	is := is.New(t)
	ctx, e, gw := newTestEngine(t)

	createOrg(t, ctx, e, "acme", models.AccountTypeOrganization, 1000)
	publish(t, ctx, e, "acme", "the agreement")
	openPR(gw, 1, 7, "alice")
	openPR(gw, 2, 8, "bob")

	report, err := e.RecheckOrganization(ctx, "acme", RecheckOptions{OnlyAuthorID: 7, OnlyAuthorLogin: "alice"})
	is.NoErr(err)
	is.Equal(report.Attempted, 1)
	is.Equal(report.Rechecked, 1)
}

func TestRecheckUnknownOrg(t *testing.T) {
	is := is.New(t)
	ctx, e, _ := newTestEngine(t)

	_, err := e.RecheckOrganization(ctx, "ghost", RecheckOptions{})
	is.True(errors.Is(err, ErrOrgNotFound))
}

func TestSchedulingFailureIsSoft(t *testing.T) {
	is := is.New(t)
	ctx, e, _ := newTestEngine(t)

	createOrg(t, ctx, e, "acme", models.AccountTypeOrganization, 1000)
	e.tasks = syncScheduler{fail: true}

	res, err := e.PublishCLA(ctx, "acme", "the agreement", Actor{GithubID: 1, Login: "admin"})
	is.NoErr(err) // the publish itself succeeds
	is.True(!res.RecheckScheduled)

	org, err := e.OrgBySlug(ctx, "acme")
	is.NoErr(err)
	is.True(org.HasCLA())
	is.True(hasAuditEvent(t, ctx, e, org.ID, "recheck_schedule_failed"))
}
