package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/514-labs/cla-bot-sub001/pkg/access"
	"github.com/514-labs/cla-bot-sub001/pkg/cla"
	"github.com/514-labs/cla-bot-sub001/pkg/config"
	"github.com/514-labs/cla-bot-sub001/pkg/db/models"
	"github.com/514-labs/cla-bot-sub001/pkg/github"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
	"github.com/514-labs/cla-bot-sub001/pkg/store/database"
	"github.com/514-labs/cla-bot-sub001/pkg/test"
)

const testSecret = "s3cret"

type harness struct {
	ctx    context.Context
	d      *Dispatcher
	gw     *github.MemoryGateway
	store  store.Store
	engine *cla.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.TODO()
	dbx := test.OpenMigratedSqlite(ctx, t)

	cfg := config.DefaultConfig()
	cfg.AuthMode = config.AuthorizationPermissive
	cfg.GitHub.WebhookSecret = testSecret
	cfg.HTTP.PublicURL = "https://cla.example.com"

	st := database.New(ctx, dbx)
	gw := github.NewMemoryGateway()
	engine := cla.NewEngine(cfg, dbx, st, gw, nil)
	return &harness{
		ctx:    ctx,
		d:      NewDispatcher(cfg, dbx, st, engine, gw),
		gw:     gw,
		store:  st,
		engine: engine,
	}
}

var deliverySeq int

// deliver posts one signed webhook request and returns the response.
func (h *harness) deliver(t *testing.T, event, delivery string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	if delivery == "" {
		deliverySeq++
		delivery = fmt.Sprintf("delivery-%d", deliverySeq)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", delivery)
	req.Header.Set("X-Hub-Signature-256", SignBody(testSecret, body))
	rec := httptest.NewRecorder()
	h.d.ServeHTTP(rec, req)
	return rec
}

func (h *harness) createOrg(t *testing.T, slug string) models.Organization {
	t.Helper()
	org, err := h.store.UpsertOrg(h.ctx, h.d.db, store.UpsertOrgParams{
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

func account(id int64, login string) map[string]any {
	return map[string]any{"id": id, "login": login, "type": "Organization"}
}

func prOpenedPayload(author string, authorID int64, number int) map[string]any {
	return map[string]any{
		"action": "opened",
		"pull_request": map[string]any{
			"number": number,
			"state":  "open",
			"user":   map[string]any{"id": authorID, "login": author},
			"head":   map[string]any{"sha": fmt.Sprintf("sha-%d", number)},
		},
		"repository": map[string]any{
			"name":  "widgets",
			"owner": account(1000, "acme"),
		},
		"installation": map[string]any{"id": 42, "account": account(1000, "acme")},
	}
}

func recheckPayload(commenter string, commenterID int64, number int) map[string]any {
	return map[string]any{
		"action": "created",
		"issue": map[string]any{
			"number":       number,
			"user":         map[string]any{"id": 7, "login": "alice"},
			"pull_request": map[string]any{},
		},
		"comment": map[string]any{
			"body": "/recheck",
			"user": map[string]any{"id": commenterID, "login": commenter},
		},
		"repository": map[string]any{
			"name":  "widgets",
			"owner": account(1000, "acme"),
		},
		"installation": map[string]any{"id": 42, "account": account(1000, "acme")},
	}
}

func TestMissingEventHeader(t *testing.T) {
	is := is.New(t)
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	h.d.ServeHTTP(rec, req)
	is.Equal(rec.Code, http.StatusBadRequest)
}

func TestBadSignatureRejected(t *testing.T) {
	is := is.New(t)
	h := newHarness(t)

	body := []byte(`{"zen":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "ping")
	req.Header.Set("X-GitHub-Delivery", "d-1")
	req.Header.Set("X-Hub-Signature-256", SignBody("wrong-secret", body))
	rec := httptest.NewRecorder()
	h.d.ServeHTTP(rec, req)
	is.Equal(rec.Code, http.StatusUnauthorized)
}

func TestPing(t *testing.T) {
	is := is.New(t)
	h := newHarness(t)

	rec := h.deliver(t, "ping", "", map[string]any{"zen": "Design for failure.", "hook_id": 99})
	is.Equal(rec.Code, http.StatusOK)
	is.True(strings.Contains(rec.Body.String(), "pong"))
	is.True(strings.Contains(rec.Body.String(), "Design for failure."))
}

func TestMalformedJSON(t *testing.T) {
	is := is.New(t)
	h := newHarness(t)

	body := []byte("{not json")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-Hub-Signature-256", SignBody(testSecret, body))
	rec := httptest.NewRecorder()
	h.d.ServeHTTP(rec, req)
	is.Equal(rec.Code, http.StatusBadRequest)
}

func TestInstallationLifecycle(t *testing.T) {
	is := is.New(t)
	h := newHarness(t)

	rec := h.deliver(t, "installation", "", map[string]any{
		"action":       "created",
		"installation": map[string]any{"id": 42, "account": account(1000, "acme")},
		"sender":       map[string]any{"id": 1, "login": "admin"},
	})
	is.Equal(rec.Code, http.StatusOK)

	org, err := h.engine.OrgBySlug(h.ctx, "acme")
	is.NoErr(err)
	is.True(org.IsActive)
	is.Equal(org.InstallationID.Int64, int64(42))

	rec = h.deliver(t, "installation", "", map[string]any{
		"action":       "suspend",
		"installation": map[string]any{"id": 42, "account": account(1000, "acme")},
		"sender":       map[string]any{"id": 1, "login": "admin"},
	})
	is.Equal(rec.Code, http.StatusOK)

	org, err = h.engine.OrgBySlug(h.ctx, "acme")
	is.NoErr(err)
	is.True(!org.IsActive)
	is.True(!org.InstallationID.Valid)
}

func TestPullRequestUnknownOrg(t *testing.T) {
	is := is.New(t)
	h := newHarness(t)

	rec := h.deliver(t, "pull_request", "", prOpenedPayload("alice", 7, 1))
	is.Equal(rec.Code, http.StatusNotFound)
}

func TestPullRequestOpenedRunsCheck(t *testing.T) {
	is := is.New(t)
	h := newHarness(t)
	h.createOrg(t, "acme")

	rec := h.deliver(t, "pull_request", "", prOpenedPayload("alice", 7, 1))
	is.Equal(rec.Code, http.StatusOK)
	is.True(strings.Contains(rec.Body.String(), string(cla.DecisionCLAUnconfigured)))

	// The comment mentions the author and the admin page.
	comments := h.gw.Comments("acme", "widgets", 1)
	is.Equal(len(comments), 1)
	is.True(strings.Contains(comments[0].Body, "@alice"))

	runs := h.gw.CheckRuns("acme", "widgets", "sha-1")
	is.Equal(len(runs), 1)
	is.Equal(runs[0].Conclusion, cla.ConclusionFailure)
}

func TestDuplicateDeliveryIgnored(t *testing.T) {
	is := is.New(t)
	h := newHarness(t)
	h.createOrg(t, "acme")

	payload := prOpenedPayload("alice", 7, 1)
	rec := h.deliver(t, "pull_request", "dup-1", payload)
	is.Equal(rec.Code, http.StatusOK)

	rec = h.deliver(t, "pull_request", "dup-1", payload)
	is.Equal(rec.Code, http.StatusOK)
	is.True(strings.Contains(rec.Body.String(), "duplicate delivery ignored"))

	// Exactly one side effect despite two deliveries.
	is.Equal(len(h.gw.CheckRuns("acme", "widgets", "sha-1")), 1)
	is.Equal(len(h.gw.Comments("acme", "widgets", 1)), 1)
}

func TestIgnoredActionsAndEvents(t *testing.T) {
	is := is.New(t)
	h := newHarness(t)
	h.createOrg(t, "acme")

	payload := prOpenedPayload("alice", 7, 1)
	payload["action"] = "labeled"
	rec := h.deliver(t, "pull_request", "", payload)
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(len(h.gw.CheckRuns("acme", "widgets", "sha-1")), 0)

	rec = h.deliver(t, "workflow_run", "", map[string]any{"action": "completed"})
	is.Equal(rec.Code, http.StatusOK)
	is.True(strings.Contains(rec.Body.String(), "event ignored"))
}

func TestRecheckCommandAuthorization(t *testing.T) {
	is := is.New(t)
	h := newHarness(t)
	h.createOrg(t, "acme")
	h.gw.AddPullRequest(github.PullRequestRef{
		Owner: "acme", Repo: "widgets", Number: 1,
		HeadSHA: "live-sha", AuthorID: 7, AuthorLogin: "alice",
	})

	// A bystander with no access is rejected.
	rec := h.deliver(t, "issue_comment", "", recheckPayload("mallory", 66, 1))
	is.Equal(rec.Code, http.StatusForbidden)
	is.Equal(len(h.gw.CheckRuns("acme", "widgets", "live-sha")), 0)

	// The PR author may always recheck their own PR.
	rec = h.deliver(t, "issue_comment", "", recheckPayload("alice", 7, 1))
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(len(h.gw.CheckRuns("acme", "widgets", "live-sha")), 1)

	// An active org member may recheck.
	h.gw.SetMembership("acme", "carol", github.MembershipActive)
	rec = h.deliver(t, "issue_comment", "", recheckPayload("carol", 9, 1))
	is.Equal(rec.Code, http.StatusOK)

	// So may anyone with write access on the repository.
	h.gw.SetPermission("acme", "widgets", "reviewer", access.WritePermission)
	rec = h.deliver(t, "issue_comment", "", recheckPayload("reviewer", 10, 1))
	is.Equal(rec.Code, http.StatusOK)

	is.Equal(len(h.gw.CheckRuns("acme", "widgets", "live-sha")), 3)
}

func TestRecheckUsesLiveHeadSHA(t *testing.T) {
	is := is.New(t)
	h := newHarness(t)
	h.createOrg(t, "acme")
	h.gw.AddPullRequest(github.PullRequestRef{
		Owner: "acme", Repo: "widgets", Number: 1,
		HeadSHA: "newest-sha", AuthorID: 7, AuthorLogin: "alice",
	})

	rec := h.deliver(t, "issue_comment", "", recheckPayload("alice", 7, 1))
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(len(h.gw.CheckRuns("acme", "widgets", "newest-sha")), 1)
}

func TestRecheckOnMissingPR(t *testing.T) {
	is := is.New(t)
	h := newHarness(t)
	h.createOrg(t, "acme")

	rec := h.deliver(t, "issue_comment", "", recheckPayload("alice", 7, 404))
	is.Equal(rec.Code, http.StatusNotFound)
}
