package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/514-labs/cla-bot-sub001/pkg/cla"
	"github.com/514-labs/cla-bot-sub001/pkg/config"
	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/db/models"
	"github.com/514-labs/cla-bot-sub001/pkg/github"
	"github.com/514-labs/cla-bot-sub001/pkg/stats"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
)

// maxBodySize caps inbound webhook payloads. GitHub's own limit is 25 MB;
// the events consumed here are far smaller.
const maxBodySize = 5 << 20

// Dispatcher is the HTTP handler for inbound GitHub webhook deliveries. It
// verifies the HMAC signature, deduplicates by delivery id, and routes each
// event to the compliance engine.
type Dispatcher struct {
	cfg    *config.Config
	db     *db.DB
	store  store.Store
	engine *cla.Engine
	client github.Client
}

// NewDispatcher returns a Dispatcher.
func NewDispatcher(cfg *config.Config, dbx *db.DB, st store.Store, engine *cla.Engine, client github.Client) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		db:     dbx,
		store:  st,
		engine: engine,
		client: client,
	}
}

func renderJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func renderError(w http.ResponseWriter, code int, msg string) {
	renderJSON(w, code, map[string]string{"error": msg})
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithPrefix("webhook")

	event := r.Header.Get("X-GitHub-Event")
	if event == "" {
		renderError(w, http.StatusBadRequest, "missing X-GitHub-Event header")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		renderError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	secret := d.cfg.GitHub.WebhookSecret
	if secret == "" {
		if d.cfg.IsStrict() {
			// Validate() rejects this at startup; fail closed anyway.
			renderError(w, http.StatusInternalServerError, "webhook secret not configured")
			return
		}
	} else if !VerifySignature(secret, body, r.Header.Get("X-Hub-Signature-256")) {
		stats.WebhookBadSignature()
		logger.Warn("rejected delivery with bad signature", "event", event)
		renderError(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	stats.WebhookReceived(event)

	if delivery := r.Header.Get("X-GitHub-Delivery"); delivery != "" {
		created, err := d.store.ReserveWebhookDelivery(ctx, d.db, delivery, event)
		if err != nil {
			logger.Error("could not reserve delivery", "id", delivery, "err", err)
			renderError(w, http.StatusInternalServerError, "delivery bookkeeping failed")
			return
		}
		if !created {
			stats.WebhookDuplicate(event)
			renderJSON(w, http.StatusOK, map[string]string{"message": "duplicate delivery ignored"})
			return
		}
	}

	switch event {
	case "ping":
		d.handlePing(w, body)
	case "installation":
		d.handleInstallation(w, r, body)
	case "installation_repositories":
		d.handleInstallationRepositories(w, r, body)
	case "pull_request":
		d.handlePullRequest(w, r, body)
	case "issue_comment":
		d.handleIssueComment(w, r, body)
	default:
		renderJSON(w, http.StatusOK, map[string]string{"message": "event ignored"})
	}
}

func (d *Dispatcher) handlePing(w http.ResponseWriter, body []byte) {
	var p pingEvent
	if err := json.Unmarshal(body, &p); err != nil {
		renderError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{
		"message": "pong",
		"zen":     p.Zen,
		"hookId":  p.HookID,
	})
}

func (d *Dispatcher) handleInstallation(w http.ResponseWriter, r *http.Request, body []byte) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithPrefix("webhook")

	var p installationEvent
	if err := json.Unmarshal(body, &p); err != nil {
		renderError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	account := p.Installation.Account
	switch p.Action {
	case "created", "unsuspend":
		org, err := d.store.UpsertOrg(ctx, d.db, store.UpsertOrgParams{
			Slug:            account.Login,
			AccountType:     models.ParseAccountType(account.Type),
			GithubAccountID: account.ID,
			InstallationID:  p.Installation.ID,
			AdminGithubID:   p.Sender.ID,
			AdminLogin:      p.Sender.Login,
		})
		if err != nil {
			logger.Error("could not upsert organization", "slug", account.Login, "err", err)
			renderError(w, http.StatusInternalServerError, "could not record installation")
			return
		}
		d.audit(ctx, org.ID, "installation_"+p.Action, p.Sender, map[string]any{
			"installationId": p.Installation.ID,
		})
		renderJSON(w, http.StatusOK, map[string]string{"message": "installation recorded"})
	case "deleted", "suspend":
		org, err := d.engine.OrgBySlug(ctx, account.Login)
		if err != nil {
			if errors.Is(err, cla.ErrOrgNotFound) {
				renderJSON(w, http.StatusOK, map[string]string{"message": "unknown organization ignored"})
				return
			}
			renderError(w, http.StatusInternalServerError, "could not load organization")
			return
		}
		if err := d.store.SetOrgActive(ctx, d.db, org.ID, false, true); err != nil {
			logger.Error("could not deactivate organization", "slug", org.Slug, "err", err)
			renderError(w, http.StatusInternalServerError, "could not deactivate organization")
			return
		}
		d.audit(ctx, org.ID, "installation_"+p.Action, p.Sender, nil)
		renderJSON(w, http.StatusOK, map[string]string{"message": "installation removed"})
	default:
		renderJSON(w, http.StatusOK, map[string]string{"message": "action ignored"})
	}
}

func (d *Dispatcher) handleInstallationRepositories(w http.ResponseWriter, r *http.Request, body []byte) {
	ctx := r.Context()

	var p installationEvent
	if err := json.Unmarshal(body, &p); err != nil {
		renderError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	account := p.Installation.Account
	org, err := d.engine.OrgBySlug(ctx, account.Login)
	if err != nil {
		renderJSON(w, http.StatusOK, map[string]string{"message": "unknown organization ignored"})
		return
	}
	if err := d.store.SetOrgInstallation(ctx, d.db, org.ID, p.Installation.ID, account.ID, models.ParseAccountType(account.Type)); err != nil {
		renderError(w, http.StatusInternalServerError, "could not update installation")
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"message": "installation updated"})
}

// prActions are the pull_request actions that trigger a compliance check.
var prActions = map[string]struct{}{
	"opened":      {},
	"synchronize": {},
	"reopened":    {},
}

func (d *Dispatcher) handlePullRequest(w http.ResponseWriter, r *http.Request, body []byte) {
	var p pullRequestEvent
	if err := json.Unmarshal(body, &p); err != nil {
		renderError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if _, ok := prActions[p.Action]; !ok {
		renderJSON(w, http.StatusOK, map[string]string{"message": "action ignored"})
		return
	}

	ref := github.PullRequestRef{
		Owner:       p.Repository.Owner.Login,
		Repo:        p.Repository.Name,
		Number:      p.PullRequest.Number,
		HeadSHA:     p.PullRequest.Head.SHA,
		AuthorID:    p.PullRequest.User.ID,
		AuthorLogin: p.PullRequest.User.Login,
		State:       p.PullRequest.State,
	}
	d.runSinglePR(w, r, p.Installation, ref)
}

func (d *Dispatcher) handleIssueComment(w http.ResponseWriter, r *http.Request, body []byte) {
	ctx := r.Context()

	var p issueCommentEvent
	if err := json.Unmarshal(body, &p); err != nil {
		renderError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if p.Action != "created" || p.Issue.PullRequest == nil || !isRecheckCommand(p.Comment.Body) {
		renderJSON(w, http.StatusOK, map[string]string{"message": "comment ignored"})
		return
	}

	owner := p.Repository.Owner.Login
	org, err := d.engine.OrgBySlug(ctx, owner)
	if err != nil {
		renderError(w, http.StatusNotFound, "unknown organization")
		return
	}

	id, ok := d.installationID(w, org, p.Installation)
	if !ok {
		return
	}
	gw := d.client.Installation(id)

	authorized, err := d.authorizeRecheck(ctx, gw, org, p)
	if err != nil {
		renderError(w, http.StatusBadGateway, fmt.Sprintf("authorization lookup failed: %v", err))
		return
	}
	if !authorized {
		renderError(w, http.StatusForbidden, "not authorized to trigger a recheck")
		return
	}

	// Re-fetch the PR so the check lands on the live head SHA, not the one
	// from whenever the PR last changed.
	ref, err := gw.GetPullRequest(ctx, owner, p.Repository.Name, p.Issue.Number)
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			renderError(w, http.StatusNotFound, "pull request not found")
			return
		}
		renderError(w, http.StatusBadGateway, fmt.Sprintf("could not fetch pull request: %v", err))
		return
	}
	d.runSinglePR(w, r, p.Installation, *ref)
}

// isRecheckCommand reports whether a comment body is the /recheck command,
// alone on the first word.
func isRecheckCommand(body string) bool {
	fields := strings.Fields(body)
	return len(fields) > 0 && fields[0] == "/recheck"
}

// authorizeRecheck decides whether the commenter may trigger a recheck: the
// PR author, the personal-account owner, an active org member, or anyone
// with write access or better on the repository.
func (d *Dispatcher) authorizeRecheck(ctx context.Context, gw github.Gateway, org models.Organization, p issueCommentEvent) (bool, error) {
	commenter := p.Comment.User
	if commenter.ID != 0 && commenter.ID == p.Issue.User.ID {
		return true, nil
	}
	if org.IsPersonal() {
		if org.GithubAccountID.Valid && org.GithubAccountID.Int64 == commenter.ID {
			return true, nil
		}
		if strings.EqualFold(commenter.Login, org.Slug) {
			return true, nil
		}
	} else {
		status, err := gw.CheckOrgMembership(ctx, org.Slug, commenter.Login)
		if err != nil && !errors.Is(err, github.ErrNotFound) {
			return false, err
		}
		if status == github.MembershipActive {
			return true, nil
		}
	}
	lvl, err := gw.GetRepositoryPermission(ctx, p.Repository.Owner.Login, p.Repository.Name, commenter.Login)
	if err != nil && !errors.Is(err, github.ErrNotFound) {
		return false, err
	}
	return lvl.CanTriggerRecheck(), nil
}

// installationID resolves the installation for a delivery, preferring the
// payload's id. A missing id in strict mode is a 424 for the caller.
func (d *Dispatcher) installationID(w http.ResponseWriter, org models.Organization, inst *Installation) (int64, bool) {
	if inst != nil && inst.ID != 0 {
		return inst.ID, true
	}
	if org.InstallationID.Valid {
		return org.InstallationID.Int64, true
	}
	if d.cfg.IsStrict() {
		renderError(w, http.StatusFailedDependency, "no installation id on record")
		return 0, false
	}
	return 0, true
}

// runSinglePR resolves the organization and drives the shared
// evaluate-and-sync flow for one pull request.
func (d *Dispatcher) runSinglePR(w http.ResponseWriter, r *http.Request, inst *Installation, ref github.PullRequestRef) {
	ctx := r.Context()

	org, err := d.engine.OrgBySlug(ctx, ref.Owner)
	if err != nil {
		if errors.Is(err, cla.ErrOrgNotFound) {
			renderError(w, http.StatusNotFound, "unknown organization")
			return
		}
		renderError(w, http.StatusInternalServerError, "could not load organization")
		return
	}

	var instID int64
	if inst != nil {
		instID = inst.ID
	}
	out, err := d.engine.DecideAndSync(ctx, cla.PRContext{
		Org:            org,
		InstallationID: instID,
		PR:             ref,
	})
	if err != nil {
		switch {
		case errors.Is(err, cla.ErrNoInstallation):
			renderError(w, http.StatusFailedDependency, "no installation id on record")
		default:
			var upstream *github.UpstreamError
			if errors.As(err, &upstream) {
				renderError(w, http.StatusBadGateway, fmt.Sprintf("github call failed: %v", err))
				return
			}
			renderError(w, http.StatusInternalServerError, fmt.Sprintf("compliance check failed: %v", err))
		}
		return
	}

	renderJSON(w, http.StatusOK, map[string]any{
		"message":    "processed",
		"decision":   out.Decision,
		"conclusion": out.Conclusion,
		"comment":    out.Comment,
	})
}

func (d *Dispatcher) audit(ctx context.Context, orgID int64, eventType string, actor Account, payload map[string]any) {
	if err := d.store.CreateAuditEvent(ctx, d.db, store.AuditEventParams{
		EventType:  eventType,
		OrgID:      orgID,
		ActorID:    actor.ID,
		ActorLogin: actor.Login,
		Payload:    payload,
	}); err != nil {
		log.FromContext(ctx).WithPrefix("webhook").Error("could not write audit event", "type", eventType, "err", err)
	}
}
