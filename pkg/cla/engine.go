package cla

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/514-labs/cla-bot-sub001/pkg/config"
	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/db/models"
	"github.com/514-labs/cla-bot-sub001/pkg/github"
	"github.com/514-labs/cla-bot-sub001/pkg/stats"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
)

var (
	// ErrOrgNotFound is returned when no organization matches a slug.
	ErrOrgNotFound = errors.New("organization not found")

	// ErrNoInstallation is returned in strict mode when neither the webhook
	// payload nor the organization row carries an installation id.
	ErrNoInstallation = errors.New("no installation id on record")

	// ErrNoCLA is returned when an operation requires a published CLA and
	// the organization has none.
	ErrNoCLA = errors.New("organization has no published CLA")

	// ErrInvalidLogin is returned when a login fails validation before it
	// would be written to the database.
	ErrInvalidLogin = errors.New("invalid login")
)

// Scheduler dispatches a named function as a fire-and-forget background task
// and returns its run id.
type Scheduler interface {
	Schedule(name string, fn func(context.Context) error) (string, error)
}

// Engine ties the evaluator to its collaborators: the signature ledger, the
// GitHub gateway, and the async task scheduler.
type Engine struct {
	cfg    *config.Config
	db     *db.DB
	store  store.Store
	client github.Client
	tasks  Scheduler
}

// NewEngine returns an Engine. tasks may be nil, in which case every
// scheduling attempt is reported as a soft failure.
func NewEngine(cfg *config.Config, dbx *db.DB, st store.Store, client github.Client, tasks Scheduler) *Engine {
	return &Engine{
		cfg:    cfg,
		db:     dbx,
		store:  st,
		client: client,
		tasks:  tasks,
	}
}

// PRContext identifies one pull request to evaluate together with the
// organization it belongs to.
type PRContext struct {
	Org            models.Organization
	InstallationID int64
	PR             github.PullRequestRef
}

// CommentAction describes what Apply did to the bot comment on a PR.
type CommentAction string

const (
	CommentNone    CommentAction = "none"
	CommentCreated CommentAction = "created"
	CommentUpdated CommentAction = "updated"
	CommentDeleted CommentAction = "deleted"
)

// Outcome is the result of applying one decision to one pull request.
type Outcome struct {
	Decision   Decision      `json:"decision"`
	Conclusion string        `json:"conclusion"`
	Comment    CommentAction `json:"comment"`
}

// installationID resolves the installation to act under, preferring the
// webhook payload's id over the organization row. In strict mode a missing
// id is an error; in permissive mode the zero id is passed through, which
// only an injected test gateway can serve.
func (e *Engine) installationID(pr PRContext) (int64, error) {
	if pr.InstallationID != 0 {
		return pr.InstallationID, nil
	}
	if pr.Org.InstallationID.Valid {
		return pr.Org.InstallationID.Int64, nil
	}
	if e.cfg.IsStrict() {
		return 0, ErrNoInstallation
	}
	return 0, nil
}

// gatherFacts collects the evaluator inputs for one author. Lookups run in
// decision order so a bypass match or membership hit skips the remaining
// calls.
func (e *Engine) gatherFacts(ctx context.Context, gw github.Gateway, org models.Organization, pr github.PullRequestRef) (Facts, error) {
	var f Facts
	if !org.IsActive {
		return f, nil
	}

	_, err := e.store.FindBypassAccount(ctx, e.db, org.ID, pr.AuthorID, pr.AuthorLogin)
	switch {
	case err == nil:
		f.BypassMatch = true
		return f, nil
	case !errors.Is(err, db.ErrRecordNotFound):
		return f, fmt.Errorf("find bypass account: %w", err)
	}

	if org.IsPersonal() {
		if org.GithubAccountID.Valid {
			f.AccountOwner = org.GithubAccountID.Int64 == pr.AuthorID
		} else {
			f.AccountOwner = strings.EqualFold(pr.AuthorLogin, org.Slug)
		}
		if f.AccountOwner {
			return f, nil
		}
	} else {
		status, err := gw.CheckOrgMembership(ctx, org.Slug, pr.AuthorLogin)
		if err != nil && !errors.Is(err, github.ErrNotFound) {
			return f, fmt.Errorf("check org membership: %w", err)
		}
		f.OrgMember = status == github.MembershipActive
		if f.OrgMember {
			return f, nil
		}
	}

	if !org.HasCLA() {
		return f, nil
	}

	sigs, err := e.store.ListSignaturesForUser(ctx, e.db, org.ID, pr.AuthorID)
	if err != nil {
		return f, fmt.Errorf("list signatures: %w", err)
	}
	for _, sig := range sigs {
		if sig.CLASHA256 == org.CLATextSHA256.String {
			f.HasCurrentSignature = true
		} else {
			f.HasPriorSignature = true
		}
	}
	return f, nil
}

// DecideAndSync runs the whole single-PR flow: gather facts, evaluate, apply.
// Both the webhook path and the bulk recheck go through it so the two can
// never drift apart.
func (e *Engine) DecideAndSync(ctx context.Context, pr PRContext) (Outcome, error) {
	id, err := e.installationID(pr)
	if err != nil {
		return Outcome{}, err
	}
	gw := e.client.Installation(id)
	facts, err := e.gatherFacts(ctx, gw, pr.Org, pr.PR)
	if err != nil {
		return Outcome{}, err
	}
	return e.Apply(ctx, gw, pr, Evaluate(pr.Org, facts))
}

// Apply synchronizes GitHub with one decision: a completed check run on the
// head SHA and at most one live bot comment on the PR. Every application
// writes one audit event.
func (e *Engine) Apply(ctx context.Context, gw github.Gateway, pr PRContext, d Decision) (Outcome, error) {
	version := ""
	if pr.Org.CLATextSHA256.Valid {
		version = VersionLabel(pr.Org.CLATextSHA256.String)
	}

	title, summary := checkRunOutput(d, pr.PR.AuthorLogin, version)
	_, err := gw.CreateCheckRun(ctx, pr.PR.Owner, pr.PR.Repo, github.CheckRunParams{
		Name:       CheckRunName,
		HeadSHA:    pr.PR.HeadSHA,
		Status:     "completed",
		Conclusion: d.Conclusion(),
		Output: github.CheckRunOutput{
			Title:   title,
			Summary: summary,
		},
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("create check run: %w", err)
	}

	action, err := e.syncComment(ctx, gw, pr, d, version)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Decision: d, Conclusion: d.Conclusion(), Comment: action}
	stats.DecisionApplied(string(d))
	if err := e.store.CreateAuditEvent(ctx, e.db, store.AuditEventParams{
		EventType: "decision_applied",
		OrgID:     pr.Org.ID,
		UserID:    pr.PR.AuthorID,
		Payload: map[string]any{
			"owner":      pr.PR.Owner,
			"repo":       pr.PR.Repo,
			"number":     pr.PR.Number,
			"headSha":    pr.PR.HeadSHA,
			"decision":   out.Decision,
			"conclusion": out.Conclusion,
			"comment":    out.Comment,
		},
	}); err != nil {
		return out, fmt.Errorf("audit decision: %w", err)
	}

	log.FromContext(ctx).Debug("decision applied",
		"org", pr.Org.Slug,
		"repo", pr.PR.Owner+"/"+pr.PR.Repo,
		"pr", pr.PR.Number,
		"decision", d,
		"comment", action)
	return out, nil
}

// syncComment enforces the at-most-one-live-prompt rule. Failing decisions
// update the existing prompt in place or create one; passing decisions delete
// a stale prompt when one is standing.
func (e *Engine) syncComment(ctx context.Context, gw github.Gateway, pr PRContext, d Decision, version string) (CommentAction, error) {
	comments, err := gw.ListComments(ctx, pr.PR.Owner, pr.PR.Repo, pr.PR.Number)
	if err != nil {
		return CommentNone, fmt.Errorf("list comments: %w", err)
	}

	// Newest first: when older deployments left duplicates behind, the
	// latest prompt is the one to manage.
	var existing *github.IssueComment
	for i := len(comments) - 1; i >= 0; i-- {
		if IsManagedComment(comments[i].Body) {
			existing = &comments[i]
			break
		}
	}

	if !d.Passing() {
		body := promptBody(d, pr.PR.AuthorLogin, pr.Org.Slug, version, e.cfg.HTTP.PublicURL)
		if existing == nil {
			if _, err := gw.CreateComment(ctx, pr.PR.Owner, pr.PR.Repo, pr.PR.Number, body); err != nil {
				return CommentNone, fmt.Errorf("create comment: %w", err)
			}
			return CommentCreated, nil
		}
		if existing.Body == body {
			return CommentNone, nil
		}
		if _, err := gw.UpdateComment(ctx, pr.PR.Owner, pr.PR.Repo, existing.ID, body); err != nil {
			return CommentNone, fmt.Errorf("update comment: %w", err)
		}
		return CommentUpdated, nil
	}

	if existing != nil && isRemovablePrompt(existing.Body) {
		if err := gw.DeleteComment(ctx, pr.PR.Owner, pr.PR.Repo, existing.ID); err != nil {
			return CommentNone, fmt.Errorf("delete comment: %w", err)
		}
		return CommentDeleted, nil
	}
	return CommentNone, nil
}
