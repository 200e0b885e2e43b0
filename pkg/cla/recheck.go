package cla

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/514-labs/cla-bot-sub001/pkg/github"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
)

// RecheckOptions narrow a bulk recheck. A zero value rechecks every open PR
// in the organization; setting the author fields restricts the run to one
// contributor's PRs, used after that contributor signs.
type RecheckOptions struct {
	OnlyAuthorID    int64
	OnlyAuthorLogin string
}

// PRFailure records one pull request whose recheck failed.
type PRFailure struct {
	Repo   string `json:"repo"`
	Number int    `json:"number"`
	Error  string `json:"error"`
}

// RecheckReport is the structured outcome of one bulk recheck run.
type RecheckReport struct {
	Org             string           `json:"org"`
	SkippedInactive bool             `json:"skippedInactive,omitempty"`
	Attempted       int              `json:"attempted"`
	Rechecked       int              `json:"rechecked"`
	ByDecision      map[Decision]int `json:"byDecision"`
	CommentsCreated int              `json:"commentsCreated"`
	CommentsUpdated int              `json:"commentsUpdated"`
	CommentsDeleted int              `json:"commentsDeleted"`
	Errors          int              `json:"errors"`
	Failures        []PRFailure      `json:"failures,omitempty"`
}

// RecheckOrganization re-evaluates every open pull request across an
// organization's repositories. One PR's failure is counted and the batch
// continues; only listing the PRs in the first place can fail the run. The
// report is persisted as a single audit event and returned.
func (e *Engine) RecheckOrganization(ctx context.Context, slug string, opts RecheckOptions) (*RecheckReport, error) {
	logger := log.FromContext(ctx).WithPrefix("cla")

	org, err := e.OrgBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	report := &RecheckReport{
		Org:        org.Slug,
		ByDecision: make(map[Decision]int),
	}
	if !org.IsActive {
		report.SkippedInactive = true
		return report, e.auditRecheck(ctx, org.ID, report)
	}

	id, err := e.installationID(PRContext{Org: org})
	if err != nil {
		return nil, err
	}
	gw := e.client.Installation(id)

	prs, err := gw.ListOpenPullRequests(ctx, org.Slug)
	if err != nil {
		return nil, fmt.Errorf("list open pull requests: %w", err)
	}
	prs = filterByAuthor(prs, opts)
	report.Attempted = len(prs)

	limit := e.cfg.Recheck.Concurrency
	if limit < 1 {
		limit = 1
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(limit)
	for _, pr := range prs {
		pr := pr
		g.Go(func() error {
			out, err := e.DecideAndSync(ctx, PRContext{Org: org, InstallationID: id, PR: pr})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors++
				report.Failures = append(report.Failures, PRFailure{
					Repo:   pr.Owner + "/" + pr.Repo,
					Number: pr.Number,
					Error:  err.Error(),
				})
				logger.Error("recheck failed for pull request",
					"org", org.Slug, "repo", pr.Repo, "pr", pr.Number, "err", err)
				return nil
			}
			report.Rechecked++
			report.ByDecision[out.Decision]++
			switch out.Comment {
			case CommentCreated:
				report.CommentsCreated++
			case CommentUpdated:
				report.CommentsUpdated++
			case CommentDeleted:
				report.CommentsDeleted++
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("bulk recheck finished",
		"org", org.Slug,
		"attempted", report.Attempted,
		"rechecked", report.Rechecked,
		"errors", report.Errors)
	return report, e.auditRecheck(ctx, org.ID, report)
}

func (e *Engine) auditRecheck(ctx context.Context, orgID int64, report *RecheckReport) error {
	if err := e.store.CreateAuditEvent(ctx, e.db, store.AuditEventParams{
		EventType: "bulk_recheck",
		OrgID:     orgID,
		Payload:   report,
	}); err != nil {
		return fmt.Errorf("audit recheck: %w", err)
	}
	return nil
}

func filterByAuthor(prs []github.PullRequestRef, opts RecheckOptions) []github.PullRequestRef {
	if opts.OnlyAuthorID == 0 && opts.OnlyAuthorLogin == "" {
		return prs
	}
	out := prs[:0]
	for _, pr := range prs {
		if opts.OnlyAuthorID != 0 && pr.AuthorID == opts.OnlyAuthorID {
			out = append(out, pr)
			continue
		}
		if opts.OnlyAuthorLogin != "" && strings.EqualFold(pr.AuthorLogin, opts.OnlyAuthorLogin) {
			out = append(out, pr)
		}
	}
	return out
}
