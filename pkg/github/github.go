// Package github provides the gateway to the GitHub REST API consumed by the
// compliance engine. The concrete REST client and the in-memory test double
// both satisfy Gateway; callers only ever see the interface.
package github

import (
	"context"

	"github.com/514-labs/cla-bot-sub001/pkg/access"
)

// MembershipStatus is the result of an organization membership lookup.
type MembershipStatus string

const (
	// MembershipActive means the user is an active member of the
	// organization.
	MembershipActive MembershipStatus = "active"

	// MembershipNone means the user is not a member of the organization.
	MembershipNone MembershipStatus = "not_member"
)

// User is a GitHub user account.
type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Type      string `json:"type"`
}

// PullRequestRef identifies one pull request and the facts the engine needs
// about it.
type PullRequestRef struct {
	Owner       string `json:"owner"`
	Repo        string `json:"repo"`
	Number      int    `json:"number"`
	HeadSHA     string `json:"head_sha"`
	AuthorID    int64  `json:"author_id"`
	AuthorLogin string `json:"author_login"`
	State       string `json:"state"`
}

// CheckRun is a check run on a commit.
type CheckRun struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	HeadSHA    string `json:"head_sha"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
}

// CheckRunOutput is the title/summary block of a check run.
type CheckRunOutput struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// CheckRunParams are the parameters for creating or updating a check run.
type CheckRunParams struct {
	Name       string         `json:"name"`
	HeadSHA    string         `json:"head_sha"`
	Status     string         `json:"status"`
	Conclusion string         `json:"conclusion"`
	Output     CheckRunOutput `json:"output"`
}

// IssueComment is a comment on a pull request.
type IssueComment struct {
	ID        int64  `json:"id"`
	Body      string `json:"body"`
	UserID    int64  `json:"user_id"`
	UserLogin string `json:"user_login"`
}

// Gateway is an installation-scoped client for the GitHub REST API.
type Gateway interface {
	// GetUser looks up a user by login. Returns ErrNotFound for unknown
	// users.
	GetUser(ctx context.Context, username string) (*User, error)

	// CheckOrgMembership reports whether username is an active member of
	// org.
	CheckOrgMembership(ctx context.Context, org, username string) (MembershipStatus, error)

	// GetRepositoryPermission returns the permission level username holds
	// on the repository.
	GetRepositoryPermission(ctx context.Context, owner, repo, username string) (access.PermissionLevel, error)

	CreateCheckRun(ctx context.Context, owner, repo string, p CheckRunParams) (*CheckRun, error)
	UpdateCheckRun(ctx context.Context, owner, repo string, id int64, p CheckRunParams) (*CheckRun, error)
	ListCheckRunsForRef(ctx context.Context, owner, repo, ref string) ([]CheckRun, error)

	CreateComment(ctx context.Context, owner, repo string, number int, body string) (*IssueComment, error)
	UpdateComment(ctx context.Context, owner, repo string, id int64, body string) (*IssueComment, error)
	DeleteComment(ctx context.Context, owner, repo string, id int64) error
	// ListComments returns the comments on a pull request in creation
	// order, oldest first.
	ListComments(ctx context.Context, owner, repo string, number int) ([]IssueComment, error)

	// GetPullRequest returns the pull request, or ErrNotFound.
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequestRef, error)

	// GetPullRequestHeadSHA returns the current head SHA of the pull
	// request.
	GetPullRequestHeadSHA(ctx context.Context, owner, repo string, number int) (string, error)

	// ListOpenPullRequests lists the open pull requests across every
	// repository of the installation owned by owner.
	ListOpenPullRequests(ctx context.Context, owner string) ([]PullRequestRef, error)
}

// Client creates installation-scoped gateways.
type Client interface {
	// Installation returns a Gateway authenticated for the given
	// installation id.
	Installation(id int64) Gateway
}
