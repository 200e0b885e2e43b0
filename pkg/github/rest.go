package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/514-labs/cla-bot-sub001/pkg/access"
	"github.com/514-labs/cla-bot-sub001/pkg/config"
	"github.com/514-labs/cla-bot-sub001/pkg/stats"
	"github.com/514-labs/cla-bot-sub001/pkg/version"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// Installation tokens are valid for one hour; refresh before expiry.
	tokenCacheTTL = 50 * time.Minute

	// Membership facts change rarely relative to webhook bursts; a short
	// TTL keeps a bulk recheck from asking for the same fact dozens of
	// times.
	membershipCacheTTL = time.Minute

	cacheSize = 256
)

// RESTClient is the GitHub REST API client used in production. One client is
// shared by every installation; per-installation gateways borrow its caches.
type RESTClient struct {
	apiURL string
	httpc  *http.Client
	auth   *appAuth
	logger *log.Logger

	tokens      *expirable.LRU[int64, string]
	memberships *expirable.LRU[string, MembershipStatus]
}

var _ Client = (*RESTClient)(nil)

// NewRESTClient returns a REST client configured from cfg.
func NewRESTClient(cfg *config.Config, logger *log.Logger) (*RESTClient, error) {
	auth, err := newAppAuth(cfg.GitHub.AppID, cfg.GitHub.PrivateKeyPath)
	if err != nil {
		return nil, err
	}

	return &RESTClient{
		apiURL: cfg.GitHub.APIURL,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
		auth:        auth,
		logger:      logger,
		tokens:      expirable.NewLRU[int64, string](cacheSize, nil, tokenCacheTTL),
		memberships: expirable.NewLRU[string, MembershipStatus](cacheSize, nil, membershipCacheTTL),
	}, nil
}

// Installation implements Client.
func (c *RESTClient) Installation(id int64) Gateway {
	return &installationGateway{client: c, installationID: id}
}

func (c *RESTClient) token(ctx context.Context, installationID int64) (string, error) {
	if tok, ok := c.tokens.Get(installationID); ok {
		return tok, nil
	}
	tok, err := c.auth.installationToken(ctx, c.httpc, c.apiURL, installationID)
	if err != nil {
		return "", err
	}
	c.tokens.Add(installationID, tok)
	return tok, nil
}

// installationGateway is a Gateway bound to one installation.
type installationGateway struct {
	client         *RESTClient
	installationID int64
}

var _ Gateway = (*installationGateway)(nil)

func (g *installationGateway) do(ctx context.Context, method, path string, body, out any) error {
	c := g.client

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		buf = bytes.NewReader(b)
	}

	tok, err := c.token(ctx, g.installationID)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/vnd.github+json")
	ua := "cla-bot"
	if version.Version != "" {
		ua += "/" + version.Version
	}
	req.Header.Set("User-Agent", ua)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		stats.GatewayError(method)
		return fmt.Errorf("github request: %w", err)
	}
	defer res.Body.Close() // nolint: errcheck

	data, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		stats.GatewayError(method)
		return err
	}

	switch {
	// 404 is control flow for lookups (membership, permission), not a
	// gateway failure.
	case res.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case res.StatusCode >= 400:
		stats.GatewayError(method)
		var ghe struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &ghe)
		return &UpstreamError{
			StatusCode: res.StatusCode,
			Method:     method,
			Path:       path,
			Message:    ghe.Message,
		}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode github response: %w", err)
		}
	}
	return nil
}

type wireUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Type      string `json:"type"`
}

func (u wireUser) user() *User {
	return &User{ID: u.ID, Login: u.Login, Name: u.Name, AvatarURL: u.AvatarURL, Type: u.Type}
}

// GetUser implements Gateway.
func (g *installationGateway) GetUser(ctx context.Context, username string) (*User, error) {
	var u wireUser
	if err := g.do(ctx, http.MethodGet, "/users/"+url.PathEscape(username), nil, &u); err != nil {
		return nil, err
	}
	return u.user(), nil
}

// CheckOrgMembership implements Gateway.
func (g *installationGateway) CheckOrgMembership(ctx context.Context, org, username string) (MembershipStatus, error) {
	key := org + "/" + username
	if st, ok := g.client.memberships.Get(key); ok {
		return st, nil
	}

	var m struct {
		State string `json:"state"`
	}
	path := fmt.Sprintf("/orgs/%s/memberships/%s", url.PathEscape(org), url.PathEscape(username))
	err := g.do(ctx, http.MethodGet, path, nil, &m)
	switch {
	case err == nil && m.State == "active":
		g.client.memberships.Add(key, MembershipActive)
		return MembershipActive, nil
	case err == nil, err == ErrNotFound:
		g.client.memberships.Add(key, MembershipNone)
		return MembershipNone, nil
	default:
		return MembershipNone, err
	}
}

// GetRepositoryPermission implements Gateway.
func (g *installationGateway) GetRepositoryPermission(ctx context.Context, owner, repo, username string) (access.PermissionLevel, error) {
	var p struct {
		Permission string `json:"permission"`
	}
	path := fmt.Sprintf("/repos/%s/%s/collaborators/%s/permission",
		url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(username))
	if err := g.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		if err == ErrNotFound {
			return access.NoPermission, nil
		}
		return access.NoPermission, err
	}
	lvl := access.ParsePermissionLevel(p.Permission)
	if lvl < 0 {
		lvl = access.NoPermission
	}
	return lvl, nil
}

// CreateCheckRun implements Gateway.
func (g *installationGateway) CreateCheckRun(ctx context.Context, owner, repo string, p CheckRunParams) (*CheckRun, error) {
	var cr CheckRun
	path := fmt.Sprintf("/repos/%s/%s/check-runs", url.PathEscape(owner), url.PathEscape(repo))
	if err := g.do(ctx, http.MethodPost, path, p, &cr); err != nil {
		return nil, err
	}
	return &cr, nil
}

// UpdateCheckRun implements Gateway.
func (g *installationGateway) UpdateCheckRun(ctx context.Context, owner, repo string, id int64, p CheckRunParams) (*CheckRun, error) {
	var cr CheckRun
	path := fmt.Sprintf("/repos/%s/%s/check-runs/%d", url.PathEscape(owner), url.PathEscape(repo), id)
	if err := g.do(ctx, http.MethodPatch, path, p, &cr); err != nil {
		return nil, err
	}
	return &cr, nil
}

// ListCheckRunsForRef implements Gateway.
func (g *installationGateway) ListCheckRunsForRef(ctx context.Context, owner, repo, ref string) ([]CheckRun, error) {
	var out struct {
		CheckRuns []CheckRun `json:"check_runs"`
	}
	path := fmt.Sprintf("/repos/%s/%s/commits/%s/check-runs",
		url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(ref))
	if err := g.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.CheckRuns, nil
}

type wireComment struct {
	ID   int64    `json:"id"`
	Body string   `json:"body"`
	User wireUser `json:"user"`
}

func (c wireComment) comment() IssueComment {
	return IssueComment{ID: c.ID, Body: c.Body, UserID: c.User.ID, UserLogin: c.User.Login}
}

// CreateComment implements Gateway.
func (g *installationGateway) CreateComment(ctx context.Context, owner, repo string, number int, body string) (*IssueComment, error) {
	var c wireComment
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", url.PathEscape(owner), url.PathEscape(repo), number)
	if err := g.do(ctx, http.MethodPost, path, map[string]string{"body": body}, &c); err != nil {
		return nil, err
	}
	cc := c.comment()
	return &cc, nil
}

// UpdateComment implements Gateway.
func (g *installationGateway) UpdateComment(ctx context.Context, owner, repo string, id int64, body string) (*IssueComment, error) {
	var c wireComment
	path := fmt.Sprintf("/repos/%s/%s/issues/comments/%d", url.PathEscape(owner), url.PathEscape(repo), id)
	if err := g.do(ctx, http.MethodPatch, path, map[string]string{"body": body}, &c); err != nil {
		return nil, err
	}
	cc := c.comment()
	return &cc, nil
}

// DeleteComment implements Gateway.
func (g *installationGateway) DeleteComment(ctx context.Context, owner, repo string, id int64) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/comments/%d", url.PathEscape(owner), url.PathEscape(repo), id)
	return g.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListComments implements Gateway.
func (g *installationGateway) ListComments(ctx context.Context, owner, repo string, number int) ([]IssueComment, error) {
	var wire []wireComment
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments?per_page=100", url.PathEscape(owner), url.PathEscape(repo), number)
	if err := g.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	comments := make([]IssueComment, 0, len(wire))
	for _, c := range wire {
		comments = append(comments, c.comment())
	}
	return comments, nil
}

type wirePull struct {
	Number int      `json:"number"`
	State  string   `json:"state"`
	User   wireUser `json:"user"`
	Head   struct {
		SHA string `json:"sha"`
	} `json:"head"`
	Base struct {
		Repo struct {
			Name  string   `json:"name"`
			Owner wireUser `json:"owner"`
		} `json:"repo"`
	} `json:"base"`
}

func (p wirePull) ref() PullRequestRef {
	return PullRequestRef{
		Owner:       p.Base.Repo.Owner.Login,
		Repo:        p.Base.Repo.Name,
		Number:      p.Number,
		HeadSHA:     p.Head.SHA,
		AuthorID:    p.User.ID,
		AuthorLogin: p.User.Login,
		State:       p.State,
	}
}

// GetPullRequest implements Gateway.
func (g *installationGateway) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequestRef, error) {
	var p wirePull
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", url.PathEscape(owner), url.PathEscape(repo), number)
	if err := g.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	ref := p.ref()
	if ref.Owner == "" {
		ref.Owner = owner
	}
	if ref.Repo == "" {
		ref.Repo = repo
	}
	return &ref, nil
}

// GetPullRequestHeadSHA implements Gateway.
func (g *installationGateway) GetPullRequestHeadSHA(ctx context.Context, owner, repo string, number int) (string, error) {
	pr, err := g.GetPullRequest(ctx, owner, repo, number)
	if err != nil {
		return "", err
	}
	return pr.HeadSHA, nil
}

// ListOpenPullRequests implements Gateway.
// It walks the installation's repositories and collects their open pull
// requests, which keeps the call count proportional to repository count
// rather than requiring a search index.
func (g *installationGateway) ListOpenPullRequests(ctx context.Context, owner string) ([]PullRequestRef, error) {
	var repos struct {
		Repositories []struct {
			Name  string   `json:"name"`
			Owner wireUser `json:"owner"`
		} `json:"repositories"`
	}
	if err := g.do(ctx, http.MethodGet, "/installation/repositories?per_page=100", nil, &repos); err != nil {
		return nil, err
	}

	var prs []PullRequestRef
	for _, r := range repos.Repositories {
		if r.Owner.Login != "" && !strings.EqualFold(r.Owner.Login, owner) {
			continue
		}
		var wire []wirePull
		path := fmt.Sprintf("/repos/%s/%s/pulls?state=open&per_page=100", url.PathEscape(owner), url.PathEscape(r.Name))
		if err := g.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
			return prs, err
		}
		for _, p := range wire {
			ref := p.ref()
			if ref.Owner == "" {
				ref.Owner = owner
			}
			if ref.Repo == "" {
				ref.Repo = r.Name
			}
			prs = append(prs, ref)
		}
	}
	return prs, nil
}
