package github

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/514-labs/cla-bot-sub001/pkg/access"
)

// MemoryGateway is an in-memory Gateway for tests. Each instance carries its
// own isolated state, so tests can run concurrently without sharing a global
// mock.
type MemoryGateway struct {
	mu sync.Mutex

	users       map[string]*User
	memberships map[string]MembershipStatus
	permissions map[string]access.PermissionLevel
	pulls       map[string]*PullRequestRef
	comments    map[string][]IssueComment
	checkRuns   map[string][]CheckRun

	// Err, when set, is returned by every call. Use FailPull for targeted
	// failures.
	Err      error
	pullErrs map[string]error

	nextID int64
}

var (
	_ Gateway = (*MemoryGateway)(nil)
	_ Client  = (*MemoryGateway)(nil)
)

// NewMemoryGateway returns an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		users:       make(map[string]*User),
		memberships: make(map[string]MembershipStatus),
		permissions: make(map[string]access.PermissionLevel),
		pulls:       make(map[string]*PullRequestRef),
		comments:    make(map[string][]IssueComment),
		checkRuns:   make(map[string][]CheckRun),
		pullErrs:    make(map[string]error),
	}
}

// Installation implements Client. The in-memory gateway ignores installation
// ids.
func (m *MemoryGateway) Installation(_ int64) Gateway { return m }

func pullKey(owner, repo string, number int) string {
	return fmt.Sprintf("%s/%s#%d", strings.ToLower(owner), strings.ToLower(repo), number)
}

func memberKey(org, username string) string {
	return strings.ToLower(org) + "/" + strings.ToLower(username)
}

// AddUser seeds a user.
func (m *MemoryGateway) AddUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := u
	m.users[strings.ToLower(u.Login)] = &cp
}

// SetMembership seeds an org membership fact.
func (m *MemoryGateway) SetMembership(org, username string, st MembershipStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memberships[memberKey(org, username)] = st
}

// SetPermission seeds a repository permission fact.
func (m *MemoryGateway) SetPermission(owner, repo, username string, lvl access.PermissionLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permissions[pullKey(owner, repo, 0)+"/"+strings.ToLower(username)] = lvl
}

// AddPullRequest seeds an open pull request.
func (m *MemoryGateway) AddPullRequest(pr PullRequestRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pr.State == "" {
		pr.State = "open"
	}
	cp := pr
	m.pulls[pullKey(pr.Owner, pr.Repo, pr.Number)] = &cp
}

// FailPull makes lookups and comment listing on the given pull request fail
// with err. The pull is still returned by ListOpenPullRequests.
func (m *MemoryGateway) FailPull(owner, repo string, number int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pullErrs[pullKey(owner, repo, number)] = err
}

// CheckRuns returns the recorded check runs for a commit, oldest first.
func (m *MemoryGateway) CheckRuns(owner, repo, sha string) []CheckRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pullKey(owner, repo, 0) + "@" + sha
	out := make([]CheckRun, len(m.checkRuns[key]))
	copy(out, m.checkRuns[key])
	return out
}

// Comments returns the live comments on a pull request, oldest first.
func (m *MemoryGateway) Comments(owner, repo string, number int) []IssueComment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]IssueComment, len(m.comments[pullKey(owner, repo, number)]))
	copy(out, m.comments[pullKey(owner, repo, number)])
	return out
}

// GetUser implements Gateway.
func (m *MemoryGateway) GetUser(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	u, ok := m.users[strings.ToLower(username)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// CheckOrgMembership implements Gateway.
func (m *MemoryGateway) CheckOrgMembership(_ context.Context, org, username string) (MembershipStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return MembershipNone, m.Err
	}
	if st, ok := m.memberships[memberKey(org, username)]; ok {
		return st, nil
	}
	return MembershipNone, nil
}

// GetRepositoryPermission implements Gateway.
func (m *MemoryGateway) GetRepositoryPermission(_ context.Context, owner, repo, username string) (access.PermissionLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return access.NoPermission, m.Err
	}
	if lvl, ok := m.permissions[pullKey(owner, repo, 0)+"/"+strings.ToLower(username)]; ok {
		return lvl, nil
	}
	return access.NoPermission, nil
}

// CreateCheckRun implements Gateway.
func (m *MemoryGateway) CreateCheckRun(_ context.Context, owner, repo string, p CheckRunParams) (*CheckRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.nextID++
	cr := CheckRun{
		ID:         m.nextID,
		Name:       p.Name,
		HeadSHA:    p.HeadSHA,
		Status:     p.Status,
		Conclusion: p.Conclusion,
	}
	key := pullKey(owner, repo, 0) + "@" + p.HeadSHA
	m.checkRuns[key] = append(m.checkRuns[key], cr)
	return &cr, nil
}

// UpdateCheckRun implements Gateway.
func (m *MemoryGateway) UpdateCheckRun(_ context.Context, owner, repo string, id int64, p CheckRunParams) (*CheckRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	key := pullKey(owner, repo, 0) + "@" + p.HeadSHA
	for i, cr := range m.checkRuns[key] {
		if cr.ID == id {
			cr.Status = p.Status
			cr.Conclusion = p.Conclusion
			m.checkRuns[key][i] = cr
			return &cr, nil
		}
	}
	return nil, ErrNotFound
}

// ListCheckRunsForRef implements Gateway.
func (m *MemoryGateway) ListCheckRunsForRef(_ context.Context, owner, repo, ref string) ([]CheckRun, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.CheckRuns(owner, repo, ref), nil
}

// CreateComment implements Gateway.
func (m *MemoryGateway) CreateComment(_ context.Context, owner, repo string, number int, body string) (*IssueComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.nextID++
	c := IssueComment{ID: m.nextID, Body: body, UserLogin: "cla-bot[bot]"}
	key := pullKey(owner, repo, number)
	m.comments[key] = append(m.comments[key], c)
	return &c, nil
}

// UpdateComment implements Gateway.
func (m *MemoryGateway) UpdateComment(_ context.Context, _, _ string, id int64, body string) (*IssueComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for key, comments := range m.comments {
		for i, c := range comments {
			if c.ID == id {
				c.Body = body
				m.comments[key][i] = c
				return &c, nil
			}
		}
	}
	return nil, ErrNotFound
}

// DeleteComment implements Gateway.
func (m *MemoryGateway) DeleteComment(_ context.Context, owner, repo string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for key, comments := range m.comments {
		for i, c := range comments {
			if c.ID == id {
				m.comments[key] = append(comments[:i], comments[i+1:]...)
				return nil
			}
		}
	}
	return ErrNotFound
}

// ListComments implements Gateway.
func (m *MemoryGateway) ListComments(_ context.Context, owner, repo string, number int) ([]IssueComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	key := pullKey(owner, repo, number)
	if err, ok := m.pullErrs[key]; ok {
		return nil, err
	}
	out := make([]IssueComment, len(m.comments[key]))
	copy(out, m.comments[key])
	return out, nil
}

// GetPullRequest implements Gateway.
func (m *MemoryGateway) GetPullRequest(_ context.Context, owner, repo string, number int) (*PullRequestRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	key := pullKey(owner, repo, number)
	if err, ok := m.pullErrs[key]; ok {
		return nil, err
	}
	pr, ok := m.pulls[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *pr
	return &cp, nil
}

// GetPullRequestHeadSHA implements Gateway.
func (m *MemoryGateway) GetPullRequestHeadSHA(ctx context.Context, owner, repo string, number int) (string, error) {
	pr, err := m.GetPullRequest(ctx, owner, repo, number)
	if err != nil {
		return "", err
	}
	return pr.HeadSHA, nil
}

// ListOpenPullRequests implements Gateway.
func (m *MemoryGateway) ListOpenPullRequests(_ context.Context, owner string) ([]PullRequestRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var prs []PullRequestRef
	for _, pr := range m.pulls {
		if !strings.EqualFold(pr.Owner, owner) || pr.State != "open" {
			continue
		}
		// Pulls with a seeded failure are still listed so later lookups
		// on them fail.
		prs = append(prs, *pr)
	}
	sort.Slice(prs, func(i, j int) bool {
		if prs[i].Repo != prs[j].Repo {
			return prs[i].Repo < prs[j].Repo
		}
		return prs[i].Number < prs[j].Number
	})
	return prs, nil
}
