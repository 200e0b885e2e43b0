package webhook

// Account is the GitHub account an installation or comment belongs to.
type Account struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Type  string `json:"type"`
}

// Installation identifies a GitHub App installation.
type Installation struct {
	ID      int64   `json:"id"`
	Account Account `json:"account"`
}

// Repository is the repository a PR or comment event happened in.
type Repository struct {
	Name  string  `json:"name"`
	Owner Account `json:"owner"`
}

// PullRequest is the subset of GitHub's pull request object the bot
// consumes.
type PullRequest struct {
	Number int     `json:"number"`
	State  string  `json:"state"`
	User   Account `json:"user"`
	Head   struct {
		SHA string `json:"sha"`
	} `json:"head"`
}

// Issue carries the PR marker on issue_comment events.
type Issue struct {
	Number      int      `json:"number"`
	User        Account  `json:"user"`
	PullRequest *struct{} `json:"pull_request"`
}

// Comment is an issue comment body and author.
type Comment struct {
	Body string  `json:"body"`
	User Account `json:"user"`
}

// pingEvent is GitHub's ping payload.
type pingEvent struct {
	Zen    string `json:"zen"`
	HookID int64  `json:"hook_id"`
}

// installationEvent covers installation and installation_repositories
// events.
type installationEvent struct {
	Action       string       `json:"action"`
	Installation Installation `json:"installation"`
	Sender       Account      `json:"sender"`
}

// pullRequestEvent is GitHub's pull_request payload.
type pullRequestEvent struct {
	Action       string        `json:"action"`
	Number       int           `json:"number"`
	PullRequest  PullRequest   `json:"pull_request"`
	Repository   Repository    `json:"repository"`
	Installation *Installation `json:"installation"`
}

// issueCommentEvent is GitHub's issue_comment payload.
type issueCommentEvent struct {
	Action       string        `json:"action"`
	Issue        Issue         `json:"issue"`
	Comment      Comment       `json:"comment"`
	Repository   Repository    `json:"repository"`
	Installation *Installation `json:"installation"`
}
