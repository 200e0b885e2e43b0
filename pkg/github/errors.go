package github

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the requested GitHub resource does not exist.
var ErrNotFound = errors.New("github: not found")

// UpstreamError is a non-404 error response from the GitHub API, including
// rate limiting and server errors.
type UpstreamError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

// Error implements error.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github: %s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// IsRateLimited reports whether the error is a rate-limit rejection.
func (e *UpstreamError) IsRateLimited() bool {
	return e.StatusCode == 403 || e.StatusCode == 429
}
