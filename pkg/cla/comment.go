package cla

import (
	"fmt"
	"strings"
)

// managedMarker is the machine-readable ownership marker embedded in every
// comment the bot creates. It renders invisibly on GitHub. Ownership
// detection prefers it over the legacy heading phrases below.
const managedMarker = "<!-- cla-bot: managed-comment -->"

// Legacy headings the bot used before the hidden marker existed. Kept so
// comments created by older deployments are still recognized and cleaned up.
var legacyPromptHeadings = []string{
	"Contributor License Agreement Required",
	"Re-signing Required",
}

// IsManagedComment reports whether a comment body belongs to the bot. This is
// the single ownership predicate: every caller that needs to find, update, or
// delete a bot comment goes through it.
func IsManagedComment(body string) bool {
	if strings.Contains(body, managedMarker) {
		return true
	}
	for _, h := range legacyPromptHeadings {
		if strings.Contains(body, h) {
			return true
		}
	}
	return false
}

// isRemovablePrompt reports whether a managed comment is a signing prompt
// that may be deleted once the author passes. Other managed comment kinds,
// should they ever exist, are left alone.
func isRemovablePrompt(body string) bool {
	if !IsManagedComment(body) {
		return false
	}
	for _, h := range legacyPromptHeadings {
		if strings.Contains(body, h) {
			return true
		}
	}
	return false
}

// promptBody returns the comment body for a failing decision, or empty for
// decisions that never leave a comment.
func promptBody(d Decision, author, slug, version, publicURL string) string {
	base := strings.TrimSuffix(publicURL, "/")
	switch d {
	case DecisionCLAUnconfigured:
		return fmt.Sprintf(`%s
## Contributor License Agreement Required

Hi @%s, thanks for the pull request!

This organization has not published a Contributor License Agreement yet, so
contributions cannot be accepted. An organization admin needs to publish one
at %s/admin/%s before this check can pass.`,
			managedMarker, author, base, slug)
	case DecisionNeedsResign:
		return fmt.Sprintf(`%s
## Re-signing Required

Hi @%s, the Contributor License Agreement for this organization has changed
since you last signed it.

Please sign version `+"`%s`"+` at %s/sign/%s, then comment `+"`/recheck`"+`
on this pull request to re-run the check.`,
			managedMarker, author, version, base, slug)
	case DecisionUnsigned:
		return fmt.Sprintf(`%s
## Contributor License Agreement Required

Hi @%s, thanks for contributing!

Before this pull request can be accepted, you need to sign version `+"`%s`"+`
of the Contributor License Agreement at %s/sign/%s. Once you have signed,
comment `+"`/recheck`"+` on this pull request to re-run the check.`,
			managedMarker, author, version, base, slug)
	}
	return ""
}
