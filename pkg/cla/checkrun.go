package cla

import "fmt"

// CheckRunName is the fixed name of the check run the bot maintains on every
// evaluated commit.
const CheckRunName = "CLA Bot / Contributor License Agreement"

// Check run conclusions as GitHub spells them.
const (
	ConclusionSuccess = "success"
	ConclusionFailure = "failure"
)

// checkRunOutput returns the title and summary for a decision. version is the
// short label of the organization's current CLA hash, empty when none is
// published.
func checkRunOutput(d Decision, author, version string) (title, summary string) {
	switch d {
	case DecisionInactive:
		return "CLA checks are disabled",
			"The CLA bot is deactivated for this organization, so no agreement is required."
	case DecisionBypass:
		return "Author is on the bypass list",
			fmt.Sprintf("@%s is on this organization's bypass list and is exempt from signing.", author)
	case DecisionAccountOwner:
		return "Author owns this account",
			fmt.Sprintf("@%s owns the account this app is installed on. No agreement is required.", author)
	case DecisionOrgMember:
		return "Author is an organization member",
			fmt.Sprintf("@%s is an active member of this organization. No agreement is required.", author)
	case DecisionSigned:
		return "Contributor License Agreement signed",
			fmt.Sprintf("@%s has signed version %s of the Contributor License Agreement.", author, version)
	case DecisionCLAUnconfigured:
		return "No Contributor License Agreement configured",
			"This organization has not published a Contributor License Agreement yet. An admin must publish one before this check can pass."
	case DecisionNeedsResign:
		return "Re-signing required",
			fmt.Sprintf("The Contributor License Agreement has changed since @%s last signed. Version %s must be signed.", author, version)
	case DecisionUnsigned:
		return "Contributor License Agreement required",
			fmt.Sprintf("@%s must sign version %s of the Contributor License Agreement before this pull request can be accepted.", author, version)
	}
	return string(d), ""
}
