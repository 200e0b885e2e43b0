// Package cla implements the compliance engine: the pure decision logic that
// classifies a pull request author against an organization's agreement state,
// and the executor that synchronizes GitHub check runs and comments with that
// decision.
package cla

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/514-labs/cla-bot-sub001/pkg/db/models"
)

// Decision classifies one pull request author against one organization.
type Decision string

const (
	// DecisionInactive means the bot is deactivated for the organization.
	DecisionInactive Decision = "inactive"

	// DecisionBypass means the author is on the organization's bypass list.
	DecisionBypass Decision = "bypass"

	// DecisionAccountOwner means the author owns the personal account the
	// app is installed on.
	DecisionAccountOwner Decision = "accountOwner"

	// DecisionOrgMember means the author is an active member of the
	// organization.
	DecisionOrgMember Decision = "orgMember"

	// DecisionCLAUnconfigured means the organization has no published CLA.
	DecisionCLAUnconfigured Decision = "claUnconfigured"

	// DecisionSigned means the author holds a signature for the current CLA
	// hash.
	DecisionSigned Decision = "signed"

	// DecisionNeedsResign means the author signed an older CLA version and
	// must sign the current one.
	DecisionNeedsResign Decision = "needsResign"

	// DecisionUnsigned means the author has never signed.
	DecisionUnsigned Decision = "unsigned"
)

// Passing reports whether the decision results in a passing check run.
func (d Decision) Passing() bool {
	switch d {
	case DecisionCLAUnconfigured, DecisionNeedsResign, DecisionUnsigned:
		return false
	}
	return true
}

// Conclusion returns the check run conclusion for the decision.
func (d Decision) Conclusion() string {
	if d.Passing() {
		return ConclusionSuccess
	}
	return ConclusionFailure
}

// Facts are the pre-fetched inputs to Evaluate. Gathering them is the
// caller's job so the evaluation itself stays synchronous and free of I/O.
type Facts struct {
	// BypassMatch is true when the author matches a bypass entry by GitHub
	// user id or login.
	BypassMatch bool

	// AccountOwner is true when the installation is on a personal account
	// and the author is its owner.
	AccountOwner bool

	// OrgMember is true when the author is an active member of the
	// organization.
	OrgMember bool

	// HasCurrentSignature is true when the author holds a signature for
	// the organization's current CLA hash.
	HasCurrentSignature bool

	// HasPriorSignature is true when the author holds at least one
	// signature for a hash that is no longer current.
	HasPriorSignature bool
}

// Evaluate produces the Decision for one author. Each clause short-circuits:
// the inactive flag beats everything, the bypass list beats membership, and
// membership or ownership beats signature state. Signature state is only
// consulted for outside contributors.
func Evaluate(org models.Organization, f Facts) Decision {
	if !org.IsActive {
		return DecisionInactive
	}
	if f.BypassMatch {
		return DecisionBypass
	}
	if org.IsPersonal() && f.AccountOwner {
		return DecisionAccountOwner
	}
	if !org.IsPersonal() && f.OrgMember {
		return DecisionOrgMember
	}
	if !org.HasCLA() {
		return DecisionCLAUnconfigured
	}
	if f.HasCurrentSignature {
		return DecisionSigned
	}
	if f.HasPriorSignature {
		return DecisionNeedsResign
	}
	return DecisionUnsigned
}

// HashText returns the hex sha256 of the trimmed CLA text. The hash is the
// content-addressed identity of one agreement version.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// VersionLabel returns the short human-facing label for a CLA hash, the
// first seven hex characters.
func VersionLabel(sha string) string {
	if len(sha) < 7 {
		return sha
	}
	return sha[:7]
}
