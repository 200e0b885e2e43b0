package cla

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/db/models"
	"github.com/514-labs/cla-bot-sub001/pkg/stats"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
	"github.com/514-labs/cla-bot-sub001/pkg/utils"
)

// Actor identifies who performed a state-changing operation, for the audit
// log.
type Actor struct {
	GithubID int64
	Login    string
}

// OrgBySlug loads an organization, mapping a missing row to ErrOrgNotFound.
func (e *Engine) OrgBySlug(ctx context.Context, slug string) (models.Organization, error) {
	org, err := e.store.FindOrgBySlug(ctx, e.db, utils.SanitizeSlug(slug))
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			return models.Organization{}, ErrOrgNotFound
		}
		return models.Organization{}, fmt.Errorf("find organization: %w", err)
	}
	return org, nil
}

// PublishResult reports a CLA publish and whether the follow-up recheck got
// scheduled.
type PublishResult struct {
	SHA256           string `json:"sha256"`
	Version          string `json:"version"`
	RecheckScheduled bool   `json:"recheckScheduled"`
	RecheckRunID     string `json:"recheckRunId,omitempty"`
}

// PublishCLA replaces an organization's agreement text. The new hash is
// archived and the organization row updated in one transaction, then a bulk
// recheck is scheduled best-effort. A scheduling failure is a soft error:
// the publish itself still succeeds and the result flags the miss so the
// caller can retry via /recheck.
func (e *Engine) PublishCLA(ctx context.Context, slug, text string, actor Actor) (*PublishResult, error) {
	org, err := e.OrgBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	sha := ""
	if text != "" {
		sha = HashText(text)
	}

	if err := e.db.TransactionContext(ctx, func(tx *db.Tx) error {
		if sha != "" {
			if err := e.store.CreateCLAArchiveIfAbsent(ctx, tx, org.ID, sha, text); err != nil {
				return fmt.Errorf("archive cla: %w", err)
			}
		}
		if err := e.store.UpdateOrgCLA(ctx, tx, org.ID, text, sha); err != nil {
			return fmt.Errorf("update cla: %w", err)
		}
		return e.store.CreateAuditEvent(ctx, tx, store.AuditEventParams{
			EventType:  "cla_published",
			OrgID:      org.ID,
			ActorID:    actor.GithubID,
			ActorLogin: actor.Login,
			Payload: map[string]any{
				"sha256":  sha,
				"version": VersionLabel(sha),
			},
		})
	}); err != nil {
		return nil, err
	}

	res := &PublishResult{SHA256: sha, Version: VersionLabel(sha)}
	res.RecheckRunID, res.RecheckScheduled = e.scheduleRecheck(ctx, org, "cla_published", RecheckOptions{})
	return res, nil
}

// SignerParams identify the contributor recording a signature.
type SignerParams struct {
	GithubID        int64
	Login           string
	Name            string
	AvatarURL       string
	RequestEvidence string
}

// SignatureResult reports a recorded signature.
type SignatureResult struct {
	Signature        models.Signature `json:"-"`
	Version          string           `json:"version"`
	AlreadySigned    bool             `json:"alreadySigned"`
	RecheckScheduled bool             `json:"recheckScheduled"`
	RecheckRunID     string           `json:"recheckRunId,omitempty"`
}

// RecordSignature records one contributor's consent to the organization's
// current CLA hash. Signing twice for the same hash is a no-op. A
// best-effort recheck scoped to the signer's open PRs follows.
func (e *Engine) RecordSignature(ctx context.Context, slug string, signer SignerParams) (*SignatureResult, error) {
	org, err := e.OrgBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !org.HasCLA() {
		return nil, ErrNoCLA
	}
	sha := org.CLATextSHA256.String

	res := &SignatureResult{Version: VersionLabel(sha)}
	if err := e.db.TransactionContext(ctx, func(tx *db.Tx) error {
		// Lazy archive backfill: signing pins the exact text consented
		// to even if the archive row predates this code path.
		if err := e.store.CreateCLAArchiveIfAbsent(ctx, tx, org.ID, sha, org.CLAText); err != nil {
			return fmt.Errorf("archive cla: %w", err)
		}
		sig, err := e.store.CreateSignature(ctx, tx, store.CreateSignatureParams{
			OrgID:              org.ID,
			UserGithubID:       signer.GithubID,
			CLASHA256:          sha,
			GithubLogin:        signer.Login,
			Name:               signer.Name,
			AvatarURL:          signer.AvatarURL,
			ConsentTextVersion: VersionLabel(sha),
			RequestEvidence:    signer.RequestEvidence,
		})
		if err != nil {
			if errors.Is(err, db.ErrDuplicateKey) {
				res.AlreadySigned = true
				return nil
			}
			return fmt.Errorf("create signature: %w", err)
		}
		res.Signature = sig
		return e.store.CreateAuditEvent(ctx, tx, store.AuditEventParams{
			EventType:  "signature_recorded",
			OrgID:      org.ID,
			UserID:     signer.GithubID,
			ActorID:    signer.GithubID,
			ActorLogin: signer.Login,
			Payload: map[string]any{
				"sha256":  sha,
				"version": VersionLabel(sha),
			},
		})
	}); err != nil {
		return nil, err
	}

	if !res.AlreadySigned {
		res.RecheckRunID, res.RecheckScheduled = e.scheduleRecheck(ctx, org, "signature_recorded", RecheckOptions{
			OnlyAuthorID:    signer.GithubID,
			OnlyAuthorLogin: signer.Login,
		})
	}
	return res, nil
}

// BypassResult reports a bypass-list change.
type BypassResult struct {
	RecheckScheduled bool   `json:"recheckScheduled"`
	RecheckRunID     string `json:"recheckRunId,omitempty"`
}

// AddBypass puts a GitHub user on an organization's bypass list and schedules
// a recheck so their open PRs flip to passing. Duplicate entries surface
// db.ErrDuplicateKey, a full list store.ErrBypassLimitReached.
func (e *Engine) AddBypass(ctx context.Context, slug string, userID int64, login string, actor Actor) (*BypassResult, error) {
	if err := utils.ValidateLogin(login); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidLogin, err)
	}
	org, err := e.OrgBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := e.db.TransactionContext(ctx, func(tx *db.Tx) error {
		if _, err := e.store.AddBypassAccount(ctx, tx, org.ID, userID, login, actor.GithubID); err != nil {
			return err
		}
		return e.store.CreateAuditEvent(ctx, tx, store.AuditEventParams{
			EventType:  "bypass_added",
			OrgID:      org.ID,
			UserID:     userID,
			ActorID:    actor.GithubID,
			ActorLogin: actor.Login,
			Payload:    map[string]any{"login": login},
		})
	}); err != nil {
		return nil, err
	}

	res := &BypassResult{}
	res.RecheckRunID, res.RecheckScheduled = e.scheduleRecheck(ctx, org, "bypass_added", RecheckOptions{})
	return res, nil
}

// RemoveBypass drops a bypass entry and schedules a recheck so the user's
// open PRs are re-evaluated against signature state.
func (e *Engine) RemoveBypass(ctx context.Context, slug, login string, actor Actor) (*BypassResult, error) {
	org, err := e.OrgBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := e.db.TransactionContext(ctx, func(tx *db.Tx) error {
		if err := e.store.RemoveBypassAccount(ctx, tx, org.ID, login); err != nil {
			return err
		}
		return e.store.CreateAuditEvent(ctx, tx, store.AuditEventParams{
			EventType:  "bypass_removed",
			OrgID:      org.ID,
			ActorID:    actor.GithubID,
			ActorLogin: actor.Login,
			Payload:    map[string]any{"login": login},
		})
	}); err != nil {
		return nil, err
	}

	res := &BypassResult{}
	res.RecheckRunID, res.RecheckScheduled = e.scheduleRecheck(ctx, org, "bypass_removed", RecheckOptions{})
	return res, nil
}

// scheduleRecheck dispatches a background bulk recheck. Failures never
// propagate: they are logged, recorded as an audit event, and reported to
// the caller through the returned flag.
func (e *Engine) scheduleRecheck(ctx context.Context, org models.Organization, trigger string, opts RecheckOptions) (string, bool) {
	logger := log.FromContext(ctx).WithPrefix("cla")

	var (
		runID string
		err   error
	)
	if e.tasks == nil {
		err = errors.New("no task scheduler configured")
	} else {
		runID, err = e.tasks.Schedule("recheck-"+org.Slug, func(taskCtx context.Context) error {
			_, rerr := e.RecheckOrganization(taskCtx, org.Slug, opts)
			return rerr
		})
	}
	if err != nil {
		logger.Error("could not schedule recheck", "org", org.Slug, "trigger", trigger, "err", err)
		if aerr := e.store.CreateAuditEvent(ctx, e.db, store.AuditEventParams{
			EventType: "recheck_schedule_failed",
			OrgID:     org.ID,
			Payload: map[string]any{
				"trigger": trigger,
				"error":   err.Error(),
			},
		}); aerr != nil {
			logger.Error("could not audit scheduling failure", "err", aerr)
		}
		return "", false
	}

	stats.RecheckStarted(trigger)
	logger.Debug("recheck scheduled", "org", org.Slug, "trigger", trigger, "run", runID)
	return runID, true
}
