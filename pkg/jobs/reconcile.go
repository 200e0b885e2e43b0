package jobs

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/514-labs/cla-bot-sub001/pkg/cla"
	"github.com/514-labs/cla-bot-sub001/pkg/config"
	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
)

// Reconcile periodically re-runs the bulk recheck for every active
// organization. It backstops missed webhooks and failed recheck scheduling:
// even if an event never arrived, check runs and comments converge on the
// next cycle.
type Reconcile struct {
	Engine *cla.Engine
}

var _ Runner = (*Reconcile)(nil)

// Spec derives the job schedule from the configuration.
func (r *Reconcile) Spec(ctx context.Context) string {
	return config.FromContext(ctx).Jobs.Reconcile
}

// Func returns the job function.
func (r *Reconcile) Func(ctx context.Context) func() {
	return func() {
		logger := log.FromContext(ctx).WithPrefix("jobs.reconcile")
		dbx := db.FromContext(ctx)
		datastore := store.FromContext(ctx)

		orgs, err := datastore.ListActiveOrgs(ctx, dbx)
		if err != nil {
			logger.Error("could not list organizations", "err", err)
			return
		}

		for _, org := range orgs {
			report, err := r.Engine.RecheckOrganization(ctx, org.Slug, cla.RecheckOptions{})
			if err != nil {
				logger.Error("reconcile failed", "org", org.Slug, "err", err)
				continue
			}
			logger.Info("reconciled organization",
				"org", org.Slug,
				"attempted", report.Attempted,
				"rechecked", report.Rechecked,
				"errors", report.Errors)
		}
	}
}
