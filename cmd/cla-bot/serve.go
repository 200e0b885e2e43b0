package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/514-labs/cla-bot-sub001/pkg/cla"
	"github.com/514-labs/cla-bot-sub001/pkg/config"
	"github.com/514-labs/cla-bot-sub001/pkg/cron"
	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/db/migrate"
	"github.com/514-labs/cla-bot-sub001/pkg/github"
	"github.com/514-labs/cla-bot-sub001/pkg/jobs"
	"github.com/514-labs/cla-bot-sub001/pkg/stats"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
	"github.com/514-labs/cla-bot-sub001/pkg/store/database"
	"github.com/514-labs/cla-bot-sub001/pkg/task"
	"github.com/514-labs/cla-bot-sub001/pkg/web"
	"github.com/514-labs/cla-bot-sub001/pkg/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)
		logger := log.FromContext(ctx)

		dbx, err := db.Open(ctx, cfg.DB.Driver, cfg.DB.DataSource)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbx.Close() // nolint: errcheck

		if err := migrate.Migrate(ctx, dbx); err != nil {
			return fmt.Errorf("migration error: %w", err)
		}

		datastore := database.New(ctx, dbx)
		ctx = db.WithContext(ctx, dbx)
		ctx = store.WithContext(ctx, datastore)

		client, err := newGatewayClient(cfg, logger)
		if err != nil {
			return err
		}

		tctx, tcancel := context.WithCancel(ctx)
		defer tcancel()
		tasks := task.NewManager(tctx)
		engine := cla.NewEngine(cfg, dbx, datastore, client, tasks)
		dispatcher := webhook.NewDispatcher(cfg, dbx, datastore, engine, client)

		srv, err := web.NewHTTPServer(ctx, web.Deps{
			Dispatcher: dispatcher,
			Engine:     engine,
			Tasks:      tasks,
		})
		if err != nil {
			return fmt.Errorf("start http server: %w", err)
		}

		statsSrv, err := stats.NewStatsServer(ctx)
		if err != nil {
			return fmt.Errorf("start stats server: %w", err)
		}

		sched := cron.NewScheduler(ctx)
		jobs.Register("reconcile", &jobs.Reconcile{Engine: engine})
		for name, job := range jobs.List() {
			spec := job.Runner.Spec(ctx)
			if spec == "" {
				logger.Debug("cron job disabled", "job", name)
				continue
			}
			id, err := sched.AddFunc(spec, job.Runner.Func(ctx))
			if err != nil {
				return fmt.Errorf("add cron job %q: %w", name, err)
			}
			job.ID = id
		}
		sched.Start()
		defer sched.Shutdown()

		done := make(chan os.Signal, 1)
		lch := make(chan error, 2)
		go func() {
			logger.Info("starting http server", "addr", cfg.HTTP.ListenAddr)
			lch <- srv.ListenAndServe()
		}()
		go func() {
			logger.Info("starting stats server", "addr", cfg.Stats.ListenAddr)
			lch <- statsSrv.ListenAndServe()
		}()

		signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		<-done

		sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return err
		}
		if err := statsSrv.Shutdown(sctx); err != nil {
			return err
		}

		tcancel()
		if err := tasks.Shutdown(sctx); err != nil {
			return fmt.Errorf("drain background tasks: %w", err)
		}

		return nil
	},
}

// newGatewayClient picks the GitHub client implementation. Production runs
// want App credentials; in permissive mode a missing key degrades to the
// in-memory gateway so the server can run against local fixtures.
func newGatewayClient(cfg *config.Config, logger *log.Logger) (github.Client, error) {
	if cfg.GitHub.AppID != 0 && cfg.GitHub.PrivateKeyPath != "" {
		client, err := github.NewRESTClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create github client: %w", err)
		}
		return client, nil
	}

	if cfg.IsStrict() {
		return nil, fmt.Errorf("github app credentials are required in strict mode")
	}

	logger.Warn("no github app credentials configured, using in-memory gateway")
	return github.NewMemoryGateway(), nil
}
