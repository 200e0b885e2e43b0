package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/514-labs/cla-bot-sub001/pkg/config"
	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/db/migrate"
)

var (
	rollbackMigration bool

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)

			dbx, err := db.Open(ctx, cfg.DB.Driver, cfg.DB.DataSource)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer dbx.Close() // nolint: errcheck

			if rollbackMigration {
				if err := migrate.Rollback(ctx, dbx); err != nil {
					return fmt.Errorf("rollback error: %w", err)
				}
				return nil
			}

			if err := migrate.Migrate(ctx, dbx); err != nil {
				return fmt.Errorf("migration error: %w", err)
			}

			return nil
		},
	}
)

func init() {
	migrateCmd.Flags().BoolVar(&rollbackMigration, "rollback", false, "roll back the most recent migration")
}
