package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/514-labs/cla-bot-sub001/pkg/cla"
	"github.com/514-labs/cla-bot-sub001/pkg/config"
	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/store/database"
)

var (
	recheckAuthor string

	recheckCmd = &cobra.Command{
		Use:   "recheck ORGANIZATION",
		Short: "Re-evaluate every open pull request for an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			logger := log.FromContext(ctx)

			dbx, err := db.Open(ctx, cfg.DB.Driver, cfg.DB.DataSource)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer dbx.Close() // nolint: errcheck

			datastore := database.New(ctx, dbx)
			client, err := newGatewayClient(cfg, logger)
			if err != nil {
				return err
			}

			engine := cla.NewEngine(cfg, dbx, datastore, client, nil)
			report, err := engine.RecheckOrganization(ctx, args[0], cla.RecheckOptions{
				OnlyAuthorLogin: recheckAuthor,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
)

func init() {
	recheckCmd.Flags().StringVar(&recheckAuthor, "author", "", "only recheck pull requests opened by this login")
}
