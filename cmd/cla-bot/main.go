package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/514-labs/cla-bot-sub001/pkg/config"
	logutil "github.com/514-labs/cla-bot-sub001/pkg/log"
)

var logFile *os.File

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg := config.DefaultConfig()
		if configPath != "" {
			if err := config.ParseConfig(cfg, configPath); err != nil {
				return fmt.Errorf("parse config file: %w", err)
			}
		} else if cfg.Exist() {
			if err := cfg.Parse(); err != nil {
				return fmt.Errorf("parse config file: %w", err)
			}
		} else {
			if err := cfg.WriteConfig(); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}
			if err := cfg.ParseEnv(); err != nil {
				return fmt.Errorf("parse environment variables: %w", err)
			}
		}

		logger, f, err := logutil.NewLogger(cfg)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}

		logFile = f

		// Set global logger
		log.SetDefault(logger)

		// Set the max number of processes to the number of CPUs
		// This is useful when running cla-bot in a container
		if _, err := maxprocs.Set(maxprocs.Logger(log.Debugf)); err != nil {
			log.Warn("couldn't set automaxprocs", "error", err)
		}

		ctx := cmd.Context()
		ctx = config.WithContext(ctx, cfg)
		ctx = log.WithContext(ctx, logger)
		cmd.SetContext(ctx)

		return nil
	}
}

func main() {
	defer func() {
		if logFile != nil {
			logFile.Close() // nolint: errcheck
		}
	}()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
