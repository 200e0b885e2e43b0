package main

import (
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/514-labs/cla-bot-sub001/pkg/version"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:          "cla-bot",
		Short:        "A GitHub App that enforces Contributor License Agreements",
		Long:         "CLA Bot tracks signed agreement versions per contributor and keeps check runs and PR comments in sync with compliance state.",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.AddCommand(
		serveCmd,
		migrateCmd,
		recheckCmd,
		manCmd,
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	if len(version.CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + version.CommitSHA[0:7] + ")\n")
	}
	if version.Version == "" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Sum != "" {
			version.Version = info.Main.Version
		} else {
			version.Version = "unknown (built from source)"
		}
	}
	rootCmd.Version = version.Version
}
