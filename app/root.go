// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"

	"github.com/KhaosKoder/khaos-settings/internal/config"
)

var (
	cfg config.Config
	err error

	configPath string // Path to the configuration directory
	scopeApp   string // Application scope for CLI commands
	scopeInst  string // Instance scope for CLI commands

	rootCmd = &cobra.Command{
		Use:   "khaos-settings",
		Short: "khaos-settings is a multi-scope settings store",
		Long: `khaos-settings stores configuration values at global, application and
instance scope with optimistic concurrency, a full change history with
rollback, and a polling snapshot publisher for live readers.`,
		Args:          cobra.OnlyValidArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
)

func init() { //nolint:gochecknoinits
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the configuration directory")
	rootCmd.PersistentFlags().StringVar(&scopeApp, "application", "", "Application scope")
	rootCmd.PersistentFlags().StringVar(&scopeInst, "instance", "", "Instance scope (requires --application)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
