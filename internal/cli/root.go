package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configPath, logLevel string
	timeout              int
)

var rootCommand = &cobra.Command{
	Use:     "shutter-go",
	Aliases: []string{"shutter"},
	Short:   "Shutter: block-storage snapshot lifecycle manager",
	Long: `Shutter is a tag-driven snapshot scheduler for cloud block storage.
Instances opt in with a Shutter-Enable tag; per-instance Shutter-* tag overrides
are merged with global and per-region defaults into one effective policy, which
drives snapshot creation, retention pruning and optional encrypted offsite
replication on every pass.

Author: Aravindh Murugesan`,
}

func Execute() error {
	return rootCommand.Execute()
}

func init() {
	rootCommand.AddGroup(&cobra.Group{ID: "shutter", Title: "Shutter"})

	// Global persistent flags with env var support
	rootCommand.PersistentFlags().StringVar(&configPath, "config", "config.yml", "Path to the configuration file")
	rootCommand.PersistentFlags().IntVar(&timeout, "timeout", 0, "Global execution timeout in seconds (0 = run indefinitely)")
	rootCommand.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	// Bind to env vars
	_ = viper.BindPFlag("config", rootCommand.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("timeout", rootCommand.PersistentFlags().Lookup("timeout"))
	_ = viper.BindPFlag("log-level", rootCommand.PersistentFlags().Lookup("log_level"))

	viper.SetEnvPrefix("SHUTTER")
	viper.AutomaticEnv()
}
