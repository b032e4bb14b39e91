package main

import (
	"os"

	"github.com/mattsolo1/grove-core/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mattsolo1/grove-mlconsole/cmd"
	"github.com/mattsolo1/grove-mlconsole/cmd/config"
)

func main() {
	rt := &config.Runtime{}

	rootCmd := cli.NewStandardCommand(
		"mlc",
		"Manage ML experiment artifacts and metadata",
	)
	config.AddGlobalFlags(rootCmd)

	rootCmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		// This runs once before any subcommand
		config.InitConfig()
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		logger := config.NewLogger(cfg.LogLevel)
		if viper.ConfigFileUsed() != "" {
			logger.WithField("file", viper.ConfigFileUsed()).Debug("loaded config")
		}
		rt.Init(cfg, logger)
		return nil
	}
	rootCmd.PersistentPostRunE = func(c *cobra.Command, args []string) error {
		return rt.Close()
	}

	// Add subcommands
	rootCmd.AddCommand(cmd.NewArtifactsCmd(rt))
	rootCmd.AddCommand(cmd.NewTagsCmd(rt))
	rootCmd.AddCommand(cmd.NewExperimentsCmd(rt))
	rootCmd.AddCommand(cmd.NewPermCmd(rt))
	rootCmd.AddCommand(cmd.NewServeCmd(rt))
	rootCmd.AddCommand(cmd.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
