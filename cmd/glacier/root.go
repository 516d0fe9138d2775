package main

import (
	"fmt"
	"os"

	"github.com/aretw0/glacier/internal/cli"
	"github.com/aretw0/glacier/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "glacier",
	Short: "Glacier hosts JavaScript request handlers on an embedded engine",
	Long: `Glacier evaluates a script once, freezes the result and serves every request
from that snapshot, driving each invocation until the script commits a response.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error or off (overrides config)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log lifecycle events")
}

// engineOptions loads the configuration and logger shared by every command.
func engineOptions(cmd *cobra.Command) (cli.EngineOptions, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, os.LookupEnv)
	if err != nil {
		return cli.EngineOptions{}, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		cfg.LogLevel = "debug"
	}

	logger, err := cli.CreateLogger(cfg.LogLevel)
	if err != nil {
		return cli.EngineOptions{}, err
	}

	return cli.EngineOptions{
		Config: cfg,
		Logger: logger,
		Debug:  debug,
	}, nil
}
