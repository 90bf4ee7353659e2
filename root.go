// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ImaSet/laptop-smart-power-manager/config"
	"github.com/ImaSet/laptop-smart-power-manager/pkg/logger"
)

var (
	flagConfigPath string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "lspm",
	Short: "lspm keeps a laptop battery inside a healthy charge band",
	Long: `lspm drives a smart plug placed between the laptop charger and the wall
socket. While it runs, the plug is switched on when the battery falls
below the low threshold and off once it reaches the high one, so the
battery cycles inside its comfort zone instead of sitting at 100%.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to the configuration file (default ~/.lspm/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level override (debug, info, warn, error)")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// configFilePath resolves the configuration file location, preferring the
// --config flag over the per-user default.
func configFilePath() (string, error) {
	if flagConfigPath != "" {
		return flagConfigPath, nil
	}
	return config.DefaultPath()
}

// loadConfig reads the configuration and applies the --log-level override.
func loadConfig() (*config.Config, error) {
	path, err := configFilePath()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	return cfg, nil
}

// initLogging configures the global logger from the loaded configuration,
// falling back to console-only logging when the log file cannot be opened.
func initLogging(cfg *config.Config) {
	if cfg.Logging.File != "" {
		if err := logger.InitializeWithFile(cfg.Logging.Level, cfg.Logging.File); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v; logging to console only\n", err)
			logger.Initialize(cfg.Logging.Level)
		}
		return
	}
	logger.Initialize(cfg.Logging.Level)
}
