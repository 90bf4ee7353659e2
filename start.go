// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/ImaSet/laptop-smart-power-manager/config"
	"github.com/ImaSet/laptop-smart-power-manager/daemon"
)

func init() {
	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Laptop Smart Power Manager",
	Long: `Start monitoring the battery and driving the smart plug.

The command stays in the foreground until it is interrupted (CTRL + C,
system shutdown) or monitoring dies on an error. On startup the plug is
switched off so charging only happens when the battery asks for it.`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("no configuration found, run %q first", "lspm config")
		}
		return err
	}
	cfg.Logging.File = daemonLogFile(cfg)
	initLogging(cfg)

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}

	d.Start()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Laptop Smart Power Manager started correctly")
	fmt.Fprintln(out, "To stop it, press CTRL + C (on macOS, Command + .)")

	if err := d.Wait(); err != nil {
		return err
	}

	fmt.Fprintln(out, "Laptop Smart Power Manager stopped successfully")
	return nil
}

// daemonLogFile returns the log file for the monitoring run. When none is
// configured it falls back to the file under the per-user config directory.
func daemonLogFile(cfg *config.Config) string {
	if cfg.Logging.File != "" {
		return cfg.Logging.File
	}
	path, err := config.DefaultLogPath()
	if err != nil {
		return ""
	}
	return path
}
