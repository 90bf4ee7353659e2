// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ImaSet/laptop-smart-power-manager/battery"
	"github.com/ImaSet/laptop-smart-power-manager/credentials"
	"github.com/ImaSet/laptop-smart-power-manager/plug"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the battery state and the smart plug state",
	Long:  `Read the battery level and the AC cable state, then query the configured smart plug once.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	snap, err := battery.NewSensor().Read()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Battery level:   %d%%\n", snap.Percent)
	fmt.Fprintf(out, "AC power cable:  %s\n", cableState(snap.IsPlugged))

	driver, err := plug.Connect(cfg.Plug.Model, cfg.Plug.Address, credentials.NewStore())
	if err != nil {
		return err
	}
	on, err := driver.IsOn()
	if err != nil {
		return err
	}

	state := "OFF"
	if on {
		state = "ON"
	}
	if name, err := driver.Name(); err == nil && name != "" {
		fmt.Fprintf(out, "Smart plug:      %s (%q, %s at %s)\n", state, name, driver.Model(), cfg.Plug.Address)
	} else {
		fmt.Fprintf(out, "Smart plug:      %s (%s at %s)\n", state, driver.Model(), cfg.Plug.Address)
	}
	return nil
}

func cableState(plugged bool) string {
	if plugged {
		return "plugged"
	}
	return "unplugged"
}
