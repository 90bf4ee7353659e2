// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

//go:build windows

package battery

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	apperrors "github.com/ImaSet/laptop-smart-power-manager/pkg/errors"
)

// readSnapshot reads battery state on Windows from Win32_Battery via PowerShell.
func readSnapshot() (Snapshot, error) {
	statusOut, err := powershell(`(Get-CimInstance Win32_Battery -ErrorAction SilentlyContinue).BatteryStatus`)
	if err != nil {
		return Snapshot{}, apperrors.NewStatusCheckError(apperrors.FieldACPowerCable, err)
	}
	plugged, err := parseBatteryStatus(statusOut)
	if err != nil {
		return Snapshot{}, apperrors.NewStatusCheckError(apperrors.FieldACPowerCable, err)
	}

	chargeOut, err := powershell(`(Get-CimInstance Win32_Battery -ErrorAction SilentlyContinue).EstimatedChargeRemaining`)
	if err != nil {
		return Snapshot{}, apperrors.NewStatusCheckError(apperrors.FieldBatteryLevel, err)
	}
	percent, err := parseCharge(chargeOut)
	if err != nil {
		return Snapshot{}, apperrors.NewStatusCheckError(apperrors.FieldBatteryLevel, err)
	}

	return Snapshot{Percent: percent, IsPlugged: plugged}, nil
}

func powershell(command string) (string, error) {
	out, err := exec.Command("powershell", "-NoProfile", "-Command", command).Output()
	if err != nil {
		return "", fmt.Errorf("powershell: %w", err)
	}
	return string(out), nil
}

// parseBatteryStatus maps Win32_Battery.BatteryStatus to an AC-plugged flag.
// Statuses 1 (discharging), 4 (low) and 5 (critical) mean the machine runs
// on battery; every other reported status implies AC power.
func parseBatteryStatus(out string) (bool, error) {
	s := strings.TrimSpace(out)
	if s == "" {
		return false, fmt.Errorf("empty BatteryStatus, no battery reported")
	}
	status, err := strconv.Atoi(s)
	if err != nil {
		return false, fmt.Errorf("BatteryStatus %q: %w", s, err)
	}
	switch status {
	case 1, 4, 5:
		return false, nil
	default:
		return true, nil
	}
}

func parseCharge(out string) (int, error) {
	s := strings.TrimSpace(out)
	if s == "" {
		return 0, fmt.Errorf("empty EstimatedChargeRemaining, no battery reported")
	}
	return strconv.Atoi(s)
}
