// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

//go:build linux

package battery

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/ImaSet/laptop-smart-power-manager/pkg/errors"
)

// Overridable in tests.
var powerSupplyRoot = "/sys/class/power_supply"

// readSnapshot reads battery state on Linux from sysfs power_supply entries.
func readSnapshot() (Snapshot, error) {
	plugged, err := readMainsOnline()
	if err != nil {
		return Snapshot{}, apperrors.NewStatusCheckError(apperrors.FieldACPowerCable, err)
	}
	percent, err := readBatteryCapacity()
	if err != nil {
		return Snapshot{}, apperrors.NewStatusCheckError(apperrors.FieldBatteryLevel, err)
	}
	return Snapshot{Percent: percent, IsPlugged: plugged}, nil
}

// readMainsOnline reports whether the AC adapter is online.
func readMainsOnline() (bool, error) {
	dir, err := findSupply("Mains")
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "online"))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(data)) == "1", nil
}

// readBatteryCapacity returns the battery charge percentage.
func readBatteryCapacity() (int, error) {
	dir, err := findSupply("Battery")
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "capacity"))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// findSupply locates the first power_supply entry of the given type
// ("Mains" or "Battery"). Adapter and battery names vary across vendors
// (AC, ACAD, ADP1, BAT0, BAT1), the type file does not.
func findSupply(wantType string) (string, error) {
	entries, err := os.ReadDir(powerSupplyRoot)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(powerSupplyRoot, entry.Name(), "type"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) == wantType {
			return filepath.Join(powerSupplyRoot, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("no %s entry under %s", wantType, powerSupplyRoot)
}
