// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

//go:build darwin

package battery

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	apperrors "github.com/ImaSet/laptop-smart-power-manager/pkg/errors"
)

// readSnapshot reads battery state on macOS from pmset.
func readSnapshot() (Snapshot, error) {
	out, err := exec.Command("pmset", "-g", "batt").Output()
	if err != nil {
		return Snapshot{}, apperrors.NewStatusCheckError(apperrors.FieldACPowerCable, fmt.Errorf("pmset: %w", err))
	}
	return parsePmset(string(out))
}

// parsePmset extracts the power source and charge percentage from pmset
// output, which looks like:
//
//	Now drawing from 'AC Power'
//	 -InternalBattery-0 (id=4587619)	87%; charging; 0:28 remaining present: true
func parsePmset(out string) (Snapshot, error) {
	var snap Snapshot
	switch {
	case strings.Contains(out, "'AC Power'"):
		snap.IsPlugged = true
	case strings.Contains(out, "'Battery Power'"):
		snap.IsPlugged = false
	default:
		return Snapshot{}, apperrors.NewStatusCheckError(apperrors.FieldACPowerCable,
			fmt.Errorf("no power source in pmset output"))
	}

	idx := strings.Index(out, "%")
	if idx < 1 {
		return Snapshot{}, apperrors.NewStatusCheckError(apperrors.FieldBatteryLevel,
			fmt.Errorf("no charge percentage in pmset output"))
	}
	start := idx
	for start > 0 && out[start-1] >= '0' && out[start-1] <= '9' {
		start--
	}
	percent, err := strconv.Atoi(out[start:idx])
	if err != nil {
		return Snapshot{}, apperrors.NewStatusCheckError(apperrors.FieldBatteryLevel, err)
	}
	snap.Percent = percent
	return snap, nil
}
