// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package battery reads the laptop's instantaneous charge level and AC cable state.
package battery

import (
	"fmt"

	apperrors "github.com/ImaSet/laptop-smart-power-manager/pkg/errors"
)

// Snapshot is one battery reading. It is produced fresh on every poll and
// never cached.
type Snapshot struct {
	Percent   int  // Charge percentage, 0..100
	IsPlugged bool // Whether the AC power cable is connected
}

// Sensor reads the battery state of the machine it runs on.
type Sensor struct{}

// NewSensor creates a battery sensor for the current platform.
func NewSensor() *Sensor {
	return &Sensor{}
}

// Read returns a fresh battery snapshot. A reading with an undetermined AC
// cable state or charge level fails with a StatusCheckError naming the
// missing field.
func (s *Sensor) Read() (Snapshot, error) {
	snap, err := readSnapshot()
	if err != nil {
		return Snapshot{}, err
	}
	if snap.Percent < 0 || snap.Percent > 100 {
		return Snapshot{}, apperrors.NewStatusCheckError(apperrors.FieldBatteryLevel,
			fmt.Errorf("charge percentage %d out of range", snap.Percent))
	}
	return snap, nil
}
