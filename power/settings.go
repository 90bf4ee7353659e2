// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package power

import (
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/ImaSet/laptop-smart-power-manager/pkg/errors"
)

// Default thresholds and timings. The low threshold should stay above the
// OS critical battery level (usually 7%).
const (
	DefaultBatteryLow         = 20
	DefaultBatteryHigh        = 80
	DefaultRefreshTime        = 30 * time.Second
	DefaultStateChangeTimeout = 10 * time.Second
)

// Settings holds the thresholds and timings of a controller. They are
// immutable for the controller's lifetime.
type Settings struct {
	// BatteryLow is the charge percentage below which AC power is restored.
	BatteryLow int
	// BatteryHigh is the charge percentage at which AC power is cut.
	BatteryHigh int
	// RefreshTime is the interval between two battery status checks.
	RefreshTime time.Duration
	// StateChangeTimeout bounds how long a commanded plug transition may
	// take to be observed.
	StateChangeTimeout time.Duration
}

// DefaultSettings returns the 20..80 band checked every 30 seconds.
func DefaultSettings() Settings {
	return Settings{
		BatteryLow:         DefaultBatteryLow,
		BatteryHigh:        DefaultBatteryHigh,
		RefreshTime:        DefaultRefreshTime,
		StateChangeTimeout: DefaultStateChangeTimeout,
	}
}

// Validate enforces 0 <= low < high <= 100 and positive timings.
func (s Settings) Validate() error {
	if s.BatteryLow < 0 || s.BatteryLow > 100 {
		return apperrors.NewConfigError("battery.low", strconv.Itoa(s.BatteryLow),
			fmt.Errorf("%w: must be within 0..100", apperrors.ErrInvalidConfig))
	}
	if s.BatteryHigh < 0 || s.BatteryHigh > 100 {
		return apperrors.NewConfigError("battery.high", strconv.Itoa(s.BatteryHigh),
			fmt.Errorf("%w: must be within 0..100", apperrors.ErrInvalidConfig))
	}
	if s.BatteryLow >= s.BatteryHigh {
		return apperrors.NewConfigError("battery.low", strconv.Itoa(s.BatteryLow),
			fmt.Errorf("%w: must be strictly below battery.high", apperrors.ErrInvalidConfig))
	}
	if s.RefreshTime <= 0 {
		return apperrors.NewConfigError("monitoring.refresh_time", s.RefreshTime.String(),
			fmt.Errorf("%w: must be positive", apperrors.ErrInvalidConfig))
	}
	if s.StateChangeTimeout <= 0 {
		return apperrors.NewConfigError("monitoring.state_change_timeout", s.StateChangeTimeout.String(),
			fmt.Errorf("%w: must be positive", apperrors.ErrInvalidConfig))
	}
	return nil
}
