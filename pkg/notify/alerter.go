// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package notify

import (
	"context"
	"fmt"
)

// Alerter wraps a Notifier with alerts for the monitoring lifecycle.
type Alerter struct {
	notifier Notifier
}

// NewAlerter creates a new alerter.
func NewAlerter(notifier Notifier) *Alerter {
	return &Alerter{notifier: notifier}
}

// IsEnabled returns whether at least one channel is configured.
func (a *Alerter) IsEnabled() bool {
	return a.notifier.IsEnabled()
}

// SendMonitoringStarted announces that battery monitoring began.
func (a *Alerter) SendMonitoringStarted(ctx context.Context, batteryLow, batteryHigh int) error {
	return a.notifier.SendAlert(ctx, SeverityInfo, "✅ Laptop Smart Power Manager Started",
		fmt.Sprintf("Battery monitoring is active.\nAC power is restored below %d%% and cut at %d%%.", batteryLow, batteryHigh))
}

// SendMonitoringStopped announces a clean shutdown.
func (a *Alerter) SendMonitoringStopped(ctx context.Context) error {
	return a.notifier.SendAlert(ctx, SeverityInfo, "Laptop Smart Power Manager Stopped",
		"Battery monitoring stopped cleanly. The smart plug was switched off.")
}

// SendMonitoringFailure sends an alert when monitoring dies on an error.
func (a *Alerter) SendMonitoringFailure(ctx context.Context, err error) error {
	return a.notifier.SendAlert(ctx, SeverityError, "⚠️ Power Supply Monitoring Interrupted",
		fmt.Sprintf("Battery monitoring stopped on an error: %v\nThe smart plug is no longer being driven. Plug the charger in manually if the battery is low.", err))
}
