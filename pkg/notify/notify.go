// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package notify provides alerting capabilities via various channels.
//
// This package implements notification delivery for critical monitoring events
// such as terminal controller failures, lost smart plug connections, and clean
// shutdowns. Notifications let the owner of an unattended laptop react (for
// example by plugging the charger in manually) before the battery drains.
//
// # Notification Channels
//
// Currently supported:
//   - Slack: Webhook-based notifications with formatted attachments
//   - MQTT: JSON events published to a configurable broker topic
//
// Future channels could include:
//   - Email (SMTP)
//   - Generic webhooks
//
// Channels are fanned out through a Multi, and every channel degrades
// gracefully when left unconfigured: a disabled notifier accepts alerts and
// silently discards them.
package notify

import (
	"context"
	"errors"

	apperrors "github.com/ImaSet/laptop-smart-power-manager/pkg/errors"
	"github.com/ImaSet/laptop-smart-power-manager/pkg/logger"
	"github.com/ImaSet/laptop-smart-power-manager/pkg/metrics"
)

// Severity levels understood by every channel.
const (
	SeverityInfo    = "good"
	SeverityWarning = "warning"
	SeverityError   = "danger"
)

// Notifier delivers an alert over a single channel.
type Notifier interface {
	// Name identifies the channel for logs and metrics.
	Name() string

	// IsEnabled returns whether the channel is configured for delivery.
	IsEnabled() bool

	// SendAlert delivers a formatted alert. Disabled channels return nil.
	SendAlert(ctx context.Context, severity, title, message string) error
}

// Multi fans an alert out to every enabled channel.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a notifier broadcasting to the given channels.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Name identifies the fan-out channel.
func (m *Multi) Name() string {
	return "multi"
}

// IsEnabled returns whether at least one channel is configured.
func (m *Multi) IsEnabled() bool {
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			return true
		}
	}
	return false
}

// SendAlert delivers the alert to every enabled channel. A failing channel
// does not stop delivery on the remaining ones; all failures are reported
// together.
func (m *Multi) SendAlert(ctx context.Context, severity, title, message string) error {
	var errs []error

	for _, n := range m.notifiers {
		if !n.IsEnabled() {
			continue
		}

		if err := n.SendAlert(ctx, severity, title, message); err != nil {
			logger.Warn().Err(err).Str("channel", n.Name()).Msg("Notification delivery failed")
			metrics.NotificationsTotal.WithLabelValues(n.Name(), "error").Inc()
			errs = append(errs, apperrors.NewNotificationError(n.Name(), err))
			continue
		}

		metrics.NotificationsTotal.WithLabelValues(n.Name(), "success").Inc()
	}

	return errors.Join(errs...)
}
