// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package metrics provides Prometheus metrics for the power supply controller.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatteryLevel tracks the last observed battery charge percentage
	BatteryLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lspm_battery_level_percent",
		Help: "Last observed battery charge percentage",
	})

	// ACPlugged reports whether the AC power cable was connected at the last reading (1 = plugged)
	ACPlugged = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lspm_ac_plugged",
		Help: "Whether the AC power cable was connected at the last reading (1 = plugged)",
	})

	// DecisionCyclesTotal tracks the total number of completed decision cycles
	DecisionCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lspm_decision_cycles_total",
		Help: "Total number of completed decision cycles",
	})

	// PlugCommandsTotal tracks the plug commands issued, by action
	PlugCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lspm_plug_commands_total",
		Help: "Total number of plug commands issued",
	}, []string{"action"})

	// VerificationDuration tracks how long a commanded plug transition takes to converge
	VerificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lspm_state_verification_duration_seconds",
		Help:    "Duration of plug state verification in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// VerificationFailures tracks verifications that timed out before converging
	VerificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lspm_state_verification_failures_total",
		Help: "Total number of state verifications that timed out",
	})

	// ControllerErrors tracks terminal controller errors, by error type
	ControllerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lspm_controller_errors_total",
		Help: "Total number of terminal controller errors",
	}, []string{"type"})

	// PlugRequestsTotal tracks the HTTP requests sent to the smart plug, by outcome
	PlugRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lspm_plug_requests_total",
		Help: "Total number of HTTP requests sent to the smart plug",
	}, []string{"outcome"})

	// NotificationsTotal tracks notification deliveries, by channel and outcome
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lspm_notifications_total",
		Help: "Total number of notification deliveries",
	}, []string{"channel", "outcome"})
)
