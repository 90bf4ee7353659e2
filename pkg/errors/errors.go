// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package errors provides structured error types for the Laptop Smart Power Manager.
//
// This package defines custom error types that provide better error handling,
// inspection, and debugging capabilities compared to plain string errors.
//
// # Benefits of Structured Errors
//
//   - Type-safe error inspection with errors.As() and errors.Is()
//   - Context-rich error messages with operation and underlying error details
//   - Consistent error formatting across the application
//   - Better error wrapping and unwrapping support
//   - Enhanced logging with structured error fields
//
// # Example Usage
//
//	err := errors.NewConnectionError("connect", "192.168.0.40", fmt.Errorf("network unreachable"))
//	if errors.IsConnectionError(err) {
//	    log.Printf("Plug unreachable: %v", err)
//	}
//
//	var connErr *errors.ConnectionError
//	if errors.As(err, &connErr) {
//	    log.Printf("Failed operation: %s", connErr.Op)
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ConnectionError represents a failure to reach the smart plug, either while
// establishing the initial session or during a periodic health check. It is
// terminal for the controller instance that observes it.
type ConnectionError struct {
	Op   string // Operation being performed (e.g., "connect", "health check")
	Addr string // Plug network address (if known)
	Err  error  // Underlying error
}

func (e *ConnectionError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("smart plug %s: %s is unreachable: %v", e.Op, e.Addr, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("smart plug %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("smart plug %s failed", e.Op)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a new connection error.
func NewConnectionError(op string, addr string, err error) *ConnectionError {
	return &ConnectionError{Op: op, Addr: addr, Err: err}
}

// IsConnectionError checks if an error is a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// InteractionError represents a plug command whose observed state never
// converged to the requested state within the verification timeout.
type InteractionError struct {
	TargetState string // Requested state ("on" or "off")
	Err         error  // Underlying error (optional)
}

func (e *InteractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unable to turn %s the smart plug: %v", e.TargetState, e.Err)
	}
	return fmt.Sprintf("unable to turn %s the smart plug", e.TargetState)
}

func (e *InteractionError) Unwrap() error {
	return e.Err
}

// NewInteractionError creates a new interaction error for the given target state.
func NewInteractionError(targetState string, err error) *InteractionError {
	return &InteractionError{TargetState: targetState, Err: err}
}

// IsInteractionError checks if an error is an InteractionError.
func IsInteractionError(err error) bool {
	var ie *InteractionError
	return errors.As(err, &ie)
}

// Battery snapshot fields reported by StatusCheckError.
const (
	FieldACPowerCable = "ac_power_cable"
	FieldBatteryLevel = "battery_level"
)

// StatusCheckError represents a battery sensor read that returned incomplete
// data. Field identifies which part of the snapshot was missing.
type StatusCheckError struct {
	Field string // Missing field (FieldACPowerCable or FieldBatteryLevel)
	Err   error  // Underlying error
}

func (e *StatusCheckError) Error() string {
	var what string
	switch e.Field {
	case FieldACPowerCable:
		what = "unable to know if the AC power cable is connected"
	case FieldBatteryLevel:
		what = "unable to get information about battery state"
	default:
		what = fmt.Sprintf("unable to read battery field %q", e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", what, e.Err)
	}
	return what
}

func (e *StatusCheckError) Unwrap() error {
	return e.Err
}

// NewStatusCheckError creates a new status check error for the given field.
func NewStatusCheckError(field string, err error) *StatusCheckError {
	return &StatusCheckError{Field: field, Err: err}
}

// IsStatusCheckError checks if an error is a StatusCheckError.
func IsStatusCheckError(err error) bool {
	var se *StatusCheckError
	return errors.As(err, &se)
}

// UnsupportedSystemError represents an attempt to run on an operating system
// the interrupt dispatcher has no variant for. No handler is registered when
// this error is returned.
type UnsupportedSystemError struct {
	System string // Detected operating system (runtime.GOOS)
}

func (e *UnsupportedSystemError) Error() string {
	return fmt.Sprintf("%q system is not supported: only windows, linux, and darwin are currently supported", e.System)
}

// NewUnsupportedSystemError creates a new unsupported system error.
func NewUnsupportedSystemError(system string) *UnsupportedSystemError {
	return &UnsupportedSystemError{System: system}
}

// IsUnsupportedSystemError checks if an error is an UnsupportedSystemError.
func IsUnsupportedSystemError(err error) bool {
	var ue *UnsupportedSystemError
	return errors.As(err, &ue)
}

// UnsupportedModelError represents a request for a smart plug model no
// registered driver supports.
type UnsupportedModelError struct {
	Model     string   // Requested model name
	Supported []string // Models with a registered driver
}

func (e *UnsupportedModelError) Error() string {
	if len(e.Supported) > 0 {
		return fmt.Sprintf("smart plug model %q is not supported (supported models: %s)", e.Model, strings.Join(e.Supported, ", "))
	}
	return fmt.Sprintf("smart plug model %q is not supported", e.Model)
}

// NewUnsupportedModelError creates a new unsupported model error.
func NewUnsupportedModelError(model string, supported []string) *UnsupportedModelError {
	return &UnsupportedModelError{Model: model, Supported: supported}
}

// IsUnsupportedModelError checks if an error is an UnsupportedModelError.
func IsUnsupportedModelError(err error) bool {
	var ue *UnsupportedModelError
	return errors.As(err, &ue)
}

// CredentialsError represents a failure reading or writing the plug account
// credentials in the OS secret store.
type CredentialsError struct {
	Op  string // Operation being performed (e.g., "get username", "set password")
	Err error  // Underlying error
}

func (e *CredentialsError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credentials %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("credentials %s failed", e.Op)
}

func (e *CredentialsError) Unwrap() error {
	return e.Err
}

// NewCredentialsError creates a new credentials error.
func NewCredentialsError(op string, err error) *CredentialsError {
	return &CredentialsError{Op: op, Err: err}
}

// IsCredentialsError checks if an error is a CredentialsError.
func IsCredentialsError(err error) bool {
	var ce *CredentialsError
	return errors.As(err, &ce)
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field string // Configuration field that caused the error
	Value string // Invalid value (optional, may be redacted for sensitive fields)
	Err   error  // Underlying error or description
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("config error in field %q (value=%q): %v", e.Field, e.Value, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("config error in field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config error in field %q", e.Field)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new configuration error.
func NewConfigError(field string, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Err: err}
}

// IsConfigError checks if an error is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// NotificationError represents an error sending notifications.
type NotificationError struct {
	Type string // Notification type (e.g., "slack", "mqtt")
	Err  error  // Underlying error
}

func (e *NotificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notification %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("notification %s failed", e.Type)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// NewNotificationError creates a new notification error.
func NewNotificationError(notifType string, err error) *NotificationError {
	return &NotificationError{Type: notifType, Err: err}
}

// IsNotificationError checks if an error is a NotificationError.
func IsNotificationError(err error) bool {
	var ne *NotificationError
	return errors.As(err, &ne)
}

// Sentinel errors for common conditions
var (
	// ErrConnectionLost indicates the plug stopped answering mid-session
	ErrConnectionLost = errors.New("connection lost to the smart plug")

	// ErrNoUsername indicates no username is stored for the plug account
	ErrNoUsername = errors.New("no username stored")

	// ErrNoPassword indicates no password is stored for the plug account
	ErrNoPassword = errors.New("no password stored")

	// ErrPasswordBeforeUsername indicates a password was supplied before any username
	ErrPasswordBeforeUsername = errors.New("a username must be stored before a password")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrControllerStopped indicates an operation on a controller that already stopped
	ErrControllerStopped = errors.New("controller already stopped")
)
