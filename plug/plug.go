// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package plug selects and drives network smart plugs.
//
// Concrete drivers live in subpackages and register themselves by model name
// at init time; callers import the driver package for its side effect and
// open sessions through Connect.
package plug

import (
	"sort"
	"sync"

	apperrors "github.com/ImaSet/laptop-smart-power-manager/pkg/errors"
)

// Account supplies the credentials a driver logs in with.
type Account interface {
	Username() (string, error)
	Password() (string, error)
}

// Driver is a connected smart plug session.
type Driver interface {
	// Model returns the device model the session was opened for.
	Model() string
	// Name returns the user-assigned device name.
	Name() (string, error)
	// Info returns the raw device metadata.
	Info() (map[string]any, error)
	// IsOn reports the observed relay state. It fails with a
	// ConnectionError if the device is unreachable.
	IsOn() (bool, error)
	// TurnOn requests the relay on. The observed state converges
	// asynchronously; callers verify it separately.
	TurnOn() error
	// TurnOff requests the relay off.
	TurnOff() error
}

// Connector opens a session for one of a driver's registered models.
type Connector func(model, address string, account Account) (Driver, error)

var (
	mu       sync.RWMutex
	registry = map[string]Connector{}
)

// Register makes a connector available under the given model names.
// Driver packages call it from init.
func Register(connector Connector, models ...string) {
	mu.Lock()
	defer mu.Unlock()
	for _, model := range models {
		registry[model] = connector
	}
}

// SupportedModels returns all registered model names, sorted.
func SupportedModels() []string {
	mu.RLock()
	defer mu.RUnlock()
	models := make([]string, 0, len(registry))
	for model := range registry {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// Connect opens a session with the plug of the given model at the given
// address. A model without a registered driver fails with an
// UnsupportedModelError naming the supported models.
func Connect(model, address string, account Account) (Driver, error) {
	mu.RLock()
	connector, ok := registry[model]
	mu.RUnlock()
	if !ok {
		return nil, apperrors.NewUnsupportedModelError(model, SupportedModels())
	}
	return connector(model, address, account)
}
