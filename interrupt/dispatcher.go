// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package interrupt routes interrupt and termination events (CTRL+C,
// system shutdown) to a stop function.
//
// On Linux and macOS the dispatcher reacts as soon as a signal arrives. On
// Windows delivered events queue up until the owner pumps them with
// CheckEvents, matching how console control events must be polled from the
// thread that owns them.
package interrupt

import (
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	apperrors "github.com/ImaSet/laptop-smart-power-manager/pkg/errors"
	"github.com/ImaSet/laptop-smart-power-manager/pkg/logger"
)

// eventBuffer bounds how many undelivered events a polling dispatcher can
// hold between two CheckEvents calls.
const eventBuffer = 4

// Dispatcher invokes an exit function when the process receives an
// interrupt or termination event.
type Dispatcher struct {
	exitFunc func()
	signals  chan os.Signal
	quit     chan struct{}
	done     chan struct{}
	polling  bool
	closed   sync.Once
}

// NewDispatcher registers the interrupt handlers for the current system and
// returns the dispatcher variant matching it. The exit function must be
// safe to call more than once.
func NewDispatcher(exitFunc func()) (*Dispatcher, error) {
	return newDispatcher(runtime.GOOS, exitFunc)
}

// newDispatcher keeps the system name injectable so every variant is
// reachable from tests.
func newDispatcher(system string, exitFunc func()) (*Dispatcher, error) {
	d := &Dispatcher{
		exitFunc: exitFunc,
		signals:  make(chan os.Signal, eventBuffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	switch system {
	case "windows":
		d.polling = true
	case "linux", "darwin":
		d.polling = false
	default:
		return nil, apperrors.NewUnsupportedSystemError(system)
	}

	signal.Notify(d.signals, os.Interrupt, syscall.SIGTERM)
	logger.Debug().
		Str("system", system).
		Bool("polling", d.polling).
		Msg("Interrupt dispatcher registered")

	if !d.polling {
		go d.forward()
	}
	return d, nil
}

// forward delivers events as they arrive.
func (d *Dispatcher) forward() {
	defer close(d.done)
	for {
		select {
		case <-d.quit:
			return
		case sig := <-d.signals:
			logger.Info().Str("signal", sig.String()).Msg("Interrupt event received")
			d.exitFunc()
		}
	}
}

// CheckEvents pumps the events delivered since the previous call, invoking
// the exit function once per event. It never blocks and is a no-op on
// systems where events are delivered as they arrive.
func (d *Dispatcher) CheckEvents() {
	if !d.polling {
		return
	}
	for {
		select {
		case sig := <-d.signals:
			logger.Info().Str("signal", sig.String()).Msg("Interrupt event received")
			d.exitFunc()
		default:
			return
		}
	}
}

// Close unregisters the handlers and waits for in-flight deliveries to
// finish. Events arriving after Close are handled by the Go runtime default
// again.
func (d *Dispatcher) Close() {
	d.closed.Do(func() {
		signal.Stop(d.signals)
		close(d.quit)
		if !d.polling {
			<-d.done
		}
	})
}
