// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package power implements the power supply controller: a background
// monitoring loop that keeps the laptop battery inside its configured
// charge band by switching the smart plug that feeds the AC adapter.
//
// The controller owns exactly one goroutine. The caller constructs it
// (which checks the plug, forces it off, verifies the transition, and runs
// one decision cycle), starts it, polls IsRunning until an interrupt
// arrives, then Joins and inspects Err. A lost plug connection is terminal
// for the controller instance: recovery means building a new one.
package power

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ImaSet/laptop-smart-power-manager/battery"
	"github.com/ImaSet/laptop-smart-power-manager/interrupt"
	apperrors "github.com/ImaSet/laptop-smart-power-manager/pkg/errors"
	"github.com/ImaSet/laptop-smart-power-manager/pkg/logger"
	"github.com/ImaSet/laptop-smart-power-manager/pkg/metrics"
)

// verifyPollInterval is how often state verification queries the plug.
const verifyPollInterval = 100 * time.Millisecond

// SmartPlug is the device surface the controller drives. plug.Driver
// satisfies it.
type SmartPlug interface {
	IsOn() (bool, error)
	TurnOn() error
	TurnOff() error
}

// BatterySensor yields a fresh battery snapshot on every read.
// battery.Sensor satisfies it.
type BatterySensor interface {
	Read() (battery.Snapshot, error)
}

// ControllerState tracks the controller lifecycle. It moves forward only:
// Initializing, Running, StopRequested, Stopped.
type ControllerState int32

const (
	StateInitializing ControllerState = iota
	StateRunning
	StateStopRequested
	StateStopped
)

func (s ControllerState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop requested"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Controller supervises the power supply of the laptop. It is single use:
// construct, Start once, Stop or let an interrupt stop it, Join, and in
// deferred mode check Err.
type Controller struct {
	plug        SmartPlug
	sensor      BatterySensor
	settings    Settings
	deferErrors bool

	dispatcher *interrupt.Dispatcher

	state    atomic.Int32
	connLost atomic.Bool

	// finished wakes the sleeping loop on a stop request; done closes when
	// the loop has fully exited.
	finished   chan struct{}
	done       chan struct{}
	finishOnce sync.Once
	stopOnce   sync.Once

	// err is written by the loop goroutine before done closes and read by
	// callers only after done closes.
	err error
}

// NewController validates the settings, checks the plug is reachable,
// forces it off and verifies the transition, runs one decision cycle, and
// installs the interrupt dispatcher bound to Stop. Any failure aborts
// construction with no background activity left behind.
//
// deferErrors selects the error propagation mode: when true, a terminal
// loop error is captured for retrieval through Err after Join; when false,
// the loop goroutine panics with it.
func NewController(smartPlug SmartPlug, sensor BatterySensor, settings Settings, deferErrors bool) (*Controller, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Int("battery_low", settings.BatteryLow).
		Int("battery_high", settings.BatteryHigh).
		Dur("refresh_time", settings.RefreshTime).
		Dur("state_change_timeout", settings.StateChangeTimeout).
		Msg("Initializing the laptop smart power manager")

	c := &Controller{
		plug:        smartPlug,
		sensor:      sensor,
		settings:    settings,
		deferErrors: deferErrors,
		finished:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	c.state.Store(int32(StateInitializing))

	if err := c.checkConnection(); err != nil {
		return nil, err
	}
	if err := c.command(false); err != nil {
		return nil, err
	}
	if err := c.verifyPlugState(false); err != nil {
		return nil, err
	}
	if err := c.runDecisionCycle(); err != nil {
		return nil, err
	}

	dispatcher, err := interrupt.NewDispatcher(c.Stop)
	if err != nil {
		return nil, err
	}
	c.dispatcher = dispatcher
	return c, nil
}

// Start launches the monitoring loop and returns immediately. The
// controller is single use: Start must be called exactly once.
func (c *Controller) Start() {
	c.state.Store(int32(StateRunning))
	go c.run()
}

// IsRunning reports whether the monitoring loop is still executing. As a
// side effect it pumps queued interrupt events on systems that deliver
// them by polling, so callers must invoke it repeatedly (every 100 ms or
// so) for interrupt-driven shutdown to be observed there.
func (c *Controller) IsRunning() bool {
	c.dispatcher.CheckEvents()
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Stop requests the loop to end and, unless the connection is known lost,
// sends one best-effort turn-off command. The shutdown command is not
// verified, so stopping never blocks on a convergence timeout. Stop is
// idempotent and safe to call concurrently with the loop.
func (c *Controller) Stop() {
	c.requestStop()
	c.finishOnce.Do(func() { close(c.finished) })
	c.stopOnce.Do(func() {
		if c.connLost.Load() {
			return
		}
		if err := c.command(false); err != nil {
			logger.Warn().Err(err).Msg("Shutdown turn-off request failed")
			return
		}
		logger.Info().Msg("Laptop smart power manager stopped successfully")
	})
}

// Join blocks until the monitoring loop has fully exited, then releases
// the interrupt handlers so they cannot fire for a dead controller.
func (c *Controller) Join() {
	<-c.done
	c.dispatcher.Close()
}

// Err returns the terminal loop error captured in deferred mode, or nil.
// It reports nil while the loop is still running; call it after Join.
func (c *Controller) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() ControllerState {
	return ControllerState(c.state.Load())
}

// ConnectionLost reports whether the plug connection is known lost. Once
// set the flag never clears and no further commands are issued.
func (c *Controller) ConnectionLost() bool {
	return c.connLost.Load()
}

// run is the monitoring loop. Each turn waits RefreshTime (a stop request
// wakes it immediately), re-checks connectivity, and runs one decision
// cycle. Any error ends the loop through fail.
func (c *Controller) run() {
	defer close(c.done)
	defer c.state.Store(int32(StateStopped))

	logger.Info().Msg("Laptop smart power manager started correctly")
	refresh := time.NewTimer(c.settings.RefreshTime)
	defer refresh.Stop()

	for {
		select {
		case <-c.finished:
			return
		case <-refresh.C:
		}
		// A stop request racing the timer wins: no further cycle runs.
		select {
		case <-c.finished:
			return
		default:
		}

		if err := c.checkConnection(); err != nil {
			c.fail(err)
			return
		}
		if err := c.runDecisionCycle(); err != nil {
			c.fail(err)
			return
		}
		refresh.Reset(c.settings.RefreshTime)
	}
}

// fail records a terminal loop error per the propagation mode: deferred
// mode stores it for Err, immediate mode panics in the loop goroutine.
func (c *Controller) fail(err error) {
	logger.Error().Err(err).Msg("Power supply monitoring interrupted")
	metrics.ControllerErrors.WithLabelValues(errorLabel(err)).Inc()
	c.Stop()
	if !c.deferErrors {
		panic(err)
	}
	c.err = err
}

// checkConnection confirms the plug still answers state queries. Failure
// is terminal: it marks the connection lost, which suppresses every
// further command including the shutdown one.
func (c *Controller) checkConnection() error {
	if _, err := c.plug.IsOn(); err != nil {
		c.connLost.Store(true)
		c.Stop()
		if apperrors.IsConnectionError(err) {
			return err
		}
		return fmt.Errorf("%w: %v", apperrors.ErrConnectionLost, err)
	}
	return nil
}

// runDecisionCycle reads the battery and applies the band policy: restore
// AC power below the low threshold while unplugged, cut it at or above the
// high threshold while plugged. The low comparison is strict, so sitting
// exactly at BatteryLow does not trigger a turn-on.
func (c *Controller) runDecisionCycle() error {
	snapshot, err := c.sensor.Read()
	if err != nil {
		return err
	}

	metrics.BatteryLevel.Set(float64(snapshot.Percent))
	if snapshot.IsPlugged {
		metrics.ACPlugged.Set(1)
	} else {
		metrics.ACPlugged.Set(0)
	}
	metrics.DecisionCyclesTotal.Inc()
	logger.Debug().
		Int("battery_level", snapshot.Percent).
		Bool("power_plugged", snapshot.IsPlugged).
		Msg("Battery status checked")

	switch {
	case !snapshot.IsPlugged && snapshot.Percent < c.settings.BatteryLow:
		if err := c.command(true); err != nil {
			return err
		}
		return c.verifyPlugState(true)
	case snapshot.IsPlugged && snapshot.Percent >= c.settings.BatteryHigh:
		if err := c.command(false); err != nil {
			return err
		}
		return c.verifyPlugState(false)
	}
	return nil
}

// command sends one switch request to the plug.
func (c *Controller) command(on bool) error {
	action := stateName(on)
	var err error
	if on {
		err = c.plug.TurnOn()
	} else {
		err = c.plug.TurnOff()
	}
	if err != nil {
		return err
	}
	metrics.PlugCommandsTotal.WithLabelValues(action).Inc()
	logger.Debug().Str("action", action).Msg("Switch request sent to the smart plug")
	return nil
}

// verifyPlugState polls the plug every 100 ms until it reports targetOn,
// racing a timeout of StateChangeTimeout. The select resolves exactly one
// of the two outcomes, so a poll success and the deadline cannot both win.
// A timeout marks the connection lost, requests stop, and fails with an
// InteractionError naming the target state. Poll errors count as not yet
// converged.
func (c *Controller) verifyPlugState(targetOn bool) error {
	target := stateName(targetOn)
	start := time.Now()

	deadline := time.NewTimer(c.settings.StateChangeTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(verifyPollInterval)
	defer poll.Stop()

	for {
		if on, err := c.plug.IsOn(); err == nil && on == targetOn {
			metrics.VerificationDuration.Observe(time.Since(start).Seconds())
			logger.Info().Str("state", target).Msg("Smart plug state confirmed")
			return nil
		}
		select {
		case <-deadline.C:
			c.connLost.Store(true)
			c.Stop()
			metrics.VerificationFailures.Inc()
			return apperrors.NewInteractionError(target, nil)
		case <-poll.C:
		}
	}
}

// requestStop advances the state to StopRequested unless the controller
// already moved past it.
func (c *Controller) requestStop() {
	for {
		current := c.state.Load()
		if ControllerState(current) >= StateStopRequested {
			return
		}
		if c.state.CompareAndSwap(current, int32(StateStopRequested)) {
			return
		}
	}
}

func errorLabel(err error) string {
	switch {
	case apperrors.IsInteractionError(err):
		return "interaction"
	case apperrors.IsConnectionError(err) || errors.Is(err, apperrors.ErrConnectionLost):
		return "connection"
	case apperrors.IsStatusCheckError(err):
		return "status_check"
	default:
		return "other"
	}
}

func stateName(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
