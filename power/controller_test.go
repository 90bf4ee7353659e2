// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package power

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ImaSet/laptop-smart-power-manager/battery"
	apperrors "github.com/ImaSet/laptop-smart-power-manager/pkg/errors"
)

// fakePlug is a thread-safe in-memory plug. With stuck set, commands are
// counted but the reported state no longer changes, which simulates a
// device that acknowledges commands without acting on them.
type fakePlug struct {
	mu           sync.Mutex
	on           bool
	stuck        bool
	isOnErr      error
	turnOnErr    error
	turnOffErr   error
	isOnCalls    int
	turnOnCalls  int
	turnOffCalls int
}

func (p *fakePlug) IsOn() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isOnCalls++
	if p.isOnErr != nil {
		return false, p.isOnErr
	}
	return p.on, nil
}

func (p *fakePlug) TurnOn() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turnOnCalls++
	if p.turnOnErr != nil {
		return p.turnOnErr
	}
	if !p.stuck {
		p.on = true
	}
	return nil
}

func (p *fakePlug) TurnOff() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turnOffCalls++
	if p.turnOffErr != nil {
		return p.turnOffErr
	}
	if !p.stuck {
		p.on = false
	}
	return nil
}

func (p *fakePlug) getOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.on
}

func (p *fakePlug) setOn(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.on = on
}

func (p *fakePlug) setStuck(stuck bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stuck = stuck
}

func (p *fakePlug) setIsOnErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isOnErr = err
}

func (p *fakePlug) commands() (turnOn, turnOff int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.turnOnCalls, p.turnOffCalls
}

type fakeSensor struct {
	mu       sync.Mutex
	snapshot battery.Snapshot
	err      error
	reads    int
}

func (s *fakeSensor) Read() (battery.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return battery.Snapshot{}, s.err
	}
	return s.snapshot, nil
}

func (s *fakeSensor) set(percent int, plugged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = battery.Snapshot{Percent: percent, IsPlugged: plugged}
}

func (s *fakeSensor) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func testSettings() Settings {
	return Settings{
		BatteryLow:         20,
		BatteryHigh:        80,
		RefreshTime:        20 * time.Millisecond,
		StateChangeTimeout: 300 * time.Millisecond,
	}
}

// bareController builds a controller without running the construction
// sequence, for exercising single methods in isolation.
func bareController(p *fakePlug, s *fakeSensor, settings Settings) *Controller {
	return &Controller{
		plug:        p,
		sensor:      s,
		settings:    settings,
		deferErrors: true,
		finished:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func newTestController(t *testing.T, p *fakePlug, s *fakeSensor, settings Settings) *Controller {
	t.Helper()
	c, err := NewController(p, s, settings, true)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	t.Cleanup(func() { c.dispatcher.Close() })
	return c
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestDecisionCycle(t *testing.T) {
	tests := []struct {
		name        string
		percent     int
		plugged     bool
		plugOn      bool
		wantTurnOn  int
		wantTurnOff int
	}{
		{"below low and unplugged turns on", 15, false, false, 1, 0},
		{"just below low turns on", 19, false, false, 1, 0},
		{"exactly at low stays off", 20, false, false, 0, 0},
		{"at high and plugged turns off", 80, true, true, 0, 1},
		{"above high turns off", 85, true, true, 0, 1},
		{"just below high keeps charging", 79, true, true, 0, 0},
		{"mid band unplugged no command", 50, false, false, 0, 0},
		{"mid band plugged no command", 50, true, true, 0, 0},
		{"below low but plugged no command", 15, true, true, 0, 0},
		{"above high but unplugged no command", 85, false, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePlug{on: tt.plugOn}
			s := &fakeSensor{snapshot: battery.Snapshot{Percent: tt.percent, IsPlugged: tt.plugged}}
			c := bareController(p, s, testSettings())

			if err := c.runDecisionCycle(); err != nil {
				t.Fatalf("runDecisionCycle() error = %v", err)
			}
			turnOn, turnOff := p.commands()
			if turnOn != tt.wantTurnOn {
				t.Errorf("turn-on commands = %d, want %d", turnOn, tt.wantTurnOn)
			}
			if turnOff != tt.wantTurnOff {
				t.Errorf("turn-off commands = %d, want %d", turnOff, tt.wantTurnOff)
			}
		})
	}
}

func TestDecisionCycleSensorFailure(t *testing.T) {
	p := &fakePlug{}
	s := &fakeSensor{err: apperrors.NewStatusCheckError(apperrors.FieldBatteryLevel, nil)}
	c := bareController(p, s, testSettings())

	err := c.runDecisionCycle()
	if !apperrors.IsStatusCheckError(err) {
		t.Errorf("runDecisionCycle() error = %v, want StatusCheckError", err)
	}
	turnOn, turnOff := p.commands()
	if turnOn+turnOff != 0 {
		t.Errorf("commands issued on a failed battery read: on=%d off=%d", turnOn, turnOff)
	}
}

func TestVerifyPlugStateConverges(t *testing.T) {
	p := &fakePlug{}
	c := bareController(p, &fakeSensor{}, Settings{
		BatteryLow: 20, BatteryHigh: 80,
		RefreshTime:        time.Second,
		StateChangeTimeout: 2 * time.Second,
	})

	// The plug reaches the target state after a few polls.
	time.AfterFunc(150*time.Millisecond, func() { p.setOn(true) })

	start := time.Now()
	if err := c.verifyPlugState(true); err != nil {
		t.Fatalf("verifyPlugState(true) error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("verification returned after %v, before the state could have changed", elapsed)
	}
	if c.ConnectionLost() {
		t.Error("connection marked lost after a successful verification")
	}
}

func TestVerifyPlugStateTimeout(t *testing.T) {
	p := &fakePlug{} // stays off
	c := bareController(p, &fakeSensor{}, testSettings())

	err := c.verifyPlugState(true)
	if !apperrors.IsInteractionError(err) {
		t.Fatalf("verifyPlugState(true) error = %v, want InteractionError", err)
	}
	var interactionErr *apperrors.InteractionError
	if errors.As(err, &interactionErr) && interactionErr.TargetState != "on" {
		t.Errorf("InteractionError target state = %q, want %q", interactionErr.TargetState, "on")
	}
	if !c.ConnectionLost() {
		t.Error("connection-lost flag not set after a verification timeout")
	}

	// The internal stop must not have issued the best-effort shutdown
	// command: the connection is lost.
	_, turnOff := p.commands()
	if turnOff != 0 {
		t.Errorf("turn-off commands = %d after a lost connection, want 0", turnOff)
	}

	select {
	case <-c.finished:
	default:
		t.Error("stop not requested after a verification timeout")
	}
}

func TestVerifyPlugStatePollErrors(t *testing.T) {
	p := &fakePlug{isOnErr: errors.New("read timeout")}
	c := bareController(p, &fakeSensor{}, testSettings())

	// The plug is off, but erroring polls never count as converged.
	err := c.verifyPlugState(false)
	if !apperrors.IsInteractionError(err) {
		t.Errorf("verifyPlugState(false) error = %v, want InteractionError", err)
	}
}

func TestNewControllerForcesPlugOff(t *testing.T) {
	p := &fakePlug{on: true}
	s := &fakeSensor{snapshot: battery.Snapshot{Percent: 50, IsPlugged: true}}

	newTestController(t, p, s, testSettings())

	_, turnOff := p.commands()
	if turnOff != 1 {
		t.Errorf("turn-off commands during construction = %d, want 1", turnOff)
	}
	if p.getOn() {
		t.Error("plug still on after construction")
	}
	if s.readCount() != 1 {
		t.Errorf("battery reads during construction = %d, want 1 initial decision cycle", s.readCount())
	}
}

func TestNewControllerRunsInitialDecisionCycle(t *testing.T) {
	p := &fakePlug{}
	s := &fakeSensor{snapshot: battery.Snapshot{Percent: 15, IsPlugged: false}}

	newTestController(t, p, s, testSettings())

	// The battery is already below the low threshold, so construction
	// itself restores AC power without waiting for the first loop turn.
	turnOn, _ := p.commands()
	if turnOn != 1 {
		t.Errorf("turn-on commands during construction = %d, want 1", turnOn)
	}
	if !p.getOn() {
		t.Error("plug still off after construction with a low battery")
	}
}

func TestNewControllerUnreachablePlug(t *testing.T) {
	p := &fakePlug{isOnErr: errors.New("no route to host")}
	s := &fakeSensor{snapshot: battery.Snapshot{Percent: 50, IsPlugged: false}}

	c, err := NewController(p, s, testSettings(), true)
	if err == nil {
		t.Fatal("NewController() succeeded against an unreachable plug")
	}
	if !errors.Is(err, apperrors.ErrConnectionLost) {
		t.Errorf("NewController() error = %v, want ErrConnectionLost", err)
	}
	if c != nil {
		t.Error("NewController() returned a controller alongside an error")
	}
	turnOn, turnOff := p.commands()
	if turnOn+turnOff != 0 {
		t.Errorf("commands issued during failed construction: on=%d off=%d", turnOn, turnOff)
	}
}

func TestNewControllerInvalidSettings(t *testing.T) {
	p := &fakePlug{}
	s := &fakeSensor{}

	_, err := NewController(p, s, Settings{
		BatteryLow: 90, BatteryHigh: 80,
		RefreshTime: time.Second, StateChangeTimeout: time.Second,
	}, true)
	if !apperrors.IsConfigError(err) {
		t.Errorf("NewController() error = %v, want ConfigError", err)
	}
	p.mu.Lock()
	isOnCalls := p.isOnCalls
	p.mu.Unlock()
	if isOnCalls != 0 {
		t.Errorf("plug queried %d times despite invalid settings", isOnCalls)
	}
}

func TestControllerRestoresPowerWhenBatteryLow(t *testing.T) {
	p := &fakePlug{on: true}
	s := &fakeSensor{snapshot: battery.Snapshot{Percent: 50, IsPlugged: true}}
	c := newTestController(t, p, s, testSettings())
	c.Start()

	// The battery drains below the low threshold while unplugged.
	s.set(15, false)
	waitFor(t, 2*time.Second, func() bool {
		turnOn, _ := p.commands()
		return turnOn >= 1 && p.getOn()
	}, "plug not turned on after the battery dropped below the low threshold")

	// Charging resumed.
	s.set(25, true)

	c.Stop()
	c.Join()
	if err := c.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
	if p.getOn() {
		t.Error("plug still on after stop's best-effort turn-off")
	}
	if got := c.State(); got != StateStopped {
		t.Errorf("State() = %v, want %v", got, StateStopped)
	}
}

func TestControllerCutsPowerWhenBatteryHigh(t *testing.T) {
	p := &fakePlug{}
	s := &fakeSensor{snapshot: battery.Snapshot{Percent: 50, IsPlugged: true}}
	c := newTestController(t, p, s, testSettings())
	c.Start()

	// The battery fills past the high threshold while charging.
	p.setOn(true)
	s.set(85, true)
	waitFor(t, 2*time.Second, func() bool {
		_, turnOff := p.commands()
		return turnOff >= 2 && !p.getOn()
	}, "plug not turned off after the battery reached the high threshold")

	s.set(75, false)

	c.Stop()
	c.Join()
	if err := c.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestControllerVerificationTimeoutIsTerminal(t *testing.T) {
	p := &fakePlug{}
	s := &fakeSensor{snapshot: battery.Snapshot{Percent: 50, IsPlugged: false}}
	c := newTestController(t, p, s, testSettings())
	c.Start()

	// The plug acknowledges commands but its state never changes.
	p.setStuck(true)
	s.set(15, false)

	c.Join()

	err := c.Err()
	if !apperrors.IsInteractionError(err) {
		t.Fatalf("Err() = %v, want InteractionError", err)
	}
	if !c.ConnectionLost() {
		t.Error("connection-lost flag not set")
	}
	if c.IsRunning() {
		t.Error("IsRunning() = true after the loop died")
	}
	if got := c.State(); got != StateStopped {
		t.Errorf("State() = %v, want %v", got, StateStopped)
	}

	// Once the connection is lost, stop must not drive the plug again.
	_, turnOffBefore := p.commands()
	c.Stop()
	_, turnOffAfter := p.commands()
	if turnOffAfter != turnOffBefore {
		t.Errorf("stop after a lost connection issued %d extra turn-off commands", turnOffAfter-turnOffBefore)
	}
}

func TestControllerStopDuringCycleLetsVerificationFinish(t *testing.T) {
	p := &fakePlug{}
	s := &fakeSensor{snapshot: battery.Snapshot{Percent: 50, IsPlugged: false}}
	settings := testSettings()
	settings.StateChangeTimeout = 2 * time.Second
	c := newTestController(t, p, s, settings)
	c.Start()

	p.setStuck(true)
	s.set(15, false)
	waitFor(t, 2*time.Second, func() bool {
		turnOn, _ := p.commands()
		return turnOn >= 1
	}, "turn-on command never sent")

	// Stop lands while verification is polling. The in-flight cycle is not
	// preempted: the loop is still alive until verification resolves.
	c.Stop()
	if !c.IsRunning() {
		t.Error("loop exited before the in-flight decision cycle completed")
	}

	// The plug finally reaches the commanded state, verification succeeds,
	// and only then does the loop observe the stop request.
	p.setOn(true)
	c.Join()
	if err := c.Err(); err != nil {
		t.Errorf("Err() = %v, want nil after a verification that completed", err)
	}
}

func TestControllerHealthCheckFailureIsTerminal(t *testing.T) {
	p := &fakePlug{}
	s := &fakeSensor{snapshot: battery.Snapshot{Percent: 50, IsPlugged: false}}
	c := newTestController(t, p, s, testSettings())
	c.Start()

	p.setIsOnErr(errors.New("connection reset by peer"))
	c.Join()

	if err := c.Err(); !errors.Is(err, apperrors.ErrConnectionLost) {
		t.Errorf("Err() = %v, want ErrConnectionLost", err)
	}
	if !c.ConnectionLost() {
		t.Error("connection-lost flag not set after a failed health check")
	}
	_, turnOff := p.commands()
	if turnOff != 1 {
		t.Errorf("turn-off commands = %d, want 1 (construction only, shutdown suppressed)", turnOff)
	}
}

func TestControllerStopIsIdempotent(t *testing.T) {
	p := &fakePlug{}
	s := &fakeSensor{snapshot: battery.Snapshot{Percent: 50, IsPlugged: false}}
	c := newTestController(t, p, s, testSettings())
	c.Start()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Stop()
		}()
	}
	wg.Wait()
	c.Join()

	_, turnOff := p.commands()
	if turnOff != 2 {
		t.Errorf("turn-off commands = %d, want 2 (construction + one shutdown)", turnOff)
	}

	c.Stop()
	_, turnOff = p.commands()
	if turnOff != 2 {
		t.Errorf("turn-off commands after a late stop = %d, want 2", turnOff)
	}
	if err := c.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestControllerSensorFailureStopsLoop(t *testing.T) {
	p := &fakePlug{}
	s := &fakeSensor{snapshot: battery.Snapshot{Percent: 50, IsPlugged: false}}
	c := newTestController(t, p, s, testSettings())
	c.Start()

	s.mu.Lock()
	s.err = apperrors.NewStatusCheckError(apperrors.FieldACPowerCable, nil)
	s.mu.Unlock()

	c.Join()
	if err := c.Err(); !apperrors.IsStatusCheckError(err) {
		t.Errorf("Err() = %v, want StatusCheckError", err)
	}
	// The plug itself is healthy, so the shutdown turn-off still goes out.
	_, turnOff := p.commands()
	if turnOff != 2 {
		t.Errorf("turn-off commands = %d, want 2", turnOff)
	}
}

func TestControllerErrNilWhileRunning(t *testing.T) {
	p := &fakePlug{}
	s := &fakeSensor{snapshot: battery.Snapshot{Percent: 50, IsPlugged: false}}
	c := newTestController(t, p, s, testSettings())
	c.Start()

	if err := c.Err(); err != nil {
		t.Errorf("Err() = %v while running, want nil", err)
	}
	if !c.IsRunning() {
		t.Error("IsRunning() = false right after Start()")
	}

	c.Stop()
	c.Join()
	if c.IsRunning() {
		t.Error("IsRunning() = true after Join()")
	}
}

func TestFailPropagationModes(t *testing.T) {
	t.Run("deferred stores the error", func(t *testing.T) {
		p := &fakePlug{}
		c := bareController(p, &fakeSensor{}, testSettings())
		boom := errors.New("boom")

		c.fail(boom)
		if c.err != boom {
			t.Errorf("captured error = %v, want %v", c.err, boom)
		}
		select {
		case <-c.finished:
		default:
			t.Error("stop not requested by fail()")
		}
	})

	t.Run("immediate panics", func(t *testing.T) {
		p := &fakePlug{}
		c := bareController(p, &fakeSensor{}, testSettings())
		c.deferErrors = false
		boom := errors.New("boom")

		defer func() {
			recovered := recover()
			if recovered == nil {
				t.Fatal("fail() did not panic in immediate mode")
			}
			if recovered != boom {
				t.Errorf("panic value = %v, want %v", recovered, boom)
			}
		}()
		c.fail(boom)
	})
}

func TestControllerStateString(t *testing.T) {
	states := map[ControllerState]string{
		StateInitializing:  "initializing",
		StateRunning:       "running",
		StateStopRequested: "stop requested",
		StateStopped:       "stopped",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
