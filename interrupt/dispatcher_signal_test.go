// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

//go:build !windows

package interrupt

import (
	"os"
	"syscall"
	"testing"
	"time"
)

// Delivers a real SIGTERM to the test process and expects the dispatcher
// to catch it before the default handler would kill us.
func TestDispatcherCatchesRealSignal(t *testing.T) {
	invoked := make(chan struct{}, 1)
	d, err := NewDispatcher(func() {
		select {
		case invoked <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	defer d.Close()

	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("FindProcess() error = %v", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("Signal(SIGTERM) error = %v", err)
	}

	select {
	case <-invoked:
	case <-time.After(2 * time.Second):
		t.Fatal("exit function not invoked after SIGTERM")
	}
}
