package process

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

// State represents the lifecycle state of a supervised process slot.
type State string

// Process states.
const (
	StateIdle     State = "idle"     // Not running
	StateStarting State = "starting" // Being started
	StateRunning  State = "running"  // Active
	StateStopping State = "stopping" // Being stopped
	StateExited   State = "exited"   // Terminated on its own
)

// ExitStatus describes how a subprocess terminated.
type ExitStatus struct {
	Code   int    // exit code, or 128+signal when killed by a signal
	Signal string // signal name when terminated by a signal
	Err    error  // wait error that was not a plain exit status
}

// Success reports whether the process exited cleanly.
func (e ExitStatus) Success() bool {
	return e.Code == 0 && e.Signal == "" && e.Err == nil
}

// String renders the status as a user facing message.
func (e ExitStatus) String() string {
	if e.Signal != "" {
		return "Process terminated by signal " + e.Signal
	}
	if e.Err != nil && e.Code == 1 {
		return "Process failed: " + e.Err.Error()
	}
	return fmt.Sprintf("Process exited with code %d", e.Code)
}

// exitStatusFromError extracts the exit status from a Wait error.
func exitStatusFromError(err error) ExitStatus {
	if err == nil {
		return ExitStatus{}
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ExitStatus{Code: 1, Err: err}
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitStatus{Code: 128 + int(ws.Signal()), Signal: ws.Signal().String()}
	}
	return ExitStatus{Code: exitErr.ExitCode()}
}
