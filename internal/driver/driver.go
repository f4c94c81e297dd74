// Package driver starts and signals the supervised child process.
package driver

import (
	"errors"
	"time"
)

// State represents the lifecycle state of the child process.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// ErrNotStarted is returned when waiting on a process that never started.
var ErrNotStarted = errors.New("process not started")

// ProcessInfo holds runtime information about the child.
type ProcessInfo struct {
	PID       int
	State     State
	StartedAt time.Time
	ExitCode  int
	Error     string
}
