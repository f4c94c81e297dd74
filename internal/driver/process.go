package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Config describes how to launch the child.
type Config struct {
	Command    string
	Args       []string
	Env        []string
	WorkingDir string
}

// Process is the handle to a running child. Its stdout and stderr are
// exposed as pipe readers for the relay; the pipes are plain os.Pipe pairs
// so reaping the child never waits on output being consumed.
type Process struct {
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	stdout    *os.File
	stderr    *os.File
	done      chan struct{}

	mu       sync.Mutex
	state    State
	exitCode int
	exitErr  string
}

// Spawn starts the child in its own process group and returns once it is
// running. A missing or non-executable command is reported here.
func Spawn(cfg Config) (*Process, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("no command configured")
	}

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = cfg.Env
	if cfg.WorkingDir != "" {
		cmd.Dir = cfg.WorkingDir
	}
	cmd.Stdout = outW
	cmd.Stderr = errW
	// Own process group so Stop reaches anything the child forks
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	startErr := cmd.Start()
	// The child holds its own copies of the write ends now
	outW.Close()
	errW.Close()
	if startErr != nil {
		outR.Close()
		errR.Close()
		return nil, fmt.Errorf("starting process: %w", startErr)
	}

	p := &Process{
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		stdout:    outR,
		stderr:    errR,
		done:      make(chan struct{}),
		state:     StateRunning,
	}
	go p.reap()
	return p, nil
}

func (p *Process) reap() {
	err := p.cmd.Wait()

	p.mu.Lock()
	if p.state == StateStopping {
		p.state = StateStopped
	} else {
		p.state = StateFailed
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			p.exitCode = exitErr.ExitCode()
		} else {
			p.exitCode = -1
		}
		p.exitErr = err.Error()
	}
	p.mu.Unlock()

	close(p.done)
}

// PID returns the child's process id.
func (p *Process) PID() int {
	return p.pid
}

// StartedAt returns when the child was spawned.
func (p *Process) StartedAt() time.Time {
	return p.startedAt
}

// Stdout returns the read end of the child's stdout pipe.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// Stderr returns the read end of the child's stderr pipe.
func (p *Process) Stderr() io.Reader {
	return p.stderr
}

// CloseOutput closes both pipe readers. Blocked reads return immediately,
// which unsticks the relay when a grandchild still holds the write ends.
func (p *Process) CloseOutput() {
	p.stdout.Close()
	p.stderr.Close()
}

// Done is closed after the child has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Alive is the liveness probe: the child has not been reaped and signal 0
// is still deliverable to its pid. It never blocks.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
	}
	err := unix.Kill(p.pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Info returns current process state and metadata.
func (p *Process) Info() ProcessInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProcessInfo{
		PID:       p.pid,
		State:     p.state,
		StartedAt: p.startedAt,
		ExitCode:  p.exitCode,
		Error:     p.exitErr,
	}
}

// Wait blocks until the child exits and returns its exit code. A child
// killed by a signal reports -1.
func (p *Process) Wait() (int, error) {
	if p == nil || p.done == nil {
		return -1, ErrNotStarted
	}
	<-p.done

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, nil
}

// Stop sends SIGTERM to the child's process group, waits up to timeout,
// then sends SIGKILL.
func (p *Process) Stop(ctx context.Context, timeout time.Duration) error {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return nil
	}
	p.state = StateStopping
	p.mu.Unlock()

	_ = unix.Kill(-p.pid, unix.SIGTERM)

	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		_ = unix.Kill(-p.pid, unix.SIGKILL)
	case <-ctx.Done():
		_ = unix.Kill(-p.pid, unix.SIGKILL)
	}

	// Reaping after SIGKILL can still stall on an unkillable child
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("process %d did not exit after SIGKILL", p.pid)
	}
	return ctx.Err()
}
