package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/benaskins/tether/internal/driver"
	"github.com/benaskins/tether/internal/logbuf"
	"github.com/benaskins/tether/internal/relay"
)

// Start runs the launch workflow on the calling goroutine: make the script
// executable, install dependencies once per session, spawn the child and
// start relaying its output. If the tracked child is alive or another
// launch is in flight, it does nothing. Failures are written to the log
// and returned; the next cycle retries.
func (s *Supervisor) Start(ctx context.Context) error {
	// Collect a child that died since the last cycle before deciding
	s.Check()

	st := s.state
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return ErrClosed
	}
	if st.handle != nil {
		alive := st.handle.proc.Alive()
		if alive {
			st.running = true
			st.phase = PhaseRunning
		}
		st.mu.Unlock()
		if alive {
			s.log.Systemf("backend already running, not starting again")
		}
		return nil
	}
	if st.starting {
		st.mu.Unlock()
		return nil
	}
	st.starting = true
	st.phase = PhaseStarting
	depsReady := st.depsReady
	st.mu.Unlock()

	defer func() {
		st.mu.Lock()
		st.starting = false
		st.mu.Unlock()
	}()

	if s.cfg.Command.EnsureExecutable {
		if err := s.ensureExecutable(); err != nil {
			return s.launchFailed(err)
		}
	}

	if s.cfg.Deps.Command != "" && !depsReady {
		if err := s.installDeps(ctx); err != nil {
			return s.launchFailed(err)
		}
	}

	return s.spawn()
}

// launch runs Start on the session context. The caller has already added
// it to s.launches while holding state.mu, so Shutdown cannot miss it.
func (s *Supervisor) launch() {
	defer s.launches.Done()
	if err := s.Start(s.ctx); err != nil {
		s.logger.Debug("launch attempt failed", "error", err)
	}
}

func (s *Supervisor) scriptPath() string {
	script := s.cfg.Command.Script
	if filepath.IsAbs(script) {
		return script
	}
	return filepath.Join(s.cfg.Command.WorkingDir, script)
}

// ensureExecutable adds the execute bits to the script, like chmod +x.
func (s *Supervisor) ensureExecutable() error {
	path := s.scriptPath()
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("making %s executable: %w", path, err)
	}
	if info.Mode().Perm()&0111 == 0111 {
		return nil
	}
	s.log.Systemf("making %s executable", path)
	if err := os.Chmod(path, info.Mode().Perm()|0111); err != nil {
		return fmt.Errorf("making %s executable: %w", path, err)
	}
	return nil
}

// installDeps runs the dependency command with output captured. On failure
// the captured output is written to the log below the error.
func (s *Supervisor) installDeps(ctx context.Context) error {
	s.setPhase(PhaseDepsPending)
	s.log.Systemf("installing dependencies: %s", s.cfg.Deps.Command)
	s.logger.Info("installing dependencies", "command", s.cfg.Deps.Command)

	timeout := s.cfg.Deps.Timeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", s.cfg.Deps.Command)
	cmd.Dir = s.cfg.Command.WorkingDir
	cmd.Env = os.Environ()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Do not hang on a grandchild that keeps the output pipes open
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		s.log.Systemf("dependency install failed: %v", err)
		if stdout.Len() > 0 {
			s.log.Systemf("dependency install stdout:")
			s.log.AppendBlock(logbuf.StreamStdout, stdout.String())
		}
		if stderr.Len() > 0 {
			s.log.Systemf("dependency install stderr:")
			s.log.AppendBlock(logbuf.StreamStderr, stderr.String())
		}
		return fmt.Errorf("installing dependencies: %w", err)
	}

	s.state.mu.Lock()
	s.state.depsReady = true
	s.state.phase = PhaseStarting
	s.state.mu.Unlock()

	s.log.Systemf("dependencies installed")
	return nil
}

func (s *Supervisor) spawn() error {
	name, args := s.cfg.Argv()
	s.log.Systemf("starting backend: %s", s.cfg.Command.String())

	proc, err := driver.Spawn(driver.Config{
		Command:    name,
		Args:       args,
		Env:        os.Environ(),
		WorkingDir: s.cfg.Command.WorkingDir,
	})
	if err != nil {
		return s.launchFailed(err)
	}

	s.log.Systemf("backend started (pid %d)", proc.PID())
	s.logger.Info("backend started", "pid", proc.PID())
	rel := relay.Start(proc.Stdout(), proc.Stderr(), s.log, s.logger)

	st := s.state
	st.mu.Lock()
	st.handle = &child{proc: proc, relay: rel}
	st.running = true
	st.phase = PhaseRunning
	st.lastError = ""
	st.nextAttempt = time.Time{}
	if st.spawned > 0 {
		st.restarts++
	}
	st.spawned++
	closed := st.closed
	st.mu.Unlock()

	if closed {
		// Shutdown raced the spawn
		st.mu.Lock()
		st.expectedStop = true
		st.mu.Unlock()
		proc.Stop(context.Background(), s.cfg.StopTimeout.Duration)
		return ErrClosed
	}

	if s.pids != nil {
		if err := s.pids.record(driver.IdentityOf(proc.PID(), name)); err != nil {
			s.logger.Warn("recording pid file failed", "error", err)
		}
	}
	return nil
}

// launchFailed records a failed launch attempt and schedules the next one.
func (s *Supervisor) launchFailed(err error) error {
	s.log.Systemf("failed to start backend: %v", err)
	s.logger.Error("launch failed", "error", err)

	st := s.state
	st.mu.Lock()
	st.running = false
	st.handle = nil
	st.lastError = err.Error()
	gaveUp := s.recordFailureLocked()
	attempts := st.attempts
	st.mu.Unlock()

	if gaveUp {
		s.logGiveUp(attempts)
	}
	return err
}

// recordFailureLocked counts a failed attempt and moves to STOPPED with
// the next backoff interval, or to FAILED once attempts are exhausted, in
// which case it returns true. Caller holds state.mu.
func (s *Supervisor) recordFailureLocked() bool {
	st := s.state
	st.attempts++
	if limit := s.cfg.Restart.MaxAttempts; limit > 0 && st.attempts >= limit {
		st.phase = PhaseFailed
		st.nextAttempt = time.Time{}
		return true
	}
	st.phase = PhaseStopped
	st.nextAttempt = time.Now().Add(s.backoff.NextBackOff())
	return false
}

func (s *Supervisor) logGiveUp(attempts int) {
	s.log.Systemf("backend failed %d times in a row, not retrying automatically", attempts)
	s.logger.Error("restart attempts exhausted", "attempts", attempts)
}

func (s *Supervisor) setPhase(p Phase) {
	s.state.mu.Lock()
	s.state.phase = p
	s.state.mu.Unlock()
}
