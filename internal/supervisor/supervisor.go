// Package supervisor keeps exactly one backend child alive.
//
// The render loop calls Cycle on a timer. Each cycle runs the liveness
// check, launches the child in the background when it is not running and
// the restart backoff allows, and returns a Status to draw. The child's
// output reaches the log buffer through the relay.
package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/benaskins/tether/internal/audit"
	"github.com/benaskins/tether/internal/config"
	"github.com/benaskins/tether/internal/envfile"
	"github.com/benaskins/tether/internal/logbuf"
	"github.com/benaskins/tether/internal/procstat"
	"github.com/benaskins/tether/internal/secrets"
)

// ErrClosed is returned by operations on a supervisor that has been shut
// down.
var ErrClosed = errors.New("supervisor is shut down")

// relayDrainTimeout bounds how long the monitor waits for the relay to
// deliver a dead child's final output.
const relayDrainTimeout = 500 * time.Millisecond

// Supervisor owns the session: the shared State, the log buffer, and the
// child's lifecycle.
type Supervisor struct {
	cfg     *config.Config
	secrets secrets.Store
	audit   *audit.Logger
	pids    *pidFile
	logger  *slog.Logger
	log     *logbuf.Buffer

	ctx    context.Context // session context, cancelled by Shutdown
	cancel context.CancelFunc

	state    *State
	backoff  *backoff.ExponentialBackOff // guarded by state.mu
	launches sync.WaitGroup
}

// Option configures the supervisor.
type Option func(*Supervisor)

// WithSecrets sets the store environment variables are resolved from.
// Without one, Materialize writes every key with an empty value.
func WithSecrets(s secrets.Store) Option {
	return func(sup *Supervisor) {
		sup.secrets = s
	}
}

// WithAudit records env file writes to the audit log.
func WithAudit(l *audit.Logger) Option {
	return func(sup *Supervisor) {
		sup.audit = l
	}
}

// WithStateDir enables the PID file used to reap a child left behind by a
// previous session.
func WithStateDir(dir string) Option {
	return func(sup *Supervisor) {
		sup.pids = newPIDFile(dir)
	}
}

// WithLogger sets the slog logger for supervisor diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(sup *Supervisor) {
		sup.logger = l
	}
}

// New creates a supervisor for cfg. Nothing is launched until the first
// Cycle or Start.
func New(cfg *config.Config, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		cfg:    cfg,
		logger: slog.With("component", "supervisor"),
		log:    logbuf.New(cfg.LogLines),
		ctx:    ctx,
		cancel: cancel,
		state:  &State{phase: PhaseInit},
	}
	for _, opt := range opts {
		opt(s)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.Restart.Delay.Duration
	b.MaxInterval = cfg.Restart.MaxDelay.Duration
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0
	b.Reset()
	s.backoff = b

	return s
}

// Log returns the session log buffer.
func (s *Supervisor) Log() *logbuf.Buffer {
	return s.log
}

// Config returns the configuration the supervisor was created with.
func (s *Supervisor) Config() *config.Config {
	return s.cfg
}

// Materialize resolves the configured keys, exports them into this
// process's environment and writes the env file. It reports whether the
// rendered file differs from the last one this session wrote. A write
// failure is returned to the caller.
func (s *Supervisor) Materialize(trigger string) (bool, error) {
	store := s.secrets
	if store == nil {
		store = secrets.NewMemoryStore()
	}
	if as, ok := store.(*secrets.AuditedStore); ok {
		store = as.WithTrigger(trigger)
	}

	vars, err := envfile.Resolve(store, s.cfg.EnvKeys)
	if err != nil {
		return false, fmt.Errorf("resolving environment: %w", err)
	}

	rendered := envfile.Render(vars)
	writeErr := envfile.Materialize(s.cfg.EnvFile, vars, true)

	entry := audit.Entry{
		Action:  audit.ActionEnvWrite,
		Keys:    vars.Keys(),
		Path:    s.cfg.EnvFile,
		Actor:   "supervisor",
		Trigger: trigger,
	}
	if writeErr != nil {
		entry.Error = writeErr.Error()
	}
	if err := s.audit.Log(entry); err != nil {
		s.logger.Warn("audit log write failed", "error", err)
	}

	if writeErr != nil {
		s.log.Systemf("failed to write %s: %v", s.cfg.EnvFile, writeErr)
		return false, writeErr
	}

	s.state.mu.Lock()
	changed := !bytes.Equal(rendered, s.state.envRendered)
	s.state.envRendered = rendered
	s.state.mu.Unlock()

	s.log.Systemf("wrote %d variables to %s", len(vars), s.cfg.EnvFile)
	s.logger.Info("environment materialized", "path", s.cfg.EnvFile, "keys", len(vars), "trigger", trigger)
	return changed, nil
}

// Status returns the current status. When the child is running its
// resource usage is sampled.
func (s *Supervisor) Status(ctx context.Context) Status {
	st := s.state
	st.mu.Lock()
	level, msg := st.banner(s.cfg.Restart.MaxAttempts)
	status := Status{
		Title:        s.cfg.Title,
		Phase:        st.phase,
		Running:      st.running,
		Attempts:     st.attempts,
		Restarts:     st.restarts,
		LastExitCode: st.lastExitCode,
		LastError:    st.lastError,
		Level:        level,
		Message:      msg,
	}
	if st.handle != nil {
		status.PID = st.handle.proc.PID()
		status.StartedAt = st.handle.proc.StartedAt()
		status.Uptime = time.Since(status.StartedAt).Truncate(time.Second).String()
	}
	if st.phase == PhaseStopped && !st.nextAttempt.IsZero() {
		if wait := time.Until(st.nextAttempt); wait > 0 {
			status.RetryIn = wait.Round(100 * time.Millisecond).String()
		}
	}
	st.mu.Unlock()

	status.LastSeq = s.log.Seq()

	if status.Running && status.PID > 0 {
		if u, err := procstat.Sample(ctx, status.PID); err == nil {
			status.Usage = &u
		} else {
			s.logger.Debug("sampling child usage failed", "pid", status.PID, "error", err)
		}
	}
	return status
}

// Restart stops the child, if any, and clears the failure count so the
// next cycle launches immediately. It is the operator's retry, including
// out of FAILED.
func (s *Supervisor) Restart(ctx context.Context) error {
	st := s.state
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return ErrClosed
	}
	st.attempts = 0
	st.lastError = ""
	st.nextAttempt = time.Time{}
	s.backoff.Reset()
	if st.phase == PhaseFailed {
		st.phase = PhaseStopped
	}
	h := st.handle
	if h != nil {
		st.expectedStop = true
	}
	st.mu.Unlock()

	s.log.Systemf("restart requested")
	s.logger.Info("restart requested")

	if h == nil {
		return nil
	}
	if err := h.proc.Stop(ctx, s.cfg.StopTimeout.Duration); err != nil {
		return fmt.Errorf("stopping backend: %w", err)
	}
	s.Check()
	return nil
}

// Shutdown ends the session: it cancels any launch in progress, stops the
// child (SIGTERM to its process group, SIGKILL after timeout), and waits
// for the output relay to finish.
func (s *Supervisor) Shutdown(timeout time.Duration) error {
	st := s.state
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return nil
	}
	st.closed = true
	st.expectedStop = true
	h := st.handle
	st.mu.Unlock()

	s.cancel()

	var stopErr error
	if h != nil {
		s.logger.Info("stopping backend", "pid", h.proc.PID())
		stopErr = h.proc.Stop(context.Background(), timeout)
	}

	// A launch that was mid-spawn stops its own child once it sees closed
	s.launches.Wait()
	s.Check()

	st.mu.Lock()
	h = st.handle
	st.mu.Unlock()
	if h != nil {
		// Reaped too late for the check above; drop it regardless
		h.proc.CloseOutput()
		<-h.relay.Done()
	}

	if s.pids != nil {
		if err := s.pids.clear(); err != nil {
			s.logger.Warn("clearing pid file failed", "error", err)
		}
	}
	if stopErr != nil {
		return fmt.Errorf("stopping backend: %w", stopErr)
	}
	return nil
}
