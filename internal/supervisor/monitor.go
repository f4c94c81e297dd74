package supervisor

import (
	"fmt"
	"time"
)

// Check is the liveness monitor, run once per cycle. It never blocks on a
// live child. When the tracked child has died it waits briefly for the
// relay to deliver the child's last output, then records the exit so the
// termination line follows that output in the log.
func (s *Supervisor) Check() Report {
	st := s.state
	st.mu.Lock()
	h := st.handle
	st.mu.Unlock()

	if h == nil {
		return Report{}
	}
	if h.proc.Alive() {
		st.mu.Lock()
		if st.handle == h {
			st.running = true
		}
		st.mu.Unlock()
		return Report{Running: true, PID: h.proc.PID()}
	}

	select {
	case <-h.relay.Done():
	case <-time.After(relayDrainTimeout):
		s.logger.Debug("relay still open after child exit, closing pipes", "pid", h.proc.PID())
	}
	h.proc.CloseOutput()
	select {
	case <-h.proc.Done():
	case <-time.After(relayDrainTimeout):
	}
	info := h.proc.Info()
	uptime := time.Since(h.proc.StartedAt())

	st.mu.Lock()
	if st.handle != h {
		// Another check already collected this child
		st.mu.Unlock()
		return Report{}
	}
	st.handle = nil
	st.running = false
	st.lastExitCode = info.ExitCode

	var line string
	if info.ExitCode < 0 && info.Error != "" {
		line = fmt.Sprintf("backend exited: %s", info.Error)
	} else {
		line = fmt.Sprintf("backend exited (exit code %d)", info.ExitCode)
	}

	expected := st.expectedStop
	st.expectedStop = false
	gaveUp := false
	switch {
	case expected:
		st.phase = PhaseStopped
		st.nextAttempt = time.Time{}
	case uptime < s.cfg.Restart.ResetAfter.Duration:
		st.lastError = line
		gaveUp = s.recordFailureLocked()
	default:
		// A long-lived child earns a fresh restart budget
		st.attempts = 0
		s.backoff.Reset()
		st.phase = PhaseStopped
		st.nextAttempt = time.Time{}
	}
	attempts := st.attempts
	st.mu.Unlock()

	s.log.Systemf("%s", line)
	s.logger.Warn("backend exited", "pid", info.PID, "exit_code", info.ExitCode, "uptime", uptime.Truncate(time.Millisecond), "expected", expected)
	if gaveUp {
		s.logGiveUp(attempts)
	}

	if s.pids != nil {
		if err := s.pids.clear(); err != nil {
			s.logger.Warn("clearing pid file failed", "error", err)
		}
	}
	return Report{PID: info.PID, Exited: true, ExitCode: info.ExitCode}
}
