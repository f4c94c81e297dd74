package supervisor

import (
	"context"
	"time"
)

// Cycle is one pass of the refresh loop: check liveness, launch in the
// background if the child is down and the backoff has elapsed, and return
// the status to render. It does not wait for the launch; the next cycle
// observes its outcome.
func (s *Supervisor) Cycle(ctx context.Context) Status {
	s.Check()

	st := s.state
	st.mu.Lock()
	due := !st.closed && !st.starting && st.handle == nil &&
		(st.phase == PhaseInit || st.phase == PhaseStopped) &&
		!time.Now().Before(st.nextAttempt)
	if due {
		// Claimed here so an overlapping cycle cannot launch twice
		st.phase = PhaseStarting
		s.launches.Add(1)
	}
	st.mu.Unlock()

	if due {
		go s.launch()
	}
	return s.Status(ctx)
}
