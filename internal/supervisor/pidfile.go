package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/benaskins/tether/internal/driver"
)

// pidFile persists the child's identity so the next session can reap a
// child left behind by a supervisor that crashed.
type pidFile struct {
	path string
	mu   sync.Mutex
}

// childRecord is the persisted state of the running child.
type childRecord struct {
	driver.Identity
	StartedAt int64 `json:"started_at,omitempty"` // Unix timestamp
}

func newPIDFile(dir string) *pidFile {
	return &pidFile{
		path: filepath.Join(dir, "state.json"),
	}
}

func (pf *pidFile) load() (*childRecord, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	data, err := os.ReadFile(pf.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var rec childRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	if rec.PID <= 0 {
		return nil, nil
	}
	return &rec, nil
}

func (pf *pidFile) record(id driver.Identity) error {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(pf.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(childRecord{Identity: id, StartedAt: time.Now().Unix()}, "", "  ")
	if err != nil {
		return err
	}
	tmpPath := pf.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, pf.path)
}

func (pf *pidFile) clear() error {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if err := os.Remove(pf.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ReapStale terminates a child recorded by a previous session if it is
// still running and its pid has not been reused. It returns the pid it
// terminated, or 0.
func (s *Supervisor) ReapStale(ctx context.Context) (int, error) {
	if s.pids == nil {
		return 0, nil
	}
	rec, err := s.pids.load()
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, nil
	}
	if !rec.Matches() {
		s.logger.Info("stale pid file does not match a live backend", "pid", rec.PID, "command", rec.Command)
		return 0, s.pids.clear()
	}

	s.log.Systemf("terminating backend left by a previous session (pid %d)", rec.PID)
	s.logger.Warn("terminating stale backend", "pid", rec.PID, "command", rec.Command)

	signalGroup(rec.PID, unix.SIGTERM)
	if !waitGone(ctx, rec.Identity, s.cfg.StopTimeout.Duration) {
		signalGroup(rec.PID, unix.SIGKILL)
		if !waitGone(ctx, rec.Identity, 5*time.Second) {
			return rec.PID, fmt.Errorf("stale backend %d did not exit after SIGKILL", rec.PID)
		}
	}
	return rec.PID, s.pids.clear()
}

// signalGroup signals the process group led by pid, falling back to the
// process alone when it does not lead a group.
func signalGroup(pid int, sig unix.Signal) {
	if err := unix.Kill(-pid, sig); err != nil {
		_ = unix.Kill(pid, sig)
	}
}

// waitGone polls until the recorded process no longer matches.
func waitGone(ctx context.Context, id driver.Identity, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !id.Matches() {
			return true
		}
		select {
		case <-ctx.Done():
			return !id.Matches()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return !id.Matches()
}
