package supervisor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watcherDebounce = 500 * time.Millisecond

// WatchSecrets watches the secrets file and, when it changes, rewrites the
// env file and restarts the child so it picks up the new values. Changes
// that leave the rendered env file identical do not restart. It blocks
// until ctx is cancelled.
func (s *Supervisor) WatchSecrets(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Editors replace files by rename, so watch the directory
	dir, name := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	s.logger.Info("watching secrets for changes", "path", path)

	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.logger.Debug("secrets file changed", "file", event.Name, "op", event.Op)

			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watcherDebounce, func() {
				s.reloadSecrets(ctx)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("file watcher error", "error", err)
		}
	}
}

func (s *Supervisor) reloadSecrets(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	changed, err := s.Materialize("secrets_changed")
	if err != nil {
		s.logger.Error("re-materializing environment failed", "error", err)
		return
	}
	if !changed {
		s.logger.Debug("secrets changed but environment is identical")
		return
	}
	s.log.Systemf("secrets changed, restarting backend")
	if err := s.Restart(ctx); err != nil {
		s.logger.Error("restart after secrets change failed", "error", err)
	}
}
