package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benaskins/tether/internal/secrets"
)

func TestWatchSecretsRestartsOnChange(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	cfg := testConfig(t, `echo "token=$BOT_TOKEN"; sleep 60`)
	cfg.EnvKeys = []string{"BOT_TOKEN"}
	path := filepath.Join(cfg.Command.WorkingDir, "secrets.toml")
	os.WriteFile(path, []byte("BOT_TOKEN = \"t1\"\n"), 0600)

	s := newTestSupervisor(t, cfg, WithSecrets(secrets.NewFileStore(path)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := s.Materialize("session_start"); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return countLines(s, "token=t1") == 1 }, "first child")

	go s.WatchSecrets(ctx, path)
	time.Sleep(100 * time.Millisecond)

	// Same values: no restart
	os.WriteFile(path, []byte("BOT_TOKEN = \"t1\"\n"), 0600)
	time.Sleep(watcherDebounce + 300*time.Millisecond)
	if countLines(s, "secrets changed, restarting backend") != 0 {
		t.Fatal("expected no restart for identical secrets")
	}

	os.WriteFile(path, []byte("BOT_TOKEN = \"t2\"\n"), 0600)
	waitFor(t, 5*time.Second, func() bool {
		return countLines(s, "secrets changed, restarting backend") == 1
	}, "restart after secrets change")

	s.Cycle(ctx)
	waitFor(t, 5*time.Second, func() bool { return countLines(s, "token=t2") == 1 }, "child with new secret")

	data, _ := os.ReadFile(cfg.EnvFile)
	if string(data) != "#!/bin/bash\nexport BOT_TOKEN='t2'\n" {
		t.Errorf("unexpected env file:\n%s", data)
	}
}
