package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tether.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `title: Honey-Girl
command:
  interpreter: python3
  script: main.py
  working_dir: /srv/app
deps:
  command: pip install -r requirements.txt
  timeout: 2m
env_keys: [BOT_TOKEN, CHAT_ID]
secrets:
  source: env
refresh_interval: 500ms
restart:
  delay: 1s
  max_delay: 30s
  max_attempts: 3
api_addr: 127.0.0.1:9090
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Title != "Honey-Girl" {
		t.Errorf("Title = %q, want %q", cfg.Title, "Honey-Girl")
	}
	if cfg.Command.Interpreter != "python3" || cfg.Command.Script != "main.py" {
		t.Errorf("Command = %+v", cfg.Command)
	}
	if cfg.Deps.Timeout.Duration != 2*time.Minute {
		t.Errorf("Deps.Timeout = %v, want 2m", cfg.Deps.Timeout.Duration)
	}
	if len(cfg.EnvKeys) != 2 || cfg.EnvKeys[1] != "CHAT_ID" {
		t.Errorf("EnvKeys = %v", cfg.EnvKeys)
	}
	if cfg.RefreshInterval.Duration != 500*time.Millisecond {
		t.Errorf("RefreshInterval = %v, want 500ms", cfg.RefreshInterval.Duration)
	}
	if cfg.Restart.MaxAttempts != 3 {
		t.Errorf("Restart.MaxAttempts = %d, want 3", cfg.Restart.MaxAttempts)
	}
	if cfg.APIAddr != "127.0.0.1:9090" {
		t.Errorf("APIAddr = %q, want %q", cfg.APIAddr, "127.0.0.1:9090")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	cfg, err := Load("/nonexistent/path/tether.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.EnvFile != "./env.sh" {
		t.Errorf("EnvFile = %q, want ./env.sh", cfg.EnvFile)
	}
	if len(cfg.EnvKeys) != len(DefaultEnvKeys) {
		t.Errorf("EnvKeys = %v, want defaults", cfg.EnvKeys)
	}
	if cfg.Command.Interpreter != "python" || cfg.Command.Script != "app.py" {
		t.Errorf("Command = %+v, want python app.py", cfg.Command)
	}
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `command:
  script: server.py
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Command.Script != "server.py" {
		t.Errorf("Script = %q, want server.py", cfg.Command.Script)
	}
	if cfg.Command.Interpreter != "python" {
		t.Errorf("Interpreter = %q, want default python", cfg.Command.Interpreter)
	}
	if cfg.RefreshInterval.Duration != 2*time.Second {
		t.Errorf("RefreshInterval = %v, want default 2s", cfg.RefreshInterval.Duration)
	}
}

func TestLoadCommentsOnly(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "# command:\n#   script: x.py\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Command.Script != "app.py" {
		t.Errorf("Script = %q, want default", cfg.Command.Script)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "refresh_interval: soon\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("expected invalid duration error, got %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no script", func(c *Config) { c.Command.Script = "" }, "command.script"},
		{"no env file", func(c *Config) { c.EnvFile = "" }, "env_file"},
		{"bad key", func(c *Config) { c.EnvKeys = []string{"BAD-KEY"} }, "not a valid"},
		{"duplicate key", func(c *Config) { c.EnvKeys = []string{"A", "A"} }, "listed twice"},
		{"bad source", func(c *Config) { c.Secrets.Source = "vault" }, "secrets.source"},
		{"toml without path", func(c *Config) { c.Secrets.Path = "" }, "secrets.path"},
		{"zero refresh", func(c *Config) { c.RefreshInterval.Duration = 0 }, "refresh_interval"},
		{"max below delay", func(c *Config) { c.Restart.MaxDelay.Duration = time.Millisecond }, "max_delay"},
		{"negative attempts", func(c *Config) { c.Restart.MaxAttempts = -1 }, "max_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestArgv(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cmd, args := cfg.Argv()
	if cmd != "python" || len(args) != 1 || args[0] != "app.py" {
		t.Errorf("Argv = %q %v, want python [app.py]", cmd, args)
	}

	cfg.Command.Interpreter = ""
	cmd, args = cfg.Argv()
	if cmd != "./app.py" || len(args) != 0 {
		t.Errorf("Argv = %q %v, want ./app.py []", cmd, args)
	}

	cfg.Command.Script = "/opt/bin/server"
	if cmd, _ = cfg.Argv(); cmd != "/opt/bin/server" {
		t.Errorf("Argv = %q, want absolute path untouched", cmd)
	}
}
