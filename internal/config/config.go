package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where tether looks for its config when --config is not given.
const DefaultPath = "tether.yaml"

var envKeyRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DefaultEnvKeys are the secrets exported to the child when env_keys is unset.
var DefaultEnvKeys = []string{
	"BOT_TOKEN",
	"CHAT_ID",
	"ARGO_AUTH",
	"ARGO_DOMAIN",
	"NEZHA_KEY",
	"NEZHA_PORT",
	"NEZHA_SERVER",
}

// Config holds supervisor configuration loaded from tether.yaml.
type Config struct {
	Title           string   `yaml:"title,omitempty"`
	Command         Command  `yaml:"command"`
	Deps            Deps     `yaml:"deps,omitempty"`
	EnvFile         string   `yaml:"env_file,omitempty"`
	EnvKeys         []string `yaml:"env_keys,omitempty"`
	Secrets         Secrets  `yaml:"secrets,omitempty"`
	RefreshInterval Duration `yaml:"refresh_interval,omitempty"`
	StopTimeout     Duration `yaml:"stop_timeout,omitempty"`
	Restart         Restart  `yaml:"restart,omitempty"`
	LogLines        int      `yaml:"log_lines,omitempty"`
	Media           []string `yaml:"media,omitempty"`
	APIAddr         string   `yaml:"api_addr,omitempty"`
	WatchSecrets    bool     `yaml:"watch_secrets,omitempty"`
}

type Command struct {
	Interpreter      string `yaml:"interpreter,omitempty"` // empty runs the script directly
	Script           string `yaml:"script"`
	WorkingDir       string `yaml:"working_dir,omitempty"`
	EnsureExecutable bool   `yaml:"ensure_executable,omitempty"`
}

// Deps is the one-time dependency install run before the first launch.
type Deps struct {
	Command string   `yaml:"command,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

type Secrets struct {
	Source string `yaml:"source,omitempty"` // "toml" | "keychain" | "env"
	Path   string `yaml:"path,omitempty"`   // toml only
}

type Restart struct {
	Delay       Duration `yaml:"delay,omitempty"`
	MaxDelay    Duration `yaml:"max_delay,omitempty"`
	MaxAttempts int      `yaml:"max_attempts,omitempty"` // 0 means unlimited
	ResetAfter  Duration `yaml:"reset_after,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling from strings like "10s", "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Default returns the configuration used when no file exists: run
// `python app.py` from the current directory after a one-time
// `pip install -r requirements.txt`.
func Default() *Config {
	return &Config{
		Title: "tether",
		Command: Command{
			Interpreter:      "python",
			Script:           "app.py",
			WorkingDir:       ".",
			EnsureExecutable: true,
		},
		Deps: Deps{
			Command: "pip install -r requirements.txt",
			Timeout: Duration{10 * time.Minute},
		},
		EnvFile: "./env.sh",
		EnvKeys: append([]string(nil), DefaultEnvKeys...),
		Secrets: Secrets{
			Source: "toml",
			Path:   ".streamlit/secrets.toml",
		},
		RefreshInterval: Duration{2 * time.Second},
		StopTimeout:     Duration{10 * time.Second},
		Restart: Restart{
			Delay:       Duration{2 * time.Second},
			MaxDelay:    Duration{time.Minute},
			MaxAttempts: 5,
			ResetAfter:  Duration{30 * time.Second},
		},
		LogLines: 2000,
		Media:    []string{"./meinv.mp4", "./mv2.mp4", "./mv.jpg"},
	}
}

// Load reads a YAML config file from path over the defaults. If the file
// does not exist, it returns the defaults and no error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Command.Script == "" {
		return fmt.Errorf("command.script is required")
	}
	if c.EnvFile == "" {
		return fmt.Errorf("env_file is required")
	}

	seen := make(map[string]bool, len(c.EnvKeys))
	for _, k := range c.EnvKeys {
		if !envKeyRe.MatchString(k) {
			return fmt.Errorf("env_keys: %q is not a valid environment variable name", k)
		}
		if seen[k] {
			return fmt.Errorf("env_keys: %q listed twice", k)
		}
		seen[k] = true
	}

	switch c.Secrets.Source {
	case "toml":
		if c.Secrets.Path == "" {
			return fmt.Errorf("secrets.path is required for toml secrets")
		}
	case "keychain", "env":
		// ok
	default:
		return fmt.Errorf("secrets.source must be \"toml\", \"keychain\", or \"env\", got %q", c.Secrets.Source)
	}

	if c.RefreshInterval.Duration <= 0 {
		return fmt.Errorf("refresh_interval must be positive")
	}
	if c.StopTimeout.Duration <= 0 {
		return fmt.Errorf("stop_timeout must be positive")
	}
	if c.Restart.Delay.Duration <= 0 {
		return fmt.Errorf("restart.delay must be positive")
	}
	if c.Restart.MaxDelay.Duration < c.Restart.Delay.Duration {
		return fmt.Errorf("restart.max_delay must not be shorter than restart.delay")
	}
	if c.Restart.MaxAttempts < 0 {
		return fmt.Errorf("restart.max_attempts must not be negative")
	}
	if c.LogLines <= 0 {
		return fmt.Errorf("log_lines must be positive")
	}
	return nil
}

// String returns the command line as it would be typed.
func (c Command) String() string {
	if c.Interpreter == "" {
		return c.Script
	}
	return c.Interpreter + " " + c.Script
}

// Argv returns the executable and arguments used to launch the child.
func (c *Config) Argv() (string, []string) {
	if c.Command.Interpreter == "" {
		script := c.Command.Script
		if !strings.Contains(script, "/") {
			// Relative to the working directory, not looked up in PATH
			script = "./" + script
		}
		return script, nil
	}
	return c.Command.Interpreter, []string{c.Command.Script}
}
