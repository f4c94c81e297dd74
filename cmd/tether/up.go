package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/benaskins/tether/internal/api"
	"github.com/benaskins/tether/internal/audit"
	"github.com/benaskins/tether/internal/config"
	"github.com/benaskins/tether/internal/secrets"
	"github.com/benaskins/tether/internal/supervisor"
	"github.com/benaskins/tether/internal/ui"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the backend and show the dashboard",
	Long: "Write secrets to the environment and env file, launch the backend, and keep\n" +
		"it running. Shows the terminal dashboard, or plain output when stdout is not\n" +
		"a terminal or --headless is given.",
	RunE: runUp,
}

var (
	upHeadless bool
	upAPIAddr  string
)

func init() {
	upCmd.Flags().BoolVar(&upHeadless, "headless", false, "print output instead of showing the dashboard")
	upCmd.Flags().StringVar(&upAPIAddr, "api-addr", "", "optional TCP address for the API (e.g. 127.0.0.1:9090)")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	home, err := tetherHome()
	if err != nil {
		return fmt.Errorf("resolving tether home: %w", err)
	}
	if err := os.MkdirAll(home, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", home, err)
	}

	headless := upHeadless || !term.IsTerminal(int(os.Stdout.Fd()))
	closeLog, err := setupLogging(home, headless)
	if err != nil {
		return err
	}
	defer closeLog()

	auditLog, err := audit.NewLogger(auditLogPath(home))
	if err != nil {
		slog.Warn("audit log unavailable", "error", err)
	}
	defer auditLog.Close()

	store, err := secrets.Open(cfg.Secrets.Source, cfg.Secrets.Path)
	if err != nil {
		return err
	}

	sup := supervisor.New(cfg,
		supervisor.WithSecrets(secrets.NewAuditedStore(store, auditLog, "supervisor")),
		supervisor.WithAudit(auditLog),
		supervisor.WithStateDir(home),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("tether starting", "config", configPath, "command", cfg.Command.String())

	if pid, err := sup.ReapStale(ctx); err != nil {
		slog.Warn("reaping stale backend failed", "pid", pid, "error", err)
	}

	if _, err := sup.Materialize("session_start"); err != nil {
		return fmt.Errorf("writing environment: %w", err)
	}

	defer func() {
		if err := sup.Shutdown(cfg.StopTimeout.Duration); err != nil {
			slog.Error("shutdown", "error", err)
		}
		slog.Info("tether stopped")
	}()

	srv := startAPI(ctx, sup, cfg)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		os.Remove(defaultSocketPath())
	}()

	if cfg.WatchSecrets && cfg.Secrets.Source == "toml" {
		go func() {
			if err := sup.WatchSecrets(ctx, cfg.Secrets.Path); err != nil {
				slog.Error("secrets watcher stopped", "error", err)
			}
		}()
	}

	if headless {
		return ui.RunHeadless(ctx, sup, os.Stdout, cfg.RefreshInterval.Duration)
	}
	return ui.Run(ctx, sup, ui.Options{
		Title:    cfg.Title,
		Interval: cfg.RefreshInterval.Duration,
		Media:    cfg.Media,
		MaxLines: cfg.LogLines,
	})
}

// startAPI serves the status API on the tether socket and, if configured,
// a TCP address. API failures are logged; the dashboard runs without it.
func startAPI(ctx context.Context, sup *supervisor.Supervisor, cfg *config.Config) *api.Server {
	srv := api.NewServer(sup, ctx)

	socketPath := defaultSocketPath()
	if err := os.MkdirAll(filepath.Dir(socketPath), 0700); err != nil {
		slog.Error("creating socket dir", "error", err)
	} else {
		go func() {
			if err := srv.ListenUnix(socketPath); err != nil {
				slog.Error("API server error", "error", err)
			}
		}()
	}

	addr := upAPIAddr
	if addr == "" {
		addr = cfg.APIAddr
	}
	if addr != "" {
		go func() {
			if err := srv.ListenTCP(addr); err != nil {
				slog.Error("TCP API error", "error", err)
			}
		}()
	}
	return srv
}

// setupLogging routes slog to stderr in headless mode and to
// ~/.tether/tether.log under the dashboard, which owns the terminal.
func setupLogging(home string, headless bool) (func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if !headless {
		f, err := os.OpenFile(filepath.Join(home, "tether.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		closeFn = func() { f.Close() }
	}

	level := slog.LevelInfo
	if os.Getenv("TETHER_DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return closeFn, nil
}
