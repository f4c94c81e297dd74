package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/benaskins/tether/internal/audit"
	"github.com/benaskins/tether/internal/envfile"
	"github.com/benaskins/tether/internal/secrets"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the environment script the backend would get",
	Long: "Resolve the configured keys from the secret source and print the env file.\n" +
		"With --write, also write it to env_file as tether up does.",
	Args: cobra.NoArgs,
	RunE: runEnv,
}

func init() {
	envCmd.Flags().Bool("write", false, "write the env file instead of printing it")
	rootCmd.AddCommand(envCmd)
}

func runEnv(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, auditLog, err := openSecretStore()
	if err != nil {
		return err
	}
	defer auditLog.Close()

	vars, err := envfile.Resolve(store.WithTrigger("manual"), cfg.EnvKeys)
	if err != nil {
		return err
	}

	if write, _ := cmd.Flags().GetBool("write"); !write {
		_, err := os.Stdout.Write(envfile.Render(vars))
		return err
	}

	writeErr := envfile.Materialize(cfg.EnvFile, vars, false)
	entry := audit.Entry{
		Action:  audit.ActionEnvWrite,
		Keys:    vars.Keys(),
		Path:    cfg.EnvFile,
		Actor:   "cli",
		Trigger: "manual",
	}
	if writeErr != nil {
		entry.Error = writeErr.Error()
	}
	auditLog.Log(entry)
	if writeErr != nil {
		return writeErr
	}
	fmt.Printf("wrote %d variables to %s\n", len(vars), cfg.EnvFile)
	return nil
}

// openSecretStore opens the configured secret source wrapped with CLI
// audit logging. The returned logger may be nil if the audit log cannot be
// opened; it is safe to use either way.
func openSecretStore() (*secrets.AuditedStore, *audit.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	inner, err := secrets.Open(cfg.Secrets.Source, cfg.Secrets.Path)
	if err != nil {
		return nil, nil, err
	}

	var auditLog *audit.Logger
	if home, err := tetherHome(); err == nil {
		if err := os.MkdirAll(home, 0700); err == nil {
			auditLog, _ = audit.NewLogger(auditLogPath(home))
		}
	}
	return secrets.NewAuditedStore(inner, auditLog, "cli"), auditLog, nil
}
