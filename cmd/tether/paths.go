package main

import (
	"os"
	"path/filepath"
)

// tetherHome returns the path to the tether home directory (~/.tether).
// TETHER_HOME overrides it.
func tetherHome() (string, error) {
	if dir := os.Getenv("TETHER_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tether"), nil
}

func defaultSocketPath() string {
	dir, err := tetherHome()
	if err != nil {
		return "/tmp/tether.sock"
	}
	return filepath.Join(dir, "tether.sock")
}

func auditLogPath(home string) string {
	return filepath.Join(home, "audit.log")
}
