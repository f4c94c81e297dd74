package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/benaskins/tether/internal/config"
)

type checkResult struct {
	Path    string `json:"path"`
	Command string `json:"command,omitempty"`
	Keys    int    `json:"keys,omitempty"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
}

var checkCmd = &cobra.Command{
	Use:   "check [file...]",
	Short: "Validate tether config files",
	Long:  "Parse and validate tether.yaml files. Checks the given files, or the --config path.",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")

	files := args
	if len(files) == 0 {
		files = []string{configPath}
	}

	var results []checkResult
	var failed int
	for _, path := range files {
		results = append(results, checkFile(path))
		if !results[len(results)-1].Valid {
			failed++
		}
	}

	if jsonOut {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Printf("OK    %s (%s, %d keys)\n", r.Path, r.Command, r.Keys)
			} else {
				fmt.Fprintf(os.Stderr, "FAIL  %s\n      %v\n", r.Path, r.Error)
			}
		}
		if len(files) > 1 {
			passed := len(files) - failed
			fmt.Printf("\n%d/%d configs valid\n", passed, len(files))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d config(s) failed validation", failed)
	}
	return nil
}

// checkFile validates one config. Unlike loading for `up`, a missing file
// is an error here.
func checkFile(path string) checkResult {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return checkResult{Path: path, Error: "file does not exist"}
		}
		return checkResult{Path: path, Error: err.Error()}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return checkResult{Path: path, Error: err.Error()}
	}
	return checkResult{Path: path, Command: cfg.Command.String(), Keys: len(cfg.EnvKeys), Valid: true}
}
