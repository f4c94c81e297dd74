package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/benaskins/tether/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "tether",
	Short: "Keep one backend process running behind a terminal dashboard",
	Long: "tether writes configured secrets to the environment and env.sh, launches a\n" +
		"single backend process, shows its output, and relaunches it when it dies.",
	SilenceUsage: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to tether.yaml")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON where supported")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
