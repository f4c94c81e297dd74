package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/benaskins/tether/internal/api"
	"github.com/benaskins/tether/internal/supervisor"
)

func apiClient() *http.Client {
	socketPath := defaultSocketPath()
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", socketPath)
			},
		},
	}
}

func apiGet(path string, v any) error {
	resp, err := apiClient().Get("http://tether" + path)
	if err != nil {
		return fmt.Errorf("connecting to tether: %w (is tether up running?)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("API error %d: %s", resp.StatusCode, body)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

func apiPost(path string) (map[string]any, error) {
	resp, err := apiClient().Post("http://tether"+path, "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to tether: %w (is tether up running?)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return result, nil
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend status",
	RunE: func(cmd *cobra.Command, args []string) error {
		var st supervisor.Status
		if err := apiGet("/v1/status", &st); err != nil {
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return printJSON(st)
		}

		pid := "-"
		if st.PID > 0 {
			pid = strconv.Itoa(st.PID)
		}
		uptime := "-"
		if st.Uptime != "" {
			uptime = st.Uptime
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PHASE\tPID\tUPTIME\tRESTARTS\tFAILURES")
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", st.Phase, pid, uptime, st.Restarts, st.Attempts)
		w.Flush()

		fmt.Printf("\n%s\n", st.Message)
		if st.Usage != nil {
			fmt.Println(st.Usage.String())
		}
		if st.RetryIn != "" {
			fmt.Printf("next attempt in %s\n", st.RetryIn)
		}
		return nil
	},
}

// restart command
var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the backend and reset its failure count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := apiPost("/v1/restart")
		if err != nil {
			return err
		}
		fmt.Printf("backend: %v\n", result["status"])
		return nil
	},
}

// logs command
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent backend output",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("lines")
		follow, _ := cmd.Flags().GetBool("follow")

		var resp api.LogsResponse
		if err := apiGet("/v1/logs?n="+strconv.Itoa(n), &resp); err != nil {
			return err
		}
		for _, e := range resp.Entries {
			fmt.Println(e.String())
		}
		if !follow {
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		since := resp.LastSeq
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			var next api.LogsResponse
			if err := apiGet("/v1/logs?since="+strconv.FormatUint(since, 10), &next); err != nil {
				return err
			}
			for _, e := range next.Entries {
				fmt.Println(e.String())
			}
			since = next.LastSeq
		}
	},
}

func init() {
	logsCmd.Flags().IntP("lines", "n", 50, "number of lines to show")
	logsCmd.Flags().BoolP("follow", "f", false, "keep printing new output")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(logsCmd)
}
