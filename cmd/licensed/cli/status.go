package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the license server is running",
		Long:  "Report the server process state and probe its /readyz endpoint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	pid, err := readPID()
	if err != nil {
		fmt.Fprintln(out, "Server is not running (no PID file found).")
		return nil
	}

	if !isProcessRunning(pid) {
		removePID()
		fmt.Fprintln(out, "Server is not running (stale PID file removed).")
		return nil
	}

	readyURL := fmt.Sprintf("%s/readyz", localBaseURL())
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(readyURL)
	if err != nil {
		fmt.Fprintf(out, "Server process is running (PID %d) but not responding to HTTP.\n", pid)
		fmt.Fprintf(out, "  Logs: %s\n", logFilePath())
		return nil
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
		Driver string `json:"driver"`
	}
	json.NewDecoder(resp.Body).Decode(&body)

	fmt.Fprintf(out, "Server is running (PID %d)\n", pid)
	fmt.Fprintf(out, "  Ready:    %s (%d %s)\n", readyURL, resp.StatusCode, body.Status)
	if body.Driver != "" {
		fmt.Fprintf(out, "  Database: %s\n", body.Driver)
	}
	fmt.Fprintf(out, "  Logs:     %s\n", logFilePath())
	return nil
}

// localBaseURL is the loopback URL of the configured listener.
func localBaseURL() string {
	port := viper.GetInt("server.port")
	if port == 0 {
		port = 8080
	}
	host := viper.GetString("server.host")
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}
