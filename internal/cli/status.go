package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/vinspect/internal/core/config"
	"github.com/vietddude/vinspect/internal/resilience/health"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show breaker state for all guarded dependencies",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("http://localhost:%d/health/detailed", cfg.Server.Port)

	resp, err := client.Get(url)
	if err != nil {
		slog.Error("Failed to reach service", "url", url, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var report health.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		slog.Error("Failed to decode health report", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Overall: %s\n\n", report.Status)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "DEPENDENCY\tSTATE\tFAILURES\tSUCCESSES\tLAST FAILURE")

	for _, dep := range report.Dependencies {
		lastFailure := "-"
		if !dep.LastFailureTime.IsZero() {
			lastFailure = dep.LastFailureTime.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			dep.Name, dep.State, dep.ConsecutiveFailures, dep.ConsecutiveSuccesses, lastFailure)
	}
	_ = w.Flush()
}
