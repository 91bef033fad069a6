package commands

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/biodoia/nutrillm/internal/stats"
	"github.com/spf13/cobra"
)

// StatsCmd mostra le statistiche di un gateway in esecuzione
var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show request statistics of a running gateway",
	Long: `Show per-agent and per-backend request counters collected since the
gateway started. Prometheus metrics are served separately on /metrics.`,
	Example: `  nutrillm stats
  nutrillm stats --json`,
	RunE: runStats,
}

var statsJSON bool

func init() {
	StatsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output in JSON format")
}

func runStats(cmd *cobra.Command, args []string) error {
	client, err := gatewayClient(cmd)
	if err != nil {
		return err
	}

	var summary stats.Summary
	if err := client.GetJSON(cmd.Context(), "/stats", &summary); err != nil {
		return err
	}

	if statsJSON {
		return printJSON(summary)
	}

	fmt.Printf("Statistics since %s (%s)\n\n", summary.Since.Format(time.RFC3339), formatTimeSince(summary.Since))

	fmt.Println("Agents:")
	printCounters(summary.Agents)

	fmt.Println("\nProviders:")
	printCounters(summary.Providers)

	names := make([]string, 0, len(summary.Healthy))
	for name := range summary.Healthy {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("\nProvider switches: %d\n", summary.Switches)
	for _, name := range names {
		mark := "✗"
		if summary.Healthy[name] {
			mark = "✓"
		}
		fmt.Printf("  %s %s\n", mark, name)
	}
	return nil
}

func printCounters(counters []stats.Counters) {
	if len(counters) == 0 {
		fmt.Println("  (no requests yet)")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tTOTAL\tSUCCESS\tERRORS\tRATE\tAVG LATENCY")
	for _, c := range counters {
		fmt.Fprintf(w, "  %s\t%d\t%d\t%d\t%.1f%%\t%dms\n",
			c.Name,
			c.Total,
			c.SuccessCount,
			c.ErrorCount,
			c.SuccessRate()*100,
			c.AvgLatencyMs,
		)
	}
	w.Flush()
}

func formatTimeSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
