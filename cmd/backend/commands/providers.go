package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/biodoia/nutrillm/internal/chat"
	manager "github.com/biodoia/nutrillm/internal/provider-manager"
	"github.com/spf13/cobra"
)

// ProvidersCmd rappresenta il comando providers
var ProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect and switch LLM backends",
	Long: `Inspect the backends of a running gateway and switch the active one.

The gateway fails over on its own after repeated errors; switch is the
manual override.`,
	Example: `  # List backends with error counters
  nutrillm providers list

  # Probe every backend
  nutrillm providers health

  # Force the OpenAI backend
  nutrillm providers switch openai`,
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backends and their error counters",
	RunE:  runProvidersList,
}

var providersHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe every backend",
	RunE:  runProvidersHealth,
}

var providersSwitchCmd = &cobra.Command{
	Use:   "switch [provider]",
	Short: "Switch the active backend",
	Args:  cobra.ExactArgs(1),
	RunE:  runProvidersSwitch,
}

var providersJSON bool

func init() {
	providersListCmd.Flags().BoolVar(&providersJSON, "json", false, "Output in JSON format")
	providersHealthCmd.Flags().BoolVar(&providersJSON, "json", false, "Output in JSON format")

	ProvidersCmd.AddCommand(providersListCmd)
	ProvidersCmd.AddCommand(providersHealthCmd)
	ProvidersCmd.AddCommand(providersSwitchCmd)
}

func gatewayClient(cmd *cobra.Command) (*chat.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return chat.NewClient(gatewayURL(cmd, cfg), cfg.Auth.APIKey, 30*time.Second), nil
}

func runProvidersList(cmd *cobra.Command, args []string) error {
	client, err := gatewayClient(cmd)
	if err != nil {
		return err
	}

	var status manager.Status
	if err := client.GetJSON(cmd.Context(), "/status", &status); err != nil {
		return err
	}

	if providersJSON {
		return printJSON(status)
	}

	disabled := make(map[string]bool, len(status.Disabled))
	for _, name := range status.Disabled {
		disabled[name] = true
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODEL\tERRORS\tSTATE")
	fmt.Fprintln(w, "----\t-----\t------\t-----")

	for _, name := range status.Providers {
		state := "standby"
		switch {
		case disabled[name]:
			state = "✗ disabled"
		case name == status.CurrentProvider:
			state = "● active"
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\n",
			name,
			status.Models[name],
			status.ErrorCounts[name],
			status.MaxErrors,
			state,
		)
	}
	w.Flush()

	fmt.Printf("\nUptime: %s\n", status.Uptime)
	return nil
}

func runProvidersHealth(cmd *cobra.Command, args []string) error {
	client, err := gatewayClient(cmd)
	if err != nil {
		return err
	}

	var report manager.HealthReport
	if err := client.GetJSON(cmd.Context(), "/health", &report); err != nil {
		return err
	}

	if providersJSON {
		return printJSON(report)
	}

	names := make([]string, 0, len(report.Services))
	for name := range report.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tHEALTH")
	for _, name := range names {
		health := "✗ down"
		if report.Services[name] {
			health = "✓ up"
		}
		fmt.Fprintf(w, "%s\t%s\n", name, health)
	}
	w.Flush()

	current := report.CurrentProvider
	if current == "" {
		current = "none"
	}
	fmt.Printf("\nStatus: %s (current: %s)\n", strings.ToUpper(report.Status), current)
	return nil
}

func runProvidersSwitch(cmd *cobra.Command, args []string) error {
	client, err := gatewayClient(cmd)
	if err != nil {
		return err
	}

	var result struct {
		Message  string `json:"message"`
		Provider string `json:"provider"`
	}
	if err := client.GetJSON(cmd.Context(), "/switch-provider/"+args[0], &result); err != nil {
		return fmt.Errorf("failed to switch to %s: %w", args[0], err)
	}

	fmt.Printf("✓ Active provider: %s\n", result.Provider)
	return nil
}

func printJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
