package main

import (
	"context"
	"fmt"
	"os"

	"github.com/biodoia/nutrillm/cmd/backend/commands"
	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nutrillm",
		Short: "NutriLLM - nutrition and training assistant gateway",
		Long: `NutriLLM - Nutrition and Training Assistant Gateway

An HTTP gateway that answers nutrition and training questions by routing
them to specialised agents backed by local or hosted language models.

Features:
  • Keyword routing to nutrition, planning and general agents
  • Deterministic calorie and macro calculation
  • Automatic failover between Ollama and OpenAI backends
  • Per-chat conversation memory and user profiles
  • Streaming answers, Prometheus metrics`,
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().String("url", "", "Gateway URL for client commands (default from server config)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.AskCmd)
	rootCmd.AddCommand(commands.ClassifyCmd)
	rootCmd.AddCommand(commands.ProvidersCmd)
	rootCmd.AddCommand(commands.StatsCmd)
	rootCmd.AddCommand(commands.MemoryCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.MigrateCmd)
	rootCmd.AddCommand(commands.DoctorCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("NutriLLM version %s\n", version)
			fmt.Printf("Commit: %s\n", commit)
		},
	})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
