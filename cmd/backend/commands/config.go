package commands

import (
	"fmt"
	"os"

	"github.com/biodoia/nutrillm/pkg/config"
	"github.com/spf13/cobra"
)

// ConfigCmd rappresenta il comando config
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View, validate and generate NutriLLM configuration files.

Every key can also be set through the environment, dots replaced by
underscores, e.g. SERVER_PORT=9000 or PROVIDERS_OLLAMA_MODEL=llama3.`,
	Example: `  # Show current configuration (secrets masked)
  nutrillm config show

  # Validate configuration file
  nutrillm config validate -c config.yaml

  # Generate template configuration
  nutrillm config generate -o config.yaml`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the loaded configuration, with defaults and environment overrides applied. Secrets are masked.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate template configuration",
	Long:  `Generate a configuration file holding every option with its default value.`,
	RunE:  runConfigGenerate,
}

var configOutput string

func init() {
	configGenerateCmd.Flags().StringVarP(&configOutput, "output", "o", "", "Output file path (stdout if not specified)")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configGenerateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := cfg.Redacted().YAML()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Println("# Current Configuration")
	fmt.Println("# =====================")
	fmt.Println()
	fmt.Print(string(data))

	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	source := configPath
	if source == "" {
		source = "defaults and environment"
	}
	fmt.Printf("Validating configuration: %s\n\n", source)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Println("✗ Failed to load configuration")
		return err
	}

	fmt.Println("✓ Configuration loaded successfully")

	if err := cfg.Validate(); err != nil {
		fmt.Println("✗ Configuration validation failed")
		return err
	}

	fmt.Println("✓ Configuration is valid")
	fmt.Println()
	fmt.Println("Configuration summary:")
	fmt.Printf("  Server:     %s\n", cfg.Server.Address())
	fmt.Printf("  Providers:  %v (default: %s, max errors: %d)\n", cfg.Providers.Order, cfg.Providers.Default, cfg.Providers.MaxErrors)
	fmt.Printf("  Auth:       %v\n", cfg.Auth.APIKey != "")
	fmt.Printf("  Memory:     %v (%s, cache: %s)\n", cfg.Memory.Enabled, cfg.Database.Type, cfg.Memory.CacheBackend)
	fmt.Printf("  Prometheus: %v\n", cfg.Monitoring.Prometheus.Enabled)

	return nil
}

func runConfigGenerate(cmd *cobra.Command, args []string) error {
	data, err := config.Default().YAML()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	output := `# NutriLLM Configuration File
# ===========================
#
# Template with default values. Secrets are best passed through the
# environment: INTERNAL_API_KEY and OPENAI_API_KEY.

`
	output += string(data)

	if configOutput != "" {
		if err := os.WriteFile(configOutput, []byte(output), 0644); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		fmt.Printf("✓ Configuration template generated: %s\n", configOutput)
	} else {
		fmt.Print(output)
	}

	return nil
}
