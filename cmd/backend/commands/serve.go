package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/biodoia/nutrillm/internal/gateway"
	"github.com/biodoia/nutrillm/internal/health"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	devMode     bool
	verbose     bool
	autoMigrate bool
)

// ServeCmd rappresenta il comando serve
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the NutriLLM gateway server",
	Long: `Start the HTTP gateway that routes nutrition and training questions
to specialised agents, with automatic failover between model backends.`,
	Example: `  # Start server with default settings
  nutrillm serve

  # Start in development mode with verbose logging
  nutrillm serve --dev --verbose

  # Start with custom config
  nutrillm serve -c /path/to/config.yaml`,
	RunE: runServe,
}

func init() {
	ServeCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (pretty logging)")
	ServeCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (debug level)")
	ServeCmd.Flags().BoolVar(&autoMigrate, "migrate", true, "Auto-run memory table migrations on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	setupLogger(cfg.Monitoring.Logging.Level, verbose, devMode || cfg.Monitoring.Logging.Format == "console")

	log.Info().Msg("🚀 Starting NutriLLM Gateway")
	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Strs("providers", cfg.Providers.Order).
		Bool("memory", cfg.Memory.Enabled).
		Bool("dev_mode", devMode).
		Msg("Configuration loaded")

	s, err := buildStack(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.db != nil && autoMigrate {
		log.Info().Msg("Running database migrations...")
		if err := s.db.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("✓ Database migrations completed")
	}

	deps := gateway.Deps{
		Router:       s.router,
		Orchestrator: s.orchestrator,
		Metrics:      s.metrics,
		Health:       health.NewMonitor(s.orchestrator, cfg.Providers.HealthCheckInterval, cfg.Providers.ProbeTimeout),
	}
	if s.memory != nil {
		deps.Memory = s.memory
		deps.Profiles = s.profiles
	}

	gw, err := gateway.New(cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Start()
	}()

	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("🌐 Gateway running on http://%s", cfg.Server.Address())
	log.Info().Msgf("📊 Health check: http://%s/health", cfg.Server.Address())
	if cfg.Monitoring.Prometheus.Enabled {
		log.Info().Msgf("📈 Metrics: http://%s/metrics", cfg.Server.Address())
	}
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msg("Press Ctrl+C to stop")

	return waitForShutdown(gw, errCh, cfg.Server.ShutdownTimeout)
}

func waitForShutdown(gw *gateway.Gateway, errCh <-chan error, timeout time.Duration) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway stopped: %w", err)
	case <-quit:
	}

	log.Info().Msg("⏳ Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := gw.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	log.Info().Msg("✓ NutriLLM Gateway stopped cleanly")
	return nil
}
