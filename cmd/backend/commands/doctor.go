package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/biodoia/nutrillm/internal/providers"
	"github.com/biodoia/nutrillm/pkg/cache"
	"github.com/biodoia/nutrillm/pkg/config"
	"github.com/biodoia/nutrillm/pkg/database"
	"github.com/biodoia/nutrillm/pkg/models"
	"github.com/spf13/cobra"
)

// DoctorCmd rappresenta il comando doctor
var DoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health diagnostics",
	Long: `Run health checks on the pieces the gateway depends on: the memory
database, the Redis cache and every configured model backend.

It does not need a running gateway.`,
	Example: `  # Run full diagnostic
  nutrillm doctor

  # Check only the backends
  nutrillm doctor --check providers

  # Check a single backend
  nutrillm doctor --check providers --provider ollama`,
	RunE: runDoctor,
}

var (
	doctorCheck    string
	doctorProvider string
	doctorVerbose  bool
	doctorTimeout  time.Duration
)

type doctorStep struct {
	name string
	run  func(ctx context.Context, cfg *config.Config) error
}

var doctorSteps = []doctorStep{
	{"database", checkDatabase},
	{"redis", checkRedis},
	{"providers", checkProviders},
}

func init() {
	DoctorCmd.Flags().StringVar(&doctorCheck, "check", "", "Run specific check (database, redis, providers)")
	DoctorCmd.Flags().StringVar(&doctorProvider, "provider", "", "Check specific provider")
	DoctorCmd.Flags().BoolVarP(&doctorVerbose, "verbose", "v", false, "Verbose output")
	DoctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 10*time.Second, "Timeout for each check")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger("error", doctorVerbose, true)

	fmt.Println("NutriLLM System Health Check")
	fmt.Println("============================")
	fmt.Println()

	if doctorCheck != "" {
		for _, step := range doctorSteps {
			if step.name == doctorCheck {
				return runDoctorStep(cmd.Context(), cfg, step)
			}
		}
		return fmt.Errorf("unknown check: %s", doctorCheck)
	}

	failed := 0
	results := make([]bool, len(doctorSteps))
	for i, step := range doctorSteps {
		fmt.Printf("[%d/%d] ", i+1, len(doctorSteps))
		results[i] = runDoctorStep(cmd.Context(), cfg, step) == nil
		if !results[i] {
			failed++
		}
		fmt.Println()
	}

	fmt.Println("Summary")
	fmt.Println("-------")
	for i, step := range doctorSteps {
		status := "✓ PASS"
		if !results[i] {
			status = "✗ FAIL"
		}
		fmt.Printf("%-12s %s\n", step.name, status)
	}
	fmt.Println()

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	fmt.Println("✓ All checks passed")
	return nil
}

func runDoctorStep(ctx context.Context, cfg *config.Config, step doctorStep) error {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()
	return step.run(ctx, cfg)
}

func checkDatabase(ctx context.Context, cfg *config.Config) error {
	fmt.Println("Database Health Check")
	fmt.Println("---------------------")

	if !cfg.Memory.Enabled {
		fmt.Println("⚠️  Memory disabled, database not used")
		return nil
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		fmt.Printf("✗ Failed to connect: %v\n", err)
		return err
	}
	defer db.Close()

	fmt.Printf("✓ Database connection established (%s)\n", cfg.Database.Type)

	if err := db.Ping(ctx); err != nil {
		fmt.Printf("✗ Ping failed: %v\n", err)
		return err
	}
	fmt.Println("✓ Database ping successful")

	if doctorVerbose {
		if sqlDB, err := db.DB.DB(); err == nil {
			stats := sqlDB.Stats()
			fmt.Printf("  Open connections: %d\n", stats.OpenConnections)
			fmt.Printf("  In use: %d\n", stats.InUse)
			fmt.Printf("  Idle: %d\n", stats.Idle)
		}
	}

	for _, table := range []any{&models.ConversationTurn{}, &models.Profile{}} {
		if !db.Migrator().HasTable(table) {
			fmt.Printf("⚠️  Missing table %T, run 'nutrillm migrate up' or start the gateway\n", table)
			return nil
		}
	}

	var turns int64
	db.WithContext(ctx).Model(&models.ConversationTurn{}).Count(&turns)
	fmt.Printf("✓ All required tables present, %d stored turns\n", turns)
	return nil
}

func checkRedis(ctx context.Context, cfg *config.Config) error {
	fmt.Println("Redis Health Check")
	fmt.Println("------------------")

	if cfg.Memory.CacheBackend != "redis" {
		fmt.Printf("⚠️  Cache backend is %q, Redis not used\n", cfg.Memory.CacheBackend)
		return nil
	}

	rc, err := cache.NewRedisCache(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB, cfg.Memory.CacheTTL)
	if err != nil {
		fmt.Printf("✗ Redis unreachable at %s: %v\n", cfg.Redis.Host, err)
		fmt.Println("  (the gateway falls back to the in-memory cache)")
		return err
	}
	defer rc.Close()

	if err := rc.Ping(ctx); err != nil {
		fmt.Printf("✗ Ping failed: %v\n", err)
		return err
	}

	fmt.Printf("✓ Redis reachable at %s\n", cfg.Redis.Host)
	return nil
}

// modelChecker è implementato dai backend che possono elencare i modelli installati
type modelChecker interface {
	HasModel(ctx context.Context) (bool, error)
}

// checkBackend verifica il backend e, se possibile, verifica che il modello sia installato
func checkBackend(ctx context.Context, backend providers.Backend) (string, bool) {
	if !backend.HealthCheck(ctx) {
		return "✗ UNREACHABLE", false
	}

	mc, ok := backend.(modelChecker)
	if !ok {
		return "✓ OK", true
	}
	installed, err := mc.HasModel(ctx)
	switch {
	case err != nil:
		return "⚠️  OK, model list failed: " + err.Error(), true
	case !installed:
		return "✗ MODEL NOT INSTALLED", false
	}
	return "✓ OK", true
}

func checkProviders(ctx context.Context, cfg *config.Config) error {
	fmt.Println("Provider Health Check")
	fmt.Println("---------------------")

	orch, err := buildOrchestrator(cfg, nil)
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		return err
	}
	registry := orch.Registry()

	names := registry.List()
	if doctorProvider != "" {
		if !registry.Has(doctorProvider) {
			return fmt.Errorf("provider not configured: %s", doctorProvider)
		}
		names = []string{doctorProvider}
	}

	modelNames := registry.Models()
	healthy := 0
	for _, name := range names {
		backend, err := registry.Get(name)
		if err != nil {
			continue
		}

		start := time.Now()
		status, ok := checkBackend(ctx, backend)
		latency := time.Since(start)
		if ok {
			healthy++
		}
		fmt.Printf("%-8s %-28s %s", name, modelNames[name], status)
		if doctorVerbose {
			fmt.Printf(" (%dms)", latency.Milliseconds())
		}
		fmt.Println()
	}

	fmt.Printf("\nSummary: %d/%d providers healthy\n", healthy, len(names))

	if healthy == 0 {
		return fmt.Errorf("no healthy provider")
	}
	return nil
}
