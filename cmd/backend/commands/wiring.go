package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/biodoia/nutrillm/internal/agents"
	"github.com/biodoia/nutrillm/internal/memory"
	manager "github.com/biodoia/nutrillm/internal/provider-manager"
	"github.com/biodoia/nutrillm/internal/stats"
	"github.com/biodoia/nutrillm/pkg/cache"
	"github.com/biodoia/nutrillm/pkg/config"
	"github.com/biodoia/nutrillm/pkg/database"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// stack raccoglie i componenti costruiti dalla configurazione
type stack struct {
	orchestrator *manager.Orchestrator
	router       *agents.Manager
	metrics      *stats.Metrics

	db       *database.DB
	cache    cache.Cache
	memory   *memory.DBStore
	profiles *memory.ProfileStore
}

// loadConfig legge il file indicato da --config e lo valida
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// providerConfigs traduce la configurazione dei backend per il factory
func providerConfigs(cfg *config.Config) map[string]manager.ProviderConfig {
	out := make(map[string]manager.ProviderConfig, len(cfg.Providers.Order))
	for _, name := range cfg.Providers.Order {
		b, ok := cfg.Providers.Backend(name)
		if !ok {
			continue
		}
		out[name] = manager.ProviderConfig{
			Name:       name,
			Type:       name,
			BaseURL:    b.BaseURL,
			APIKey:     b.APIKey,
			Model:      b.Model,
			Timeout:    b.Timeout,
			MaxRetries: b.MaxRetries,
		}
	}
	return out
}

func generationConfig(cfg *config.Config) manager.GenerationConfig {
	return manager.GenerationConfig{
		SystemPrompt: cfg.LLM.SystemPrompt,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
		ProbeTimeout: cfg.Providers.ProbeTimeout,
	}
}

// buildOrchestrator crea registry e orchestratore dai provider configurati
func buildOrchestrator(cfg *config.Config, observer manager.Observer) (*manager.Orchestrator, error) {
	registry, err := manager.BuildRegistry(cfg.Providers.Order, providerConfigs(cfg), generationConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to build provider registry: %w", err)
	}

	opts := []manager.Option{
		manager.WithMaxErrors(cfg.Providers.MaxErrors),
		manager.WithDefaultProvider(cfg.Providers.Default),
	}
	if observer != nil {
		opts = append(opts, manager.WithObserver(observer))
	}
	return manager.New(registry, opts...), nil
}

// buildStack costruisce orchestratore, agenti e, se abilitata, la memoria
func buildStack(ctx context.Context, cfg *config.Config, withMemory bool) (*stack, error) {
	s := &stack{metrics: stats.NewMetrics("nutrillm")}

	orch, err := buildOrchestrator(cfg, s.metrics)
	if err != nil {
		return nil, err
	}
	orch.Initialize(ctx)
	s.orchestrator = orch

	deps := agents.Deps{
		Orchestrator: orch,
		StepTimeout:  cfg.Agents.StepTimeout,
	}

	// un modello Ollama leggero per sotto-task e passi del piano
	if cfg.Agents.FastModel != "" {
		fast := manager.ProviderConfig{
			Name:    "ollama-fast",
			Type:    "ollama",
			BaseURL: cfg.Providers.Ollama.BaseURL,
			Model:   cfg.Agents.FastModel,
			Timeout: cfg.Providers.Ollama.Timeout,
		}
		backend, err := manager.NewBackend(fast, generationConfig(cfg))
		if err != nil {
			return nil, err
		}
		deps.Fast = backend
		log.Info().Str("model", cfg.Agents.FastModel).Msg("Using dedicated fast model for sub-tasks")
	}

	router, err := agents.NewManager(agents.Declarations(deps), agents.AgentSimple, agents.WithRouteObserver(s.metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to build agent router: %w", err)
	}
	s.router = router

	if withMemory && cfg.Memory.Enabled {
		if err := s.openMemory(cfg); err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

func (s *stack) openMemory(cfg *config.Config) error {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db

	log.Info().
		Str("type", cfg.Database.Type).
		Msg("Database connected")

	c, err := cache.New(cache.Config{
		Backend:          cfg.Memory.CacheBackend,
		MemoryMaxEntries: cfg.Memory.CacheMaxEntries,
		TTL:              cfg.Memory.CacheTTL,
		RedisHost:        cfg.Redis.Host,
		RedisPassword:    cfg.Redis.Password,
		RedisDB:          cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	s.cache = c

	s.memory = memory.NewDBStore(db.DB,
		memory.WithContextTurns(cfg.Memory.ContextTurns),
		memory.WithCache(c, cfg.Memory.CacheTTL),
	)
	s.profiles = memory.NewProfileStore(db.DB)
	return nil
}

// Close rilascia database e cache
func (s *stack) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
}

// setupLogger configura il logger globale
func setupLogger(level string, verbose, dev bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if dev {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}
}

// gatewayURL restituisce l'indirizzo del gateway in esecuzione
func gatewayURL(cmd *cobra.Command, cfg *config.Config) string {
	if url, _ := cmd.Flags().GetString("url"); url != "" {
		return url
	}
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
}
