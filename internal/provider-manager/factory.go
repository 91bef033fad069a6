package manager

import (
	"fmt"
	"time"

	"github.com/biodoia/nutrillm/internal/providers"
	"github.com/biodoia/nutrillm/internal/providers/ollama"
	"github.com/biodoia/nutrillm/internal/providers/openai"
	"github.com/rs/zerolog/log"
)

// ProviderConfig contiene la configurazione di un backend
type ProviderConfig struct {
	Name       string
	Type       string // "openai" o "ollama"
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// GenerationConfig contiene i parametri comuni di generazione
type GenerationConfig struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	ProbeTimeout time.Duration
}

// DefaultProviderConfigs contiene configurazioni predefinite per i backend supportati
var DefaultProviderConfigs = map[string]ProviderConfig{
	"openai": {
		Name:       "openai",
		Type:       "openai",
		BaseURL:    openai.DefaultBaseURL,
		Model:      "gpt-4o-mini",
		Timeout:    60 * time.Second,
		MaxRetries: 1,
	},
	"ollama": {
		Name:       "ollama",
		Type:       "ollama",
		BaseURL:    ollama.DefaultBaseURL,
		Model:      "llama3.1",
		Timeout:    120 * time.Second, // Longer timeout for local models
		MaxRetries: 0,
	},
}

// NewBackend costruisce un backend dalla sua configurazione
func NewBackend(cfg ProviderConfig, gen GenerationConfig) (providers.Backend, error) {
	opts := providers.Options{
		Name:         cfg.Name,
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		SystemPrompt: gen.SystemPrompt,
		Temperature:  gen.Temperature,
		MaxTokens:    gen.MaxTokens,
		MaxRetries:   cfg.MaxRetries,
		Timeout:      cfg.Timeout,
		ProbeTimeout: gen.ProbeTimeout,
	}

	providerType := cfg.Type
	if providerType == "" {
		providerType = cfg.Name
	}

	switch providerType {
	case "openai":
		return openai.NewClient(opts), nil
	case "ollama":
		return ollama.NewClient(opts), nil
	default:
		return nil, fmt.Errorf("unsupported provider type %q for %s", providerType, cfg.Name)
	}
}

// BuildRegistry registra i backend nell'ordine indicato; i nomi senza configurazione sono saltati
func BuildRegistry(order []string, configs map[string]ProviderConfig, gen GenerationConfig) (*providers.Registry, error) {
	registry := providers.NewRegistry()

	for _, name := range order {
		cfg, ok := configs[name]
		if !ok {
			log.Warn().Str("provider", name).Msg("Provider listed in order but not configured, skipping")
			continue
		}
		if cfg.Name == "" {
			cfg.Name = name
		}

		backend, err := NewBackend(cfg, gen)
		if err != nil {
			return nil, err
		}

		providerType := cfg.Type
		if providerType == "" {
			providerType = name
		}
		if err := registry.Register(backend, providerType); err != nil {
			return nil, err
		}
	}

	if registry.Count() == 0 {
		return nil, providers.ErrNoProvidersAvailable
	}
	return registry, nil
}
