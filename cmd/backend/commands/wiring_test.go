package commands

import (
	"context"
	"testing"
	"time"

	"github.com/biodoia/nutrillm/internal/agents"
	"github.com/biodoia/nutrillm/pkg/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offlineConfig() *config.Config {
	cfg := config.Default()
	cfg.Providers.Ollama.BaseURL = "http://127.0.0.1:1"
	cfg.Providers.OpenAI.APIKey = ""
	cfg.Providers.ProbeTimeout = 200 * time.Millisecond
	cfg.Memory.Enabled = false
	cfg.Server.Port = 8000
	return cfg
}

func TestProviderConfigs(t *testing.T) {
	cfg := offlineConfig()
	cfg.Providers.Order = []string{"ollama", "anthropic", "openai"}

	configs := providerConfigs(cfg)

	require.Len(t, configs, 2)
	assert.Equal(t, "ollama", configs["ollama"].Type)
	assert.Equal(t, "http://127.0.0.1:1", configs["ollama"].BaseURL)
	assert.Equal(t, cfg.Providers.OpenAI.Model, configs["openai"].Model)
	assert.NotContains(t, configs, "anthropic")
}

func TestGenerationConfig(t *testing.T) {
	cfg := offlineConfig()
	gen := generationConfig(cfg)

	assert.Equal(t, config.DefaultSystemPrompt, gen.SystemPrompt)
	assert.Equal(t, 0.7, gen.Temperature)
	assert.Equal(t, 800, gen.MaxTokens)
	assert.Equal(t, 200*time.Millisecond, gen.ProbeTimeout)
}

func TestGatewayURL(t *testing.T) {
	cfg := offlineConfig()

	tests := []struct {
		name string
		host string
		flag string
		want string
	}{
		{"wildcard host becomes localhost", "0.0.0.0", "", "http://localhost:8000"},
		{"explicit host", "10.0.0.5", "", "http://10.0.0.5:8000"},
		{"flag wins", "0.0.0.0", "http://gw:9000", "http://gw:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.Flags().String("url", "", "")
			if tt.flag != "" {
				require.NoError(t, cmd.Flags().Set("url", tt.flag))
			}
			cfg.Server.Host = tt.host
			assert.Equal(t, tt.want, gatewayURL(cmd, cfg))
		})
	}
}

func TestBuildStack_WithoutMemory(t *testing.T) {
	cfg := offlineConfig()
	cfg.Agents.FastModel = "qwen2.5:0.5b"

	s, err := buildStack(context.Background(), cfg, true)
	require.NoError(t, err)
	defer s.Close()

	assert.Nil(t, s.db)
	assert.Nil(t, s.memory)
	assert.NotNil(t, s.metrics)
	assert.Equal(t, []string{"ollama", "openai"}, s.orchestrator.Registry().List())
	assert.True(t, s.router.Has(agents.AgentNutrition))
	assert.Equal(t, agents.AgentPlanning, s.router.Classify("составь программу тренировок"))
}

func TestBuildStack_WithMemory(t *testing.T) {
	cfg := offlineConfig()
	cfg.Memory.Enabled = true
	cfg.Memory.CacheBackend = "memory"
	cfg.Database.Type = "sqlite"
	cfg.Database.Connection = ":memory:"

	s, err := buildStack(context.Background(), cfg, true)
	require.NoError(t, err)
	defer s.Close()

	require.NotNil(t, s.db)
	require.NoError(t, s.db.AutoMigrate())
	assert.NotNil(t, s.memory)
	assert.NotNil(t, s.profiles)
	assert.NotNil(t, s.cache)
}
