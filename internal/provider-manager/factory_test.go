package manager

import (
	"errors"
	"testing"
	"time"

	"github.com/biodoia/nutrillm/internal/providers"
	"github.com/biodoia/nutrillm/internal/providers/ollama"
	"github.com/biodoia/nutrillm/internal/providers/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	gen := GenerationConfig{SystemPrompt: "sys", Temperature: 0.7, MaxTokens: 800, ProbeTimeout: time.Second}

	backend, err := NewBackend(DefaultProviderConfigs["ollama"], gen)
	require.NoError(t, err)
	assert.IsType(t, &ollama.Client{}, backend)
	assert.Equal(t, "llama3.1", backend.Model())

	backend, err = NewBackend(DefaultProviderConfigs["openai"], gen)
	require.NoError(t, err)
	assert.IsType(t, &openai.Client{}, backend)

	_, err = NewBackend(ProviderConfig{Name: "x", Type: "anthropic"}, gen)
	assert.Error(t, err)
}

func TestBuildRegistry(t *testing.T) {
	configs := map[string]ProviderConfig{
		"ollama": DefaultProviderConfigs["ollama"],
		"openai": DefaultProviderConfigs["openai"],
	}

	registry, err := BuildRegistry([]string{"openai", "missing", "ollama"}, configs, GenerationConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{"openai", "ollama"}, registry.List())

	_, err = BuildRegistry([]string{"missing"}, configs, GenerationConfig{})
	assert.True(t, errors.Is(err, providers.ErrNoProvidersAvailable))
}
