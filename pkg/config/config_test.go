package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, []string{"ollama", "openai"}, cfg.Providers.Order)
	assert.Equal(t, "ollama", cfg.Providers.Default)
	assert.Equal(t, 3, cfg.Providers.MaxErrors)
	assert.Equal(t, 10*time.Second, cfg.Providers.ProbeTimeout)
	assert.Equal(t, 120*time.Second, cfg.Providers.Ollama.Timeout)
	assert.Equal(t, 0.7, cfg.LLM.Temperature)
	assert.Equal(t, 800, cfg.LLM.MaxTokens)
	assert.Equal(t, 5, cfg.Memory.ContextTurns)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
providers:
  order: [openai]
  default: openai
  openai:
    model: gpt-4o
memory:
  context_turns: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("AUTH_API_KEY", "secret-key")
	t.Setenv("PROVIDERS_OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"openai"}, cfg.Providers.Order)
	assert.Equal(t, "gpt-4o", cfg.Providers.OpenAI.Model)
	assert.Equal(t, "sk-test", cfg.Providers.OpenAI.APIKey)
	assert.Equal(t, "secret-key", cfg.Auth.APIKey)
	assert.Equal(t, 3, cfg.Memory.ContextTurns)
	// valori non presenti nel file restano ai default
	assert.Equal(t, "llama3.1", cfg.Providers.Ollama.Model)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"empty order", func(c *Config) { c.Providers.Order = nil }, true},
		{"unknown provider", func(c *Config) { c.Providers.Order = []string{"gemini"} }, true},
		{"duplicate provider", func(c *Config) { c.Providers.Order = []string{"ollama", "ollama"} }, true},
		{"default outside order", func(c *Config) { c.Providers.Order = []string{"openai"} }, true},
		{"zero threshold", func(c *Config) { c.Providers.MaxErrors = 0 }, true},
		{"temperature too high", func(c *Config) { c.LLM.Temperature = 3 }, true},
		{"bad database with memory", func(c *Config) { c.Database.Type = "mysql" }, true},
		{"bad database without memory", func(c *Config) { c.Database.Type = "mysql"; c.Memory.Enabled = false }, false},
		{"bad cache backend", func(c *Config) { c.Memory.CacheBackend = "memcached" }, true},
		{"bad log level", func(c *Config) { c.Monitoring.Logging.Level = "loud" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Auth.APIKey = "super-secret-key"
	cfg.Providers.OpenAI.APIKey = "short"

	red := cfg.Redacted()
	assert.Equal(t, "supe****", red.Auth.APIKey)
	assert.Equal(t, "****", red.Providers.OpenAI.APIKey)
	assert.Equal(t, "super-secret-key", cfg.Auth.APIKey)

	data, err := red.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_errors: 3")
	assert.NotContains(t, string(data), "super-secret-key")
}
