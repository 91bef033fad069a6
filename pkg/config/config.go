package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/biodoia/nutrillm/pkg/database"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt è l'istruzione di sistema inviata a ogni backend
const DefaultSystemPrompt = "Ты — эксперт по питанию и тренировкам. Отвечай кратко, по делу и на русском языке."

// Config rappresenta la configurazione completa dell'applicazione
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Database   database.Config  `yaml:"database" mapstructure:"database"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Auth       AuthConfig       `yaml:"auth" mapstructure:"auth"`
	Providers  ProvidersConfig  `yaml:"providers" mapstructure:"providers"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Agents     AgentsConfig     `yaml:"agents" mapstructure:"agents"`
	Memory     MemoryConfig     `yaml:"memory" mapstructure:"memory"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// ServerConfig configurazione del server
type ServerConfig struct {
	Port            int           `yaml:"port" mapstructure:"port"`
	Host            string        `yaml:"host" mapstructure:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// Address restituisce host:port
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisConfig configurazione Redis
type RedisConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// AuthConfig configura l'accesso alle rotte protette
type AuthConfig struct {
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`       // vuota = nessun controllo
	RateLimit int    `yaml:"rate_limit" mapstructure:"rate_limit"` // richieste al minuto per utente (X-Request-User) o IP, 0 = illimitato
}

// BackendConfig configura un singolo backend di modello
type BackendConfig struct {
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey     string        `yaml:"api_key" mapstructure:"api_key"`
	Model      string        `yaml:"model" mapstructure:"model"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
}

// ProvidersConfig configurazione providers
type ProvidersConfig struct {
	Order               []string      `yaml:"order" mapstructure:"order"`
	Default             string        `yaml:"default" mapstructure:"default"`
	MaxErrors           int           `yaml:"max_errors" mapstructure:"max_errors"`
	ProbeTimeout        time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" mapstructure:"health_check_interval"`
	OpenAI              BackendConfig `yaml:"openai" mapstructure:"openai"`
	Ollama              BackendConfig `yaml:"ollama" mapstructure:"ollama"`
}

// Backend restituisce la configurazione del backend per nome
func (p ProvidersConfig) Backend(name string) (BackendConfig, bool) {
	switch name {
	case "openai":
		return p.OpenAI, true
	case "ollama":
		return p.Ollama, true
	}
	return BackendConfig{}, false
}

// LLMConfig contiene i parametri di generazione comuni
type LLMConfig struct {
	SystemPrompt string  `yaml:"system_prompt" mapstructure:"system_prompt"`
	Temperature  float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens    int     `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AgentsConfig configura gli agenti
type AgentsConfig struct {
	StepTimeout time.Duration `yaml:"step_timeout" mapstructure:"step_timeout"`
	FastModel   string        `yaml:"fast_model" mapstructure:"fast_model"` // modello Ollama dedicato ai sotto-task
}

// MemoryConfig configura la memoria conversazionale
type MemoryConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	ContextTurns    int           `yaml:"context_turns" mapstructure:"context_turns"`
	CacheBackend    string        `yaml:"cache_backend" mapstructure:"cache_backend"` // "memory", "redis", "none"
	CacheTTL        time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	CacheMaxEntries int           `yaml:"cache_max_entries" mapstructure:"cache_max_entries"`
}

// MonitoringConfig configurazione monitoring
type MonitoringConfig struct {
	Prometheus struct {
		Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	} `yaml:"prometheus" mapstructure:"prometheus"`
	Logging struct {
		Level  string `yaml:"level" mapstructure:"level"`
		Format string `yaml:"format" mapstructure:"format"`
	} `yaml:"logging" mapstructure:"logging"`
}

// Load carica la configurazione da file e variabili d'ambiente
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default restituisce la configurazione con i soli valori di default
func Default() *Config {
	var cfg Config
	// i default sono tutti tipi semplici, l'unmarshal non può fallire
	_ = newViper().Unmarshal(&cfg)
	return &cfg
}

// YAML serializza la configurazione
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Redacted restituisce una copia senza segreti, per la stampa
func (c *Config) Redacted() *Config {
	out := *c
	out.Providers.Order = append([]string(nil), c.Providers.Order...)
	out.Auth.APIKey = mask(c.Auth.APIKey)
	out.Redis.Password = mask(c.Redis.Password)
	out.Providers.OpenAI.APIKey = mask(c.Providers.OpenAI.APIKey)
	out.Providers.Ollama.APIKey = mask(c.Providers.Ollama.APIKey)
	return &out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// AUTH_API_KEY, PROVIDERS_OPENAI_API_KEY, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("providers.openai.api_key", "PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("auth.api_key", "AUTH_API_KEY", "INTERNAL_API_KEY")
	return v
}

// setDefaults imposta i valori di default
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.connection", "./data/nutrillm.db")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.log_level", "warn")

	// Redis defaults
	v.SetDefault("redis.host", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Auth defaults
	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.rate_limit", 60)

	// Providers defaults
	v.SetDefault("providers.order", []string{"ollama", "openai"})
	v.SetDefault("providers.default", "ollama")
	v.SetDefault("providers.max_errors", 3)
	v.SetDefault("providers.probe_timeout", "10s")
	v.SetDefault("providers.health_check_interval", "1m")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com")
	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.model", "gpt-4o-mini")
	v.SetDefault("providers.openai.timeout", "60s")
	v.SetDefault("providers.openai.max_retries", 1)
	v.SetDefault("providers.ollama.base_url", "http://localhost:11434")
	v.SetDefault("providers.ollama.api_key", "")
	v.SetDefault("providers.ollama.model", "llama3.1")
	v.SetDefault("providers.ollama.timeout", "120s")
	v.SetDefault("providers.ollama.max_retries", 0)

	// LLM defaults
	v.SetDefault("llm.system_prompt", DefaultSystemPrompt)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 800)

	// Agents defaults
	v.SetDefault("agents.step_timeout", "90s")
	v.SetDefault("agents.fast_model", "")

	// Memory defaults
	v.SetDefault("memory.enabled", true)
	v.SetDefault("memory.context_turns", 5)
	v.SetDefault("memory.cache_backend", "memory")
	v.SetDefault("memory.cache_ttl", "10m")
	v.SetDefault("memory.cache_max_entries", 10000)

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.logging.level", "info")
	v.SetDefault("monitoring.logging.format", "json")
}

// Validate valida la configurazione
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if len(c.Providers.Order) == 0 {
		return fmt.Errorf("providers.order must list at least one provider")
	}
	seen := make(map[string]bool, len(c.Providers.Order))
	for _, name := range c.Providers.Order {
		if _, ok := c.Providers.Backend(name); !ok {
			return fmt.Errorf("unknown provider in providers.order: %s", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate provider in providers.order: %s", name)
		}
		seen[name] = true
	}
	if c.Providers.Default != "" && !seen[c.Providers.Default] {
		return fmt.Errorf("default provider %s is not in providers.order", c.Providers.Default)
	}
	if c.Providers.MaxErrors < 1 {
		return fmt.Errorf("providers.max_errors must be at least 1, got %d", c.Providers.MaxErrors)
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %g", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}

	if c.Memory.Enabled {
		switch c.Database.Type {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("unsupported database type: %s", c.Database.Type)
		}
		if c.Memory.ContextTurns < 1 {
			return fmt.Errorf("memory.context_turns must be at least 1, got %d", c.Memory.ContextTurns)
		}
		switch c.Memory.CacheBackend {
		case "", "memory", "redis", "none":
		default:
			return fmt.Errorf("unsupported memory.cache_backend: %s", c.Memory.CacheBackend)
		}
	}

	if _, err := zerolog.ParseLevel(c.Monitoring.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Monitoring.Logging.Level, err)
	}

	return nil
}
