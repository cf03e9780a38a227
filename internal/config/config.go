// Package config loads respostad configuration from a YAML file and
// RESPOSTA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for respostad.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the workflow store backend.
type StoreConfig struct {
	// Backend is one of "memory", "sqlite", "postgres", "redis".
	Backend string `mapstructure:"backend"`

	// DSN is the sqlite path or postgres URL. Ignored for memory and
	// redis backends.
	DSN string `mapstructure:"dsn"`
}

// RedisConfig is used when the store backend is "redis".
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig sizes the queue consumers.
type WorkerConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// KnowledgeConfig selects the retrieval backend.
type KnowledgeConfig struct {
	// Backend is "memory" or "pgvector".
	Backend string `mapstructure:"backend"`

	// PostgresURL is the pgvector database URL ("pgvector" backend).
	PostgresURL string `mapstructure:"postgres_url"`

	// Ollama settings for the embedding client ("pgvector" backend).
	OllamaURL   string `mapstructure:"ollama_url"`
	OllamaModel string `mapstructure:"ollama_model"`

	// TopK is how many passages each retrieval query returns.
	TopK int `mapstructure:"top_k"`
}

// LLMConfig selects the answer generator. API keys are read from the
// provider's usual environment variable (ANTHROPIC_API_KEY or
// OPENAI_API_KEY), never from the config file.
type LLMConfig struct {
	// Provider is "extractive", "anthropic" or "openai".
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

// ArtifactsConfig locates rendered documents.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `mapstructure:"level"`
}

// Defaults returns the configuration used when no file and no
// environment overrides are present.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			DSN:     "file:resposta.db?_journal=WAL",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Worker: WorkerConfig{
			Concurrency: 2,
			MaxAttempts: 3,
			Backoff:     5 * time.Second,
		},
		Knowledge: KnowledgeConfig{
			Backend:     "memory",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "nomic-embed-text",
			TopK:        5,
		},
		LLM: LLMConfig{
			Provider: "extractive",
		},
		Artifacts: ArtifactsConfig{
			Dir: "artifacts",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given file path (optional; empty
// means search ./config.yaml and ./config/config.yaml), then applies
// RESPOSTA_* environment overrides on top. A missing config file is not
// an error; defaults and the environment carry the full configuration.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Defaults()
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout)
	v.SetDefault("store.backend", def.Store.Backend)
	v.SetDefault("store.dsn", def.Store.DSN)
	v.SetDefault("redis.addr", def.Redis.Addr)
	v.SetDefault("redis.password", def.Redis.Password)
	v.SetDefault("redis.db", def.Redis.DB)
	v.SetDefault("worker.concurrency", def.Worker.Concurrency)
	v.SetDefault("worker.max_attempts", def.Worker.MaxAttempts)
	v.SetDefault("worker.backoff", def.Worker.Backoff)
	v.SetDefault("knowledge.backend", def.Knowledge.Backend)
	v.SetDefault("knowledge.postgres_url", def.Knowledge.PostgresURL)
	v.SetDefault("knowledge.ollama_url", def.Knowledge.OllamaURL)
	v.SetDefault("knowledge.ollama_model", def.Knowledge.OllamaModel)
	v.SetDefault("knowledge.top_k", def.Knowledge.TopK)
	v.SetDefault("llm.provider", def.LLM.Provider)
	v.SetDefault("llm.model", def.LLM.Model)
	v.SetDefault("artifacts.dir", def.Artifacts.Dir)
	v.SetDefault("log.level", def.Log.Level)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("RESPOSTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicit path must exist; the default search may come up empty.
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot be assembled.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "sqlite", "postgres", "redis":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	switch c.Knowledge.Backend {
	case "memory", "pgvector":
	default:
		return fmt.Errorf("config: unknown knowledge backend %q", c.Knowledge.Backend)
	}
	switch c.LLM.Provider {
	case "extractive":
	case "anthropic", "openai":
		if c.LLM.Model == "" {
			return fmt.Errorf("config: llm.model is required for provider %q", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}
	if c.Knowledge.Backend == "pgvector" && c.Knowledge.PostgresURL == "" {
		return fmt.Errorf("config: knowledge.postgres_url is required for the pgvector backend")
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be at least 1, got %d", c.Worker.Concurrency)
	}
	return nil
}

// SlogLevel maps the configured log level to a slog.Level. Unknown
// values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
