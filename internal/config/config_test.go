package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	// Run from an empty dir so no stray config.yaml is picked up.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "sqlite", cfg.Store.Backend)
	require.Equal(t, "memory", cfg.Knowledge.Backend)
	require.Equal(t, "extractive", cfg.LLM.Provider)
	require.Equal(t, 2, cfg.Worker.Concurrency)
	require.Equal(t, 5*time.Second, cfg.Worker.Backoff)
	require.Equal(t, "artifacts", cfg.Artifacts.Dir)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  shutdown_timeout: 5s
store:
  backend: memory
worker:
  concurrency: 4
  backoff: 250ms
llm:
  provider: anthropic
  model: claude-sonnet-4-5
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	require.Equal(t, "memory", cfg.Store.Backend)
	require.Equal(t, 4, cfg.Worker.Concurrency)
	require.Equal(t, 250*time.Millisecond, cfg.Worker.Backoff)
	require.Equal(t, "anthropic", cfg.LLM.Provider)
	require.Equal(t, "claude-sonnet-4-5", cfg.LLM.Model)
	require.Equal(t, slog.LevelDebug, cfg.SlogLevel())

	// Untouched sections keep their defaults.
	require.Equal(t, 3, cfg.Worker.MaxAttempts)
	require.Equal(t, "memory", cfg.Knowledge.Backend)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RESPOSTA_SERVER_ADDR", ":7070")
	t.Setenv("RESPOSTA_STORE_BACKEND", "redis")
	t.Setenv("RESPOSTA_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("RESPOSTA_WORKER_CONCURRENCY", "8")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Environment wins over the file, file wins over defaults.
	require.Equal(t, ":7070", cfg.Server.Addr)
	require.Equal(t, "redis", cfg.Store.Backend)
	require.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	require.Equal(t, 8, cfg.Worker.Concurrency)
}

func TestValidate_RejectsUnknownBackends(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"store", func(c *Config) { c.Store.Backend = "cassandra" }, "unknown store backend"},
		{"knowledge", func(c *Config) { c.Knowledge.Backend = "faiss" }, "unknown knowledge backend"},
		{"llm", func(c *Config) { c.LLM.Provider = "bard" }, "unknown llm provider"},
		{"llm-model", func(c *Config) { c.LLM.Provider = "openai" }, "llm.model is required"},
		{"pgvector-url", func(c *Config) { c.Knowledge.Backend = "pgvector" }, "postgres_url is required"},
		{"concurrency", func(c *Config) { c.Worker.Concurrency = 0 }, "concurrency"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestSlogLevel_Mapping(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		cfg := Defaults()
		cfg.Log.Level = in
		if got := cfg.SlogLevel(); got != want {
			t.Fatalf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
