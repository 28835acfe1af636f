package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8086, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 0.6, cfg.Retrieval.Alpha)
	assert.Equal(t, 0.97, cfg.SemanticCache.Threshold)
	assert.Equal(t, 35, cfg.Routing.DefaultAgeDays)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9001
retrieval:
  alpha: 0.7
  fusion: rrf
semantic_cache:
  threshold: 0.95
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, 0.7, cfg.Retrieval.Alpha)
	assert.Equal(t, "rrf", cfg.Retrieval.Fusion)
	assert.Equal(t, 0.95, cfg.SemanticCache.Threshold)
	// Untouched sections keep defaults.
	assert.Equal(t, "memory", cfg.Cache.Driver)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9002")
	t.Setenv("REDIS_URL", "redis://cache-host:6379")
	t.Setenv("EMBEDDING_BASE_URL", "https://api.example.com/v1")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9002, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache-host:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "http", cfg.Embedding.Provider)
}

func TestLoad_InvalidConfigIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  alpha: 1.5\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	cases := map[string]func(*Config){
		"bad port":           func(c *Config) { c.Server.Port = 0 },
		"bad db driver":      func(c *Config) { c.Database.Driver = "oracle" },
		"postgres needs dsn": func(c *Config) { c.Database.Driver = "postgres" },
		"bad cache driver":   func(c *Config) { c.Cache.Driver = "memcached" },
		"bad fusion":         func(c *Config) { c.Retrieval.Fusion = "max" },
		"reranker needs url": func(c *Config) { c.Reranker.Enabled = true },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}
