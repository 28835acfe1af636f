// Package config provides unified configuration loading for the query
// engine. Supports YAML files, environment variables, and programmatic
// overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the query engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Reranker      RerankerConfig      `yaml:"reranker"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	SemanticCache SemanticCacheConfig `yaml:"semantic_cache"`
	Routing       RoutingConfig       `yaml:"routing"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// DatabaseConfig holds metric store connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // memory, sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds cache store settings.
type CacheConfig struct {
	Driver     string      `yaml:"driver"` // memory or redis
	MaxEntries int         `yaml:"max_entries"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// EmbeddingConfig holds embedding service settings.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"` // mock or http
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
}

// RerankerConfig holds cross-encoder reranker settings.
type RerankerConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// RetrievalConfig holds hybrid retrieval settings.
type RetrievalConfig struct {
	Alpha          float64       `yaml:"alpha"`
	Fusion         string        `yaml:"fusion"` // weighted or rrf
	RRFK           int           `yaml:"rrf_k"`
	ChannelLimit   int           `yaml:"channel_limit"`
	RerankDepth    int           `yaml:"rerank_depth"`
	ChannelTimeout time.Duration `yaml:"channel_timeout"`
}

// SemanticCacheConfig holds semantic cache settings.
type SemanticCacheConfig struct {
	EmbeddingTTL time.Duration `yaml:"embedding_ttl"`
	AnswerTTL    time.Duration `yaml:"answer_ttl"`
	Threshold    float64       `yaml:"threshold"`
	WindowSize   int           `yaml:"window_size"`
}

// RoutingConfig holds routing and entity extraction settings.
type RoutingConfig struct {
	AliasTablePath    string `yaml:"alias_table_path"`
	DefaultAgeDays    int    `yaml:"default_age_days"`
	ComparisonWorkers int    `yaml:"comparison_workers"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment
// overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for
// development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8086,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "memory",
			SQLite: SQLiteConfig{
				Path:         "/tmp/query-engine.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:     "memory",
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
				Prefix:   "qe:",
			},
		},
		Embedding: EmbeddingConfig{
			Provider:  "mock",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			Timeout:   10 * time.Second,
		},
		Reranker: RerankerConfig{
			Enabled: false,
			Model:   "rerank-multilingual-v3",
			Timeout: 5 * time.Second,
		},
		Retrieval: RetrievalConfig{
			Alpha:          0.6,
			Fusion:         "weighted",
			RRFK:           60,
			ChannelLimit:   50,
			RerankDepth:    20,
			ChannelTimeout: 2 * time.Second,
		},
		SemanticCache: SemanticCacheConfig{
			EmbeddingTTL: 24 * time.Hour,
			AnswerTTL:    time.Hour,
			Threshold:    0.97,
			WindowSize:   256,
		},
		Routing: RoutingConfig{
			DefaultAgeDays:    35,
			ComparisonWorkers: 5,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "query-engine",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Database.Driver == "postgres" && c.Database.Postgres.DSN == "" {
		return fmt.Errorf("postgres driver requires a dsn")
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Embedding.Provider != "mock" && c.Embedding.Provider != "http" {
		return fmt.Errorf("invalid embedding provider: %s", c.Embedding.Provider)
	}

	if c.Embedding.Provider == "http" && c.Embedding.BaseURL == "" {
		return fmt.Errorf("http embedding provider requires a base_url")
	}

	if c.Reranker.Enabled && c.Reranker.BaseURL == "" {
		return fmt.Errorf("enabled reranker requires a base_url")
	}

	if c.Retrieval.Alpha <= 0 || c.Retrieval.Alpha >= 1 {
		return fmt.Errorf("retrieval alpha must be in (0, 1)")
	}

	if c.Retrieval.Fusion != "weighted" && c.Retrieval.Fusion != "rrf" {
		return fmt.Errorf("invalid fusion method: %s", c.Retrieval.Fusion)
	}

	if c.SemanticCache.Threshold < 0.5 || c.SemanticCache.Threshold > 1 {
		return fmt.Errorf("semantic cache threshold must be in [0.5, 1]")
	}

	return nil
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.Provider = "http"
		cfg.Embedding.BaseURL = v
	}

	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}

	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}

	if v := os.Getenv("RERANKER_BASE_URL"); v != "" {
		cfg.Reranker.Enabled = true
		cfg.Reranker.BaseURL = v
	}

	if v := os.Getenv("RERANKER_API_KEY"); v != "" {
		cfg.Reranker.APIKey = v
	}

	if v := os.Getenv("ALIAS_TABLE_PATH"); v != "" {
		cfg.Routing.AliasTablePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
