// Package main wires the engine dependencies from configuration.
package main

import (
	"database/sql"
	"fmt"

	// Metric store drivers.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dominicdesy/intelia-expert-sub012/internal/cache"
	"github.com/dominicdesy/intelia-expert-sub012/internal/comparative"
	"github.com/dominicdesy/intelia-expert-sub012/internal/config"
	"github.com/dominicdesy/intelia-expert-sub012/internal/embedding"
	"github.com/dominicdesy/intelia-expert-sub012/internal/entities"
	"github.com/dominicdesy/intelia-expert-sub012/internal/metrics"
	"github.com/dominicdesy/intelia-expert-sub012/internal/observability"
	"github.com/dominicdesy/intelia-expert-sub012/internal/retrieval"
	"github.com/dominicdesy/intelia-expert-sub012/internal/router"
	"github.com/dominicdesy/intelia-expert-sub012/internal/semcache"
)

// App holds the wired engine and the resources that need closing.
type App struct {
	Engine  *router.Engine
	Answers *semcache.Cache
	Index   *retrieval.MemoryIndex

	store *cache.RedisClient
	db    *sql.DB
}

// Close releases held connections.
func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// buildApp constructs the engine from configuration. Configuration problems
// surface here, at startup, and nowhere else.
func buildApp(cfg *config.Config, logger *observability.Logger) (*App, error) {
	app := &App{}

	var store cache.Client
	if cfg.Cache.Driver == "redis" {
		redisStore, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.store = redisStore
		store = redisStore
	} else {
		store = cache.NewMemoryClient(cfg.Cache.MaxEntries)
	}

	var embedder embedding.Embedder
	if cfg.Embedding.Provider == "http" {
		embedder = embedding.NewHTTPClient(embedding.Config{
			BaseURL:   cfg.Embedding.BaseURL,
			APIKey:    cfg.Embedding.APIKey,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout,
		}, logger)
	} else {
		embedder = embedding.NewMockClient(cfg.Embedding.Dimension)
	}

	app.Answers = semcache.New(store, embedder, semcache.Config{
		EmbeddingTTL: cfg.SemanticCache.EmbeddingTTL,
		AnswerTTL:    cfg.SemanticCache.AnswerTTL,
		Threshold:    cfg.SemanticCache.Threshold,
		WindowSize:   cfg.SemanticCache.WindowSize,
	}, logger)

	app.Index = retrieval.NewMemoryIndex(embedder)

	var reranker retrieval.Reranker
	if cfg.Reranker.Enabled {
		reranker = retrieval.NewHTTPReranker(retrieval.RerankerConfig{
			BaseURL: cfg.Reranker.BaseURL,
			APIKey:  cfg.Reranker.APIKey,
			Model:   cfg.Reranker.Model,
			Timeout: cfg.Reranker.Timeout,
		}, logger)
	}

	retriever := retrieval.NewHybridRetriever(app.Index, app.Answers, reranker, retrieval.Config{
		Alpha:          cfg.Retrieval.Alpha,
		RRFK:           cfg.Retrieval.RRFK,
		ChannelLimit:   cfg.Retrieval.ChannelLimit,
		RerankDepth:    cfg.Retrieval.RerankDepth,
		ChannelTimeout: cfg.Retrieval.ChannelTimeout,
		Fusion:         retrieval.FusionMethod(cfg.Retrieval.Fusion),
	}, logger)

	metricStore, err := buildMetricStore(cfg, app)
	if err != nil {
		return nil, err
	}

	aliases, err := entities.LoadAliasTable(cfg.Routing.AliasTablePath)
	if err != nil {
		return nil, fmt.Errorf("load alias table: %w", err)
	}

	app.Engine = router.NewEngine(
		entities.NewExtractor(logger, aliases),
		comparative.NewDetector(logger),
		retriever,
		metricStore,
		app.Answers,
		router.Config{
			DefaultAgeDays:    cfg.Routing.DefaultAgeDays,
			ComparisonWorkers: cfg.Routing.ComparisonWorkers,
		},
		logger,
	)
	return app, nil
}

func buildMetricStore(cfg *config.Config, app *App) (metrics.Store, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sql.Open("sqlite3", cfg.Database.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.SQLite.MaxOpenConns)
		app.db = db
		return metrics.NewSQLStore(db, "sqlite3"), nil

	case "postgres":
		db, err := sql.Open("postgres", cfg.Database.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.Postgres.ConnMaxLifetime)
		app.db = db
		return metrics.NewSQLStore(db, "postgres"), nil

	default:
		store := metrics.NewMemoryStore()
		store.SeedReference()
		return store, nil
	}
}
