// Package semcache implements the two-level semantic cache: an embedding
// cache keyed by normalized text and an answer cache that also serves
// near-duplicate questions through embedding similarity.
package semcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dominicdesy/intelia-expert-sub012/internal/cache"
	"github.com/dominicdesy/intelia-expert-sub012/internal/embedding"
	"github.com/dominicdesy/intelia-expert-sub012/internal/observability"
	"github.com/dominicdesy/intelia-expert-sub012/internal/textnorm"
)

// HitType classifies an answer cache lookup.
type HitType string

const (
	HitExact    HitType = "exact"
	HitSemantic HitType = "semantic"
	HitMiss     HitType = "miss"
)

// Config holds semantic cache tuning.
type Config struct {
	EmbeddingTTL time.Duration
	AnswerTTL    time.Duration
	// Threshold is the minimum cosine similarity for a semantic hit.
	Threshold float64
	// WindowSize bounds the number of recent answers eligible for semantic
	// matching. The window lives in process; a restart only costs semantic
	// hits, never correctness.
	WindowSize int
}

// DefaultConfig returns the default semantic cache tuning.
func DefaultConfig() Config {
	return Config{
		EmbeddingTTL: 24 * time.Hour,
		AnswerTTL:    time.Hour,
		Threshold:    0.97,
		WindowSize:   256,
	}
}

// Stats is a snapshot of cache counters.
type Stats struct {
	ExactHits    int64   `json:"exact_hits"`
	SemanticHits int64   `json:"semantic_hits"`
	Misses       int64   `json:"misses"`
	Errors       int64   `json:"errors"`
	Writes       int64   `json:"writes"`
	HitRate      float64 `json:"hit_rate"`
}

type windowEntry struct {
	key         string
	fingerprint string
	language    string
	vec         []float32
}

// Cache is the semantic cache. A cache or embedding failure is absorbed as a
// miss; callers never see cache errors.
type Cache struct {
	store    cache.Client
	embedder embedding.Embedder
	logger   *observability.Logger
	cfg      Config

	mu     sync.Mutex
	window []windowEntry
	next   int

	exactHits    atomic.Int64
	semanticHits atomic.Int64
	misses       atomic.Int64
	errors       atomic.Int64
	writes       atomic.Int64
}

// New creates a semantic cache.
func New(store cache.Client, embedder embedding.Embedder, cfg Config, logger *observability.Logger) *Cache {
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.97
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 256
	}
	if cfg.EmbeddingTTL == 0 {
		cfg.EmbeddingTTL = 24 * time.Hour
	}
	if cfg.AnswerTTL == 0 {
		cfg.AnswerTTL = time.Hour
	}
	return &Cache{
		store:    store,
		embedder: embedder,
		logger:   logger,
		cfg:      cfg,
		window:   make([]windowEntry, 0, cfg.WindowSize),
	}
}

// Embedding returns the embedding for text, serving repeats from the cache.
// Two texts that normalize identically share one cached vector. A store
// failure falls through to the embedder.
func (c *Cache) Embedding(ctx context.Context, text string) ([]float32, error) {
	normalized := textnorm.Normalize(text)
	key := cache.CacheKey("emb", hashKey(normalized))

	if data, err := c.store.Get(ctx, key); err == nil {
		var vec []float32
		if jsonErr := json.Unmarshal(data, &vec); jsonErr == nil {
			return vec, nil
		}
	} else if err != cache.ErrCacheMiss {
		c.errors.Add(1)
		c.logger.Warn().Err(err).Msg("Embedding cache read failed")
	}

	vec, err := c.embedder.Embed(ctx, normalized)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vec); err == nil {
		if err := c.store.Set(ctx, key, data, c.cfg.EmbeddingTTL); err != nil {
			c.errors.Add(1)
			c.logger.Warn().Err(err).Msg("Embedding cache write failed")
		}
	}
	return vec, nil
}

// GetAnswer looks up a cached answer for the query under the given context
// fingerprint and language. Exact match on the normalized query is tried
// first, then a semantic match against the recent-answer window. Any failure
// degrades to a miss.
func (c *Cache) GetAnswer(ctx context.Context, query, fingerprint, language string) ([]byte, HitType) {
	normalized := textnorm.Normalize(query)
	key := answerKey(normalized, fingerprint, language)

	data, err := c.store.Get(ctx, key)
	if err == nil {
		c.exactHits.Add(1)
		return data, HitExact
	}
	if err != cache.ErrCacheMiss {
		c.errors.Add(1)
		c.logger.Warn().Err(err).Msg("Answer cache read failed")
		c.misses.Add(1)
		return nil, HitMiss
	}

	if data, ok := c.semanticLookup(ctx, normalized, fingerprint, language); ok {
		c.semanticHits.Add(1)
		return data, HitSemantic
	}

	c.misses.Add(1)
	return nil, HitMiss
}

func (c *Cache) semanticLookup(ctx context.Context, normalized, fingerprint, language string) ([]byte, bool) {
	candidates := c.windowSnapshot(fingerprint, language)
	if len(candidates) == 0 {
		return nil, false
	}

	vec, err := c.Embedding(ctx, normalized)
	if err != nil {
		c.errors.Add(1)
		c.logger.Warn().Err(err).Msg("Semantic lookup embedding failed")
		return nil, false
	}

	bestSim := c.cfg.Threshold
	bestKey := ""
	for _, entry := range candidates {
		if sim := cosine(vec, entry.vec); sim >= bestSim {
			bestSim = sim
			bestKey = entry.key
		}
	}
	if bestKey == "" {
		return nil, false
	}

	data, err := c.store.Get(ctx, bestKey)
	if err != nil {
		// Entry expired or store failed; treat as miss.
		if err != cache.ErrCacheMiss {
			c.errors.Add(1)
		}
		return nil, false
	}

	c.logger.Debug().Float64("similarity", bestSim).Msg("Semantic cache hit")
	return data, true
}

// PutAnswer stores a complete answer and registers it in the semantic window.
// Partial or degraded results must not be cached; that is the caller's
// contract.
func (c *Cache) PutAnswer(ctx context.Context, query, fingerprint, language string, answer []byte) {
	normalized := textnorm.Normalize(query)
	key := answerKey(normalized, fingerprint, language)

	if err := c.store.Set(ctx, key, answer, c.cfg.AnswerTTL); err != nil {
		c.errors.Add(1)
		c.logger.Warn().Err(err).Msg("Answer cache write failed")
		return
	}
	c.writes.Add(1)

	vec, err := c.Embedding(ctx, normalized)
	if err != nil {
		// The exact entry still works without a window slot.
		c.logger.Warn().Err(err).Msg("Window embedding failed")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry := windowEntry{key: key, fingerprint: fingerprint, language: language, vec: vec}
	if len(c.window) < c.cfg.WindowSize {
		c.window = append(c.window, entry)
		return
	}
	c.window[c.next] = entry
	c.next = (c.next + 1) % c.cfg.WindowSize
}

// Invalidate drops every cached answer under the given context fingerprint,
// for all languages. Embedding entries are untouched.
func (c *Cache) Invalidate(ctx context.Context, fingerprint string) error {
	if err := c.store.DeleteByPrefix(ctx, cache.CacheKey("ans", fingerprint)+":"); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.window[:0]
	for _, entry := range c.window {
		if entry.fingerprint != fingerprint {
			kept = append(kept, entry)
		}
	}
	c.window = kept
	if c.next >= len(c.window) {
		c.next = 0
	}
	return nil
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	s := Stats{
		ExactHits:    c.exactHits.Load(),
		SemanticHits: c.semanticHits.Load(),
		Misses:       c.misses.Load(),
		Errors:       c.errors.Load(),
		Writes:       c.writes.Load(),
	}
	total := s.ExactHits + s.SemanticHits + s.Misses
	if total > 0 {
		s.HitRate = float64(s.ExactHits+s.SemanticHits) / float64(total)
	}
	return s
}

func (c *Cache) windowSnapshot(fingerprint, language string) []windowEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []windowEntry
	for _, entry := range c.window {
		if entry.fingerprint == fingerprint && entry.language == language {
			out = append(out, entry)
		}
	}
	return out
}

func answerKey(normalizedQuery, fingerprint, language string) string {
	return cache.CacheKey("ans", fingerprint, language, hashKey(normalizedQuery))
}

func hashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
