package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dominicdesy/intelia-expert-sub012/internal/observability"
)

// ErrUnavailable indicates that no retrieval channel produced results.
var ErrUnavailable = errors.New("retrieval unavailable")

// FusionMethod selects how channel scores are combined.
type FusionMethod string

const (
	FusionWeighted FusionMethod = "weighted"
	FusionRRF      FusionMethod = "rrf"
)

// Config holds hybrid retrieval tuning.
type Config struct {
	// Alpha weights the vector channel in weighted fusion; the keyword
	// channel gets 1-Alpha.
	Alpha float64
	// RRFK is the rank constant in reciprocal rank fusion.
	RRFK int
	// ChannelLimit is how many results each channel returns before fusion.
	ChannelLimit int
	// RerankDepth is how many fused candidates go to the reranker.
	RerankDepth int
	// ChannelTimeout bounds each channel independently.
	ChannelTimeout time.Duration
	Fusion         FusionMethod
}

// DefaultConfig returns the default retrieval tuning.
func DefaultConfig() Config {
	return Config{
		Alpha:          0.6,
		RRFK:           60,
		ChannelLimit:   50,
		RerankDepth:    20,
		ChannelTimeout: 2 * time.Second,
		Fusion:         FusionWeighted,
	}
}

// Candidate is a fused retrieval result. Channel ranks are 1-based; 0 means
// the channel did not return the document.
type Candidate struct {
	Document
	VectorScore  float64  `json:"vector_score"`
	KeywordScore float64  `json:"keyword_score"`
	VectorRank   int      `json:"vector_rank,omitempty"`
	KeywordRank  int      `json:"keyword_rank,omitempty"`
	FusedScore   float64  `json:"fused_score"`
	RerankScore  *float64 `json:"rerank_score,omitempty"`
}

// Result is the outcome of one hybrid retrieval.
type Result struct {
	Candidates []Candidate `json:"candidates"`
	// Degraded is set when a channel failed and results come from the
	// remaining one.
	Degraded        bool     `json:"degraded"`
	FailedChannels  []string `json:"failed_channels,omitempty"`
	Reranked        bool     `json:"reranked"`
	RerankAttempted bool     `json:"-"`
}

// QueryEmbedder provides query embeddings, typically the semantic cache.
type QueryEmbedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// HybridRetriever runs both channels concurrently and fuses their rankings.
type HybridRetriever struct {
	index    ContentIndex
	embedder QueryEmbedder
	reranker Reranker
	logger   *observability.Logger
	cfg      Config
}

// NewHybridRetriever creates a hybrid retriever. reranker may be nil, in
// which case the fused order is final.
func NewHybridRetriever(index ContentIndex, embedder QueryEmbedder, reranker Reranker, cfg Config, logger *observability.Logger) *HybridRetriever {
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = 0.6
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = 60
	}
	if cfg.ChannelLimit <= 0 {
		cfg.ChannelLimit = 50
	}
	if cfg.RerankDepth <= 0 {
		cfg.RerankDepth = 20
	}
	if cfg.ChannelTimeout <= 0 {
		cfg.ChannelTimeout = 2 * time.Second
	}
	if cfg.Fusion == "" {
		cfg.Fusion = FusionWeighted
	}
	return &HybridRetriever{
		index:    index,
		embedder: embedder,
		reranker: reranker,
		logger:   logger,
		cfg:      cfg,
	}
}

// Retrieve runs vector and keyword search concurrently, fuses the rankings
// and reranks the top candidates. One failed channel degrades the result;
// two failed channels return ErrUnavailable.
func (h *HybridRetriever) Retrieve(ctx context.Context, query string, filters Filters) (*Result, error) {
	var (
		wg          sync.WaitGroup
		vecResults  []ScoredDocument
		kwResults   []ScoredDocument
		vecErr      error
		kwErr       error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(ctx, h.cfg.ChannelTimeout)
		defer cancel()
		vecResults, vecErr = h.vectorChannel(cctx, query, filters)
	}()
	go func() {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(ctx, h.cfg.ChannelTimeout)
		defer cancel()
		kwResults, kwErr = h.index.KeywordSearch(cctx, query, filters, h.cfg.ChannelLimit)
	}()
	wg.Wait()

	if vecErr != nil && kwErr != nil {
		return nil, fmt.Errorf("%w: vector: %v, keyword: %v", ErrUnavailable, vecErr, kwErr)
	}

	result := &Result{}
	if vecErr != nil {
		result.Degraded = true
		result.FailedChannels = append(result.FailedChannels, "vector")
		h.logger.Warn().Err(vecErr).Msg("Vector channel failed, keyword only")
	}
	if kwErr != nil {
		result.Degraded = true
		result.FailedChannels = append(result.FailedChannels, "keyword")
		h.logger.Warn().Err(kwErr).Msg("Keyword channel failed, vector only")
	}

	result.Candidates = h.fuse(vecResults, kwResults)
	h.rerank(ctx, query, result)

	return result, nil
}

func (h *HybridRetriever) vectorChannel(ctx context.Context, query string, filters Filters) ([]ScoredDocument, error) {
	vec, err := h.embedder.Embedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return h.index.VectorSearch(ctx, vec, filters, h.cfg.ChannelLimit)
}

// fuse merges the two channel rankings into one ordered candidate list.
func (h *HybridRetriever) fuse(vec, kw []ScoredDocument) []Candidate {
	byID := make(map[uuid.UUID]*Candidate)
	var order []uuid.UUID

	for rank, sd := range vec {
		c := &Candidate{Document: sd.Document, VectorScore: sd.Score, VectorRank: rank + 1}
		byID[sd.ID] = c
		order = append(order, sd.ID)
	}
	for rank, sd := range kw {
		if c, ok := byID[sd.ID]; ok {
			c.KeywordScore = sd.Score
			c.KeywordRank = rank + 1
			continue
		}
		c := &Candidate{Document: sd.Document, KeywordScore: sd.Score, KeywordRank: rank + 1}
		byID[sd.ID] = c
		order = append(order, sd.ID)
	}

	candidates := make([]Candidate, 0, len(order))
	switch h.cfg.Fusion {
	case FusionRRF:
		for _, id := range order {
			c := byID[id]
			c.FusedScore = h.rrfScore(c.VectorRank) + h.rrfScore(c.KeywordRank)
			candidates = append(candidates, *c)
		}
	default:
		vMin, vMax := scoreRange(vec)
		kMin, kMax := scoreRange(kw)
		for _, id := range order {
			c := byID[id]
			v := normalizeScore(c.VectorScore, vMin, vMax, c.VectorRank > 0)
			k := normalizeScore(c.KeywordScore, kMin, kMax, c.KeywordRank > 0)
			c.FusedScore = h.cfg.Alpha*v + (1-h.cfg.Alpha)*k
			candidates = append(candidates, *c)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].FusedScore != candidates[j].FusedScore {
			return candidates[i].FusedScore > candidates[j].FusedScore
		}
		// Ties go to the higher raw vector score, then to the newer document.
		if candidates[i].VectorScore != candidates[j].VectorScore {
			return candidates[i].VectorScore > candidates[j].VectorScore
		}
		return candidates[i].PublishedAt.After(candidates[j].PublishedAt)
	})
	return candidates
}

func (h *HybridRetriever) rrfScore(rank int) float64 {
	if rank == 0 {
		return 0
	}
	return 1 / float64(h.cfg.RRFK+rank)
}

// rerank scores the top fused candidates with the cross-encoder and reorders
// them. Reranker failure keeps the fused order.
func (h *HybridRetriever) rerank(ctx context.Context, query string, result *Result) {
	if h.reranker == nil || len(result.Candidates) == 0 {
		return
	}
	result.RerankAttempted = true

	depth := h.cfg.RerankDepth
	if depth > len(result.Candidates) {
		depth = len(result.Candidates)
	}

	docs := make([]Document, depth)
	for i := 0; i < depth; i++ {
		docs[i] = result.Candidates[i].Document
	}

	scores, err := h.reranker.Rerank(ctx, query, docs)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Reranker failed, keeping fused order")
		return
	}
	if len(scores) != depth {
		h.logger.Warn().Int("scores", len(scores)).Int("expected", depth).Msg("Reranker score count mismatch, keeping fused order")
		return
	}

	head := result.Candidates[:depth]
	for i := range head {
		s := scores[i]
		head[i].RerankScore = &s
	}
	sort.SliceStable(head, func(i, j int) bool {
		return *head[i].RerankScore > *head[j].RerankScore
	})
	result.Reranked = true
}

func scoreRange(docs []ScoredDocument) (min, max float64) {
	for i, d := range docs {
		if i == 0 || d.Score < min {
			min = d.Score
		}
		if i == 0 || d.Score > max {
			max = d.Score
		}
	}
	return min, max
}

// normalizeScore min-max normalizes a channel score. A document absent from
// the channel contributes 0; a degenerate range maps every present document
// to 1.
func normalizeScore(score, min, max float64, present bool) float64 {
	if !present {
		return 0
	}
	if max == min {
		return 1
	}
	return (score - min) / (max - min)
}
