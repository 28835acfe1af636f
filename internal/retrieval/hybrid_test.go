package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominicdesy/intelia-expert-sub012/internal/observability"
)

type stubIndex struct {
	vec    []ScoredDocument
	kw     []ScoredDocument
	vecErr error
	kwErr  error
}

func (s *stubIndex) VectorSearch(ctx context.Context, vec []float32, filters Filters, limit int) ([]ScoredDocument, error) {
	return s.vec, s.vecErr
}

func (s *stubIndex) KeywordSearch(ctx context.Context, query string, filters Filters, limit int) ([]ScoredDocument, error) {
	return s.kw, s.kwErr
}

type stubQueryEmbedder struct {
	err error
}

func (s *stubQueryEmbedder) Embedding(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0, 0}, nil
}

type stubReranker struct {
	scores []float64
	err    error
	calls  int
}

func (s *stubReranker) Rerank(ctx context.Context, query string, docs []Document) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.scores[:len(docs)], nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Level: "error", Format: "console"})
}

func doc(id byte, published time.Time) Document {
	var u uuid.UUID
	u[0] = id
	return Document{ID: u, Content: "doc", PublishedAt: published}
}

func TestRetrieve_WeightedFusionOrder(t *testing.T) {
	now := time.Now()
	a, b, c := doc(1, now), doc(2, now), doc(3, now)

	idx := &stubIndex{
		vec: []ScoredDocument{{a, 0.9}, {b, 0.5}, {c, 0.1}},
		kw:  []ScoredDocument{{b, 12.0}, {c, 6.0}},
	}
	h := NewHybridRetriever(idx, &stubQueryEmbedder{}, nil, DefaultConfig(), testLogger())

	res, err := h.Retrieve(context.Background(), "query", Filters{})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 3)

	// a: 0.6*1.0 = 0.6; b: 0.6*0.5 + 0.4*1.0 = 0.7; c: 0.4*0.0 = 0.0.
	assert.Equal(t, b.ID, res.Candidates[0].ID)
	assert.Equal(t, a.ID, res.Candidates[1].ID)
	assert.Equal(t, c.ID, res.Candidates[2].ID)
	assert.False(t, res.Degraded)
}

func TestRetrieve_RRFRankMonotonicity(t *testing.T) {
	now := time.Now()
	a, b, c := doc(1, now), doc(2, now), doc(3, now)

	cfg := DefaultConfig()
	cfg.Fusion = FusionRRF

	// Run 1: a is second in the keyword channel.
	idx := &stubIndex{
		vec: []ScoredDocument{{a, 0.9}, {b, 0.8}},
		kw:  []ScoredDocument{{c, 5.0}, {a, 4.0}},
	}
	h := NewHybridRetriever(idx, &stubQueryEmbedder{}, nil, cfg, testLogger())
	res1, err := h.Retrieve(context.Background(), "query", Filters{})
	require.NoError(t, err)

	// Run 2: identical except a moves up to first in the keyword channel.
	idx.kw = []ScoredDocument{{a, 6.0}, {c, 5.0}}
	res2, err := h.Retrieve(context.Background(), "query", Filters{})
	require.NoError(t, err)

	score1 := fusedScoreOf(t, res1.Candidates, a.ID)
	score2 := fusedScoreOf(t, res2.Candidates, a.ID)
	assert.Greater(t, score2, score1, "a better rank must yield a strictly higher fused score")
}

func fusedScoreOf(t *testing.T, candidates []Candidate, id uuid.UUID) float64 {
	t.Helper()
	for _, c := range candidates {
		if c.ID == id {
			return c.FusedScore
		}
	}
	t.Fatalf("candidate %s not found", id)
	return 0
}

func TestRetrieve_TieBreakByVectorScoreThenRecency(t *testing.T) {
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	a, b := doc(1, old), doc(2, recent)

	cfg := DefaultConfig()
	cfg.Fusion = FusionRRF

	// Same fused score on different channels: a is rank 1 in vector, b is
	// rank 1 in keyword. The higher raw vector score wins.
	idx := &stubIndex{
		vec: []ScoredDocument{{a, 0.9}},
		kw:  []ScoredDocument{{b, 7.0}},
	}
	h := NewHybridRetriever(idx, &stubQueryEmbedder{}, nil, cfg, testLogger())
	res, err := h.Retrieve(context.Background(), "query", Filters{})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, a.ID, res.Candidates[0].ID)
}

func TestRetrieve_RecencyBreaksFullTies(t *testing.T) {
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	a, b := doc(1, old), doc(2, recent)

	// Both documents share vector score and rank region; equal raw scores
	// produce equal normalized scores, so recency decides.
	idx := &stubIndex{
		vec: []ScoredDocument{{a, 0.5}, {b, 0.5}},
	}
	h := NewHybridRetriever(idx, &stubQueryEmbedder{}, nil, DefaultConfig(), testLogger())
	res, err := h.Retrieve(context.Background(), "query", Filters{})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, b.ID, res.Candidates[0].ID, "newer document wins the tie")
}

func TestRetrieve_VectorChannelFailureDegrades(t *testing.T) {
	now := time.Now()
	a := doc(1, now)

	idx := &stubIndex{kw: []ScoredDocument{{a, 3.0}}}
	h := NewHybridRetriever(idx, &stubQueryEmbedder{err: errors.New("embedding down")}, nil, DefaultConfig(), testLogger())

	res, err := h.Retrieve(context.Background(), "query", Filters{})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, []string{"vector"}, res.FailedChannels)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, a.ID, res.Candidates[0].ID)
}

func TestRetrieve_BothChannelsFailing(t *testing.T) {
	idx := &stubIndex{vecErr: errors.New("down"), kwErr: errors.New("down")}
	h := NewHybridRetriever(idx, &stubQueryEmbedder{}, nil, DefaultConfig(), testLogger())

	_, err := h.Retrieve(context.Background(), "query", Filters{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRetrieve_RerankerReorders(t *testing.T) {
	now := time.Now()
	a, b := doc(1, now), doc(2, now)

	idx := &stubIndex{vec: []ScoredDocument{{a, 0.9}, {b, 0.5}}}
	rr := &stubReranker{scores: []float64{0.1, 0.8}}
	h := NewHybridRetriever(idx, &stubQueryEmbedder{}, rr, DefaultConfig(), testLogger())

	res, err := h.Retrieve(context.Background(), "query", Filters{})
	require.NoError(t, err)
	assert.True(t, res.Reranked)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, b.ID, res.Candidates[0].ID, "reranker score outranks fused score")
	require.NotNil(t, res.Candidates[0].RerankScore)
	assert.Equal(t, 0.8, *res.Candidates[0].RerankScore)
}

func TestRetrieve_RerankerFailureFailsOpen(t *testing.T) {
	now := time.Now()
	a, b := doc(1, now), doc(2, now)

	idx := &stubIndex{vec: []ScoredDocument{{a, 0.9}, {b, 0.5}}}
	rr := &stubReranker{err: errors.New("reranker timeout")}
	h := NewHybridRetriever(idx, &stubQueryEmbedder{}, rr, DefaultConfig(), testLogger())

	res, err := h.Retrieve(context.Background(), "query", Filters{})
	require.NoError(t, err)
	assert.False(t, res.Reranked)
	assert.Equal(t, 1, rr.calls)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, a.ID, res.Candidates[0].ID, "fused order preserved")
	assert.Nil(t, res.Candidates[0].RerankScore)
}
