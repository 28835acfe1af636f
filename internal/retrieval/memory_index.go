package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/dominicdesy/intelia-expert-sub012/internal/embedding"
	"github.com/dominicdesy/intelia-expert-sub012/internal/textnorm"
)

// BM25 constants, standard values.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// MemoryIndex is an in-process ContentIndex. It serves development, tests
// and small single-node deployments; both channels run against the same
// document set.
type MemoryIndex struct {
	embedder embedding.Embedder

	mu      sync.RWMutex
	docs    []Document
	vectors [][]float32
	tokens  [][]string
	df      map[string]int
	totalDL int
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex(embedder embedding.Embedder) *MemoryIndex {
	return &MemoryIndex{
		embedder: embedder,
		df:       make(map[string]int),
	}
}

// Add embeds and indexes documents.
func (m *MemoryIndex) Add(ctx context.Context, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = textnorm.Normalize(d.Content)
	}
	vecs, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range docs {
		toks := strings.Fields(texts[i])
		m.docs = append(m.docs, d)
		m.vectors = append(m.vectors, vecs[i])
		m.tokens = append(m.tokens, toks)
		m.totalDL += len(toks)
		for _, t := range distinct(toks) {
			m.df[t]++
		}
	}
	return nil
}

// Len returns the number of indexed documents.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// VectorSearch returns the documents most similar to the query vector by
// cosine similarity.
func (m *MemoryIndex) VectorSearch(ctx context.Context, vec []float32, filters Filters, limit int) ([]ScoredDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ScoredDocument
	for i, doc := range m.docs {
		if !filters.Matches(doc) {
			continue
		}
		out = append(out, ScoredDocument{Document: doc, Score: cosine(vec, m.vectors[i])})
	}
	return top(out, limit), nil
}

// KeywordSearch returns the documents ranked by BM25 against the query terms.
func (m *MemoryIndex) KeywordSearch(ctx context.Context, query string, filters Filters, limit int) ([]ScoredDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := strings.Fields(textnorm.Normalize(query))
	if len(terms) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.docs)
	if n == 0 {
		return nil, nil
	}
	avgDL := float64(m.totalDL) / float64(n)

	var out []ScoredDocument
	for i, doc := range m.docs {
		if !filters.Matches(doc) {
			continue
		}
		score := m.bm25(terms, i, n, avgDL)
		if score <= 0 {
			continue
		}
		out = append(out, ScoredDocument{Document: doc, Score: score})
	}
	return top(out, limit), nil
}

func (m *MemoryIndex) bm25(terms []string, docIdx, n int, avgDL float64) float64 {
	toks := m.tokens[docIdx]
	dl := float64(len(toks))

	tf := make(map[string]int, len(toks))
	for _, t := range toks {
		tf[t]++
	}

	var score float64
	for _, term := range distinct(terms) {
		f := float64(tf[term])
		if f == 0 {
			continue
		}
		df := float64(m.df[term])
		idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))
		score += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*dl/avgDL))
	}
	return score
}

func top(docs []ScoredDocument, limit int) []ScoredDocument {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Score > docs[j].Score
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs
}

func distinct(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
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
