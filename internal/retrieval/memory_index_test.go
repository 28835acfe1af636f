package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominicdesy/intelia-expert-sub012/internal/embedding"
)

func newTestIndex(t *testing.T) *MemoryIndex {
	t.Helper()
	idx := NewMemoryIndex(embedding.NewMockClient(64))

	docs := []Document{
		{
			ID:          uuid.New(),
			Content:     "Ross 308 body weight targets by age for male broilers",
			Language:    "en",
			Breed:       "Ross 308",
			PublishedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          uuid.New(),
			Content:     "Cobb 500 feed conversion ratio guidance",
			Language:    "en",
			Breed:       "Cobb 500",
			PublishedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          uuid.New(),
			Content:     "Water intake and drinker management in broiler houses",
			Language:    "en",
			PublishedAt: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, idx.Add(context.Background(), docs...))
	return idx
}

func TestMemoryIndex_KeywordSearchRanksMatchingTerms(t *testing.T) {
	idx := newTestIndex(t)

	results, err := idx.KeywordSearch(context.Background(), "feed conversion ratio", Filters{}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Cobb 500", results[0].Breed)
}

func TestMemoryIndex_KeywordSearchEmptyQuery(t *testing.T) {
	idx := newTestIndex(t)

	results, err := idx.KeywordSearch(context.Background(), "   ", Filters{}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryIndex_VectorSearchFindsIdenticalContent(t *testing.T) {
	idx := newTestIndex(t)
	embedder := embedding.NewMockClient(64)

	vec, err := embedder.Embed(context.Background(), "ross 308 body weight targets by age for male broilers")
	require.NoError(t, err)

	results, err := idx.VectorSearch(context.Background(), vec, Filters{}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Ross 308", results[0].Breed)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestMemoryIndex_BreedFilter(t *testing.T) {
	idx := newTestIndex(t)

	results, err := idx.KeywordSearch(context.Background(), "broiler weight feed water", Filters{Breed: "Ross 308"}, 10)
	require.NoError(t, err)
	for _, r := range results {
		if r.Breed != "" {
			assert.Equal(t, "Ross 308", r.Breed)
		}
	}
}

func TestMemoryIndex_LimitApplied(t *testing.T) {
	idx := newTestIndex(t)

	results, err := idx.KeywordSearch(context.Background(), "broiler weight feed water intake", Filters{}, 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 1)
}

func TestFilters_Matches(t *testing.T) {
	doc := Document{Breed: "Ross 308", Language: "en", ProductID: "p1"}

	assert.True(t, Filters{}.Matches(doc))
	assert.True(t, Filters{Breed: "Ross 308"}.Matches(doc))
	assert.False(t, Filters{Breed: "Cobb 500"}.Matches(doc))
	assert.True(t, Filters{Breed: "Cobb 500"}.Matches(Document{}), "untagged documents pass breed filters")
	assert.False(t, Filters{ProductID: "p2"}.Matches(doc))
	assert.False(t, Filters{Language: "fr"}.Matches(doc))
}
