package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominicdesy/intelia-expert-sub012/internal/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Level: "error", Format: "console"})
}

func TestHTTPClient_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embeddingResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i), 1}, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, Dimension: 2}, testLogger())

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 1}, vecs[1])
}

func TestHTTPClient_TransientErrorRetriedOnce(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL}, testLogger())

	_, err := c.Embed(context.Background(), "a")
	require.Error(t, err)
	assert.Equal(t, int64(2), calls.Load(), "one initial attempt plus one retry")
}

func TestHTTPClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL}, testLogger())

	_, err := c.Embed(context.Background(), "a")
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestMockClient_Deterministic(t *testing.T) {
	m := NewMockClient(16)
	ctx := context.Background()

	a1, err := m.Embed(ctx, "same text")
	require.NoError(t, err)
	a2, err := m.Embed(ctx, "same text")
	require.NoError(t, err)
	b, err := m.Embed(ctx, "other text")
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.Len(t, a1, 16)
}
