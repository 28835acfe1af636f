// Package embedding provides the embedding service client used by the
// semantic cache and the vector retrieval channel.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dominicdesy/intelia-expert-sub012/internal/observability"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config holds embedding service configuration.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// HTTPClient calls an OpenAI-compatible embeddings endpoint. Transient
// failures are retried with exponential backoff inside the request timeout.
type HTTPClient struct {
	cfg    Config
	client *http.Client
	logger *observability.Logger
}

// NewHTTPClient creates an embedding client.
func NewHTTPClient(cfg Config, logger *observability.Logger) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed generates an embedding for a single text.
func (c *HTTPClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (c *HTTPClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	operation := func() error {
		return c.doRequest(ctx, texts, &resp)
	}

	// One retry after the initial attempt; transient outages beyond that are
	// surfaced to the caller.
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors, expected %d", len(resp.Data), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding response index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

func (c *HTTPClient) doRequest(ctx context.Context, texts []string, out *embeddingResponse) error {
	body, err := json.Marshal(embeddingRequest{Model: c.cfg.Model, Input: texts})
	if err != nil {
		return backoff.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Embedding request failed, will retry")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		c.logger.Warn().Int("status", resp.StatusCode).Msg("Embedding service error, will retry")
		return fmt.Errorf("embedding service returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return backoff.Permanent(fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// Dimension returns the embedding vector size.
func (c *HTTPClient) Dimension() int {
	return c.cfg.Dimension
}

// MockClient generates deterministic embeddings for tests and development.
// Identical texts map to identical vectors; different texts are very unlikely
// to collide.
type MockClient struct {
	dimension int
}

// NewMockClient creates a mock embedder.
func NewMockClient(dimension int) *MockClient {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockClient{dimension: dimension}
}

// Embed generates a deterministic unit vector derived from the text.
func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, m.dimension)
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float32(int64(seed>>32)) / float32(math.MaxInt32)
		vec[i] = v
		norm += float64(v) * float64(v)
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

// EmbedBatch generates deterministic embeddings for multiple texts.
func (m *MockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Dimension returns the embedding vector size.
func (m *MockClient) Dimension() int {
	return m.dimension
}
