package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dominicdesy/intelia-expert-sub012/internal/observability"
)

// Reranker scores query/document pairs with a cross-encoder. Implementations
// return one score per input document, higher is better. Rerankers are an
// accuracy refinement: callers fall back to the fused order when a reranker
// fails.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []Document) ([]float64, error)
}

// RerankerConfig holds reranker service configuration.
type RerankerConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// HTTPReranker calls a cross-encoder rerank endpoint. No retries: a reranker
// that cannot answer inside its timeout is skipped for this query.
type HTTPReranker struct {
	cfg    RerankerConfig
	client *http.Client
	logger *observability.Logger
}

// NewHTTPReranker creates a reranker client.
func NewHTTPReranker(cfg RerankerConfig, logger *observability.Logger) *HTTPReranker {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &HTTPReranker{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores documents against the query.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, docs []Document) ([]float64, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	body, err := json.Marshal(rerankRequest{Model: r.cfg.Model, Query: query, Documents: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank service returned %d: %s", resp.StatusCode, data)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(parsed.Results) != len(docs) {
		return nil, fmt.Errorf("rerank response has %d scores, expected %d", len(parsed.Results), len(docs))
	}

	scores := make([]float64, len(docs))
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(scores) {
			return nil, fmt.Errorf("rerank response index %d out of range", res.Index)
		}
		scores[res.Index] = res.RelevanceScore
	}
	return scores, nil
}
