// Package engine provides the public Go SDK for the query engine API.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the public SDK client for the query engine.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient creates a new query engine client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8086"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// QueryContext carries entities from earlier turns of a conversation.
type QueryContext struct {
	Breed    string `json:"breed,omitempty"`
	Sex      string `json:"sex,omitempty"`
	AgeDays  int    `json:"age_days,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
}

// QueryRequest represents a query request.
type QueryRequest struct {
	Question string        `json:"question"`
	Language string        `json:"language,omitempty"`
	Context  *QueryContext `json:"context,omitempty"`
}

// MetricValue is a structured performance value.
type MetricValue struct {
	Breed   string  `json:"breed"`
	Sex     string  `json:"sex"`
	AgeDays int     `json:"age_days"`
	Metric  string  `json:"metric_type"`
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
}

// ComparisonItem is one side of a comparison.
type ComparisonItem struct {
	Label   string       `json:"label"`
	Value   *MetricValue `json:"value,omitempty"`
	Missing bool         `json:"missing,omitempty"`
}

// Comparison is a computed comparison.
type Comparison struct {
	Operation string           `json:"operation"`
	Dimension string           `json:"dimension"`
	Items     []ComparisonItem `json:"items"`
	Result    *float64         `json:"result,omitempty"`
	Unit      string           `json:"unit,omitempty"`
}

// Candidate is a retrieved document with its scores.
type Candidate struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Language    string   `json:"language"`
	Breed       string   `json:"breed,omitempty"`
	ProductID   string   `json:"product_id,omitempty"`
	SourceFile  string   `json:"source_file,omitempty"`
	FusedScore  float64  `json:"fused_score"`
	RerankScore *float64 `json:"rerank_score,omitempty"`
}

// QueryResponse represents a query response.
type QueryResponse struct {
	Destination   string       `json:"destination"`
	Reason        string       `json:"reason"`
	MissingFields []string     `json:"missing_fields,omitempty"`
	MetricValue   *MetricValue `json:"metric_value,omitempty"`
	Comparison    *Comparison  `json:"comparison,omitempty"`
	Candidates    []Candidate  `json:"candidates,omitempty"`
	CacheHit      string       `json:"cache_hit,omitempty"`
	Degraded      bool         `json:"degraded"`
	LatencyMs     int64        `json:"latency_ms"`
}

// Query answers a question.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	var resp QueryResponse
	if err := c.post(ctx, "/v1/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheStats is a snapshot of the semantic cache counters.
type CacheStats struct {
	ExactHits    int64   `json:"exact_hits"`
	SemanticHits int64   `json:"semantic_hits"`
	Misses       int64   `json:"misses"`
	Errors       int64   `json:"errors"`
	Writes       int64   `json:"writes"`
	HitRate      float64 `json:"hit_rate"`
}

// StatsResponse is a snapshot of the engine counters.
type StatsResponse struct {
	Structured  int64      `json:"structured"`
	Knowledge   int64      `json:"knowledge"`
	Comparative int64      `json:"comparative"`
	Clarify     int64      `json:"clarify"`
	Cache       CacheStats `json:"cache"`
}

// Stats returns the engine counters.
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.get(ctx, "/v1/stats", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Document is a knowledge document to index.
type Document struct {
	Content     string            `json:"content"`
	Language    string            `json:"language,omitempty"`
	Breed       string            `json:"breed,omitempty"`
	ProductID   string            `json:"product_id,omitempty"`
	SourceFile  string            `json:"source_file,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	PublishedAt time.Time         `json:"published_at,omitempty"`
}

// IndexResponse reports the outcome of an indexing call.
type IndexResponse struct {
	Indexed int `json:"indexed"`
	Total   int `json:"total"`
}

// IndexDocuments indexes knowledge documents.
func (c *Client) IndexDocuments(ctx context.Context, docs []Document) (*IndexResponse, error) {
	var resp IndexResponse
	payload := map[string][]Document{"documents": docs}
	if err := c.post(ctx, "/v1/documents", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InvalidateRequest asks the engine to drop cached answers for a context
// fingerprint.
type InvalidateRequest struct {
	Fingerprint string `json:"fingerprint"`
}

// Invalidate drops cached answers for a context fingerprint.
func (c *Client) Invalidate(ctx context.Context, fingerprint string) error {
	return c.post(ctx, "/v1/cache/invalidate", InvalidateRequest{Fingerprint: fingerprint}, nil)
}

// Health checks the API health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned %d: %s", req.URL.Path, resp.StatusCode, data)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
