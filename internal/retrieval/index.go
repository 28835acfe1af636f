// Package retrieval implements hybrid retrieval: concurrent vector and
// keyword channels, score fusion and optional cross-encoder reranking.
package retrieval

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Document is one retrievable content chunk.
type Document struct {
	ID          uuid.UUID         `json:"id"`
	Content     string            `json:"content"`
	Language    string            `json:"language"`
	Breed       string            `json:"breed,omitempty"`
	ProductID   string            `json:"product_id,omitempty"`
	SourceFile  string            `json:"source_file,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	PublishedAt time.Time         `json:"published_at"`
}

// Filters restricts a search to matching documents. Zero-valued fields do
// not filter.
type Filters struct {
	Breed     string
	ProductID string
	Language  string
}

// Matches reports whether the document passes the filters.
func (f Filters) Matches(doc Document) bool {
	if f.Breed != "" && doc.Breed != "" && doc.Breed != f.Breed {
		return false
	}
	if f.ProductID != "" && doc.ProductID != f.ProductID {
		return false
	}
	if f.Language != "" && doc.Language != "" && doc.Language != f.Language {
		return false
	}
	return true
}

// ScoredDocument is a document with a channel-local relevance score, higher
// is better.
type ScoredDocument struct {
	Document
	Score float64
}

// ContentIndex is the search backend behind both retrieval channels.
type ContentIndex interface {
	VectorSearch(ctx context.Context, vec []float32, filters Filters, limit int) ([]ScoredDocument, error)
	KeywordSearch(ctx context.Context, query string, filters Filters, limit int) ([]ScoredDocument, error)
}
