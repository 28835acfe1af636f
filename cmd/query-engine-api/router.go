// Package main provides the API router setup.
package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dominicdesy/intelia-expert-sub012/internal/config"
	"github.com/dominicdesy/intelia-expert-sub012/internal/entities"
	"github.com/dominicdesy/intelia-expert-sub012/internal/observability"
	"github.com/dominicdesy/intelia-expert-sub012/internal/retrieval"
	"github.com/dominicdesy/intelia-expert-sub012/internal/router"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config, app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.Server.ReadTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"query-engine"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ready"}`))
	})

	h := &handler{logger: logger, app: app}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/query", h.query)
		r.Get("/stats", h.stats)
		r.Post("/documents", h.addDocuments)
		r.Post("/cache/invalidate", h.invalidate)
	})

	return r
}

type handler struct {
	logger *observability.Logger
	app    *App
}

type queryContext struct {
	Breed    string `json:"breed,omitempty"`
	Sex      string `json:"sex,omitempty"`
	AgeDays  int    `json:"age_days,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
}

type queryRequest struct {
	Question string        `json:"question"`
	Language string        `json:"language,omitempty"`
	Context  *queryContext `json:"context,omitempty"`
}

type queryResponse struct {
	Destination   string                    `json:"destination"`
	Reason        string                    `json:"reason"`
	MissingFields []entities.Field          `json:"missing_fields,omitempty"`
	MetricValue   interface{}               `json:"metric_value,omitempty"`
	Comparison    *router.ComparisonOutcome `json:"comparison,omitempty"`
	Candidates    []retrieval.Candidate     `json:"candidates,omitempty"`
	CacheHit      string                    `json:"cache_hit,omitempty"`
	Degraded      bool                      `json:"degraded"`
	LatencyMs     int64                     `json:"latency_ms"`
}

func (h *handler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}

	conv := router.ConversationContext{}
	if req.Context != nil {
		conv.Breed = req.Context.Breed
		conv.Sex = entities.Sex(req.Context.Sex)
		conv.TenantID = req.Context.TenantID
		if req.Context.AgeDays > 0 {
			conv.Age = &entities.AgeRange{Min: req.Context.AgeDays, Max: req.Context.AgeDays}
		}
	}

	result, err := h.app.Engine.Answer(r.Context(), req.Question, req.Language, conv)
	if err != nil {
		h.logger.Error().Err(err).Msg("Query failed")
		writeError(w, http.StatusServiceUnavailable, "query could not be answered")
		return
	}

	resp := queryResponse{
		Destination:   string(result.Decision.Destination),
		Reason:        result.Decision.Reason,
		MissingFields: result.Decision.MissingFields,
		Comparison:    result.Comparison,
		Candidates:    result.Candidates,
		CacheHit:      string(result.CacheHit),
		Degraded:      result.Degraded,
		LatencyMs:     result.LatencyMs,
	}
	if result.MetricValue != nil {
		resp.MetricValue = result.MetricValue
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Engine.Stats())
}

type documentRequest struct {
	Documents []struct {
		Content     string            `json:"content"`
		Language    string            `json:"language,omitempty"`
		Breed       string            `json:"breed,omitempty"`
		ProductID   string            `json:"product_id,omitempty"`
		SourceFile  string            `json:"source_file,omitempty"`
		Metadata    map[string]string `json:"metadata,omitempty"`
		PublishedAt time.Time         `json:"published_at,omitempty"`
	} `json:"documents"`
}

func (h *handler) addDocuments(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "no documents provided")
		return
	}

	docs := make([]retrieval.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		published := d.PublishedAt
		if published.IsZero() {
			published = time.Now().UTC()
		}
		docs = append(docs, retrieval.Document{
			ID:          uuid.New(),
			Content:     d.Content,
			Language:    d.Language,
			Breed:       d.Breed,
			ProductID:   d.ProductID,
			SourceFile:  d.SourceFile,
			Metadata:    d.Metadata,
			PublishedAt: published,
		})
	}

	if err := h.app.Index.Add(r.Context(), docs...); err != nil {
		h.logger.Error().Err(err).Msg("Document indexing failed")
		writeError(w, http.StatusServiceUnavailable, "indexing failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int{"indexed": len(docs), "total": h.app.Index.Len()})
}

type invalidateRequest struct {
	Fingerprint string `json:"fingerprint"`
}

func (h *handler) invalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Fingerprint == "" {
		writeError(w, http.StatusBadRequest, "fingerprint required")
		return
	}

	if err := h.app.Answers.Invalidate(r.Context(), req.Fingerprint); err != nil {
		h.logger.Error().Err(err).Msg("Cache invalidation failed")
		writeError(w, http.StatusServiceUnavailable, "invalidation failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
