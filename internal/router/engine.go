package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dominicdesy/intelia-expert-sub012/internal/comparative"
	"github.com/dominicdesy/intelia-expert-sub012/internal/entities"
	"github.com/dominicdesy/intelia-expert-sub012/internal/metrics"
	"github.com/dominicdesy/intelia-expert-sub012/internal/observability"
	"github.com/dominicdesy/intelia-expert-sub012/internal/retrieval"
	"github.com/dominicdesy/intelia-expert-sub012/internal/semcache"
)

// Config holds engine tuning.
type Config struct {
	// DefaultAgeDays is the reference age used when a structured lookup has
	// no age. The defaulting is surfaced through missing_fields.
	DefaultAgeDays int
	// ComparisonWorkers bounds the concurrent sub-lookups of one comparison.
	ComparisonWorkers int
}

// DefaultEngineConfig returns the default engine tuning.
func DefaultEngineConfig() Config {
	return Config{
		DefaultAgeDays:    35,
		ComparisonWorkers: 5,
	}
}

// ComparisonItem is one side of a comparison.
type ComparisonItem struct {
	Label   string         `json:"label"`
	Value   *metrics.Value `json:"value,omitempty"`
	Missing bool           `json:"missing,omitempty"`
}

// ComparisonOutcome is a computed comparison. Result is nil when any side
// is missing or the operation is undefined on the values.
type ComparisonOutcome struct {
	Operation comparative.Operation `json:"operation"`
	Dimension entities.Field        `json:"dimension"`
	Items     []ComparisonItem      `json:"items"`
	Result    *float64              `json:"result,omitempty"`
	Unit      string                `json:"unit,omitempty"`
}

// Result is the engine's answer to one query.
type Result struct {
	Decision    Decision              `json:"decision"`
	Candidates  []retrieval.Candidate `json:"candidates,omitempty"`
	MetricValue *metrics.Value        `json:"metric_value,omitempty"`
	Comparison  *ComparisonOutcome    `json:"comparison,omitempty"`
	CacheHit    semcache.HitType      `json:"cache_hit,omitempty"`
	Degraded    bool                  `json:"degraded"`
	LatencyMs   int64                 `json:"latency_ms"`
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Structured  int64          `json:"structured"`
	Knowledge   int64          `json:"knowledge"`
	Comparative int64          `json:"comparative"`
	Clarify     int64          `json:"clarify"`
	Cache       semcache.Stats `json:"cache"`
}

// Engine wires extraction, routing, retrieval, the metric store and the
// semantic cache into one query pipeline.
type Engine struct {
	extractor  *entities.Extractor
	detector   *comparative.Detector
	classifier *Classifier
	retriever  *retrieval.HybridRetriever
	store      metrics.Store
	answers    *semcache.Cache
	logger     *observability.Logger
	cfg        Config

	structured  atomic.Int64
	knowledge   atomic.Int64
	comparative atomic.Int64
	clarify     atomic.Int64
}

// NewEngine creates an engine. answers may be nil to disable answer caching.
func NewEngine(
	extractor *entities.Extractor,
	detector *comparative.Detector,
	retriever *retrieval.HybridRetriever,
	store metrics.Store,
	answers *semcache.Cache,
	cfg Config,
	logger *observability.Logger,
) *Engine {
	if cfg.DefaultAgeDays <= 0 {
		cfg.DefaultAgeDays = 35
	}
	if cfg.ComparisonWorkers <= 0 {
		cfg.ComparisonWorkers = 5
	}
	return &Engine{
		extractor:  extractor,
		detector:   detector,
		classifier: NewClassifier(logger),
		retriever:  retriever,
		store:      store,
		answers:    answers,
		logger:     logger,
		cfg:        cfg,
	}
}

// Route classifies a query without resolving it.
func (e *Engine) Route(query, language string, conv ConversationContext) Decision {
	extracted := e.extractor.Extract(query)
	merged := MergeContext(extracted, conv)
	info := e.detector.Detect(merged)
	return e.classifier.Classify(query, language, merged, info)
}

// Answer routes and resolves a query.
func (e *Engine) Answer(ctx context.Context, query, language string, conv ConversationContext) (*Result, error) {
	start := time.Now()
	decision := e.Route(query, language, conv)
	result := &Result{Decision: decision}

	var err error
	switch decision.Destination {
	case DestClarify:
		e.clarify.Add(1)

	case DestStructured:
		e.structured.Add(1)
		err = e.answerStructured(ctx, result)

	case DestComparative:
		e.comparative.Add(1)
		err = e.answerComparative(ctx, query, language, conv, result)

	case DestKnowledge:
		e.knowledge.Add(1)
		err = e.answerKnowledge(ctx, query, language, conv, result)
	}

	result.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("destination", string(decision.Destination)).
		Str("cache_hit", string(result.CacheHit)).
		Bool("degraded", result.Degraded).
		Int64("latency_ms", result.LatencyMs).
		Msg("Answered query")
	return result, nil
}

func (e *Engine) answerStructured(ctx context.Context, result *Result) error {
	ent := result.Decision.Entities
	value, err := e.lookupMetric(ctx, ent)
	if err != nil {
		if errors.Is(err, metrics.ErrMetricNotFound) {
			// No table row; the knowledge channel may still cover it.
			return e.structuredFallback(ctx, result)
		}
		return fmt.Errorf("structured lookup: %w", err)
	}
	result.MetricValue = value
	return nil
}

// structuredFallback retrieves documents when the metric table has no row.
func (e *Engine) structuredFallback(ctx context.Context, result *Result) error {
	if e.retriever == nil {
		return nil
	}
	ent := result.Decision.Entities
	res, err := e.retriever.Retrieve(ctx, result.Decision.Entities.Breed+" "+string(ent.Metric), retrieval.Filters{
		Breed:    ent.Breed,
		Language: result.Decision.Language,
	})
	if err != nil {
		// The structured path already failed softly; report no data.
		e.logger.Warn().Err(err).Msg("Structured fallback retrieval failed")
		result.Degraded = true
		return nil
	}
	result.Candidates = res.Candidates
	result.Degraded = res.Degraded
	return nil
}

func (e *Engine) lookupMetric(ctx context.Context, ent entities.ExtractedEntities) (*metrics.Value, error) {
	if e.store == nil {
		return nil, metrics.ErrMetricNotFound
	}
	sex := ent.Sex
	if sex == "" {
		sex = entities.SexAsHatched
	}
	age := e.cfg.DefaultAgeDays
	if ent.Age != nil {
		age = ent.Age.Days()
	}
	return e.store.GetMetric(ctx, ent.Breed, sex, age, ent.Metric)
}

// answerComparative resolves every compared value through a bounded worker
// pool and applies the comparison operation.
func (e *Engine) answerComparative(ctx context.Context, query, language string, conv ConversationContext, result *Result) error {
	decision := result.Decision
	if !decision.Entities.Has(entities.FieldMetric) {
		// No metric to compute over; answer from documents instead.
		return e.answerKnowledge(ctx, query, language, conv, result)
	}

	subs := comparative.Decompose(decision.Entities, decision.Comparison)
	items := make([]ComparisonItem, len(subs))

	workers := e.cfg.ComparisonWorkers
	if workers > len(subs) {
		workers = len(subs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				item := ComparisonItem{Label: decision.Comparison.Values[i]}
				value, err := e.lookupMetric(ctx, subs[i])
				if err != nil {
					if !errors.Is(err, metrics.ErrMetricNotFound) {
						e.logger.Warn().Err(err).Str("label", item.Label).Msg("Comparison lookup failed")
					}
					item.Missing = true
				} else {
					item.Value = value
				}
				items[i] = item
			}
		}()
	}
	for i := range subs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	outcome := &ComparisonOutcome{
		Operation: decision.Comparison.Operation,
		Dimension: decision.Comparison.Dimension,
		Items:     items,
	}
	computeComparison(outcome)
	result.Comparison = outcome
	result.Degraded = outcome.Result == nil
	return nil
}

// computeComparison applies the operation over the item values. Any missing
// side leaves Result nil.
func computeComparison(outcome *ComparisonOutcome) {
	values := make([]float64, 0, len(outcome.Items))
	for _, item := range outcome.Items {
		if item.Missing || item.Value == nil {
			return
		}
		values = append(values, item.Value.Value)
	}
	if len(values) < 2 {
		return
	}
	outcome.Unit = outcome.Items[0].Value.Unit

	var r float64
	switch outcome.Operation {
	case comparative.OpDivide:
		if values[1] == 0 {
			return
		}
		r = values[0] / values[1]
		outcome.Unit = "ratio"
	case comparative.OpSubtractOverTime:
		r = values[len(values)-1] - values[0]
	case comparative.OpAverage:
		var sum float64
		for _, v := range values {
			sum += v
		}
		r = sum / float64(len(values))
	default:
		r = values[0] - values[1]
	}
	outcome.Result = &r
}

// answerKnowledge serves document retrieval through the answer cache. Only
// complete results are written back; degraded ones are recomputed next time.
// When retrieval is entirely unavailable the query is answered with a
// clarification instead of an error.
func (e *Engine) answerKnowledge(ctx context.Context, query, language string, conv ConversationContext, result *Result) error {
	if e.retriever == nil {
		e.answerUnavailable(result, retrieval.ErrUnavailable)
		return nil
	}

	fingerprint := conv.Fingerprint()
	if e.answers != nil {
		if data, hit := e.answers.GetAnswer(ctx, query, fingerprint, language); hit != semcache.HitMiss {
			var candidates []retrieval.Candidate
			if err := json.Unmarshal(data, &candidates); err != nil {
				e.logger.Warn().Err(err).Msg("Dropping undecodable cached answer")
			} else {
				result.Candidates = candidates
				result.CacheHit = hit
				return nil
			}
		}
	}

	ent := result.Decision.Entities
	res, err := e.retriever.Retrieve(ctx, query, retrieval.Filters{
		Breed:     ent.Breed,
		ProductID: ent.ProductID,
		Language:  language,
	})
	if err != nil {
		if errors.Is(err, retrieval.ErrUnavailable) {
			e.answerUnavailable(result, err)
			return nil
		}
		return fmt.Errorf("knowledge retrieval: %w", err)
	}

	result.Candidates = res.Candidates
	result.Degraded = res.Degraded
	result.CacheHit = semcache.HitMiss

	if e.answers != nil && !res.Degraded && len(res.Candidates) > 0 {
		if data, err := json.Marshal(res.Candidates); err == nil {
			e.answers.PutAnswer(ctx, query, fingerprint, language, data)
		}
	}
	return nil
}

// answerUnavailable downgrades a dead retrieval path to a clarification so
// the caller gets a usable answer shape instead of an error.
func (e *Engine) answerUnavailable(result *Result, err error) {
	e.logger.Warn().Err(err).Msg("Retrieval unavailable, answering with clarification")
	result.Decision.Destination = DestClarify
	result.Decision.Reason = "insufficient_information"
	result.Degraded = true
	result.CacheHit = semcache.HitMiss
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		Structured:  e.structured.Load(),
		Knowledge:   e.knowledge.Load(),
		Comparative: e.comparative.Load(),
		Clarify:     e.clarify.Load(),
	}
	if e.answers != nil {
		s.Cache = e.answers.Stats()
	}
	return s
}
