package router

import (
	"github.com/dominicdesy/intelia-expert-sub012/internal/comparative"
	"github.com/dominicdesy/intelia-expert-sub012/internal/entities"
	"github.com/dominicdesy/intelia-expert-sub012/internal/observability"
	"github.com/dominicdesy/intelia-expert-sub012/internal/textnorm"
)

// knowledgeTerms is the intent vocabulary that routes a query to document
// retrieval even without a resolvable metric. Accent-folded.
var knowledgeTerms = []string{
	// English
	"disease", "diseases", "vaccine", "vaccines", "vaccination", "treatment",
	"symptom", "symptoms", "ventilation", "litter", "biosecurity", "brooding",
	"lighting", "humidity", "temperature", "coccidiosis", "ascites",
	"enteritis", "newcastle", "gumboro", "bronchitis", "nutrition", "welfare",
	"prevention", "cause", "causes", "why", "how",
	// French
	"maladie", "maladies", "vaccin", "vaccins", "traitement", "symptome",
	"symptomes", "litiere", "biosecurite", "demarrage", "eclairage",
	"humidite", "coccidiose", "ascite", "pourquoi", "comment",
	// Spanish
	"enfermedad", "enfermedades", "vacuna", "vacunas", "tratamiento",
	"sintoma", "sintomas", "ventilacion", "bioseguridad", "iluminacion",
	"humedad", "ascitis", "por que", "como", "prevencion", "causa",
}

// Classifier turns an extraction into a routing decision.
type Classifier struct {
	logger *observability.Logger
}

// NewClassifier creates a classifier.
func NewClassifier(logger *observability.Logger) *Classifier {
	return &Classifier{logger: logger}
}

// Classify applies the routing rules in priority order: product scoping,
// comparison, structured lookup, knowledge intent, clarification.
func (c *Classifier) Classify(query, language string, e entities.ExtractedEntities, info comparative.ComparisonInfo) Decision {
	d := Decision{Language: language, Entities: e, Comparison: info}

	switch {
	case e.Has(entities.FieldProduct):
		d.Destination = DestKnowledge
		d.Reason = "product_scoped"

	case info.IsComparative:
		d.Destination = DestComparative
		d.Reason = "comparison_detected"
		d.MissingFields = defaultedFields(e)

	case e.Has(entities.FieldMetric) && e.Has(entities.FieldBreed):
		d.Destination = DestStructured
		d.Reason = "metric_lookup"
		d.MissingFields = defaultedFields(e)

	case c.hasKnowledgeIntent(query):
		d.Destination = DestKnowledge
		d.Reason = "knowledge_intent"

	default:
		d.Destination = DestClarify
		d.Reason = "insufficient_entities"
		d.MissingFields = clarifyFields(e)
	}

	c.logger.Debug().
		Str("destination", string(d.Destination)).
		Str("reason", d.Reason).
		Msg("Classified query")
	return d
}

func (c *Classifier) hasKnowledgeIntent(query string) bool {
	normalized := textnorm.Normalize(query)
	for _, term := range knowledgeTerms {
		if textnorm.ContainsPhrase(normalized, term) {
			return true
		}
	}
	return false
}

// defaultedFields lists the fields a structured lookup will default-fill,
// so callers can surface them alongside the answer. Sex defaults to
// as-hatched silently; a missing age is worth telling the user about.
func defaultedFields(e entities.ExtractedEntities) []entities.Field {
	if !e.Has(entities.FieldAge) {
		return []entities.Field{entities.FieldAge}
	}
	return nil
}

// clarifyFields lists what the user must provide, in fixed order.
func clarifyFields(e entities.ExtractedEntities) []entities.Field {
	var out []entities.Field
	for _, f := range []entities.Field{entities.FieldBreed, entities.FieldAge, entities.FieldSex} {
		if !e.Has(f) {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		// Everything contextual is known; only the metric is unclear.
		out = append(out, entities.FieldMetric)
	}
	return out
}
