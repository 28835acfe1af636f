// Package entities parses free-text questions into typed entities.
package entities

// Field identifies an entity slot. Values double as the wire names used in
// missing_fields lists.
type Field string

const (
	FieldBreed   Field = "breed"
	FieldSex     Field = "sex"
	FieldAge     Field = "age_days"
	FieldMetric  Field = "metric_type"
	FieldProduct Field = "product_id"
)

// Sex is the flock sex dimension of a performance lookup.
type Sex string

const (
	SexMale      Sex = "male"
	SexFemale    Sex = "female"
	SexAsHatched Sex = "as_hatched"
)

// MetricType identifies a structured performance metric.
type MetricType string

const (
	MetricBodyWeight  MetricType = "body_weight"
	MetricFCR         MetricType = "fcr"
	MetricDailyGain   MetricType = "daily_gain"
	MetricMortality   MetricType = "mortality"
	MetricFeedIntake  MetricType = "feed_intake"
	MetricWaterIntake MetricType = "water_intake"
)

// AgeRange is an age expressed in days. A point age has Min == Max.
type AgeRange struct {
	Min int
	Max int
}

// Point reports whether the range is a single day.
func (a AgeRange) Point() bool {
	return a.Min == a.Max
}

// Days returns the representative day for the range (midpoint).
func (a AgeRange) Days() int {
	return (a.Min + a.Max) / 2
}

// ExtractedEntities is the immutable per-query snapshot of everything the
// extractor resolved. Unresolved fields are zero-valued and absent from the
// confidence map.
type ExtractedEntities struct {
	Breed      string // canonical breed name
	BreedAlias string // alias text that matched in the query
	Sex        Sex
	Age        *AgeRange
	Metric     MetricType
	ProductID  string

	// All distinct mentions, in query order, for comparative decomposition.
	BreedMentions []string
	AgeMentions   []AgeRange
	SexMentions   []Sex

	// ComparisonMarkers lists the lexical comparison markers seen in the
	// query. A marker alone never makes a query comparative.
	ComparisonMarkers []string

	Confidence map[Field]float64
}

// Has reports whether a field was resolved.
func (e ExtractedEntities) Has(f Field) bool {
	switch f {
	case FieldBreed:
		return e.Breed != ""
	case FieldSex:
		return e.Sex != ""
	case FieldAge:
		return e.Age != nil
	case FieldMetric:
		return e.Metric != ""
	case FieldProduct:
		return e.ProductID != ""
	}
	return false
}

// ConfidenceFor returns the confidence recorded for a field, 0 if absent.
func (e ExtractedEntities) ConfidenceFor(f Field) float64 {
	if e.Confidence == nil {
		return 0
	}
	return e.Confidence[f]
}

// Clone returns a deep copy. Extraction results are never mutated after
// creation; merging produces a new snapshot via Clone.
func (e ExtractedEntities) Clone() ExtractedEntities {
	out := e
	if e.Age != nil {
		age := *e.Age
		out.Age = &age
	}
	out.BreedMentions = append([]string(nil), e.BreedMentions...)
	out.AgeMentions = append([]AgeRange(nil), e.AgeMentions...)
	out.SexMentions = append([]Sex(nil), e.SexMentions...)
	out.ComparisonMarkers = append([]string(nil), e.ComparisonMarkers...)
	out.Confidence = make(map[Field]float64, len(e.Confidence))
	for k, v := range e.Confidence {
		out.Confidence[k] = v
	}
	return out
}
