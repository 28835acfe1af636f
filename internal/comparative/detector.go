// Package comparative detects comparison intent and decomposes a comparative
// question into per-value sub-lookups.
package comparative

import (
	"strconv"

	"github.com/dominicdesy/intelia-expert-sub012/internal/entities"
	"github.com/dominicdesy/intelia-expert-sub012/internal/observability"
)

// Operation is the arithmetic applied to the sub-lookup results.
type Operation string

const (
	OpSubtract         Operation = "subtract"
	OpDivide           Operation = "divide"
	OpSubtractOverTime Operation = "subtract_over_time"
	OpAverage          Operation = "average"
)

// ComparisonInfo describes a detected comparison. Dimension is the entity
// field being compared and Values the distinct resolved values, in query
// order.
type ComparisonInfo struct {
	IsComparative bool
	Dimension     entities.Field
	Values        []string
	Operation     Operation
}

// operationMarkers maps lexical markers to operations across the supported
// languages. Markers absent here ("vs", "and", "compare", ...) keep the
// default subtract operation.
var operationMarkers = map[string]Operation{
	"difference": OpSubtract,
	"versus":     OpSubtract,
	"vs":         OpSubtract,
	"contre":     OpSubtract,
	"diferencia": OpSubtract,
	"ratio":      OpDivide,
	"rapport":    OpDivide,
	"evolution":  OpSubtractOverTime,
	"evolucion":  OpSubtractOverTime,
	"average":    OpAverage,
	"moyenne":    OpAverage,
	"promedio":   OpAverage,
}

// Detector classifies extractions as comparative or not.
type Detector struct {
	logger *observability.Logger
}

// NewDetector creates a detector.
func NewDetector(logger *observability.Logger) *Detector {
	return &Detector{logger: logger}
}

// Detect reports whether the extraction is a genuine comparison: a lexical
// marker plus at least two distinct resolved values on one dimension. A
// marker alone ("compared to last week") is not enough, and neither are two
// breed mentions without a marker.
func (d *Detector) Detect(e entities.ExtractedEntities) ComparisonInfo {
	if len(e.ComparisonMarkers) == 0 {
		return ComparisonInfo{}
	}

	dimension, values := comparedDimension(e)
	if len(values) < 2 {
		return ComparisonInfo{}
	}

	info := ComparisonInfo{
		IsComparative: true,
		Dimension:     dimension,
		Values:        values,
		Operation:     d.operation(e, dimension),
	}

	d.logger.Debug().
		Str("dimension", string(info.Dimension)).
		Strs("values", info.Values).
		Str("operation", string(info.Operation)).
		Msg("Detected comparative query")

	return info
}

// comparedDimension picks the dimension with at least two distinct values.
// Breed comparisons take priority over age, age over sex.
func comparedDimension(e entities.ExtractedEntities) (entities.Field, []string) {
	if vals := distinctStrings(e.BreedMentions); len(vals) >= 2 {
		return entities.FieldBreed, vals
	}

	var ages []string
	for _, a := range e.AgeMentions {
		ages = append(ages, strconv.Itoa(a.Days()))
	}
	if vals := distinctStrings(ages); len(vals) >= 2 {
		return entities.FieldAge, vals
	}

	var sexes []string
	for _, s := range e.SexMentions {
		if s != entities.SexAsHatched {
			sexes = append(sexes, string(s))
		}
	}
	if vals := distinctStrings(sexes); len(vals) >= 2 {
		return entities.FieldSex, vals
	}

	return "", nil
}

func (d *Detector) operation(e entities.ExtractedEntities, dimension entities.Field) Operation {
	for _, marker := range e.ComparisonMarkers {
		if op, ok := operationMarkers[marker]; ok {
			// An age comparison phrased as a plain difference is still a
			// change over time.
			if op == OpSubtract && dimension == entities.FieldAge {
				return OpSubtractOverTime
			}
			return op
		}
	}
	if dimension == entities.FieldAge {
		return OpSubtractOverTime
	}
	return OpSubtract
}

func distinctStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Decompose splits a comparative extraction into one sub-extraction per
// compared value. Shared fields carry over unchanged; the compared dimension
// is pinned to a single value in each sub-extraction.
func Decompose(e entities.ExtractedEntities, info ComparisonInfo) []entities.ExtractedEntities {
	if !info.IsComparative {
		return nil
	}

	subs := make([]entities.ExtractedEntities, 0, len(info.Values))
	for _, value := range info.Values {
		sub := e.Clone()
		sub.ComparisonMarkers = nil
		switch info.Dimension {
		case entities.FieldBreed:
			sub.Breed = value
			sub.BreedMentions = []string{value}
		case entities.FieldAge:
			days, _ := strconv.Atoi(value)
			sub.Age = &entities.AgeRange{Min: days, Max: days}
			sub.AgeMentions = []entities.AgeRange{{Min: days, Max: days}}
		case entities.FieldSex:
			sub.Sex = entities.Sex(value)
			sub.SexMentions = []entities.Sex{entities.Sex(value)}
		}
		subs = append(subs, sub)
	}
	return subs
}
