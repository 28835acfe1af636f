package comparative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominicdesy/intelia-expert-sub012/internal/entities"
	"github.com/dominicdesy/intelia-expert-sub012/internal/observability"
)

func newTestDetector(t *testing.T) (*Detector, *entities.Extractor) {
	t.Helper()
	logger := observability.NewLogger(observability.LogConfig{Level: "error", Format: "console"})
	return NewDetector(logger), entities.NewExtractor(logger, entities.DefaultAliasTable())
}

func TestDetect_EnglishBreedComparison(t *testing.T) {
	d, x := newTestDetector(t)

	info := d.Detect(x.Extract("Compare the FCR of Ross 308 and Cobb 500 at 35 days"))

	require.True(t, info.IsComparative)
	assert.Equal(t, entities.FieldBreed, info.Dimension)
	assert.Equal(t, []string{"Ross 308", "Cobb 500"}, info.Values)
	assert.Equal(t, OpSubtract, info.Operation)
}

func TestDetect_FrenchBreedComparison(t *testing.T) {
	d, x := newTestDetector(t)

	info := d.Detect(x.Extract("Comparez le poids du Ross 308 et du Cobb 500 à 35 jours"))

	require.True(t, info.IsComparative)
	assert.Equal(t, entities.FieldBreed, info.Dimension)
	assert.Equal(t, []string{"Ross 308", "Cobb 500"}, info.Values)
}

func TestDetect_SpanishBreedComparison(t *testing.T) {
	d, x := newTestDetector(t)

	info := d.Detect(x.Extract("Comparar el peso del Ross 308 y del Cobb 500 a los 35 días"))

	require.True(t, info.IsComparative)
	assert.Equal(t, entities.FieldBreed, info.Dimension)
	assert.Equal(t, []string{"Ross 308", "Cobb 500"}, info.Values)
}

func TestDetect_MarkerWithoutSecondValue(t *testing.T) {
	d, x := newTestDetector(t)

	// A marker alone must not flag the query as comparative.
	info := d.Detect(x.Extract("How does the Ross 308 compare in terms of weight?"))

	assert.False(t, info.IsComparative)
}

func TestDetect_TwoBreedsWithoutMarker(t *testing.T) {
	d, _ := newTestDetector(t)

	e := entities.ExtractedEntities{
		BreedMentions: []string{"Ross 308", "Cobb 500"},
	}

	assert.False(t, d.Detect(e).IsComparative)
}

func TestDetect_AgeEvolution(t *testing.T) {
	d, x := newTestDetector(t)

	info := d.Detect(x.Extract("Evolution of Cobb 500 weight between 14 and 21 days versus 35 days"))

	require.True(t, info.IsComparative)
	assert.Equal(t, entities.FieldAge, info.Dimension)
	assert.Equal(t, OpSubtractOverTime, info.Operation)
}

func TestDetect_AgeDifferenceIsOverTime(t *testing.T) {
	d, x := newTestDetector(t)

	info := d.Detect(x.Extract("Cobb 500 weight at 21 days versus 35 days"))

	require.True(t, info.IsComparative)
	assert.Equal(t, entities.FieldAge, info.Dimension)
	assert.Equal(t, []string{"21", "35"}, info.Values)
	assert.Equal(t, OpSubtractOverTime, info.Operation)
}

func TestDetect_SexComparison(t *testing.T) {
	d, x := newTestDetector(t)

	info := d.Detect(x.Extract("Ross 308 weight males versus females at 35 days"))

	require.True(t, info.IsComparative)
	assert.Equal(t, entities.FieldSex, info.Dimension)
	assert.Equal(t, []string{"male", "female"}, info.Values)
}

func TestDetect_RatioOperation(t *testing.T) {
	d, x := newTestDetector(t)

	info := d.Detect(x.Extract("Ratio of feed intake between Ross 308 and Cobb 500 at 35 days"))

	require.True(t, info.IsComparative)
	assert.Equal(t, OpDivide, info.Operation)
}

func TestDetect_AverageOperation(t *testing.T) {
	d, x := newTestDetector(t)

	info := d.Detect(x.Extract("Average weight of Ross 308 and Cobb 500 at 35 days"))

	require.True(t, info.IsComparative)
	assert.Equal(t, OpAverage, info.Operation)
}

func TestDetect_BreedTakesPriorityOverAge(t *testing.T) {
	d, x := newTestDetector(t)

	// Two breeds and two ages; the breed dimension wins.
	info := d.Detect(x.Extract("Compare Ross 308 at 21 days and Cobb 500 at 35 days"))

	require.True(t, info.IsComparative)
	assert.Equal(t, entities.FieldBreed, info.Dimension)
}

func TestDecompose_Breeds(t *testing.T) {
	d, x := newTestDetector(t)

	e := x.Extract("Compare the FCR of male Ross 308 and Cobb 500 at 35 days")
	info := d.Detect(e)
	require.True(t, info.IsComparative)

	subs := Decompose(e, info)
	require.Len(t, subs, 2)

	assert.Equal(t, "Ross 308", subs[0].Breed)
	assert.Equal(t, "Cobb 500", subs[1].Breed)
	for _, sub := range subs {
		assert.Equal(t, entities.MetricFCR, sub.Metric)
		assert.Equal(t, entities.SexMale, sub.Sex)
		require.NotNil(t, sub.Age)
		assert.Equal(t, 35, sub.Age.Days())
		assert.Empty(t, sub.ComparisonMarkers)
	}
}

func TestDecompose_Ages(t *testing.T) {
	d, x := newTestDetector(t)

	e := x.Extract("Cobb 500 weight at 21 days versus 35 days")
	info := d.Detect(e)
	require.True(t, info.IsComparative)

	subs := Decompose(e, info)
	require.Len(t, subs, 2)
	assert.Equal(t, 21, subs[0].Age.Days())
	assert.Equal(t, 35, subs[1].Age.Days())
	assert.Equal(t, "Cobb 500", subs[0].Breed)
}

func TestDecompose_NotComparative(t *testing.T) {
	_, x := newTestDetector(t)

	e := x.Extract("Ross 308 weight at 21 days")
	assert.Nil(t, Decompose(e, ComparisonInfo{}))
}
