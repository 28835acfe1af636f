package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominicdesy/intelia-expert-sub012/internal/entities"
	"github.com/dominicdesy/intelia-expert-sub012/internal/observability"
)

func extract(t *testing.T, query string) entities.ExtractedEntities {
	t.Helper()
	logger := observability.NewLogger(observability.LogConfig{Level: "error", Format: "console"})
	return entities.NewExtractor(logger, entities.DefaultAliasTable()).Extract(query)
}

func TestMergeContext_BreedMismatchDropsCarriedFields(t *testing.T) {
	prior := ConversationContext{
		Breed: "Cobb 500",
		Age:   &entities.AgeRange{Min: 17, Max: 17},
		Sex:   entities.SexMale,
	}

	merged := MergeContext(extract(t, "What is the weight of a Ross 308?"), prior)

	assert.Equal(t, "Ross 308", merged.Breed)
	assert.Nil(t, merged.Age, "carried age must not survive a breed switch")
	assert.Empty(t, merged.Sex, "carried sex must not survive a breed switch")
}

func TestMergeContext_SameBreedCarriesFields(t *testing.T) {
	prior := ConversationContext{
		Breed: "Cobb 500",
		Age:   &entities.AgeRange{Min: 17, Max: 17},
		Sex:   entities.SexMale,
	}

	merged := MergeContext(extract(t, "What is the FCR?"), prior)

	assert.Equal(t, "Cobb 500", merged.Breed)
	require.NotNil(t, merged.Age)
	assert.Equal(t, 17, merged.Age.Days())
	assert.Equal(t, entities.SexMale, merged.Sex)
	assert.Equal(t, entities.MetricFCR, merged.Metric)
}

func TestMergeContext_ExplicitFieldsWin(t *testing.T) {
	prior := ConversationContext{
		Breed: "Cobb 500",
		Age:   &entities.AgeRange{Min: 17, Max: 17},
		Sex:   entities.SexMale,
	}

	merged := MergeContext(extract(t, "And for females at 28 days?"), prior)

	assert.Equal(t, "Cobb 500", merged.Breed)
	require.NotNil(t, merged.Age)
	assert.Equal(t, 28, merged.Age.Days())
	assert.Equal(t, entities.SexFemale, merged.Sex)
}

func TestMergeContext_EmptyPrior(t *testing.T) {
	merged := MergeContext(extract(t, "Ross 308 weight at 21 days"), ConversationContext{})

	assert.Equal(t, "Ross 308", merged.Breed)
	require.NotNil(t, merged.Age)
	assert.Equal(t, 21, merged.Age.Days())
}

func TestConversationContext_Fingerprint(t *testing.T) {
	a := ConversationContext{Breed: "Cobb 500", Sex: entities.SexMale}
	b := ConversationContext{Breed: "Cobb 500", Sex: entities.SexMale}
	c := ConversationContext{Breed: "Ross 308", Sex: entities.SexMale}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), ConversationContext{}.Fingerprint())
}
