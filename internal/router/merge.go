package router

import "github.com/dominicdesy/intelia-expert-sub012/internal/entities"

// MergeContext folds carried conversation context into the current
// extraction. The carried breed anchors the merge: when the current query
// names a different breed, every carried field is dropped and only what the
// query states explicitly survives. Explicit fields in the current query
// always win over carried ones.
func MergeContext(current entities.ExtractedEntities, prior ConversationContext) entities.ExtractedEntities {
	if prior.Empty() {
		return current
	}

	// Breed switch: the carried context belongs to another bird.
	if current.Breed != "" && prior.Breed != "" && current.Breed != prior.Breed {
		return current
	}

	merged := current.Clone()
	if merged.Breed == "" && prior.Breed != "" {
		merged.Breed = prior.Breed
		merged.BreedMentions = []string{prior.Breed}
	}
	if merged.Sex == "" && prior.Sex != "" {
		merged.Sex = prior.Sex
	}
	if merged.Age == nil && prior.Age != nil {
		age := *prior.Age
		merged.Age = &age
	}
	return merged
}
