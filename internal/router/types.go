// Package router classifies queries and orchestrates their resolution
// across the structured, knowledge and comparative paths.
package router

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dominicdesy/intelia-expert-sub012/internal/comparative"
	"github.com/dominicdesy/intelia-expert-sub012/internal/entities"
)

// Destination is where a query is routed.
type Destination string

const (
	DestStructured  Destination = "structured"
	DestKnowledge   Destination = "knowledge"
	DestComparative Destination = "comparative"
	DestClarify     Destination = "clarify"
)

// Decision is the routing outcome for one query.
type Decision struct {
	Destination Destination                `json:"destination"`
	Language    string                     `json:"language"`
	Entities    entities.ExtractedEntities `json:"entities"`
	Comparison  comparative.ComparisonInfo `json:"comparison,omitempty"`
	// MissingFields lists required fields the user must supply (clarify) or
	// that were default-filled (structured).
	MissingFields []entities.Field `json:"missing_fields,omitempty"`
	Reason        string           `json:"reason"`
}

// ConversationContext carries entities resolved in earlier turns. The breed
// anchors the context: a new breed in the current query invalidates every
// carried field.
type ConversationContext struct {
	Breed    string             `json:"breed,omitempty"`
	Sex      entities.Sex       `json:"sex,omitempty"`
	Age      *entities.AgeRange `json:"age,omitempty"`
	TenantID string             `json:"tenant_id,omitempty"`
}

// Empty reports whether no fields are carried.
func (c ConversationContext) Empty() bool {
	return c.Breed == "" && c.Sex == "" && c.Age == nil && c.TenantID == ""
}

// Fingerprint returns a stable digest of the context, used to scope answer
// cache entries. Contexts that would merge differently never share entries.
func (c ConversationContext) Fingerprint() string {
	age := ""
	if c.Age != nil {
		age = fmt.Sprintf("%d-%d", c.Age.Min, c.Age.Max)
	}
	sum := sha256.Sum256([]byte(c.TenantID + "|" + c.Breed + "|" + string(c.Sex) + "|" + age))
	return hex.EncodeToString(sum[:8])
}
