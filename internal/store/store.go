// Package store implements the tiered memory store: SQLite as the
// durable record store, a chromem vector index over LTM embeddings, and
// a ristretto cache in front of the session STM read path.
package store

import (
	"time"

	"github.com/evanwhit/mnemo/internal/model"
)

// StoreParams holds parameters for storing a memory.
type StoreParams struct {
	OwnerID         string
	SessionID       string
	Kind            string
	InputText       string
	OutputText      string
	Outcome         string
	EmotionalWeight float64
	ConfidenceScore float64
	IsValid         *bool // nil defaults to true
	Tags            []string
	Tier            model.Tier // defaults to STM
}

// GetParams holds parameters for retrieving a memory.
type GetParams struct {
	ID      string
	OwnerID string
}

// ListParams holds parameters for listing memories.
type ListParams struct {
	OwnerID string
	Tier    model.Tier
	Limit   int
	Offset  int
}

// SearchParams holds parameters for semantic search over LTM.
type SearchParams struct {
	OwnerID       string
	Query         string
	Tier          model.Tier
	MinConfidence *float64
	Limit         int
}

// UpdatePatch holds the mutable fields of a memory. Nil means leave
// unchanged. Tier is deliberately absent: tier changes go only through
// Promote.
type UpdatePatch struct {
	Tags            *[]string
	ConfidenceScore *float64
	EmotionalWeight *float64
	Outcome         *string
	IsValid         *bool
}

// ContextParams holds parameters for assembling a tiered context view.
type ContextParams struct {
	OwnerID      string
	SessionID    string
	LimitPerTier int
}

// ContextResult is the bounded, ranked view the chat caller builds its
// prompt from: recent session STM, most-accessed ITM, highest-confidence
// LTM, each independently capped.
type ContextResult struct {
	STM []model.Memory `json:"stm"`
	ITM []model.Memory `json:"itm"`
	LTM []model.Memory `json:"ltm"`
}

// ReflectionParams holds parameters for recording a reflection.
type ReflectionParams struct {
	MemoryID       string
	OwnerID        string
	Assessment     string
	AlignmentScore float64
	Improvement    string
}

// ReflectionWithMemory joins a reflection with the source memory fields
// the distillation engine groups and scores by.
type ReflectionWithMemory struct {
	model.Reflection
	MemoryTags       []string
	MemoryConfidence float64
	MemoryValid      bool
	MemoryOutcome    string
	MemoryTier       model.Tier
}

// Window is a half-open [Start, End) reflection time window for one
// distillation run.
type Window struct {
	Start time.Time
	End   time.Time
}
