// Package model defines the core memory data types.
package model

import "time"

// Tier identifies which memory tier a record lives in.
type Tier string

const (
	TierSTM Tier = "stm"
	TierITM Tier = "itm"
	TierLTM Tier = "ltm"
)

// Rank returns the tier's position in the promotion ordering.
// Higher rank means more durable.
func (t Tier) Rank() int {
	switch t {
	case TierSTM:
		return 0
	case TierITM:
		return 1
	case TierLTM:
		return 2
	}
	return -1
}

// Next returns the tier one step up, or "" for LTM.
func (t Tier) Next() Tier {
	switch t {
	case TierSTM:
		return TierITM
	case TierITM:
		return TierLTM
	}
	return ""
}

// Memory represents a stored memory entry.
type Memory struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"owner_id"`
	SessionID       string     `json:"session_id,omitempty"`
	Kind            string     `json:"kind"`
	InputText       string     `json:"input_text"`
	OutputText      string     `json:"output_text,omitempty"`
	Outcome         string     `json:"outcome"`
	EmotionalWeight float64    `json:"emotional_weight"`
	ConfidenceScore float64    `json:"confidence_score"`
	IsValid         bool       `json:"is_valid"`
	Tags            []string   `json:"tags,omitempty"`
	Embedding       []float32  `json:"embedding,omitempty"`
	Tier            Tier       `json:"tier"`
	AccessCount     int        `json:"access_count"`
	LastAccessedAt  *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	ArchivedAt      *time.Time `json:"archived_at,omitempty"`
}

// Archived reports whether the memory has reached the terminal archive
// state. Archived memories keep their row for traceability but are
// excluded from normal reads.
func (m *Memory) Archived() bool { return m.ArchivedAt != nil }

// ScoredMemory is a search result annotated with cosine similarity.
type ScoredMemory struct {
	Memory
	SimilarityScore float64 `json:"similarity_score"`
}

// ValidKinds are the allowed memory kinds.
var ValidKinds = map[string]bool{
	"conversation": true,
	"lesson":       true,
	"task":         true,
	"error":        true,
	"reflection":   true,
	"achievement":  true,
}

// ValidOutcomes are the allowed outcome values.
var ValidOutcomes = map[string]bool{
	"success": true,
	"failure": true,
	"neutral": true,
}

// ValidTiers are the allowed tier values.
var ValidTiers = map[Tier]bool{
	TierSTM: true,
	TierITM: true,
	TierLTM: true,
}

// ValidateScores checks the score ranges shared by the store and update
// paths: emotional_weight in [-1,1], confidence_score in [0,1].
func ValidateScores(emotionalWeight, confidenceScore float64) error {
	if emotionalWeight < -1 || emotionalWeight > 1 {
		return &ValidationError{Field: "emotional_weight", Msg: "must be between -1 and 1"}
	}
	if confidenceScore < 0 || confidenceScore > 1 {
		return &ValidationError{Field: "confidence_score", Msg: "must be between 0 and 1"}
	}
	return nil
}
