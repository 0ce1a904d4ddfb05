package model

import "time"

// Reflection is a self-assessment record tied to a memory. Reflections
// are written once by the reflective process and never mutated; the
// distillation engine aggregates them into knowledge.
type Reflection struct {
	ID             string    `json:"id"`
	MemoryID       string    `json:"memory_id"`
	OwnerID        string    `json:"owner_id"`
	Assessment     string    `json:"assessment"`
	AlignmentScore float64   `json:"alignment_score"`
	Improvement    string    `json:"improvement,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// DistilledKnowledge is a principle synthesized from a group of
// reflections. Created only by the distillation engine, never mutated.
type DistilledKnowledge struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"owner_id"`
	Topic             string    `json:"topic"`
	Principle         string    `json:"principle"`
	Confidence        float64   `json:"confidence"`
	Embedding         []float32 `json:"embedding,omitempty"`
	SourceReflections []string  `json:"source_reflections"`
	CreatedAt         time.Time `json:"created_at"`
}

// Run statuses recorded for distillation runs.
const (
	RunCompleted  = "completed"
	RunFailed     = "failed"
	RunIncomplete = "incomplete"
)

// DistillationRun records one scheduled pass of the distillation engine.
// The window end of the most recent completed run is the checkpoint the
// next run resumes from.
type DistillationRun struct {
	ID          string     `json:"id"`
	WindowStart time.Time  `json:"window_start"`
	WindowEnd   time.Time  `json:"window_end"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Status      string     `json:"status"`
	Promoted    int        `json:"promoted"`
	Expired     int        `json:"expired"`
	Archived    int        `json:"archived"`
	Distilled   int        `json:"distilled"`
	Skipped     int        `json:"skipped"`
	Error       string     `json:"error,omitempty"`
}
