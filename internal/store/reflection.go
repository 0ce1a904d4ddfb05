package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/evanwhit/mnemo/internal/model"
)

// CreateReflection records a self-assessment for an existing memory.
// Reflections are immutable once written.
func (s *TierStore) CreateReflection(ctx context.Context, p ReflectionParams) (*model.Reflection, error) {
	if p.Assessment == "" {
		return nil, &model.ValidationError{Field: "assessment", Msg: "is required"}
	}
	if p.AlignmentScore < 0 || p.AlignmentScore > 1 {
		return nil, &model.ValidationError{Field: "alignment_score", Msg: "must be between 0 and 1"}
	}

	// Ownership is enforced here like every read path: a reflection can
	// only reference a memory the caller owns. A lapsed expiry does not
	// block the reference; the reflective process runs asynchronously
	// and may land after the memory's window.
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM memories WHERE id = ? AND owner_id = ? AND deleted_at IS NULL AND archived_at IS NULL`,
		p.MemoryID, p.OwnerID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("%w: reflection lookup: %v", model.ErrUnavailable, err)
	}

	r := &model.Reflection{
		ID:             s.newID(),
		MemoryID:       p.MemoryID,
		OwnerID:        p.OwnerID,
		Assessment:     p.Assessment,
		AlignmentScore: p.AlignmentScore,
		Improvement:    p.Improvement,
		CreatedAt:      nowUTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reflections (id, memory_id, owner_id, assessment, alignment_score, improvement, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.MemoryID, r.OwnerID, r.Assessment, r.AlignmentScore, nullStr(r.Improvement), fmtTime(r.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("%w: insert reflection: %v", model.ErrUnavailable, err)
	}
	return r, nil
}

// ReflectionsInWindow returns reflections created in the half-open
// [start, end) window, joined with the source memory fields the
// distillation engine groups and scores by. The window is the snapshot
// boundary: reflections arriving after end are next run's work.
func (s *TierStore) ReflectionsInWindow(ctx context.Context, w Window) ([]ReflectionWithMemory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.memory_id, r.owner_id, r.assessment, r.alignment_score, r.improvement, r.created_at,
		        m.tags, m.confidence_score, m.is_valid, m.outcome, m.tier
		 FROM reflections r
		 JOIN memories m ON m.id = r.memory_id
		 WHERE r.created_at >= ? AND r.created_at < ?
		 ORDER BY r.created_at ASC`,
		fmtTime(w.Start), fmtTime(w.End))
	if err != nil {
		return nil, fmt.Errorf("%w: query reflections: %v", model.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []ReflectionWithMemory
	for rows.Next() {
		var rw ReflectionWithMemory
		var improvement, tags sql.NullString
		var createdAt, tier string
		var isValid int
		err := rows.Scan(
			&rw.ID, &rw.MemoryID, &rw.OwnerID, &rw.Assessment, &rw.AlignmentScore, &improvement, &createdAt,
			&tags, &rw.MemoryConfidence, &isValid, &rw.MemoryOutcome, &tier,
		)
		if err != nil {
			return nil, err
		}
		rw.Improvement = improvement.String
		rw.CreatedAt = parseTime(createdAt)
		rw.MemoryValid = isValid != 0
		rw.MemoryTier = model.Tier(tier)
		if tags.Valid {
			json.Unmarshal([]byte(tags.String), &rw.MemoryTags)
		}
		out = append(out, rw)
	}
	return out, rows.Err()
}

// ListReflections returns the owner's reflections for a memory.
func (s *TierStore) ListReflections(ctx context.Context, memoryID, ownerID string) ([]model.Reflection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, memory_id, owner_id, assessment, alignment_score, improvement, created_at
		 FROM reflections WHERE memory_id = ? AND owner_id = ?
		 ORDER BY created_at DESC`,
		memoryID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list reflections: %v", model.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []model.Reflection
	for rows.Next() {
		var r model.Reflection
		var improvement sql.NullString
		var createdAt string
		if err := rows.Scan(&r.ID, &r.MemoryID, &r.OwnerID, &r.Assessment, &r.AlignmentScore, &improvement, &createdAt); err != nil {
			return nil, err
		}
		r.Improvement = improvement.String
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
