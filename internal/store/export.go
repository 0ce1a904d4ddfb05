package store

import (
	"context"
	"fmt"

	"github.com/evanwhit/mnemo/internal/model"
)

// ExportAll returns all live memories, optionally filtered by owner,
// in a stable order for line-oriented export.
func (s *TierStore) ExportAll(ctx context.Context, ownerID string) ([]model.Memory, error) {
	query := `SELECT ` + memoryCols + ` FROM memories WHERE ` + liveWhere
	args := []interface{}{fmtTime(nowUTC())}
	if ownerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY owner_id, created_at, id`

	return s.queryMemories(ctx, query, args...)
}

// Import restores exported memories, preserving IDs, tiers and
// timestamps. Rows whose ID already exists are skipped.
func (s *TierStore) Import(ctx context.Context, memories []model.Memory) (int, error) {
	imported := 0
	for _, m := range memories {
		if m.ID == "" || m.OwnerID == "" || m.InputText == "" {
			return imported, &model.ValidationError{Field: "memory", Msg: "id, owner_id and input_text are required"}
		}
		if !model.ValidTiers[m.Tier] {
			return imported, &model.ValidationError{Field: "tier", Msg: fmt.Sprintf("unknown tier %q", m.Tier)}
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO memories (`+memoryCols+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.OwnerID, nullStr(m.SessionID), m.Kind, m.InputText, nullStr(m.OutputText),
			m.Outcome, m.EmotionalWeight, m.ConfidenceScore, boolInt(m.IsValid),
			tagsJSON(m.Tags), vecJSON(m.Embedding), string(m.Tier), m.AccessCount,
			nullTime(m.LastAccessedAt), fmtTime(m.CreatedAt), nullTime(m.ExpiresAt),
			nullTime(m.DeletedAt), nullTime(m.ArchivedAt))
		if err != nil {
			return imported, fmt.Errorf("%w: import: %v", model.ErrUnavailable, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			continue
		}
		if m.Tier == model.TierLTM && m.IsValid && len(m.Embedding) > 0 {
			if err := s.vectors.Load().add(m.OwnerID, m.ID, m.Embedding); err != nil {
				s.log.Warn().Err(err).Str("id", m.ID).Msg("vector index add failed; memory unsearchable until rebuild")
			}
		}
		s.stm.invalidate(m.OwnerID, m.SessionID)
		imported++
	}
	return imported, nil
}
