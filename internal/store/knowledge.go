package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/evanwhit/mnemo/internal/model"
)

// SourceHash derives a stable identity for a distilled item from the
// set of reflections it was synthesized from. The hash is order
// independent so repeated runs over the same window dedupe.
func SourceHash(reflectionIDs []string) string {
	ids := make([]string, len(reflectionIDs))
	copy(ids, reflectionIDs)
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "\n")))
	return hex.EncodeToString(sum[:])
}

// CreateKnowledge inserts a distilled knowledge item together with its
// source links. If an item with the same source set already exists the
// insert is a no-op and created is false.
func (s *TierStore) CreateKnowledge(ctx context.Context, k *model.DistilledKnowledge) (created bool, err error) {
	if k.ID == "" {
		k.ID = s.newID()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = nowUTC()
	}
	hash := SourceHash(k.SourceReflections)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin: %v", model.ErrUnavailable, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO distilled_knowledge (id, owner_id, topic, principle, confidence, embedding, source_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_hash) DO NOTHING`,
		k.ID, k.OwnerID, k.Topic, k.Principle, k.Confidence, vecJSON(k.Embedding), hash, fmtTime(k.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("%w: insert knowledge: %v", model.ErrUnavailable, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}

	for _, rid := range k.SourceReflections {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO knowledge_sources (knowledge_id, reflection_id) VALUES (?, ?)`,
			k.ID, rid); err != nil {
			return false, fmt.Errorf("%w: insert knowledge source: %v", model.ErrUnavailable, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit: %v", model.ErrUnavailable, err)
	}
	return true, nil
}

// ListKnowledge returns the owner's distilled knowledge, optionally
// filtered by topic, newest first.
func (s *TierStore) ListKnowledge(ctx context.Context, ownerID, topic string) ([]model.DistilledKnowledge, error) {
	if ownerID == "" {
		return nil, &model.ValidationError{Field: "owner_id", Msg: "is required"}
	}
	q := `SELECT k.id, k.owner_id, k.topic, k.principle, k.confidence, k.embedding, k.created_at
	      FROM distilled_knowledge k WHERE k.owner_id = ?`
	args := []interface{}{ownerID}
	if topic != "" {
		q += ` AND k.topic = ?`
		args = append(args, topic)
	}
	q += ` ORDER BY k.created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list knowledge: %v", model.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []model.DistilledKnowledge
	for rows.Next() {
		var k model.DistilledKnowledge
		var emb sql.NullString
		var createdAt string
		if err := rows.Scan(&k.ID, &k.OwnerID, &k.Topic, &k.Principle, &k.Confidence, &emb, &createdAt); err != nil {
			return nil, err
		}
		if emb.Valid {
			json.Unmarshal([]byte(emb.String), &k.Embedding)
		}
		k.CreatedAt = parseTime(createdAt)
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		srcs, err := s.knowledgeSources(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].SourceReflections = srcs
	}
	return out, nil
}

func (s *TierStore) knowledgeSources(ctx context.Context, knowledgeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reflection_id FROM knowledge_sources WHERE knowledge_id = ? ORDER BY reflection_id`,
		knowledgeID)
	if err != nil {
		return nil, fmt.Errorf("%w: knowledge sources: %v", model.ErrUnavailable, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordRun persists distillation run metadata. Called once per run,
// whatever the outcome.
func (s *TierStore) RecordRun(ctx context.Context, run *model.DistillationRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO distillation_runs
		 (id, window_start, window_end, started_at, finished_at, status, promoted, expired, archived, distilled, skipped, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, fmtTime(run.WindowStart), fmtTime(run.WindowEnd), fmtTime(run.StartedAt),
		nullTime(run.FinishedAt), run.Status,
		run.Promoted, run.Expired, run.Archived, run.Distilled, run.Skipped, nullStr(run.Error))
	if err != nil {
		return fmt.Errorf("%w: record run: %v", model.ErrUnavailable, err)
	}
	return nil
}

// LastCheckpoint returns the window end of the most recent completed
// run, or the zero time when no run has completed. The next run starts
// its window there so no reflection is skipped between runs.
func (s *TierStore) LastCheckpoint(ctx context.Context) (time.Time, error) {
	var end sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(window_end) FROM distillation_runs WHERE status = ?`,
		model.RunCompleted).Scan(&end)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: last checkpoint: %v", model.ErrUnavailable, err)
	}
	if !end.Valid {
		return time.Time{}, nil
	}
	return parseTime(end.String), nil
}

// ListRuns returns recent runs, newest first.
func (s *TierStore) ListRuns(ctx context.Context, limit int) ([]model.DistillationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, window_start, window_end, started_at, finished_at, status, promoted, expired, archived, distilled, skipped, error
		 FROM distillation_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", model.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []model.DistillationRun
	for rows.Next() {
		var r model.DistillationRun
		var winStart, winEnd, startedAt string
		var finishedAt, runErr sql.NullString
		err := rows.Scan(&r.ID, &winStart, &winEnd, &startedAt, &finishedAt, &r.Status,
			&r.Promoted, &r.Expired, &r.Archived, &r.Distilled, &r.Skipped, &runErr)
		if err != nil {
			return nil, err
		}
		r.WindowStart = parseTime(winStart)
		r.WindowEnd = parseTime(winEnd)
		r.StartedAt = parseTime(startedAt)
		r.FinishedAt = parseTimePtr(finishedAt)
		r.Error = runErr.String
		out = append(out, r)
	}
	return out, rows.Err()
}
