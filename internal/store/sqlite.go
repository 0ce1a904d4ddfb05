package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/evanwhit/mnemo/internal/config"
	"github.com/evanwhit/mnemo/internal/embedding"
	"github.com/evanwhit/mnemo/internal/model"
)

// TierStore is the single point of truth for memory placement, CRUD and
// tier-aware querying.
type TierStore struct {
	db       *sql.DB
	dbPath   string
	cfg      *config.Config
	embedder embedding.Embedder
	vectors  atomic.Pointer[vectorIndex]
	stm      *stmCache
	log      zerolog.Logger
	entropy  *rand.Rand
}

// New opens or creates the store at dbPath and rebuilds the LTM vector
// index from persisted embeddings.
func New(dbPath string, cfg *config.Config, emb embedding.Embedder, log zerolog.Logger) (*TierStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	cache, err := newSTMCache()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("stm cache: %w", err)
	}

	s := &TierStore{
		db:       db,
		dbPath:   dbPath,
		cfg:      cfg,
		embedder: emb,
		stm:      cache,
		log:      log,
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.vectors.Store(newVectorIndex())

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.rebuildVectorIndex(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("rebuild vector index: %w", err)
	}

	return s, nil
}

func (s *TierStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *TierStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id               TEXT PRIMARY KEY,
		owner_id         TEXT NOT NULL,
		session_id       TEXT,
		kind             TEXT NOT NULL,
		input_text       TEXT NOT NULL,
		output_text      TEXT,
		outcome          TEXT NOT NULL DEFAULT 'neutral',
		emotional_weight REAL NOT NULL DEFAULT 0,
		confidence_score REAL NOT NULL DEFAULT 0,
		is_valid         INTEGER NOT NULL DEFAULT 1,
		tags             TEXT,
		embedding        TEXT,
		tier             TEXT NOT NULL DEFAULT 'stm',
		access_count     INTEGER NOT NULL DEFAULT 0,
		last_accessed_at TEXT,
		created_at       TEXT NOT NULL,
		expires_at       TEXT,
		deleted_at       TEXT,
		archived_at      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_owner_tier ON memories(owner_id, tier, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_session ON memories(owner_id, session_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_expires ON memories(expires_at);
	CREATE INDEX IF NOT EXISTS idx_memories_deleted ON memories(deleted_at);

	CREATE TABLE IF NOT EXISTS reflections (
		id              TEXT PRIMARY KEY,
		memory_id       TEXT NOT NULL REFERENCES memories(id),
		owner_id        TEXT NOT NULL,
		assessment      TEXT NOT NULL,
		alignment_score REAL NOT NULL,
		improvement     TEXT,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reflections_created ON reflections(created_at);
	CREATE INDEX IF NOT EXISTS idx_reflections_memory ON reflections(memory_id);

	CREATE TABLE IF NOT EXISTS distilled_knowledge (
		id          TEXT PRIMARY KEY,
		owner_id    TEXT NOT NULL,
		topic       TEXT NOT NULL,
		principle   TEXT NOT NULL,
		confidence  REAL NOT NULL,
		embedding   TEXT,
		source_hash TEXT NOT NULL UNIQUE,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_knowledge_owner_topic ON distilled_knowledge(owner_id, topic);

	CREATE TABLE IF NOT EXISTS knowledge_sources (
		knowledge_id  TEXT NOT NULL REFERENCES distilled_knowledge(id),
		reflection_id TEXT NOT NULL REFERENCES reflections(id),
		PRIMARY KEY (knowledge_id, reflection_id)
	);

	CREATE TABLE IF NOT EXISTS distillation_runs (
		id           TEXT PRIMARY KEY,
		window_start TEXT NOT NULL,
		window_end   TEXT NOT NULL,
		started_at   TEXT NOT NULL,
		finished_at  TEXT,
		status       TEXT NOT NULL,
		promoted     INTEGER NOT NULL DEFAULT 0,
		expired      INTEGER NOT NULL DEFAULT 0,
		archived     INTEGER NOT NULL DEFAULT 0,
		distilled    INTEGER NOT NULL DEFAULT 0,
		skipped      INTEGER NOT NULL DEFAULT 0,
		error        TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON distillation_runs(status, window_end);
	`
	_, err := s.db.Exec(schema)
	return err
}

// liveWhere filters to rows visible to normal reads. Callers append it
// with an AND and must supply the current time as the next arg.
const liveWhere = `deleted_at IS NULL AND archived_at IS NULL AND (expires_at IS NULL OR expires_at > ?)`

func nowUTC() time.Time { return time.Now().UTC() }

// timeLayout keeps a fixed-width fraction so the lexicographic order of
// stored timestamps matches their temporal order in SQL comparisons.
// RFC3339Nano trims trailing zeros and breaks that property.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// Store validates and persists a new memory in its requested tier.
// Explicit LTM writes compute the embedding synchronously before the row
// is visible; there is no lazy path for them.
func (s *TierStore) Store(ctx context.Context, p StoreParams) (*model.Memory, error) {
	if p.OwnerID == "" {
		return nil, &model.ValidationError{Field: "owner_id", Msg: "is required"}
	}
	if p.InputText == "" {
		return nil, &model.ValidationError{Field: "input_text", Msg: "is required"}
	}
	kind := p.Kind
	if kind == "" {
		kind = "conversation"
	}
	if !model.ValidKinds[kind] {
		return nil, &model.ValidationError{Field: "kind", Msg: fmt.Sprintf("unknown kind %q", kind)}
	}
	outcome := p.Outcome
	if outcome == "" {
		outcome = "neutral"
	}
	if !model.ValidOutcomes[outcome] {
		return nil, &model.ValidationError{Field: "outcome", Msg: fmt.Sprintf("unknown outcome %q", outcome)}
	}
	tier := p.Tier
	if tier == "" {
		tier = model.TierSTM
	}
	if !model.ValidTiers[tier] {
		return nil, &model.ValidationError{Field: "tier", Msg: fmt.Sprintf("unknown tier %q", tier)}
	}
	if err := model.ValidateScores(p.EmotionalWeight, p.ConfidenceScore); err != nil {
		return nil, err
	}

	isValid := true
	if p.IsValid != nil {
		isValid = *p.IsValid
	}

	now := nowUTC()
	mem := &model.Memory{
		ID:              s.newID(),
		OwnerID:         p.OwnerID,
		SessionID:       p.SessionID,
		Kind:            kind,
		InputText:       p.InputText,
		OutputText:      p.OutputText,
		Outcome:         outcome,
		EmotionalWeight: p.EmotionalWeight,
		ConfidenceScore: p.ConfidenceScore,
		IsValid:         isValid,
		Tags:            p.Tags,
		Tier:            tier,
		CreatedAt:       now,
	}

	switch tier {
	case model.TierSTM:
		exp := now.Add(s.cfg.STMTTL)
		mem.ExpiresAt = &exp
	case model.TierITM:
		exp := now.Add(s.cfg.ITMTTL)
		mem.ExpiresAt = &exp
	case model.TierLTM:
		if !isValid {
			return nil, &model.ValidationError{Field: "tier", Msg: "invalid memories cannot be stored in ltm"}
		}
		vec, err := embedding.Embed(ctx, s.embedder, embedText(mem), s.cfg.EmbedTimeout)
		if err != nil {
			return nil, err
		}
		mem.Embedding = vec
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (
			id, owner_id, session_id, kind, input_text, output_text,
			outcome, emotional_weight, confidence_score, is_valid,
			tags, embedding, tier, access_count, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		mem.ID, mem.OwnerID, nullStr(mem.SessionID), mem.Kind, mem.InputText, nullStr(mem.OutputText),
		mem.Outcome, mem.EmotionalWeight, mem.ConfidenceScore, boolInt(mem.IsValid),
		tagsJSON(mem.Tags), vecJSON(mem.Embedding), string(mem.Tier), fmtTime(now), nullTime(mem.ExpiresAt))
	if err != nil {
		return nil, fmt.Errorf("%w: insert memory: %v", model.ErrUnavailable, err)
	}

	if tier == model.TierLTM {
		if err := s.vectors.Load().add(mem.OwnerID, mem.ID, mem.Embedding); err != nil {
			s.log.Warn().Err(err).Str("id", mem.ID).Msg("vector index add failed; memory unsearchable until rebuild")
		}
	}
	s.stm.invalidate(mem.OwnerID, mem.SessionID)

	s.log.Debug().Str("id", mem.ID).Str("owner", mem.OwnerID).Str("tier", string(tier)).Msg("stored memory")
	return mem, nil
}

// embedText is the canonical text a memory is embedded from.
func embedText(m *model.Memory) string {
	if m.OutputText == "" {
		return m.InputText
	}
	return m.InputText + " " + m.OutputText
}

// Get retrieves a memory by ID scoped to its owner. A mismatched owner
// behaves exactly like a missing record.
func (s *TierStore) Get(ctx context.Context, p GetParams) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryCols+` FROM memories
		 WHERE id = ? AND owner_id = ? AND `+liveWhere,
		p.ID, p.OwnerID, fmtTime(nowUTC()))

	mem, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return &mem, nil
}

// List returns the owner's memories ordered by created_at descending.
// The limit is capped server-side regardless of what the caller asks.
func (s *TierStore) List(ctx context.Context, p ListParams) ([]model.Memory, error) {
	if p.OwnerID == "" {
		return nil, &model.ValidationError{Field: "owner_id", Msg: "is required"}
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > s.cfg.MaxListLimit {
		limit = s.cfg.MaxListLimit
	}

	query := `SELECT ` + memoryCols + ` FROM memories WHERE owner_id = ? AND ` + liveWhere
	args := []interface{}{p.OwnerID, fmtTime(nowUTC())}
	if p.Tier != "" {
		if !model.ValidTiers[p.Tier] {
			return nil, &model.ValidationError{Field: "tier", Msg: fmt.Sprintf("unknown tier %q", p.Tier)}
		}
		query += ` AND tier = ?`
		args = append(args, string(p.Tier))
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, p.Offset)

	return s.queryMemories(ctx, query, args...)
}

// Update patches the mutable fields of a memory. Tier is immutable here;
// tier changes go only through Promote.
func (s *TierStore) Update(ctx context.Context, id, ownerID string, patch UpdatePatch) (*model.Memory, error) {
	mem, err := s.Get(ctx, GetParams{ID: id, OwnerID: ownerID})
	if err != nil {
		return nil, err
	}

	if patch.Tags != nil {
		mem.Tags = *patch.Tags
	}
	if patch.ConfidenceScore != nil {
		mem.ConfidenceScore = *patch.ConfidenceScore
	}
	if patch.EmotionalWeight != nil {
		mem.EmotionalWeight = *patch.EmotionalWeight
	}
	if patch.Outcome != nil {
		if !model.ValidOutcomes[*patch.Outcome] {
			return nil, &model.ValidationError{Field: "outcome", Msg: fmt.Sprintf("unknown outcome %q", *patch.Outcome)}
		}
		mem.Outcome = *patch.Outcome
	}
	if patch.IsValid != nil {
		mem.IsValid = *patch.IsValid
	}
	if err := model.ValidateScores(mem.EmotionalWeight, mem.ConfidenceScore); err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE memories
		 SET tags = ?, confidence_score = ?, emotional_weight = ?, outcome = ?, is_valid = ?
		 WHERE id = ? AND owner_id = ?`,
		tagsJSON(mem.Tags), mem.ConfidenceScore, mem.EmotionalWeight, mem.Outcome, boolInt(mem.IsValid),
		id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: update memory: %v", model.ErrUnavailable, err)
	}

	s.stm.invalidate(mem.OwnerID, mem.SessionID)
	return mem, nil
}

// Delete soft-deletes a memory. The row stays for the audit grace window
// and disappears from all reads; Purge removes it for good.
func (s *TierStore) Delete(ctx context.Context, id, ownerID string) error {
	mem, err := s.Get(ctx, GetParams{ID: id, OwnerID: ownerID})
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE memories SET deleted_at = ? WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`,
		fmtTime(nowUTC()), id, ownerID)
	if err != nil {
		return fmt.Errorf("%w: delete memory: %v", model.ErrUnavailable, err)
	}

	s.stm.invalidate(mem.OwnerID, mem.SessionID)
	return nil
}

// Promote moves a memory one step up the stm -> itm -> ltm ordering.
// Entering LTM requires a valid memory and computes the embedding if it
// is absent. The tier check and the write happen inside one transaction
// so a concurrent access cannot interleave against a stale tier.
func (s *TierStore) Promote(ctx context.Context, id, ownerID string) (*model.Memory, error) {
	// Unlike Get, promotion tolerates a lapsed expiry: the distillation
	// engine promotes qualifying ITM rows it has not swept yet, and
	// promotion clears or renews the expiry anyway.
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryCols+` FROM memories WHERE id = ? AND owner_id = ?`,
		id, ownerID)
	m, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("promote read: %w", err)
	}
	mem := &m

	if mem.DeletedAt != nil {
		return nil, fmt.Errorf("%w: memory %s is deleted", model.ErrInvalidTransition, id)
	}
	if mem.ArchivedAt != nil {
		return nil, fmt.Errorf("%w: memory %s is archived", model.ErrInvalidTransition, id)
	}

	target := mem.Tier.Next()
	if target == "" {
		return nil, fmt.Errorf("%w: memory %s is already ltm", model.ErrInvalidTransition, id)
	}
	if target == model.TierLTM && !mem.IsValid {
		return nil, fmt.Errorf("%w: invalid memories are capped at itm", model.ErrInvalidTransition)
	}

	// Embedding is computed outside the transaction: model inference is
	// slow and must not hold the write lock.
	vec := mem.Embedding
	if target == model.TierLTM && vec == nil {
		vec, err = embedding.Embed(ctx, s.embedder, embedText(mem), s.cfg.EmbedTimeout)
		if err != nil {
			return nil, err
		}
	}

	var newExpires *time.Time
	if target == model.TierITM {
		exp := nowUTC().Add(s.cfg.ITMTTL)
		newExpires = &exp
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin promote: %v", model.ErrUnavailable, err)
	}
	defer tx.Rollback()

	// Re-check the tier under the transaction; a concurrent promote may
	// have won the race since the read above.
	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT tier FROM memories WHERE id = ? AND owner_id = ? AND deleted_at IS NULL AND archived_at IS NULL`,
		id, ownerID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: memory removed concurrently", model.ErrInvalidTransition)
		}
		return nil, fmt.Errorf("%w: promote read: %v", model.ErrUnavailable, err)
	}
	if model.Tier(current) != mem.Tier {
		return nil, fmt.Errorf("%w: tier changed concurrently", model.ErrInvalidTransition)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE memories SET tier = ?, expires_at = ?, embedding = ? WHERE id = ?`,
		string(target), nullTime(newExpires), vecJSON(vec), id)
	if err != nil {
		return nil, fmt.Errorf("%w: promote write: %v", model.ErrUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: promote commit: %v", model.ErrUnavailable, err)
	}

	if target == model.TierLTM {
		if err := s.vectors.Load().add(ownerID, id, vec); err != nil {
			s.log.Warn().Err(err).Str("id", id).Msg("vector index add failed; memory unsearchable until rebuild")
		}
	}
	s.stm.invalidate(mem.OwnerID, mem.SessionID)

	mem.Tier = target
	mem.ExpiresAt = newExpires
	mem.Embedding = vec
	s.log.Info().Str("id", id).Str("tier", string(target)).Msg("promoted memory")
	return mem, nil
}

// RecordAccess bumps the access bookkeeping for a memory. ITM entries
// get their expiry window renewed from now (sliding window, not capped
// at the original deadline). The update is a single statement so the
// expiry is always computed against the row's current tier.
func (s *TierStore) RecordAccess(ctx context.Context, id, ownerID string) error {
	now := nowUTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories
		 SET access_count = access_count + 1,
		     last_accessed_at = ?,
		     expires_at = CASE WHEN tier = 'itm' THEN ? ELSE expires_at END
		 WHERE id = ? AND owner_id = ? AND `+liveWhere,
		fmtTime(now), fmtTime(now.Add(s.cfg.ITMTTL)), id, ownerID, fmtTime(now))
	if err != nil {
		return fmt.Errorf("%w: record access: %v", model.ErrUnavailable, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Archive moves a memory into the terminal archive state, keeping the
// row for traceability from distilled knowledge back to its sources.
// Engine-internal: not scoped to an owner.
func (s *TierStore) Archive(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET archived_at = ? WHERE id = ? AND deleted_at IS NULL AND archived_at IS NULL`,
		fmtTime(nowUTC()), id)
	if err != nil {
		return fmt.Errorf("%w: archive memory: %v", model.ErrUnavailable, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ExpireMemory soft-deletes a single expired memory. Engine-internal.
func (s *TierStore) ExpireMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET deleted_at = ? WHERE id = ? AND tier != 'ltm' AND deleted_at IS NULL AND archived_at IS NULL`,
		fmtTime(nowUTC()), id)
	if err != nil {
		return fmt.Errorf("%w: expire memory: %v", model.ErrUnavailable, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ExpiredMemories returns live STM/ITM memories whose expiry has passed
// as of the given instant.
func (s *TierStore) ExpiredMemories(ctx context.Context, asOf time.Time) ([]model.Memory, error) {
	return s.queryMemories(ctx,
		`SELECT `+memoryCols+` FROM memories
		 WHERE tier != 'ltm' AND deleted_at IS NULL AND archived_at IS NULL
		   AND expires_at IS NOT NULL AND expires_at <= ?
		 ORDER BY expires_at ASC`,
		fmtTime(asOf))
}

// PromotionCandidates returns ITM memories for the distillation
// engine's per-memory promotion pass. Expired rows the engine has not
// swept yet are included: a qualifying memory is promoted rather than
// expired.
func (s *TierStore) PromotionCandidates(ctx context.Context) ([]model.Memory, error) {
	return s.queryMemories(ctx,
		`SELECT `+memoryCols+` FROM memories
		 WHERE tier = 'itm' AND deleted_at IS NULL AND archived_at IS NULL
		 ORDER BY created_at ASC`)
}

// Purge hard-deletes rows that were soft-deleted before the grace cutoff
// and rebuilds the vector index. Maintenance only, never on the caller
// path.
func (s *TierStore) Purge(ctx context.Context, grace time.Duration) (int64, error) {
	cutoff := fmtTime(nowUTC().Add(-grace))
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memories
		 WHERE deleted_at IS NOT NULL AND deleted_at < ?
		   AND id NOT IN (SELECT memory_id FROM reflections)`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: purge: %v", model.ErrUnavailable, err)
	}
	n, _ := res.RowsAffected()
	if err := s.rebuildVectorIndex(ctx); err != nil {
		return n, err
	}
	return n, nil
}

// Close closes the store.
func (s *TierStore) Close() error {
	s.stm.close()
	return s.db.Close()
}

// --- row scanning ---

const memoryCols = `id, owner_id, session_id, kind, input_text, output_text,
	outcome, emotional_weight, confidence_score, is_valid, tags, embedding,
	tier, access_count, last_accessed_at, created_at, expires_at, deleted_at, archived_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var sessionID, outputText, tags, emb, lastAccessed, expiresAt, deletedAt, archivedAt sql.NullString
	var createdAt, tier string
	var isValid int

	err := row.Scan(
		&m.ID, &m.OwnerID, &sessionID, &m.Kind, &m.InputText, &outputText,
		&m.Outcome, &m.EmotionalWeight, &m.ConfidenceScore, &isValid, &tags, &emb,
		&tier, &m.AccessCount, &lastAccessed, &createdAt, &expiresAt, &deletedAt, &archivedAt,
	)
	if err != nil {
		return m, err
	}

	m.Tier = model.Tier(tier)
	m.IsValid = isValid != 0
	m.SessionID = sessionID.String
	m.OutputText = outputText.String
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if tags.Valid {
		json.Unmarshal([]byte(tags.String), &m.Tags)
	}
	if emb.Valid {
		json.Unmarshal([]byte(emb.String), &m.Embedding)
	}
	m.LastAccessedAt = parseTimePtr(lastAccessed)
	m.ExpiresAt = parseTimePtr(expiresAt)
	m.DeletedAt = parseTimePtr(deletedAt)
	m.ArchivedAt = parseTimePtr(archivedAt)

	return m, nil
}

func (s *TierStore) queryMemories(ctx context.Context, query string, args ...interface{}) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query memories: %v", model.ErrUnavailable, err)
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// --- encoding helpers ---

func tagsJSON(tags []string) interface{} {
	if len(tags) == 0 {
		return nil
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func vecJSON(vec []float32) interface{} {
	if len(vec) == 0 {
		return nil
	}
	b, _ := json.Marshal(vec)
	return string(b)
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
