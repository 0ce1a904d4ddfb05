package store

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/evanwhit/mnemo/internal/model"
)

// vectorIndex is the in-process LTM similarity index, one chromem
// collection per owner. SQLite stays the source of truth: the index is
// rebuilt from persisted embeddings at open and hits are always
// re-validated against live rows before they reach a caller.
type vectorIndex struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// vectorHit is a raw index result before row re-validation.
type vectorHit struct {
	ID         string
	Similarity float64
}

func newVectorIndex() *vectorIndex {
	return &vectorIndex{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}
}

func (v *vectorIndex) collection(ownerID string) (*chromem.Collection, error) {
	v.mu.RLock()
	col, ok := v.collections[ownerID]
	v.mu.RUnlock()
	if ok {
		return col, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if col, ok := v.collections[ownerID]; ok {
		return col, nil
	}

	col, err := v.db.CreateCollection("owner_"+ownerID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	v.collections[ownerID] = col
	return col, nil
}

func (v *vectorIndex) add(ownerID, memoryID string, vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	col, err := v.collection(ownerID)
	if err != nil {
		return err
	}
	// Content is unused; the row carries the text.
	return col.AddDocument(context.Background(), chromem.Document{
		ID:        memoryID,
		Embedding: vec,
		Content:   memoryID,
	})
}

// query returns up to limit hits for the owner, most similar first.
func (v *vectorIndex) query(ctx context.Context, ownerID string, vec []float32, limit int) ([]vectorHit, error) {
	col, err := v.collection(ownerID)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection.
	if n := col.Count(); n < limit {
		limit = n
	}
	if limit <= 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, vec, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	hits := make([]vectorHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, vectorHit{ID: r.ID, Similarity: float64(r.Similarity)})
	}
	return hits, nil
}

// rebuildVectorIndex reloads every live, valid LTM embedding from
// SQLite into a fresh index.
func (s *TierStore) rebuildVectorIndex(ctx context.Context) error {
	memories, err := s.queryMemories(ctx,
		`SELECT `+memoryCols+` FROM memories
		 WHERE tier = 'ltm' AND is_valid = 1 AND embedding IS NOT NULL AND `+liveWhere,
		fmtTime(nowUTC()))
	if err != nil {
		return err
	}

	idx := newVectorIndex()
	for i := range memories {
		m := &memories[i]
		if m.Tier != model.TierLTM || len(m.Embedding) == 0 {
			continue
		}
		if err := idx.add(m.OwnerID, m.ID, m.Embedding); err != nil {
			s.log.Warn().Err(err).Str("id", m.ID).Msg("vector index rebuild skipped a memory")
		}
	}
	s.vectors.Store(idx)
	return nil
}
