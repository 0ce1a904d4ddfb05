package store

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/evanwhit/mnemo/internal/model"
)

// stmCacheTTL bounds how stale a cached session slice can get even if an
// invalidation is missed.
const stmCacheTTL = 30 * time.Second

// stmCache caches the hot session STM slice of the context view. The
// write path invalidates explicitly (publish-on-write); TTL is the
// backstop.
type stmCache struct {
	cache *ristretto.Cache
}

func newSTMCache() (*stmCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 22, // ~4MB of cached slices
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &stmCache{cache: c}, nil
}

func stmKey(ownerID, sessionID string) string {
	return "stm:" + ownerID + "|" + sessionID
}

func (c *stmCache) get(ownerID, sessionID string) ([]model.Memory, bool) {
	v, ok := c.cache.Get(stmKey(ownerID, sessionID))
	if !ok {
		return nil, false
	}
	mems, ok := v.([]model.Memory)
	return mems, ok
}

func (c *stmCache) set(ownerID, sessionID string, mems []model.Memory) {
	cost := int64(1)
	for i := range mems {
		cost += int64(len(mems[i].InputText) + len(mems[i].OutputText))
	}
	c.cache.SetWithTTL(stmKey(ownerID, sessionID), mems, cost, stmCacheTTL)
}

func (c *stmCache) invalidate(ownerID, sessionID string) {
	if sessionID == "" {
		return
	}
	c.cache.Del(stmKey(ownerID, sessionID))
}

func (c *stmCache) close() { c.cache.Close() }

// Context assembles the bounded, ranked view callers build prompt
// context from: the session's most recent STM entries, the owner's
// most-accessed ITM entries, and the owner's highest-confidence LTM
// entries, each capped at LimitPerTier. Never an unbounded scan.
func (s *TierStore) Context(ctx context.Context, p ContextParams) (*ContextResult, error) {
	if p.OwnerID == "" {
		return nil, &model.ValidationError{Field: "owner_id", Msg: "is required"}
	}
	limit := p.LimitPerTier
	if limit <= 0 {
		limit = 5
	}
	if limit > s.cfg.MaxContextPerTier {
		limit = s.cfg.MaxContextPerTier
	}

	result := &ContextResult{}
	now := fmtTime(nowUTC())

	if p.SessionID != "" {
		if cached, ok := s.stm.get(p.OwnerID, p.SessionID); ok && len(cached) >= limit {
			result.STM = cached[:limit]
		} else {
			stm, err := s.queryMemories(ctx,
				`SELECT `+memoryCols+` FROM memories
				 WHERE owner_id = ? AND session_id = ? AND tier = 'stm' AND `+liveWhere+`
				 ORDER BY created_at DESC LIMIT ?`,
				p.OwnerID, p.SessionID, now, limit)
			if err != nil {
				return nil, err
			}
			result.STM = stm
			s.stm.set(p.OwnerID, p.SessionID, stm)
		}
	}

	itm, err := s.queryMemories(ctx,
		`SELECT `+memoryCols+` FROM memories
		 WHERE owner_id = ? AND tier = 'itm' AND `+liveWhere+`
		 ORDER BY access_count DESC, created_at DESC LIMIT ?`,
		p.OwnerID, now, limit)
	if err != nil {
		return nil, err
	}
	result.ITM = itm

	ltm, err := s.queryMemories(ctx,
		`SELECT `+memoryCols+` FROM memories
		 WHERE owner_id = ? AND tier = 'ltm' AND is_valid = 1 AND `+liveWhere+`
		 ORDER BY confidence_score DESC, created_at DESC LIMIT ?`,
		p.OwnerID, now, limit)
	if err != nil {
		return nil, err
	}
	result.LTM = ltm

	return result, nil
}
