package store

import (
	"context"
	"testing"
	"time"

	"github.com/evanwhit/mnemo/internal/model"
)

func TestContextAssemblesAllTiers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Store(ctx, StoreParams{OwnerID: "alice", SessionID: "sess-1", InputText: "recent chat"})
	s.Store(ctx, StoreParams{OwnerID: "alice", SessionID: "sess-2", InputText: "other session chat"})
	itm, _ := s.Store(ctx, StoreParams{OwnerID: "alice", InputText: "working note", Tier: model.TierITM})
	s.RecordAccess(ctx, itm.ID, "alice")
	s.Store(ctx, StoreParams{OwnerID: "alice", InputText: "core fact", Tier: model.TierLTM, ConfidenceScore: 0.9})

	res, err := s.Context(ctx, ContextParams{OwnerID: "alice", SessionID: "sess-1", LimitPerTier: 5})
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if len(res.STM) != 1 || res.STM[0].InputText != "recent chat" {
		t.Errorf("expected only the session's stm entry, got %v", res.STM)
	}
	if len(res.ITM) != 1 || res.ITM[0].InputText != "working note" {
		t.Errorf("expected the itm entry, got %v", res.ITM)
	}
	if len(res.LTM) != 1 || res.LTM[0].InputText != "core fact" {
		t.Errorf("expected the ltm entry, got %v", res.LTM)
	}
}

func TestContextWithoutSessionSkipsSTM(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Store(ctx, StoreParams{OwnerID: "alice", SessionID: "sess-1", InputText: "chat"})

	res, err := s.Context(ctx, ContextParams{OwnerID: "alice"})
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if len(res.STM) != 0 {
		t.Errorf("expected no stm slice without a session, got %d", len(res.STM))
	}
}

func TestContextPerTierCap(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 4; i++ {
		s.Store(ctx, StoreParams{OwnerID: "alice", SessionID: "sess-1", InputText: "chat"})
		s.Store(ctx, StoreParams{OwnerID: "alice", InputText: "note", Tier: model.TierITM})
	}

	res, err := s.Context(ctx, ContextParams{OwnerID: "alice", SessionID: "sess-1", LimitPerTier: 2})
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if len(res.STM) != 2 || len(res.ITM) != 2 {
		t.Errorf("expected per-tier cap of 2, got stm=%d itm=%d", len(res.STM), len(res.ITM))
	}
}

func TestContextITMRankedByAccess(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	cold, _ := s.Store(ctx, StoreParams{OwnerID: "alice", InputText: "cold", Tier: model.TierITM})
	hot, _ := s.Store(ctx, StoreParams{OwnerID: "alice", InputText: "hot", Tier: model.TierITM})
	for i := 0; i < 3; i++ {
		s.RecordAccess(ctx, hot.ID, "alice")
	}

	res, _ := s.Context(ctx, ContextParams{OwnerID: "alice", LimitPerTier: 2})
	if len(res.ITM) != 2 {
		t.Fatalf("expected 2 itm entries, got %d", len(res.ITM))
	}
	if res.ITM[0].ID != hot.ID || res.ITM[1].ID != cold.ID {
		t.Error("expected itm entries ranked by access_count descending")
	}
}

func TestContextLTMExcludesInvalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem, _ := s.Store(ctx, StoreParams{OwnerID: "alice", InputText: "claim", Tier: model.TierLTM, ConfidenceScore: 0.9})
	invalid := false
	s.Update(ctx, mem.ID, "alice", UpdatePatch{IsValid: &invalid})

	res, _ := s.Context(ctx, ContextParams{OwnerID: "alice", LimitPerTier: 5})
	if len(res.LTM) != 0 {
		t.Errorf("expected invalidated ltm memory excluded, got %d", len(res.LTM))
	}
}

func TestContextCacheInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Store(ctx, StoreParams{OwnerID: "alice", SessionID: "sess-1", InputText: "first"})

	// Prime the cache.
	res1, err := s.Context(ctx, ContextParams{OwnerID: "alice", SessionID: "sess-1", LimitPerTier: 5})
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if len(res1.STM) != 1 {
		t.Fatalf("expected 1 stm entry, got %d", len(res1.STM))
	}

	// A write to the same session must be visible on the next read,
	// not after the cache TTL.
	s.Store(ctx, StoreParams{OwnerID: "alice", SessionID: "sess-1", InputText: "second"})
	// ristretto applies buffered writes asynchronously; give the
	// invalidation a moment to land.
	time.Sleep(20 * time.Millisecond)

	res2, err := s.Context(ctx, ContextParams{OwnerID: "alice", SessionID: "sess-1", LimitPerTier: 5})
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if len(res2.STM) != 2 {
		t.Errorf("expected the new write visible after invalidation, got %d entries", len(res2.STM))
	}
	if len(res2.STM) > 0 && res2.STM[0].InputText != "second" {
		t.Errorf("expected newest first, got %q", res2.STM[0].InputText)
	}
}
