package store

import (
	"context"
	"testing"
	"time"

	"github.com/evanwhit/mnemo/internal/config"
	"github.com/evanwhit/mnemo/internal/model"
)

func storeLTM(t *testing.T, s *TierStore, owner, text string, confidence float64) *model.Memory {
	t.Helper()
	mem, err := s.Store(context.Background(), StoreParams{
		OwnerID:         owner,
		InputText:       text,
		Tier:            model.TierLTM,
		ConfidenceScore: confidence,
	})
	if err != nil {
		t.Fatalf("store ltm %q: %v", text, err)
	}
	return mem
}

func TestSearchFindsExactText(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// The mock embedder only maps identical texts to identical vectors,
	// so an exact match is the one result above the similarity floor.
	want := storeLTM(t, s, "alice", "the invoice is due on the first", 0.8)
	storeLTM(t, s, "alice", "completely unrelated trivia", 0.9)

	results, err := s.Search(ctx, SearchParams{OwnerID: "alice", Query: "the invoice is due on the first"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result above the floor, got %d", len(results))
	}
	if results[0].ID != want.ID {
		t.Errorf("expected %s, got %s", want.ID, results[0].ID)
	}
	if results[0].SimilarityScore < 0.99 {
		t.Errorf("expected near-perfect similarity, got %f", results[0].SimilarityScore)
	}
}

func TestSearchOrdering(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.MinSimilarity = -1 // admit everything so ordering is observable
	s := newTestStoreCfg(t, cfg)

	storeLTM(t, s, "alice", "first fact", 0.5)
	storeLTM(t, s, "alice", "second fact", 0.6)
	storeLTM(t, s, "alice", "third fact", 0.7)

	results, err := s.Search(ctx, SearchParams{OwnerID: "alice", Query: "second fact", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].SimilarityScore > results[i-1].SimilarityScore {
			t.Error("expected non-increasing similarity order")
		}
	}
	if results[0].InputText != "second fact" {
		t.Errorf("expected the exact match first, got %q", results[0].InputText)
	}
}

func TestSearchTieBreakByConfidence(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.MinSimilarity = -1
	s := newTestStoreCfg(t, cfg)

	// Identical text means identical mock embeddings, so similarity is
	// an exact tie and confidence decides the order.
	low := storeLTM(t, s, "alice", "pin the dependency before release", 0.3)
	high := storeLTM(t, s, "alice", "pin the dependency before release", 0.9)

	results, err := s.Search(ctx, SearchParams{OwnerID: "alice", Query: "pin the dependency before release", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != high.ID || results[1].ID != low.ID {
		t.Errorf("expected confidence to break the tie: got %s before %s", results[0].ID, results[1].ID)
	}
}

func TestSearchTieBreakByRecency(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.MinSimilarity = -1
	s := newTestStoreCfg(t, cfg)

	// Same text and same confidence: the tie falls through to
	// created_at, newest first.
	older := storeLTM(t, s, "alice", "rotate the signing key quarterly", 0.5)
	time.Sleep(5 * time.Millisecond)
	newer := storeLTM(t, s, "alice", "rotate the signing key quarterly", 0.5)

	results, err := s.Search(ctx, SearchParams{OwnerID: "alice", Query: "rotate the signing key quarterly", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != newer.ID || results[1].ID != older.ID {
		t.Errorf("expected recency to break the tie: got %s before %s", results[0].ID, results[1].ID)
	}
}

func TestSearchOwnershipIsolation(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.MinSimilarity = -1
	s := newTestStoreCfg(t, cfg)

	a1 := storeLTM(t, s, "x", "shared topic one", 0.5)
	a2 := storeLTM(t, s, "x", "shared topic two", 0.5)
	// Owner y holds the exact query text, the closest possible vector.
	storeLTM(t, s, "y", "shared topic query", 0.5)

	results, err := s.Search(ctx, SearchParams{OwnerID: "x", Query: "shared topic query", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected only owner x's 2 memories, got %d", len(results))
	}
	for _, r := range results {
		if r.ID != a1.ID && r.ID != a2.ID {
			t.Errorf("foreign memory leaked into results: %s", r.ID)
		}
		if r.OwnerID != "x" {
			t.Errorf("expected owner x, got %s", r.OwnerID)
		}
	}
}

func TestSearchExcludesInvalidated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := storeLTM(t, s, "alice", "disputed claim", 0.8)
	invalid := false
	if _, err := s.Update(ctx, mem.ID, "alice", UpdatePatch{IsValid: &invalid}); err != nil {
		t.Fatalf("update: %v", err)
	}

	results, err := s.Search(ctx, SearchParams{OwnerID: "alice", Query: "disputed claim"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range results {
		if !r.IsValid {
			t.Error("search must never return invalidated memories")
		}
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSearchExcludesDeleted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := storeLTM(t, s, "alice", "old address", 0.8)
	if err := s.Delete(ctx, mem.ID, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// The vector index may still hold the stale entry; search must
	// re-validate against the durable store.
	results, err := s.Search(ctx, SearchParams{OwnerID: "alice", Query: "old address"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for deleted memory, got %d", len(results))
	}
}

func TestSearchMinConfidenceFilter(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.MinSimilarity = -1
	s := newTestStoreCfg(t, cfg)

	storeLTM(t, s, "alice", "weak fact", 0.2)
	storeLTM(t, s, "alice", "strong fact", 0.9)

	min := 0.5
	results, err := s.Search(ctx, SearchParams{OwnerID: "alice", Query: "fact", MinConfidence: &min, Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].InputText != "strong fact" {
		t.Errorf("expected only the high-confidence fact, got %v", results)
	}
}

func TestSearchValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Search(ctx, SearchParams{Query: "q"}); !model.IsValidation(err) {
		t.Errorf("missing owner: expected validation error, got %v", err)
	}
	if _, err := s.Search(ctx, SearchParams{OwnerID: "alice"}); !model.IsValidation(err) {
		t.Errorf("missing query: expected validation error, got %v", err)
	}
}

func TestVectorIndexRebuiltOnOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Default()

	path := dir + "/rebuild.db"
	s1, err := New(path, cfg, newTestEmbedder(), nopLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mem := storeLTM(t, s1, "alice", "durable fact", 0.8)
	s1.Close()

	s2, err := New(path, cfg, newTestEmbedder(), nopLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	results, err := s2.Search(ctx, SearchParams{OwnerID: "alice", Query: "durable fact"})
	if err != nil {
		t.Fatalf("search after reopen: %v", err)
	}
	if len(results) != 1 || results[0].ID != mem.ID {
		t.Errorf("expected the persisted ltm memory after reopen, got %v", results)
	}
}
