package distill

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanwhit/mnemo/internal/config"
	"github.com/evanwhit/mnemo/internal/embedding"
	"github.com/evanwhit/mnemo/internal/model"
	"github.com/evanwhit/mnemo/internal/store"
)

func newTestEngine(t *testing.T, cfg *config.Config) (*Engine, *store.TierStore) {
	t.Helper()
	emb := embedding.NewMockEmbedder(32)
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), cfg, emb, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, cfg, emb, zerolog.Nop()), s
}

func window() store.Window {
	return store.Window{
		Start: time.Now().UTC().Add(-time.Hour),
		End:   time.Now().UTC().Add(time.Minute),
	}
}

func TestRunPromotesQualifyingITM(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t, config.Default())

	mem, err := s.Store(ctx, store.StoreParams{
		OwnerID:         "alice",
		InputText:       "closing the loop with the customer worked",
		EmotionalWeight: 0.9,
		ConfidenceScore: 0.9,
		Outcome:         "success",
	})
	require.NoError(t, err)

	_, err = s.Promote(ctx, mem.ID, "alice")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordAccess(ctx, mem.ID, "alice"))
	}

	run, err := eng.Run(ctx, window())
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, 1, run.Promoted)

	got, err := s.Get(ctx, store.GetParams{ID: mem.ID, OwnerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, model.TierLTM, got.Tier)
	assert.NotEmpty(t, got.Embedding)
	assert.Nil(t, got.ExpiresAt)
}

func TestRunNeverPromotesInvalid(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t, config.Default())

	invalid := false
	mem, err := s.Store(ctx, store.StoreParams{
		OwnerID:         "alice",
		InputText:       "unchecked claim",
		EmotionalWeight: 0.8,
		ConfidenceScore: 0.95,
		Outcome:         "success",
		IsValid:         &invalid,
		Tier:            model.TierITM,
	})
	require.NoError(t, err)

	run, err := eng.Run(ctx, window())
	require.NoError(t, err)
	assert.Zero(t, run.Promoted)

	got, err := s.Get(ctx, store.GetParams{ID: mem.ID, OwnerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, model.TierITM, got.Tier)
}

func TestRunBelowCriteriaNotPromoted(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t, config.Default())

	// High confidence but flat emotional weight and no success signal.
	mem, err := s.Store(ctx, store.StoreParams{
		OwnerID:         "alice",
		InputText:       "routine exchange",
		EmotionalWeight: 0.1,
		ConfidenceScore: 0.9,
		Tier:            model.TierITM,
	})
	require.NoError(t, err)

	run, err := eng.Run(ctx, window())
	require.NoError(t, err)
	assert.Zero(t, run.Promoted)

	got, _ := s.Get(ctx, store.GetParams{ID: mem.ID, OwnerID: "alice"})
	assert.Equal(t, model.TierITM, got.Tier)
}

// seedGroup stores two tagged ITM memories with a reflection each, so
// they form one tag-overlap group that clears the distillation bar.
func seedGroup(t *testing.T, s *store.TierStore, owner, tag string) (memIDs, refIDs []string) {
	t.Helper()
	ctx := context.Background()
	for i, text := range []string{"first attempt", "second attempt"} {
		mem, err := s.Store(ctx, store.StoreParams{
			OwnerID:         owner,
			InputText:       text,
			ConfidenceScore: 0.5,
			Tags:            []string{tag},
			Tier:            model.TierITM,
		})
		require.NoError(t, err)
		r, err := s.CreateReflection(ctx, store.ReflectionParams{
			MemoryID:       mem.ID,
			OwnerID:        owner,
			Assessment:     "assessment",
			AlignmentScore: 0.8,
			Improvement:    "improvement note " + string(rune('a'+i)),
		})
		require.NoError(t, err)
		memIDs = append(memIDs, mem.ID)
		refIDs = append(refIDs, r.ID)
	}
	return memIDs, refIDs
}

func TestRunDistillsGroupedReflections(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t, config.Default())

	_, refIDs := seedGroup(t, s, "alice", "deploys")

	run, err := eng.Run(ctx, window())
	require.NoError(t, err)
	assert.Equal(t, 1, run.Distilled)

	items, err := s.ListKnowledge(ctx, "alice", "deploys")
	require.NoError(t, err)
	require.Len(t, items, 1)
	k := items[0]
	assert.Equal(t, "deploys", k.Topic)
	assert.InDelta(t, 0.8, k.Confidence, 1e-9)
	assert.ElementsMatch(t, refIDs, k.SourceReflections)
	assert.NotEmpty(t, k.Embedding)
	assert.Contains(t, k.Principle, "improvement note")
}

func TestRunSkipsInvalidGroup(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t, config.Default())

	memIDs, _ := seedGroup(t, s, "alice", "deploys")
	invalid := false
	_, err := s.Update(ctx, memIDs[0], "alice", store.UpdatePatch{IsValid: &invalid})
	require.NoError(t, err)

	run, err := eng.Run(ctx, window())
	require.NoError(t, err)
	assert.Zero(t, run.Distilled)

	items, _ := s.ListKnowledge(ctx, "alice", "")
	assert.Empty(t, items)
}

func TestRunIdempotentOverSameWindow(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t, config.Default())

	mem, err := s.Store(ctx, store.StoreParams{
		OwnerID:         "alice",
		InputText:       "important success",
		EmotionalWeight: 0.8,
		ConfidenceScore: 0.9,
		Outcome:         "success",
		Tier:            model.TierITM,
	})
	require.NoError(t, err)
	seedGroup(t, s, "alice", "deploys")

	w := window()
	run1, err := eng.Run(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, 1, run1.Promoted)
	assert.Equal(t, 1, run1.Distilled)

	run2, err := eng.Run(ctx, w)
	require.NoError(t, err)
	assert.Zero(t, run2.Promoted, "already-ltm memories must not be re-promoted")
	assert.Zero(t, run2.Distilled, "same source set must not produce duplicate knowledge")

	items, _ := s.ListKnowledge(ctx, "alice", "")
	assert.Len(t, items, 1)

	got, _ := s.Get(ctx, store.GetParams{ID: mem.ID, OwnerID: "alice"})
	assert.Equal(t, model.TierLTM, got.Tier)
}

func TestRunArchivesDistilledSourcesAndDeletesTheRest(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.ITMTTL = -time.Minute // itm rows are born expired
	eng, s := newTestEngine(t, cfg)

	memIDs, _ := seedGroup(t, s, "alice", "deploys")
	loner, err := s.Store(ctx, store.StoreParams{
		OwnerID:   "alice",
		InputText: "nothing came of this",
		Tier:      model.TierITM,
	})
	require.NoError(t, err)

	run, err := eng.Run(ctx, window())
	require.NoError(t, err)
	assert.Equal(t, 1, run.Distilled)
	assert.Equal(t, 2, run.Archived, "group members must be archived, not deleted")
	assert.Equal(t, 1, run.Expired, "ungrouped lapsed memories are deleted")

	// Neither archived nor deleted rows are visible to normal reads.
	list, err := s.List(ctx, store.ListParams{OwnerID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, list)

	// Archived sources survive the purge that removes the deleted row,
	// preserving traceability from knowledge back to its sources.
	_, err = s.Purge(ctx, -time.Second)
	require.NoError(t, err)
	st, err := s.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, len(memIDs), st.TotalMemories)
	_ = loner
}

func TestRunStopsCleanlyOnBudget(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.RunBudget = -time.Second // budget exhausted before the first item
	eng, s := newTestEngine(t, cfg)

	_, err := s.Store(ctx, store.StoreParams{
		OwnerID:         "alice",
		InputText:       "candidate",
		EmotionalWeight: 0.9,
		ConfidenceScore: 0.9,
		Outcome:         "success",
		Tier:            model.TierITM,
	})
	require.NoError(t, err)

	run, err := eng.Run(ctx, window())
	require.ErrorIs(t, err, model.ErrRunIncomplete)
	require.NotNil(t, run)
	assert.Equal(t, model.RunIncomplete, run.Status)
	assert.Zero(t, run.Promoted)
	require.NotNil(t, run.FinishedAt)
}

func TestNextWindowResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t, config.Default())

	w1, err := eng.NextWindow(ctx)
	require.NoError(t, err)
	assert.True(t, w1.Start.IsZero(), "first run covers everything")

	run, err := eng.Run(ctx, w1)
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)

	w2, err := eng.NextWindow(ctx)
	require.NoError(t, err)
	assert.True(t, w2.Start.Equal(w1.End), "next window starts at the completed checkpoint")

	// A failed or incomplete run must not advance the checkpoint.
	require.NoError(t, s.RecordRun(ctx, &model.DistillationRun{
		ID:        "inc",
		WindowEnd: w2.End.Add(time.Hour),
		StartedAt: time.Now().UTC(),
		Status:    model.RunIncomplete,
	}))
	w3, err := eng.NextWindow(ctx)
	require.NoError(t, err)
	assert.True(t, w3.Start.Equal(w1.End))
}
