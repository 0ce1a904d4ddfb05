// Package distill implements the periodic batch process that turns
// reflections into promotions, expirations and distilled knowledge.
package distill

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/evanwhit/mnemo/internal/config"
	"github.com/evanwhit/mnemo/internal/embedding"
	"github.com/evanwhit/mnemo/internal/model"
	"github.com/evanwhit/mnemo/internal/store"
)

// Engine re-evaluates intermediate-tier memories and their reflections
// in scheduled batch runs. It holds no state between runs; the
// checkpoint lives in the run table.
type Engine struct {
	store    *store.TierStore
	cfg      *config.Config
	embedder embedding.Embedder
	log      zerolog.Logger

	now func() time.Time
}

// New creates a distillation engine over the given store.
func New(s *store.TierStore, cfg *config.Config, emb embedding.Embedder, log zerolog.Logger) *Engine {
	return &Engine{
		store:    s,
		cfg:      cfg,
		embedder: emb,
		log:      log.With().Str("component", "distill").Logger(),
		now:      time.Now,
	}
}

// NextWindow returns the reflection window the next run should cover:
// from the last completed run's checkpoint (or the beginning of time)
// up to now. Incomplete and failed runs do not advance the checkpoint,
// so their window is retried in full.
func (e *Engine) NextWindow(ctx context.Context) (store.Window, error) {
	start, err := e.store.LastCheckpoint(ctx)
	if err != nil {
		return store.Window{}, err
	}
	return store.Window{Start: start, End: e.now().UTC()}, nil
}

// Run executes one distillation pass over the given reflection window.
// The window is injected rather than derived internally so runs are
// reproducible in tests and resumable after an incomplete run.
//
// Every per-memory transition is atomic on its own; the run as a whole
// is not. A per-item failure is logged, counted as skipped, and the run
// continues. Exceeding the wall-clock budget stops the run cleanly
// between items and reports ErrRunIncomplete; re-running the same
// window is safe because knowledge is deduped by its source reflection
// set and promotion candidates exclude memories already in long-term.
func (e *Engine) Run(ctx context.Context, w store.Window) (*model.DistillationRun, error) {
	started := e.now().UTC()
	deadline := started.Add(e.cfg.RunBudget)
	run := &model.DistillationRun{
		ID:          uuid.NewString(),
		WindowStart: w.Start,
		WindowEnd:   w.End,
		StartedAt:   started,
	}
	e.log.Info().
		Str("run_id", run.ID).
		Time("window_start", w.Start).
		Time("window_end", w.End).
		Msg("distillation run started")

	err := e.run(ctx, run, w, deadline)
	finished := e.now().UTC()
	run.FinishedAt = &finished

	switch {
	case err == nil:
		run.Status = model.RunCompleted
	case errors.Is(err, model.ErrRunIncomplete):
		run.Status = model.RunIncomplete
	default:
		run.Status = model.RunFailed
		run.Error = err.Error()
	}

	if recErr := e.store.RecordRun(ctx, run); recErr != nil {
		e.log.Error().Err(recErr).Str("run_id", run.ID).Msg("failed to record run")
		if err == nil {
			err = recErr
		}
	}

	e.log.Info().
		Str("run_id", run.ID).
		Str("status", run.Status).
		Int("promoted", run.Promoted).
		Int("expired", run.Expired).
		Int("archived", run.Archived).
		Int("distilled", run.Distilled).
		Int("skipped", run.Skipped).
		Dur("took", finished.Sub(started)).
		Msg("distillation run finished")
	return run, err
}

func (e *Engine) run(ctx context.Context, run *model.DistillationRun, w store.Window, deadline time.Time) error {
	overBudget := func() bool { return e.now().After(deadline) }

	// 1. Snapshot the window's reflections. Reflections arriving after
	// the window end belong to the next run.
	refs, err := e.store.ReflectionsInWindow(ctx, w)
	if err != nil {
		return err
	}

	// 2-3. Group by tag overlap and aggregate scores per group.
	groups := groupReflections(refs)

	// 4. Promotion pass: memory-by-memory, independent of grouping.
	candidates, err := e.store.PromotionCandidates(ctx)
	if err != nil {
		return err
	}
	promoted := make(map[string]bool)
	for _, m := range candidates {
		if overBudget() {
			return model.ErrRunIncomplete
		}
		if !e.qualifies(&m) {
			continue
		}
		if _, err := e.store.Promote(ctx, m.ID, m.OwnerID); err != nil {
			if errors.Is(err, model.ErrInvalidTransition) || errors.Is(err, model.ErrNotFound) {
				// Already moved or removed by a concurrent caller.
				continue
			}
			e.log.Warn().Err(err).Str("memory_id", m.ID).Msg("promotion failed, skipping")
			run.Skipped++
			continue
		}
		promoted[m.ID] = true
		run.Promoted++
	}

	// 5. Synthesize knowledge from qualifying groups. Principles are
	// embedded as one concurrent batch since model inference dominates
	// run time.
	var qualifying []*group
	for _, g := range groups {
		if len(g.Reflections) < e.cfg.MinGroupSize || !g.AllValid {
			continue
		}
		if g.Confidence < e.cfg.DistillConfidenceMin {
			continue
		}
		qualifying = append(qualifying, g)
	}

	archivable := make(map[string]bool)
	if len(qualifying) > 0 {
		if overBudget() {
			return model.ErrRunIncomplete
		}
		principles := make([]string, len(qualifying))
		for i, g := range qualifying {
			principles[i] = synthesizePrinciple(g)
		}
		vecs, err := embedding.EmbedBatch(ctx, e.embedder, principles, e.cfg.EmbedTimeout, e.cfg.EmbedConcurrency)
		if err != nil {
			return err
		}
		for i, g := range qualifying {
			if overBudget() {
				return model.ErrRunIncomplete
			}
			k := &model.DistilledKnowledge{
				OwnerID:           g.OwnerID,
				Topic:             g.Topic(),
				Principle:         principles[i],
				Confidence:        g.Confidence,
				Embedding:         vecs[i],
				SourceReflections: g.ReflectionIDs(),
			}
			created, err := e.store.CreateKnowledge(ctx, k)
			if err != nil {
				e.log.Warn().Err(err).Str("owner_id", g.OwnerID).Msg("distillation failed for group, skipping")
				run.Skipped++
				continue
			}
			if created {
				run.Distilled++
			}
			// Even when the knowledge already existed from a prior run
			// over this window, the group's members stay archivable so a
			// resumed run finishes the archival it was cut off from.
			for _, id := range g.MemberMemoryIDs() {
				archivable[id] = true
			}
		}
	}

	// 6. Expire: lapsed memories are deleted unless they fed distilled
	// knowledge, in which case they are archived for traceability.
	expired, err := e.store.ExpiredMemories(ctx, w.End)
	if err != nil {
		return err
	}
	for _, m := range expired {
		if overBudget() {
			return model.ErrRunIncomplete
		}
		if promoted[m.ID] {
			continue
		}
		if archivable[m.ID] {
			if err := e.store.Archive(ctx, m.ID); err != nil {
				e.log.Warn().Err(err).Str("memory_id", m.ID).Msg("archive failed, skipping")
				run.Skipped++
				continue
			}
			run.Archived++
			continue
		}
		if err := e.store.ExpireMemory(ctx, m.ID); err != nil {
			e.log.Warn().Err(err).Str("memory_id", m.ID).Msg("expire failed, skipping")
			run.Skipped++
			continue
		}
		run.Expired++
	}

	return nil
}

// qualifies evaluates the long-term promotion criteria for a single
// intermediate-tier memory.
func (e *Engine) qualifies(m *model.Memory) bool {
	return math.Abs(m.EmotionalWeight) > e.cfg.EmotionalWeightMin &&
		m.ConfidenceScore > e.cfg.ConfidenceMin &&
		m.IsValid &&
		(m.Outcome == "success" || m.AccessCount >= e.cfg.AccessCountMin)
}

// synthesizePrinciple derives the principle text from the group's
// reflections: improvement notes first since they carry the actionable
// signal, falling back to assessments. Order follows reflection
// creation so the text is stable for a given group.
func synthesizePrinciple(g *group) string {
	seen := make(map[string]bool)
	var lines []string
	for _, r := range g.Reflections {
		line := strings.TrimSpace(r.Improvement)
		if line == "" {
			line = strings.TrimSpace(r.Assessment)
		}
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return fmt.Sprintf("No actionable signal recorded for %s.", g.Topic())
	}
	return strings.Join(lines, " ")
}
