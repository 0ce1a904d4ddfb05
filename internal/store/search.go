package store

import (
	"context"
	"sort"

	"github.com/evanwhit/mnemo/internal/embedding"
	"github.com/evanwhit/mnemo/internal/model"
)

// Search runs semantic search over the owner's valid LTM memories. The
// query is embedded, matched against the vector index, and every hit is
// re-validated against its live row before ranking. Results come back
// in non-increasing similarity order above the configured floor; ties
// break by higher confidence, then more recent creation.
func (s *TierStore) Search(ctx context.Context, p SearchParams) ([]model.ScoredMemory, error) {
	if p.OwnerID == "" {
		return nil, &model.ValidationError{Field: "owner_id", Msg: "is required"}
	}
	if p.Query == "" {
		return nil, &model.ValidationError{Field: "query", Msg: "is required"}
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > s.cfg.MaxListLimit {
		limit = s.cfg.MaxListLimit
	}

	queryVec, err := embedding.Embed(ctx, s.embedder, p.Query, s.cfg.EmbedTimeout)
	if err != nil {
		return nil, err
	}

	// Overfetch: hits may be dropped by row re-validation below.
	hits, err := s.vectors.Load().query(ctx, p.OwnerID, queryVec, limit*3)
	if err != nil {
		return nil, err
	}

	var results []model.ScoredMemory
	for _, hit := range hits {
		if hit.Similarity < s.cfg.MinSimilarity {
			continue
		}
		mem, err := s.Get(ctx, GetParams{ID: hit.ID, OwnerID: p.OwnerID})
		if err != nil {
			// Stale index entry (deleted or expired row); skip it.
			continue
		}
		if !mem.IsValid {
			continue
		}
		if p.Tier != "" && mem.Tier != p.Tier {
			continue
		}
		if p.MinConfidence != nil && mem.ConfidenceScore < *p.MinConfidence {
			continue
		}
		results = append(results, model.ScoredMemory{Memory: *mem, SimilarityScore: hit.Similarity})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].SimilarityScore != results[j].SimilarityScore {
			return results[i].SimilarityScore > results[j].SimilarityScore
		}
		if results[i].ConfidenceScore != results[j].ConfidenceScore {
			return results[i].ConfidenceScore > results[j].ConfidenceScore
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
