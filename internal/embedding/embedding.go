// Package embedding provides a pluggable interface for text embedding
// providers plus the batch and retry plumbing the tier store and the
// distillation engine share.
package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/evanwhit/mnemo/internal/model"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
//
// Dims is fixed for the lifetime of the deployed model. Changing it
// invalidates every stored vector and requires a re-embedding migration;
// nothing here handles that automatically.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Embed runs a single embedding call through the given embedder with a
// bounded timeout and bounded retry. Empty or whitespace-only text is a
// validation error, never a zero vector. Exhausted retries surface
// model.ErrUnavailable.
func Embed(ctx context.Context, e Embedder, text string, timeout time.Duration) (Vector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &model.ValidationError{Field: "text", Msg: "must not be empty"}
	}

	var vec Vector
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		v, err := e.Embed(callCtx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("%w: embed: %v", model.ErrUnavailable, err)
	}
	return vec, nil
}

// EmbedBatch embeds each text as if Embed were called per item, with a
// bounded number of calls in flight. Results are order-preserving and a
// single failure fails the batch.
func EmbedBatch(ctx context.Context, e Embedder, texts []string, timeout time.Duration, concurrency int) ([]Vector, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	vecs := make([]Vector, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			v, err := Embed(gctx, e, text, timeout)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			vecs[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vecs, nil
}
