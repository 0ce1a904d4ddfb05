package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEmbedder generates deterministic embeddings from a text hash. It
// backs tests and offline deployments; similar texts do not get similar
// vectors, only identical texts do.
type MockEmbedder struct {
	dims int
}

// NewMockEmbedder creates a mock embedder. Dims defaults to 384 to match
// the all-MiniLM-L6-v2 family the real providers typically serve.
func NewMockEmbedder(dims int) *MockEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &MockEmbedder{dims: dims}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make(Vector, m.dims)
	for i := 0; i < m.dims; i++ {
		// Simple LCG seeded by the text hash.
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

func (m *MockEmbedder) Dims() int { return m.dims }

func normalize(vec Vector) Vector {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	n := float32(math.Sqrt(norm))
	out := make(Vector, len(vec))
	for i, v := range vec {
		out[i] = v / n
	}
	return out
}
