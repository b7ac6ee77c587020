package embedder

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/soundprediction/risposta/pkg/utils"
)

// MockEmbedder is a deterministic in-process embedder for tests. Equal texts
// always embed to equal unit vectors, distinct texts to distinct ones, so
// cosine similarity over mock embeddings is stable across runs.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder creates a mock embedder. A non-positive dimensions value
// falls back to 384.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed generates deterministic embeddings for the given texts.
func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = m.vector(text)
	}
	return embeddings, nil
}

// EmbedSingle generates a deterministic embedding for a single text.
func (m *MockEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Dimensions returns the number of dimensions in the embeddings.
func (m *MockEmbedder) Dimensions() int {
	return m.dimensions
}

// Model returns a synthetic model name. Mock vectors of different
// dimensionality must not share a cache namespace.
func (m *MockEmbedder) Model() string {
	return "mock-" + strconv.Itoa(m.dimensions)
}

// Close cleans up any resources.
func (m *MockEmbedder) Close() error {
	return nil
}

// vector derives a unit vector from the text hash via a small linear
// congruential sequence.
func (m *MockEmbedder) vector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	state := h.Sum64() | 1

	v := make([]float32, m.dimensions)
	for i := range v {
		state = state*6364136223846793005 + 1442695040888963407
		// Map the high bits into [-1, 1).
		v[i] = float32(int64(state>>11))/float32(1<<52) - 1
	}
	if unit := utils.Normalize(v); unit != nil {
		return unit
	}
	v[0] = 1
	return v
}
