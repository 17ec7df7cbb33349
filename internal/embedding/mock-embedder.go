package embedding

import (
	"context"

	"github.com/cespare/xxhash/v2"

	"github.com/hyperjump/bookrec/pkg/utils"
)

// MockEmbedder derives a pseudo-random unit vector from the text hash. Equal
// texts get equal vectors; it stands in for a model in tests and the "mock"
// encoding kind.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns a MockEmbedder. dimensions <= 0 means 384.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed fills the vector from a splitmix64 stream seeded with the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	state := xxhash.Sum64String(text)
	emb := make([]float32, e.dimensions)
	for i := range emb {
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		z ^= z >> 31
		emb[i] = float32(z>>40)/float32(1<<23) - 1
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch embeds each text in order.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, emb)
	}
	return out, nil
}

// Dimensions returns the embedding length.
func (e *MockEmbedder) Dimensions() int { return e.dimensions }

// Close is a no-op.
func (e *MockEmbedder) Close() error { return nil }
