// Package vector provides nearest-neighbour search over fixed-length vectors.
package vector

import "context"

// Searcher stores vectors by ID and answers similarity queries. Implementations
// must return results ordered by descending Score, ties broken by ascending ID.
type Searcher interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns the k most similar vectors to query.
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	// SearchRange returns at most k vectors whose cosine distance to query
	// (1 - similarity) is at most radius.
	SearchRange(ctx context.Context, query []float32, radius float64, k int) ([]*Result, error)
	Size() int
	Dimensions() int
	Close() error
}

// Result is a single search hit.
type Result struct {
	ID    string
	Score float64 // cosine similarity in [-1, 1]
}

// less orders results by descending score, then ascending ID.
func less(a, b *Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}
