package vector

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/bookrec/internal/models"
	"github.com/hyperjump/bookrec/pkg/utils"
)

// minShardSize keeps tiny indexes on a single goroutine.
const minShardSize = 256

// MemoryIndex is an in-memory brute-force cosine index. Queries are split
// across a bounded number of goroutines, each keeping its own top-k heap.
type MemoryIndex struct {
	dimensions int
	workers    int
	ids        []string
	vectors    [][]float32
	norms      []float64
	pos        map[string]int
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
// workers <= 0 means a single goroutine per query.
func NewMemoryIndex(dimensions, workers int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if workers <= 0 {
		workers = 1
	}
	return &MemoryIndex{
		dimensions: dimensions,
		workers:    workers,
		ids:        make([]string, 0),
		vectors:    make([][]float32, 0),
		norms:      make([]float64, 0),
		pos:        make(map[string]int),
	}, nil
}

// Add stores copies of vectors under ids. An existing id is replaced.
func (m *MemoryIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	for _, v := range vectors {
		if err := models.CheckDimensions(m.dimensions, len(v)); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		norm := utils.L2Norm(vec)
		if p, ok := m.pos[id]; ok {
			m.vectors[p] = vec
			m.norms[p] = norm
			continue
		}
		m.pos[id] = len(m.ids)
		m.ids = append(m.ids, id)
		m.vectors = append(m.vectors, vec)
		m.norms = append(m.norms, norm)
	}
	return nil
}

// Search returns the top-k vectors by cosine similarity.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	return m.scan(ctx, query, k, nil)
}

// SearchRange returns at most k vectors whose cosine distance is <= radius.
func (m *MemoryIndex) SearchRange(ctx context.Context, query []float32, radius float64, k int) ([]*Result, error) {
	if radius < 0 || math.IsNaN(radius) {
		return nil, fmt.Errorf("radius must be non-negative, got %v", radius)
	}
	return m.scan(ctx, query, k, func(score float64) bool { return Distance(score) <= radius })
}

func (m *MemoryIndex) scan(ctx context.Context, query []float32, k int, accept func(float64) bool) ([]*Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", models.ErrInvalidK, k)
	}
	if err := models.CheckDimensions(m.dimensions, len(query)); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.ids)
	if n == 0 {
		return []*Result{}, nil
	}

	qnorm := utils.L2Norm(query)
	shards := m.workers
	if maxShards := (n + minShardSize - 1) / minShardSize; shards > maxShards {
		shards = maxShards
	}
	shardLen := (n + shards - 1) / shards
	parts := make([][]*Result, shards)

	g, gctx := errgroup.WithContext(ctx)
	for s := 0; s < shards; s++ {
		s := s
		lo, hi := s*shardLen, min((s+1)*shardLen, n)
		g.Go(func() error {
			top := newTopK(k)
			for i := lo; i < hi; i++ {
				if (i-lo)%minShardSize == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				score := m.score(query, qnorm, i)
				if accept != nil && !accept(score) {
					continue
				}
				top.offer(&Result{ID: m.ids[i], Score: score})
			}
			parts[s] = top.items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mergeTopK(parts, k), nil
}

func (m *MemoryIndex) score(query []float32, qnorm float64, i int) float64 {
	return cosineWithNorms(query, m.vectors[i], qnorm, m.norms[i])
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Dimensions returns the vector length accepted by the index.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
