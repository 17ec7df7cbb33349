package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/bookrec/internal/indexer"
	"github.com/hyperjump/bookrec/internal/loader"
	"github.com/hyperjump/bookrec/internal/models"
)

// Builder persists an index from books.
type Builder interface {
	Build(ctx context.Context, books []*models.Book) (*indexer.BuildReport, error)
}

// Invalidator drops cached query state after a rebuild.
type Invalidator interface {
	Invalidate()
}

// Runner ties the loader, builder and query cache together.
type Runner struct {
	dataPath string
	builder  Builder
	cache    Invalidator
	load     func(path string) ([]*models.Book, error)
	logger   *zap.Logger
	mu       sync.Mutex
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithLoader replaces the record loader.
func WithLoader(fn func(path string) ([]*models.Book, error)) RunnerOption {
	return func(r *Runner) { r.load = fn }
}

// NewRunner creates a runner that rebuilds from dataPath. cache may be nil.
func NewRunner(dataPath string, builder Builder, cache Invalidator, opts ...RunnerOption) *Runner {
	r := &Runner{
		dataPath: dataPath,
		builder:  builder,
		cache:    cache,
		load:     loader.Load,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start performs the startup work for mode. WarmStart returns a nil report;
// a missing index then surfaces as models.ErrNotFound on the first query.
func (r *Runner) Start(ctx context.Context, mode Mode) (*indexer.BuildReport, error) {
	r.logger.Info("starting", zap.Stringer("mode", mode), zap.String("data_path", r.dataPath))
	switch mode {
	case ColdStart:
		return r.Rebuild(ctx)
	case WarmStart:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported start mode %s", mode)
	}
}

// Rebuild loads every record, rebuilds the index and drops cached query
// state. Concurrent calls run one at a time.
func (r *Runner) Rebuild(ctx context.Context) (*indexer.BuildReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	books, err := r.load(r.dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	r.logger.Debug("records loaded", zap.Int("count", len(books)))

	report, err := r.builder.Build(ctx, books)
	if r.cache != nil {
		r.cache.Invalidate()
	}
	return report, err
}
