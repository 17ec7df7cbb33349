// Package search answers nearest-neighbour queries against a built index.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/bookrec/internal/codec"
	"github.com/hyperjump/bookrec/internal/config"
	"github.com/hyperjump/bookrec/internal/keyword"
	"github.com/hyperjump/bookrec/internal/models"
	"github.com/hyperjump/bookrec/internal/store"
	"github.com/hyperjump/bookrec/internal/vector"
)

// Status describes the index as seen by the engine.
type Status struct {
	Index    string            `json:"index"`
	Meta     *models.IndexMeta `json:"meta,omitempty"`
	Loaded   bool              `json:"loaded"`
	Entries  int               `json:"entries"`
	Skipped  int               `json:"skipped"`
	LoadedAt time.Time         `json:"loaded_at,omitempty"`
}

// snapshot is an immutable in-memory copy of the stored entries.
type snapshot struct {
	meta     *models.IndexMeta
	searcher vector.Searcher
	titles   map[string]string
	skipped  int
	loadedAt time.Time
}

// Engine runs similarity queries. Entries are read from the store once and
// cached until Refresh or Invalidate.
type Engine struct {
	store   store.Store
	keys    store.Keys
	name    string
	config  *config.QueryConfig
	keyword keyword.KeywordIndex
	logger  *zap.Logger

	mu   sync.Mutex
	snap *snapshot
	gen  uint64 // bumped by Invalidate
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for skipped entries and snapshot loads.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithKeys sets the key layout (namespace prefix).
func WithKeys(k store.Keys) EngineOption {
	return func(e *Engine) { e.keys = k }
}

// WithKeywordIndex enables FindBooks.
func WithKeywordIndex(k keyword.KeywordIndex) EngineOption {
	return func(e *Engine) { e.keyword = k }
}

// NewEngine creates an engine reading the index called name from st.
func NewEngine(st store.Store, name string, cfg *config.QueryConfig, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  st,
		name:   name,
		config: cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// QueryByID returns the k books most similar to the stored book id. The book
// itself is part of the result.
func (e *Engine) QueryByID(ctx context.Context, id string, k int) (*models.QueryResult, error) {
	k, err := resolveK(k, e.config.MaxK)
	if err != nil {
		return nil, err
	}
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := e.entry(ctx, id, snap.meta)
	if err != nil {
		return nil, err
	}
	results, err := snap.searcher.Search(ctx, entry.Vector, k)
	if err != nil {
		return nil, err
	}
	return snap.toResult(results), nil
}

// QueryByVector returns the k books most similar to vec.
func (e *Engine) QueryByVector(ctx context.Context, vec []float32, k int) (*models.QueryResult, error) {
	k, err := resolveK(k, e.config.MaxK)
	if err != nil {
		return nil, err
	}
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := models.CheckDimensions(snap.meta.Dimensions, len(vec)); err != nil {
		return nil, err
	}
	results, err := snap.searcher.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	return snap.toResult(results), nil
}

// RangeByID returns at most k books whose cosine distance to book id is at
// most radius.
func (e *Engine) RangeByID(ctx context.Context, id string, radius float64, k int) (*models.QueryResult, error) {
	k, err := resolveK(k, e.config.MaxK)
	if err != nil {
		return nil, err
	}
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := e.entry(ctx, id, snap.meta)
	if err != nil {
		return nil, err
	}
	results, err := snap.searcher.SearchRange(ctx, entry.Vector, radius, k)
	if err != nil {
		return nil, err
	}
	return snap.toResult(results), nil
}

// FindBooks resolves free text to books through the keyword index. When the
// exact query has no hits a fuzzy query is tried.
func (e *Engine) FindBooks(ctx context.Context, text string, limit int) ([]*keyword.KeywordResult, error) {
	if e.keyword == nil {
		return nil, fmt.Errorf("keyword index not configured")
	}
	return keyword.Find(ctx, e.keyword, text, limit)
}

// Refresh reloads the snapshot from the store without blocking queries. If
// Invalidate runs while the load is in flight the loaded snapshot is discarded.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	gen := e.gen
	e.mu.Unlock()

	snap, err := e.load(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return err
	}
	if err != nil {
		e.snap = nil
		return err
	}
	e.snap = snap
	return nil
}

// Invalidate drops the snapshot; the next query reloads it.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.snap = nil
	e.gen++
	e.mu.Unlock()
}

// Status reports the stored metadata and the cached snapshot size. A missing
// index is not an error here; Meta is nil.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	st := &Status{Index: e.name}
	meta, err := e.meta(ctx)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	st.Meta = meta

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap != nil {
		st.Loaded = true
		st.Entries = e.snap.searcher.Size()
		st.Skipped = e.snap.skipped
		st.LoadedAt = e.snap.loadedAt
	}
	return st, nil
}

func (e *Engine) snapshot(ctx context.Context) (*snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap != nil {
		return e.snap, nil
	}
	snap, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	e.snap = snap
	return snap, nil
}

func (e *Engine) meta(ctx context.Context) (*models.IndexMeta, error) {
	raw, err := e.store.Get(ctx, e.keys.Meta(e.name))
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: index %q has not been built", models.ErrNotFound, e.name)
	}
	if err != nil {
		return nil, err
	}
	return codec.DecodeMeta(raw)
}

// load reads the metadata and every compatible entry into a new searcher.
func (e *Engine) load(ctx context.Context) (*snapshot, error) {
	meta, err := e.meta(ctx)
	if err != nil {
		return nil, err
	}
	if meta.Count == 0 || meta.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: index %q is empty", models.ErrNotFound, e.name)
	}

	searcher, err := vector.NewSearcher(string(vector.IndexTypeMemory), meta.Dimensions, e.config.Workers)
	if err != nil {
		return nil, err
	}
	snap := &snapshot{meta: meta, searcher: searcher, titles: make(map[string]string)}
	var (
		ids     []string
		vectors [][]float32
	)
	err = e.store.Scan(ctx, e.keys.BookPrefix(), func(key string) error {
		raw, err := e.store.Get(ctx, key)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		entry, err := codec.DecodeEntry(raw)
		if err == nil {
			err = compatible(entry, meta)
		}
		if err != nil {
			snap.skipped++
			e.logger.Warn("skipping index entry", zap.String("key", key), zap.Error(err))
			return nil
		}
		ids = append(ids, entry.ID)
		vectors = append(vectors, entry.Vector)
		snap.titles[entry.ID] = entry.Title
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: index %q has no usable entries", models.ErrNotFound, e.name)
	}
	if err := searcher.Add(ctx, ids, vectors); err != nil {
		return nil, err
	}
	snap.loadedAt = time.Now()
	e.logger.Debug("index snapshot loaded",
		zap.String("index", e.name), zap.Int("entries", len(ids)), zap.Int("skipped", snap.skipped))
	return snap, nil
}

// entry fetches one stored entry and checks it against meta.
func (e *Engine) entry(ctx context.Context, id string, meta *models.IndexMeta) (*models.IndexEntry, error) {
	raw, err := e.store.Get(ctx, e.keys.Book(id))
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: book %s is not indexed", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	entry, err := codec.DecodeEntry(raw)
	if err != nil {
		return nil, err
	}
	if err := compatible(entry, meta); err != nil {
		return nil, err
	}
	return entry, nil
}

func compatible(entry *models.IndexEntry, meta *models.IndexMeta) error {
	if entry.Encoding != meta.Encoding || entry.EncodingVersion != meta.EncodingVersion {
		return fmt.Errorf("%w: entry %s encoded as %s/v%d, index uses %s/v%d", models.ErrFormat,
			entry.ID, entry.Encoding, entry.EncodingVersion, meta.Encoding, meta.EncodingVersion)
	}
	return models.CheckDimensions(meta.Dimensions, len(entry.Vector))
}

func (s *snapshot) toResult(results []*vector.Result) *models.QueryResult {
	recs := make([]*models.Recommendation, len(results))
	for i, r := range results {
		recs[i] = &models.Recommendation{ID: r.ID, Title: s.titles[r.ID], Score: r.Score}
	}
	return models.NewQueryResult(recs)
}
