// Package indexer encodes books and persists them as index entries.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hyperjump/bookrec/internal/codec"
	"github.com/hyperjump/bookrec/internal/config"
	"github.com/hyperjump/bookrec/internal/embedding"
	"github.com/hyperjump/bookrec/internal/keyword"
	"github.com/hyperjump/bookrec/internal/models"
	"github.com/hyperjump/bookrec/internal/store"
	"github.com/hyperjump/bookrec/internal/vector"
)

// Failure stages recorded in EntryError.
const (
	StageEncode = "encode"
	StageWrite  = "write"
)

// EntryError records why one book did not make it into the index.
type EntryError struct {
	ID    string `json:"id"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// BuildReport summarizes a build. Failed counts every book that was not
// written; EncodeFailed is the subset rejected by the encoder.
type BuildReport struct {
	BuildID      string        `json:"build_id"`
	Total        int           `json:"total"`
	Written      int           `json:"written"`
	Failed       int           `json:"failed"`
	EncodeFailed int           `json:"encode_failed"`
	Pruned       int           `json:"pruned"`
	Errors       []EntryError  `json:"errors,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Builder writes one index entry per book and then the index metadata.
type Builder struct {
	store   store.Store
	keys    store.Keys
	encoder embedding.Encoder
	name    string
	workers int
	limiter *rate.Limiter
	keyword keyword.KeywordIndex
	logger  *zap.Logger
	now     func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for per-entry failures and build summaries.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// WithKeywordIndex attaches a keyword index that is rebuilt alongside the entries.
func WithKeywordIndex(k keyword.KeywordIndex) BuilderOption {
	return func(b *Builder) { b.keyword = k }
}

// WithKeys sets the key layout (namespace prefix).
func WithKeys(k store.Keys) BuilderOption {
	return func(b *Builder) { b.keys = k }
}

// NewBuilder creates a builder writing into st with entries produced by enc.
func NewBuilder(st store.Store, enc embedding.Encoder, cfg *config.IndexConfig, opts ...BuilderOption) *Builder {
	b := &Builder{
		store:   st,
		encoder: enc,
		name:    cfg.Name,
		workers: cfg.Workers,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	if b.name == "" {
		b.name = "books"
	}
	if b.workers <= 0 {
		b.workers = 1
	}
	if cfg.WritesPerSec > 0 {
		burst := int(cfg.WritesPerSec)
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(cfg.WritesPerSec), burst)
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the index name used for the metadata key.
func (b *Builder) Name() string {
	return b.name
}

// Build encodes and persists every book. Per-book failures are logged and
// counted; the build only fails when the store is unreachable or ctx is
// cancelled. Writes acknowledged before such a failure remain in the store.
func (b *Builder) Build(ctx context.Context, books []*models.Book) (*BuildReport, error) {
	start := b.now()
	report := &BuildReport{BuildID: uuid.New().String(), Total: len(books)}

	if err := b.store.Ping(ctx); err != nil {
		return report, err
	}

	var (
		mu      sync.Mutex
		keep    = make(map[string]struct{}, len(books))
		indexed = make([]*models.Book, 0, len(books))
	)
	fail := func(id, stage string, err error) {
		b.logger.Warn("index entry failed",
			zap.String("id", id), zap.String("stage", stage), zap.Error(err))
		mu.Lock()
		defer mu.Unlock()
		report.Failed++
		switch stage {
		case StageEncode:
			report.EncodeFailed++
		case StageWrite:
			// the entry from the previous build is still valid
			keep[id] = struct{}{}
		}
		report.Errors = append(report.Errors, EntryError{ID: id, Stage: stage, Error: err.Error()})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for _, book := range books {
		if gctx.Err() != nil {
			break
		}
		book := book
		g.Go(func() error {
			entry, err := b.encode(gctx, book)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				fail(book.ID, StageEncode, err)
				return nil
			}
			if err := b.write(gctx, entry); err != nil {
				if errors.Is(err, models.ErrStoreConnection) || gctx.Err() != nil {
					return err
				}
				fail(book.ID, StageWrite, err)
				return nil
			}
			mu.Lock()
			report.Written++
			keep[book.ID] = struct{}{}
			indexed = append(indexed, book)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		report.Duration = b.now().Sub(start)
		return report, fmt.Errorf("build interrupted after %d of %d entries: %w", report.Written, report.Total, err)
	}
	if err := ctx.Err(); err != nil {
		report.Duration = b.now().Sub(start)
		return report, err
	}
	sort.Slice(report.Errors, func(i, j int) bool { return report.Errors[i].ID < report.Errors[j].ID })

	pruned, err := b.prune(ctx, keep)
	report.Pruned = pruned
	if err != nil {
		report.Duration = b.now().Sub(start)
		return report, err
	}

	meta := &models.IndexMeta{
		Name:            b.name,
		Dimensions:      b.encoder.Dimensions(),
		Encoding:        b.encoder.Name(),
		EncodingVersion: b.encoder.Version(),
		Metric:          vector.MetricCosine,
		Count:           report.Written,
		Failed:          report.Failed,
		BuildID:         report.BuildID,
		BuiltAt:         start.UTC(),
	}
	raw, err := codec.EncodeMeta(meta)
	if err != nil {
		return report, err
	}
	if err := b.store.Set(ctx, b.keys.Meta(b.name), raw); err != nil {
		report.Duration = b.now().Sub(start)
		return report, fmt.Errorf("failed to write index meta: %w", err)
	}

	if b.keyword != nil {
		b.rebuildKeyword(ctx, indexed)
	}

	report.Duration = b.now().Sub(start)
	b.logger.Info("index built",
		zap.String("index", b.name),
		zap.String("build_id", report.BuildID),
		zap.Int("total", report.Total),
		zap.Int("written", report.Written),
		zap.Int("failed", report.Failed),
		zap.Int("pruned", report.Pruned),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (b *Builder) encode(ctx context.Context, book *models.Book) (*models.IndexEntry, error) {
	fv, err := b.encoder.Encode(ctx, book)
	if err != nil {
		return nil, err
	}
	if err := models.CheckDimensions(b.encoder.Dimensions(), fv.Dimensions()); err != nil {
		return nil, err
	}
	return &models.IndexEntry{
		ID:              book.ID,
		Title:           book.Title,
		Author:          book.Author,
		Encoding:        b.encoder.Name(),
		EncodingVersion: b.encoder.Version(),
		Vector:          fv.Values,
	}, nil
}

func (b *Builder) write(ctx context.Context, entry *models.IndexEntry) error {
	raw, err := codec.EncodeEntry(entry)
	if err != nil {
		return err
	}
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return b.store.Set(ctx, b.keys.Book(entry.ID), raw)
}

// prune deletes book entries whose IDs are not in keep.
func (b *Builder) prune(ctx context.Context, keep map[string]struct{}) (int, error) {
	var stale []string
	err := b.store.Scan(ctx, b.keys.BookPrefix(), func(key string) error {
		id, ok := b.keys.BookID(key)
		if !ok {
			return nil
		}
		if _, ok := keep[id]; !ok {
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan index entries: %w", err)
	}
	for i, key := range stale {
		if err := b.store.Delete(ctx, key); err != nil {
			return i, fmt.Errorf("failed to prune %s: %w", key, err)
		}
	}
	if len(stale) > 0 {
		b.logger.Debug("pruned stale entries", zap.Int("count", len(stale)))
	}
	return len(stale), nil
}

func (b *Builder) rebuildKeyword(ctx context.Context, books []*models.Book) {
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	if err := b.keyword.Reset(ctx); err != nil {
		b.logger.Warn("keyword index reset failed", zap.Error(err))
		return
	}
	if err := b.keyword.IndexBooks(ctx, books); err != nil {
		b.logger.Warn("keyword indexing failed", zap.Error(err))
	}
}
