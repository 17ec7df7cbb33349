// Package embedding turns books into fixed-dimension feature vectors.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/bookrec/internal/models"
	"github.com/hyperjump/bookrec/pkg/utils"
)

// Encoder converts a book into a FeatureVector. Implementations are
// deterministic: the same book always yields bit-identical values.
type Encoder interface {
	Encode(ctx context.Context, book *models.Book) (models.FeatureVector, error)
	// Dimensions is fixed for the lifetime of the encoder.
	Dimensions() int
	// Name and Version are recorded in the index so queries can reject
	// entries produced by a different scheme.
	Name() string
	Version() uint16
}

// Embedder produces vector embeddings for free text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// EmbedderEncoder encodes the title, author and description through an Embedder.
// Books with identical text share one cached embedding.
type EmbedderEncoder struct {
	embedder Embedder
	name     string
	cache    *VectorCache
}

// NewEmbedderEncoder wraps e. name identifies the model, e.g. "onnx".
// cacheSize <= 0 disables caching.
func NewEmbedderEncoder(e Embedder, name string, cacheSize int) *EmbedderEncoder {
	return &EmbedderEncoder{embedder: e, name: name, cache: NewVectorCache(cacheSize)}
}

// Encode embeds the book's descriptive text.
func (e *EmbedderEncoder) Encode(ctx context.Context, book *models.Book) (models.FeatureVector, error) {
	if book == nil || book.ID == "" {
		return models.FeatureVector{}, fmt.Errorf("%w: book id is required", models.ErrEncoding)
	}
	text := BookText(book)
	if text == "" {
		return models.FeatureVector{}, fmt.Errorf("%w: book %s has no title, author or description", models.ErrEncoding, book.ID)
	}
	if vec, ok := e.cache.Get(text); ok {
		return models.FeatureVector{ID: book.ID, Values: vec}, nil
	}
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return models.FeatureVector{}, fmt.Errorf("%w: embed book %s: %v", models.ErrEncoding, book.ID, err)
	}
	if err := models.CheckDimensions(e.embedder.Dimensions(), len(vec)); err != nil {
		return models.FeatureVector{}, err
	}
	e.cache.Put(text, vec)
	return models.FeatureVector{ID: book.ID, Values: vec}, nil
}

// Dimensions returns the embedder's dimension.
func (e *EmbedderEncoder) Dimensions() int { return e.embedder.Dimensions() }

// Name returns "text:<name>".
func (e *EmbedderEncoder) Name() string { return "text:" + e.name }

// Version returns the encoding version.
func (e *EmbedderEncoder) Version() uint16 { return 1 }

// Close releases the underlying embedder.
func (e *EmbedderEncoder) Close() error { return e.embedder.Close() }

// PrecomputedEncoder uses the embedding shipped inside each record.
type PrecomputedEncoder struct {
	dimensions int
}

// NewPrecomputedEncoder expects every record to carry an embedding of length dimensions.
func NewPrecomputedEncoder(dimensions int) *PrecomputedEncoder {
	return &PrecomputedEncoder{dimensions: dimensions}
}

// Encode copies book.Embedding.
func (e *PrecomputedEncoder) Encode(ctx context.Context, book *models.Book) (models.FeatureVector, error) {
	if book == nil || book.ID == "" {
		return models.FeatureVector{}, fmt.Errorf("%w: book id is required", models.ErrEncoding)
	}
	if len(book.Embedding) == 0 {
		return models.FeatureVector{}, fmt.Errorf("%w: book %s has no embedding", models.ErrEncoding, book.ID)
	}
	if err := models.CheckDimensions(e.dimensions, len(book.Embedding)); err != nil {
		return models.FeatureVector{}, err
	}
	if utils.L2Norm(book.Embedding) == 0 {
		return models.FeatureVector{}, fmt.Errorf("%w: book %s has an all-zero embedding", models.ErrEncoding, book.ID)
	}
	values := make([]float32, len(book.Embedding))
	copy(values, book.Embedding)
	return models.FeatureVector{ID: book.ID, Values: values}, nil
}

// Dimensions returns the expected embedding length.
func (e *PrecomputedEncoder) Dimensions() int { return e.dimensions }

// Name returns "precomputed".
func (e *PrecomputedEncoder) Name() string { return "precomputed" }

// Version returns the encoding version.
func (e *PrecomputedEncoder) Version() uint16 { return 1 }

// BookText joins the fields used for text embedding.
func BookText(book *models.Book) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{book.Title, book.Author, book.Description} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ". ")
}
