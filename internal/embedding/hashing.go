package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/hyperjump/bookrec/internal/models"
	"github.com/hyperjump/bookrec/pkg/utils"
)

// HashingEncoderVersion changes whenever token weights or hashing change.
const HashingEncoderVersion uint16 = 1

// Token weights for the hashing encoder.
const (
	genreWeight       = 3.0
	authorWeight      = 2.0
	titleWeight       = 1.5
	descriptionWeight = 1.0
)

// HashingEncoder is a bag-of-features encoder. Genres, author, title words and
// description words become prefixed tokens that are hashed into a fixed number
// of buckets with a hash-derived sign, then the vector is L2-normalized.
type HashingEncoder struct {
	dimensions int
}

// NewHashingEncoder returns an encoder producing vectors of the given dimension.
func NewHashingEncoder(dimensions int) (*HashingEncoder, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &HashingEncoder{dimensions: dimensions}, nil
}

// Encode hashes the book's features. Books whose fields yield no tokens cannot
// be encoded.
func (e *HashingEncoder) Encode(ctx context.Context, book *models.Book) (models.FeatureVector, error) {
	if book == nil || book.ID == "" {
		return models.FeatureVector{}, fmt.Errorf("%w: book id is required", models.ErrEncoding)
	}
	if len(book.Genres) == 0 && strings.TrimSpace(book.Title) == "" && strings.TrimSpace(book.Description) == "" {
		return models.FeatureVector{}, fmt.Errorf("%w: book %s has no genres, title or description", models.ErrEncoding, book.ID)
	}

	values := make([]float32, e.dimensions)
	for _, g := range book.Genres {
		if g = normalizePhrase(g); g != "" {
			e.add(values, "genre:"+g, genreWeight)
		}
	}
	if a := normalizePhrase(book.Author); a != "" {
		e.add(values, "author:"+a, authorWeight)
	}
	for _, w := range SplitWords(book.Title) {
		e.add(values, "title:"+w, titleWeight)
	}
	for _, w := range SplitWords(book.Description) {
		e.add(values, "desc:"+w, descriptionWeight)
	}
	if utils.L2Norm(values) == 0 {
		return models.FeatureVector{}, fmt.Errorf("%w: book %s has no usable tokens", models.ErrEncoding, book.ID)
	}
	utils.NormalizeL2(values)
	return models.FeatureVector{ID: book.ID, Values: values}, nil
}

func (e *HashingEncoder) add(values []float32, token string, weight float32) {
	h := xxhash.Sum64String(token)
	bucket := h % uint64(e.dimensions)
	if h>>63 == 1 {
		weight = -weight
	}
	values[bucket] += weight
}

// Dimensions returns the vector length.
func (e *HashingEncoder) Dimensions() int { return e.dimensions }

// Name returns "hashing".
func (e *HashingEncoder) Name() string { return "hashing" }

// Version returns HashingEncoderVersion.
func (e *HashingEncoder) Version() uint16 { return HashingEncoderVersion }

func normalizePhrase(s string) string {
	return strings.Join(SplitWords(s), " ")
}
