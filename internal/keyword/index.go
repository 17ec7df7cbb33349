// Package keyword provides full-text lookup of books by title, author,
// description and genre.
package keyword

import (
	"context"

	"github.com/hyperjump/bookrec/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the score contribution from title matches.
	// Author matches get two thirds of it. Use 1.0 for no boost.
	TitleBoost float64
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	Fuzziness int
}

// KeywordIndex defines keyword search operations over books.
type KeywordIndex interface {
	IndexBooks(ctx context.Context, books []*models.Book) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	Delete(ctx context.Context, id string) error
	// Reset drops every indexed book.
	Reset(ctx context.Context) error
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Find runs an exact search and, when that has no hits, a fuzzy one.
func Find(ctx context.Context, idx KeywordIndex, text string, limit int) ([]*KeywordResult, error) {
	hits, err := idx.Search(ctx, text, limit, nil)
	if err != nil || len(hits) > 0 {
		return hits, err
	}
	return idx.Search(ctx, text, limit, &SearchOptions{FuzzyEnabled: true})
}
