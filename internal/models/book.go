// Package models defines core data structures for books, index entries, and recommendations.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Edition is a language edition a book is available in.
type Edition string

const (
	EditionEnglish Edition = "english"
	EditionSpanish Edition = "spanish"
	EditionFrench  Edition = "french"
)

// ParseEdition parses an edition name case-insensitively.
func ParseEdition(s string) (Edition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "english":
		return EditionEnglish, nil
	case "spanish":
		return EditionSpanish, nil
	case "french":
		return EditionFrench, nil
	default:
		return "", fmt.Errorf("unknown edition: %s", s)
	}
}

// UnmarshalJSON accepts any casing of a known edition.
func (e *Edition) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseEdition(s)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// InventoryStatus is the lending state of a physical copy.
type InventoryStatus string

const (
	StatusOnLoan      InventoryStatus = "on_loan"
	StatusAvailable   InventoryStatus = "available"
	StatusMaintenance InventoryStatus = "maintenance"
)

// ParseInventoryStatus parses a status case-insensitively. "onloan" is accepted as an alias.
func ParseInventoryStatus(s string) (InventoryStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on_loan", "onloan":
		return StatusOnLoan, nil
	case "available":
		return StatusAvailable, nil
	case "maintenance":
		return StatusMaintenance, nil
	default:
		return "", fmt.Errorf("unknown inventory status: %s", s)
	}
}

// UnmarshalJSON accepts any casing of a known status.
func (s *InventoryStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseInventoryStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Inventory is one stocked copy of a book.
type Inventory struct {
	Status  InventoryStatus `json:"status"`
	StockID string          `json:"stock_id"`
}

// Metrics holds reader ratings.
type Metrics struct {
	RatingVotes uint32  `json:"rating_votes"`
	Score       float32 `json:"score"`
}

// Book is one raw input record. It is not modified after loading.
type Book struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Author        string      `json:"author"`
	Description   string      `json:"description"`
	Genres        []string    `json:"genres,omitempty"`
	Editions      []Edition   `json:"editions,omitempty"`
	Inventory     []Inventory `json:"inventory,omitempty"`
	Metrics       Metrics     `json:"metrics"`
	Pages         uint32      `json:"pages,omitempty"`
	URL           string      `json:"url,omitempty"`
	YearPublished uint16      `json:"year_published,omitempty"`
	// Embedding is an optional precomputed vector shipped with the record.
	Embedding []float32 `json:"embedding,omitempty"`
}

// Available reports whether at least one copy is available for loan.
func (b *Book) Available() bool {
	for _, inv := range b.Inventory {
		if inv.Status == StatusAvailable {
			return true
		}
	}
	return false
}
