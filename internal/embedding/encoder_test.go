package embedding

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/hyperjump/bookrec/internal/config"
	"github.com/hyperjump/bookrec/internal/models"
)

func dune() *models.Book {
	return &models.Book{
		ID:          "26415",
		Title:       "Dune",
		Author:      "Frank Herbert",
		Description: "A desert planet, spice and a young duke.",
		Genres:      []string{"Science Fiction", "Classics"},
	}
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestHashingEncoder_deterministic(t *testing.T) {
	enc, err := NewHashingEncoder(64)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	a, err := enc.Encode(ctx, dune())
	if err != nil {
		t.Fatal(err)
	}
	b, err := enc.Encode(ctx, dune())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("encode is not deterministic")
	}
	if a.Dimensions() != 64 || a.ID != "26415" {
		t.Errorf("got id=%s dims=%d", a.ID, a.Dimensions())
	}
	if n := norm(a.Values); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm = %f, want 1", n)
	}
}

func TestHashingEncoder_similarBooksAreCloser(t *testing.T) {
	enc, _ := NewHashingEncoder(256)
	ctx := context.Background()
	base, _ := enc.Encode(ctx, dune())
	sequel, _ := enc.Encode(ctx, &models.Book{
		ID: "2", Title: "Dune Messiah", Author: "Frank Herbert",
		Description: "The duke rules the desert planet.", Genres: []string{"Science Fiction"},
	})
	other, _ := enc.Encode(ctx, &models.Book{
		ID: "3", Title: "Emma", Author: "Jane Austen",
		Description: "Matchmaking in a village.", Genres: []string{"Romance"},
	})
	dot := func(a, b []float32) float64 {
		var s float64
		for i := range a {
			s += float64(a[i]) * float64(b[i])
		}
		return s
	}
	if dot(base.Values, sequel.Values) <= dot(base.Values, other.Values) {
		t.Error("expected the sequel to be closer than an unrelated book")
	}
}

func TestHashingEncoder_errors(t *testing.T) {
	enc, _ := NewHashingEncoder(8)
	ctx := context.Background()
	tests := []struct {
		name string
		book *models.Book
	}{
		{"nil", nil},
		{"missing id", &models.Book{Title: "x"}},
		{"no fields", &models.Book{ID: "1", Author: "Someone"}},
		{"punctuation only title", &models.Book{ID: "z", Title: "!!!"}},
		{"punctuation only everywhere", &models.Book{ID: "z", Title: "...", Description: "-- ?", Genres: []string{"&"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := enc.Encode(ctx, tt.book); !errors.Is(err, models.ErrEncoding) {
				t.Errorf("err = %v, want ErrEncoding", err)
			}
		})
	}
	if _, err := NewHashingEncoder(0); err == nil {
		t.Error("expected error for zero dimensions")
	}
}

func TestPrecomputedEncoder(t *testing.T) {
	enc := NewPrecomputedEncoder(2)
	ctx := context.Background()
	v, err := enc.Encode(ctx, &models.Book{ID: "a", Embedding: []float32{1, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v.Values, []float32{1, 0}) {
		t.Errorf("values = %v", v.Values)
	}
	if _, err := enc.Encode(ctx, &models.Book{ID: "b", Embedding: []float32{1, 0, 0}}); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
	if _, err := enc.Encode(ctx, &models.Book{ID: "c"}); !errors.Is(err, models.ErrEncoding) {
		t.Errorf("err = %v, want ErrEncoding", err)
	}
	if _, err := enc.Encode(ctx, &models.Book{ID: "d", Embedding: []float32{0, 0}}); !errors.Is(err, models.ErrEncoding) {
		t.Errorf("all-zero embedding: err = %v, want ErrEncoding", err)
	}
}

func TestEmbedderEncoder(t *testing.T) {
	enc := NewEmbedderEncoder(NewMockEmbedder(16), "mock", 8)
	ctx := context.Background()
	a, err := enc.Encode(ctx, dune())
	if err != nil {
		t.Fatal(err)
	}
	b, _ := enc.Encode(ctx, dune())
	if !reflect.DeepEqual(a, b) {
		t.Error("mock embedder encoding should be deterministic")
	}
	if hits, _ := enc.cache.Stats(); hits != 1 {
		t.Errorf("second encode should hit the cache, hits = %d", hits)
	}
	fresh, _ := NewEmbedderEncoder(NewMockEmbedder(16), "mock", 0).Encode(ctx, dune())
	if !reflect.DeepEqual(a, fresh) {
		t.Error("cached and uncached encodings differ")
	}
	if enc.Name() != "text:mock" || enc.Dimensions() != 16 {
		t.Errorf("name=%s dims=%d", enc.Name(), enc.Dimensions())
	}
	if _, err := enc.Encode(ctx, &models.Book{ID: "x"}); !errors.Is(err, models.ErrEncoding) {
		t.Errorf("err = %v, want ErrEncoding", err)
	}
}

func TestNewEncoder(t *testing.T) {
	for _, kind := range []string{"", KindHashing, KindPrecomputed, KindMock} {
		enc, err := NewEncoder(&config.EncodingConfig{Kind: kind, Dimensions: 8}, nil)
		if err != nil {
			t.Fatalf("kind %q: %v", kind, err)
		}
		if enc.Dimensions() != 8 {
			t.Errorf("kind %q: dims = %d", kind, enc.Dimensions())
		}
	}
	if _, err := NewEncoder(&config.EncodingConfig{Kind: "word2vec", Dimensions: 8}, nil); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestNewEncoder_onnxFallsBackToHashing(t *testing.T) {
	enc, err := NewEncoder(&config.EncodingConfig{Kind: KindONNX, Dimensions: 8}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if enc.Name() != "hashing" {
		t.Errorf("name = %s, want hashing fallback", enc.Name())
	}
}
