package codec

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/bookrec/internal/models"
)

func sampleEntry() *models.IndexEntry {
	return &models.IndexEntry{
		ID:              "26415",
		Title:           "The Hobbit",
		Author:          "J. R. R. Tolkien",
		Encoding:        "hashing",
		EncodingVersion: 1,
		Vector:          []float32{0.5, -0.25, 0, float32(math.Inf(1)), 1e-7},
	}
}

func TestEntry_RoundTrip(t *testing.T) {
	in := sampleEntry()
	b, err := EncodeEntry(in)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("BREC")) {
		t.Errorf("missing magic: %q", b[:4])
	}
	out, err := DecodeEntry(b)
	if err != nil {
		t.Fatal(err)
	}
	if out.ID != in.ID || out.Title != in.Title || out.Author != in.Author ||
		out.Encoding != in.Encoding || out.EncodingVersion != in.EncodingVersion {
		t.Errorf("header mismatch: got %+v", out)
	}
	if len(out.Vector) != len(in.Vector) {
		t.Fatalf("vector length %d, want %d", len(out.Vector), len(in.Vector))
	}
	for i := range in.Vector {
		if math.Float32bits(out.Vector[i]) != math.Float32bits(in.Vector[i]) {
			t.Errorf("vector[%d] = %v, want %v", i, out.Vector[i], in.Vector[i])
		}
	}
}

func TestEncodeEntry_Deterministic(t *testing.T) {
	a, _ := EncodeEntry(sampleEntry())
	b, _ := EncodeEntry(sampleEntry())
	if !bytes.Equal(a, b) {
		t.Error("equal entries encoded differently")
	}
}

func TestEncodeEntry_EmptyVector(t *testing.T) {
	b, err := EncodeEntry(&models.IndexEntry{ID: "x"})
	if err != nil {
		t.Fatal(err)
	}
	e, err := DecodeEntry(b)
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != "x" || len(e.Vector) != 0 {
		t.Errorf("got %+v", e)
	}
}

func TestEncodeEntry_FieldTooLong(t *testing.T) {
	e := sampleEntry()
	e.Title = strings.Repeat("a", math.MaxUint16+1)
	if _, err := EncodeEntry(e); !errors.Is(err, models.ErrFormat) {
		t.Errorf("got %v, want ErrFormat", err)
	}
}

func TestDecodeEntry_Malformed(t *testing.T) {
	good, _ := EncodeEntry(sampleEntry())

	badMagic := append([]byte(nil), good...)
	badMagic[0] = 'X'
	badVersion := append([]byte(nil), good...)
	badVersion[4] = 9
	// Claim one more dimension than the payload carries.
	badDim := append([]byte(nil), good...)
	badDim[7]++

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", good[:5]},
		{"bad magic", badMagic},
		{"bad version", badVersion},
		{"truncated strings", good[:headerLen+3]},
		{"truncated vector", good[:len(good)-1]},
		{"trailing bytes", append(append([]byte(nil), good...), 0)},
		{"dimension disagrees with payload", badDim},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeEntry(tt.data); !errors.Is(err, models.ErrFormat) {
				t.Errorf("got %v, want ErrFormat", err)
			}
		})
	}
}

func TestMeta_RoundTrip(t *testing.T) {
	in := &models.IndexMeta{
		Name:            "books",
		Dimensions:      384,
		Encoding:        "hashing",
		EncodingVersion: 1,
		Metric:          "cosine",
		Count:           2,
		Failed:          1,
		BuildID:         "b-1",
		BuiltAt:         time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	b, err := EncodeMeta(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := DecodeMeta(b)
	if err != nil {
		t.Fatal(err)
	}
	if !out.BuiltAt.Equal(in.BuiltAt) {
		t.Errorf("BuiltAt = %v, want %v", out.BuiltAt, in.BuiltAt)
	}
	out.BuiltAt = in.BuiltAt
	if *out != *in {
		t.Errorf("got %+v, want %+v", out, in)
	}

	if _, err := DecodeMeta([]byte("{")); !errors.Is(err, models.ErrFormat) {
		t.Errorf("got %v, want ErrFormat", err)
	}
	if _, err := DecodeMeta([]byte(`{"dimensions":-1}`)); !errors.Is(err, models.ErrFormat) {
		t.Errorf("got %v, want ErrFormat", err)
	}
}
