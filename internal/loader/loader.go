// Package loader reads raw book records from disk.
package loader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/hyperjump/bookrec/internal/models"
)

// Load reads books from path. path may be a JSON array file, a JSON Lines file
// (.jsonl / .ndjson), or a directory of *.json files holding one book each.
// Any of these may carry a .gz or .zst suffix. The result is sorted by ID so
// that repeated loads of the same data are identical.
//
// Errors wrap models.ErrIO for unreadable paths and models.ErrFormat for
// records that cannot be parsed, lack an id, or repeat an id.
func Load(path string) ([]*models.Book, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", models.ErrIO, path, err)
	}

	var books []*models.Book
	if info.IsDir() {
		books, err = loadDir(path)
	} else {
		books, err = loadFile(path)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	for i := 1; i < len(books); i++ {
		if books[i].ID == books[i-1].ID {
			return nil, fmt.Errorf("%w: duplicate book id %q in %s", models.ErrFormat, books[i].ID, path)
		}
	}
	return books, nil
}

func loadDir(dir string) ([]*models.Book, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read dir %s: %v", models.ErrIO, dir, err)
	}
	var books []*models.Book
	for _, e := range entries {
		if e.IsDir() || !isJSONFile(e.Name()) {
			continue
		}
		fileBooks, err := loadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		books = append(books, fileBooks...)
	}
	return books, nil
}

func loadFile(path string) ([]*models.Book, error) {
	data, err := readAll(path)
	if err != nil {
		return nil, err
	}
	base := baseName(path)
	switch {
	case strings.HasSuffix(base, ".jsonl"), strings.HasSuffix(base, ".ndjson"):
		return decodeLines(path, data)
	default:
		return decodeJSON(path, data)
	}
}

// readAll returns the decompressed contents of path.
func readAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", models.ErrIO, path, err)
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip %s: %v", models.ErrFormat, path, err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd %s: %v", models.ErrFormat, path, err)
		}
		defer zr.Close()
		r = zr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", models.ErrIO, path, err)
	}
	return data, nil
}

// decodeJSON accepts either a single book object or an array of books.
func decodeJSON(path string, data []byte) ([]*models.Book, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrFormat, path, err)
		}
		books := make([]*models.Book, 0, len(raw))
		for i, r := range raw {
			b, err := decodeBook(r)
			if err != nil {
				return nil, fmt.Errorf("%w: %s record %d: %v", models.ErrFormat, path, i, err)
			}
			books = append(books, b)
		}
		return books, nil
	}
	b, err := decodeBook(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrFormat, path, err)
	}
	return []*models.Book{b}, nil
}

func decodeLines(path string, data []byte) ([]*models.Book, error) {
	var books []*models.Book
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		b, err := decodeBook(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", models.ErrFormat, path, line, err)
		}
		books = append(books, b)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan %s: %v", models.ErrIO, path, err)
	}
	return books, nil
}

func decodeBook(data []byte) (*models.Book, error) {
	var b models.Book
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	b.ID = strings.TrimSpace(b.ID)
	if b.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	return &b, nil
}

func baseName(path string) string {
	base := strings.ToLower(filepath.Base(path))
	base = strings.TrimSuffix(base, ".gz")
	return strings.TrimSuffix(base, ".zst")
}

func isJSONFile(name string) bool {
	base := baseName(name)
	return strings.HasSuffix(base, ".json") || strings.HasSuffix(base, ".jsonl") || strings.HasSuffix(base, ".ndjson")
}
