package store

import "strings"

const (
	bookPrefix = "book:"
	metaPrefix = "idx:"
)

// Keys builds deterministic store keys of the form <entity>:<identifier>,
// optionally under a global namespace prefix.
type Keys struct {
	Namespace string
}

// Book returns the key of a book's index entry.
func (k Keys) Book(id string) string {
	return k.Namespace + bookPrefix + id
}

// BookPrefix returns the prefix shared by every book entry.
func (k Keys) BookPrefix() string {
	return k.Namespace + bookPrefix
}

// Meta returns the key of an index's metadata record.
func (k Keys) Meta(name string) string {
	return k.Namespace + metaPrefix + name
}

// BookID extracts the id from a book key. ok is false for other keys.
func (k Keys) BookID(key string) (id string, ok bool) {
	p := k.BookPrefix()
	if !strings.HasPrefix(key, p) {
		return "", false
	}
	return key[len(p):], true
}
