package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

// IndexTypeMemory uses in-memory brute-force search.
const IndexTypeMemory IndexType = "memory"

// NewSearcher creates a searcher of the given kind. "memory" (the default) is
// the only kind available.
func NewSearcher(kind string, dimensions, workers int) (Searcher, error) {
	switch IndexType(kind) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions, workers)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory)", kind)
	}
}
