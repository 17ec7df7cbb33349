package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/hyperjump/bookrec/internal/models"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	ids := []string{"A", "B", "C"}
	vecs := [][]float32{{1, 0}, {0, 1}, {0.9, 0.1}}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "A" || math.Abs(results[0].Score-1) > 1e-9 {
		t.Errorf("top = %+v, want A with score 1", results[0])
	}
	want := 0.9 / math.Sqrt(0.82)
	if results[1].ID != "C" || math.Abs(results[1].Score-want) > 1e-6 {
		t.Errorf("second = %+v, want C with score %.4f", results[1], want)
	}
}

func TestMemoryIndex_KLargerThanSize(t *testing.T) {
	idx, _ := NewMemoryIndex(2, 4)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y"}, [][]float32{{1, 0}, {0, 1}})
	res, err := idx.Search(ctx, []float32{1, 1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 {
		t.Fatalf("got %d results, want 2", len(res))
	}
	// Equal scores fall back to ID order.
	if res[0].ID != "x" || res[1].ID != "y" {
		t.Errorf("tie order = %s,%s", res[0].ID, res[1].ID)
	}
}

func TestMemoryIndex_Errors(t *testing.T) {
	idx, _ := NewMemoryIndex(3, 1)
	ctx := context.Background()

	err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	var dm *models.DimensionMismatchError
	if !errors.As(err, &dm) || dm.Expected != 3 || dm.Actual != 2 {
		t.Errorf("Add wrong dim: %v", err)
	}
	if err := idx.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0, 0}}); err == nil {
		t.Error("expected length mismatch error")
	}

	_ = idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0}})
	if _, err := idx.Search(ctx, []float32{1, 0}, 1); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("Search wrong dim: %v", err)
	}
	for _, k := range []int{0, -1} {
		if _, err := idx.Search(ctx, []float32{1, 0, 0}, k); !errors.Is(err, models.ErrInvalidK) {
			t.Errorf("Search k=%d: %v", k, err)
		}
	}
	if _, err := idx.SearchRange(ctx, []float32{1, 0, 0}, -0.1, 1); err == nil {
		t.Error("expected error for negative radius")
	}
}

func TestMemoryIndex_Empty(t *testing.T) {
	idx, _ := NewMemoryIndex(2, 2)
	res, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 0 {
		t.Errorf("got %d results from empty index", len(res))
	}
}

func TestMemoryIndex_ZeroVector(t *testing.T) {
	idx, _ := NewMemoryIndex(2, 1)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"z", "a"}, [][]float32{{0, 0}, {1, 0}})
	res, err := idx.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res[1].ID != "z" || res[1].Score != 0 {
		t.Errorf("zero vector scored %+v", res[1])
	}
	res, _ = idx.Search(ctx, []float32{0, 0}, 2)
	for _, r := range res {
		if r.Score != 0 {
			t.Errorf("zero query scored %+v", r)
		}
	}
}

func TestMemoryIndex_Replace(t *testing.T) {
	idx, _ := NewMemoryIndex(2, 1)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	_ = idx.Add(ctx, []string{"a"}, [][]float32{{0, 1}})
	if idx.Size() != 1 {
		t.Fatalf("Size=%d after replace", idx.Size())
	}
	res, _ := idx.Search(ctx, []float32{0, 1}, 1)
	if res[0].Score < 0.999 {
		t.Errorf("replaced vector not used: %+v", res[0])
	}
}

func TestMemoryIndex_SearchRange(t *testing.T) {
	idx, _ := NewMemoryIndex(2, 1)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"A", "B", "C"}, [][]float32{{1, 0}, {0, 1}, {0.9, 0.1}})

	res, err := idx.SearchRange(ctx, []float32{1, 0}, 0.1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 || res[0].ID != "A" || res[1].ID != "C" {
		t.Errorf("radius 0.1 = %v", ids(res))
	}
	res, _ = idx.SearchRange(ctx, []float32{1, 0}, 1, 10)
	if len(res) != 3 {
		t.Errorf("radius 1 = %v", ids(res))
	}
	res, _ = idx.SearchRange(ctx, []float32{1, 0}, 1, 1)
	if len(res) != 1 || res[0].ID != "A" {
		t.Errorf("radius 1, k 1 = %v", ids(res))
	}
}

// Sharded search must agree with a straightforward full sort.
func TestMemoryIndex_ParallelMatchesSequential(t *testing.T) {
	const n, dim, k = 3000, 16, 25
	rng := rand.New(rand.NewSource(7))
	allIDs := make([]string, n)
	vecs := make([][]float32, n)
	for i := range vecs {
		allIDs[i] = fmt.Sprintf("b%04d", i)
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(rng.Intn(5) - 2)
		}
		vecs[i] = v
	}
	query := vecs[42]

	ctx := context.Background()
	seq, _ := NewMemoryIndex(dim, 1)
	par, _ := NewMemoryIndex(dim, 8)
	_ = seq.Add(ctx, allIDs, vecs)
	_ = par.Add(ctx, allIDs, vecs)

	want := make([]*Result, n)
	for i := range vecs {
		want[i] = &Result{ID: allIDs[i], Score: Cosine(query, vecs[i])}
	}
	sort.Slice(want, func(i, j int) bool { return less(want[i], want[j]) })
	want = want[:k]

	for name, idx := range map[string]*MemoryIndex{"sequential": seq, "parallel": par} {
		got, err := idx.Search(ctx, query, k)
		if err != nil {
			t.Fatal(err)
		}
		if fmt.Sprint(ids(got)) != fmt.Sprint(ids(want)) {
			t.Errorf("%s: got %v\nwant %v", name, ids(got), ids(want))
		}
		for i := 1; i < len(got); i++ {
			if got[i].Score > got[i-1].Score {
				t.Errorf("%s: scores increase at %d", name, i)
			}
		}
	}
}

func TestMemoryIndex_Cancelled(t *testing.T) {
	idx, _ := NewMemoryIndex(2, 1)
	_ = idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := idx.Search(ctx, []float32{1, 0}, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func ids(rs []*Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
