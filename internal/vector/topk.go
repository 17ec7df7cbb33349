package vector

import (
	"container/heap"
	"sort"
)

// Compile time check to ensure topK satisfies the heap interface.
var _ heap.Interface = (*topK)(nil)

// topK keeps the k best results seen so far. The root is the worst kept
// result so it can be evicted in O(log k).
type topK struct {
	k     int
	items []*Result
}

func newTopK(k int) *topK {
	return &topK{k: k, items: make([]*Result, 0, k)}
}

func (t *topK) Len() int           { return len(t.items) }
func (t *topK) Less(i, j int) bool { return less(t.items[j], t.items[i]) }
func (t *topK) Swap(i, j int)      { t.items[i], t.items[j] = t.items[j], t.items[i] }

func (t *topK) Push(x any) {
	r, _ := x.(*Result)
	t.items = append(t.items, r)
}

func (t *topK) Pop() any {
	old := t.items
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	t.items = old[:n-1]
	return r
}

// offer adds r if it beats the current worst kept result.
func (t *topK) offer(r *Result) {
	if len(t.items) < t.k {
		heap.Push(t, r)
		return
	}
	if less(r, t.items[0]) {
		t.items[0] = r
		heap.Fix(t, 0)
	}
}

// mergeTopK merges partial top-k lists into one sorted list of at most k.
func mergeTopK(parts [][]*Result, k int) []*Result {
	var all []*Result
	for _, p := range parts {
		all = append(all, p...)
	}
	sort.Slice(all, func(i, j int) bool { return less(all[i], all[j]) })
	if len(all) > k {
		all = all[:k]
	}
	return all
}
