package gather

import (
	"container/heap"
	"fmt"
	"slices"

	"github.com/kailas-cloud/vecgather/internal/domain"
	"github.com/kailas-cloud/vecgather/internal/domain/search/entry"
	"github.com/kailas-cloud/vecgather/internal/domain/search/merged"
	"github.com/kailas-cloud/vecgather/internal/domain/search/ranked"
)

// Strategy names accepted by StrategyByName.
const (
	StrategyKWay = "kway"
	StrategySort = "sort"
)

// StrategyByName returns a built-in strategy. An empty name selects KWayMerge.
func StrategyByName[K comparable](name string) (ReduceStrategy[K], error) {
	switch name {
	case "", StrategyKWay:
		return KWayMerge[K]{}, nil
	case StrategySort:
		return SortMerge[K]{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown reduce strategy %q", domain.ErrInvalidConfig, name)
	}
}

// KWayMerge merges the per-shard snapshots with a heap keyed by each
// snapshot's current head. Cost is O(n log k).
//
// Order: score descending, then input position of the set, then position
// within the set. SortMerge produces the same sequence.
type KWayMerge[K comparable] struct{}

// Reduce implements ReduceStrategy.
func (KWayMerge[K]) Reduce(sets []*ranked.Set[K], limit int) (merged.Result[K], error) {
	h := make(cursorHeap[K], 0, len(sets))
	total := 0
	for i, s := range sets {
		if s == nil {
			continue
		}
		snap := s.Snapshot()
		if snap.Size() == 0 {
			continue
		}
		total += snap.Size()
		h = append(h, &cursor[K]{set: i, entries: snap.Entries()})
	}
	heap.Init(&h)

	n := capped(total, limit)
	out := make([]entry.Entry[K], 0, n)
	for len(out) < n && h.Len() > 0 {
		c := h[0]
		out = append(out, c.head())
		c.pos++
		if c.pos == len(c.entries) {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	return merged.FromOwned(out), nil
}

// SortMerge concatenates the snapshots and stable-sorts the whole sequence.
// Simpler than KWayMerge and fine for small result volumes.
type SortMerge[K comparable] struct{}

// Reduce implements ReduceStrategy.
func (SortMerge[K]) Reduce(sets []*ranked.Set[K], limit int) (merged.Result[K], error) {
	var all []entry.Entry[K]
	for _, s := range sets {
		if s == nil {
			continue
		}
		all = append(all, s.Snapshot().Entries()...)
	}
	slices.SortStableFunc(all, entry.CompareScore[K])
	return merged.FromOwned(all[:capped(len(all), limit)]), nil
}

func capped(total, limit int) int {
	if limit > 0 && limit < total {
		return limit
	}
	return total
}

type cursor[K comparable] struct {
	set     int
	pos     int
	entries []entry.Entry[K]
}

func (c *cursor[K]) head() entry.Entry[K] { return c.entries[c.pos] }

type cursorHeap[K comparable] []*cursor[K]

func (h cursorHeap[K]) Len() int { return len(h) }

func (h cursorHeap[K]) Less(i, j int) bool {
	if c := entry.CompareScore(h[i].head(), h[j].head()); c != 0 {
		return c < 0
	}
	return h[i].set < h[j].set
}

func (h cursorHeap[K]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap[K]) Push(x any) { *h = append(*h, x.(*cursor[K])) }

func (h *cursorHeap[K]) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
