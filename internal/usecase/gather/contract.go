package gather

import (
	"github.com/kailas-cloud/vecgather/internal/domain/search/merged"
	"github.com/kailas-cloud/vecgather/internal/domain/search/ranked"
)

// ReduceStrategy combines per-shard sets into one result. sets arrive ordered
// by shard ID; limit <= 0 means unbounded. Implementations need not rank at all.
type ReduceStrategy[K comparable] interface {
	Reduce(sets []*ranked.Set[K], limit int) (merged.Result[K], error)
}

// ReduceFunc adapts a plain function to ReduceStrategy.
type ReduceFunc[K comparable] func(sets []*ranked.Set[K], limit int) (merged.Result[K], error)

// Reduce calls f.
func (f ReduceFunc[K]) Reduce(sets []*ranked.Set[K], limit int) (merged.Result[K], error) {
	return f(sets, limit)
}
