// Package merged holds the globally ordered result of a scatter-gather merge.
package merged

import (
	"math"

	"github.com/kailas-cloud/vecgather/internal/domain/search/entry"
)

// Result is an immutable ordered sequence of scored entries.
type Result[K comparable] struct {
	entries []entry.Entry[K]
}

// New creates a result that owns a copy of entries.
func New[K comparable](entries []entry.Entry[K]) Result[K] {
	if len(entries) == 0 {
		return Result[K]{}
	}
	cp := make([]entry.Entry[K], len(entries))
	copy(cp, entries)
	return Result[K]{entries: cp}
}

// FromOwned creates a result from a slice the caller will not touch again.
func FromOwned[K comparable](entries []entry.Entry[K]) Result[K] {
	return Result[K]{entries: entries}
}

// Size returns the number of entries.
func (r Result[K]) Size() int { return len(r.entries) }

// Entries returns a copy of the ordered entries.
func (r Result[K]) Entries() []entry.Entry[K] {
	out := make([]entry.Entry[K], len(r.entries))
	copy(out, r.entries)
	return out
}

// At returns the i-th entry.
func (r Result[K]) At(i int) entry.Entry[K] { return r.entries[i] }

// Keys returns the entry keys in order.
func (r Result[K]) Keys() []K {
	keys := make([]K, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.Key()
	}
	return keys
}

// Equal reports structural equality: same entries in the same order.
// NaN scores compare equal to each other.
func (r Result[K]) Equal(o Result[K]) bool {
	if len(r.entries) != len(o.entries) {
		return false
	}
	for i, e := range r.entries {
		x := o.entries[i]
		if e.Key() != x.Key() || !sameScore(e.Score(), x.Score()) {
			return false
		}
	}
	return true
}

func sameScore(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
