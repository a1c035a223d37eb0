// Package entry defines the scored hit produced by a single shard search.
package entry

import "cmp"

// Entry is an immutable (key, score) pair.
type Entry[K comparable] struct {
	key   K
	score float64
}

// New creates a scored entry.
func New[K comparable](key K, score float64) Entry[K] {
	return Entry[K]{key: key, score: score}
}

// Key returns the hit identifier.
func (e Entry[K]) Key() K { return e.key }

// Score returns the relevance score.
func (e Entry[K]) Score() float64 { return e.score }

// CompareScore orders a before b when a has the higher score.
// NaN sorts after every number. Equal scores compare as 0; callers
// supply the positional tiebreak.
func CompareScore[K comparable](a, b Entry[K]) int {
	return cmp.Compare(b.score, a.score)
}
