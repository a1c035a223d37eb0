// Package ranked implements the per-shard accumulator of scored entries.
package ranked

import (
	"slices"

	"github.com/kailas-cloud/vecgather/internal/domain/search/entry"
	"github.com/kailas-cloud/vecgather/internal/domain/search/merged"
)

// Set accumulates one shard's hits. It is not safe for concurrent use;
// each Set belongs to exactly one shard response.
type Set[K comparable] struct {
	entries []entry.Entry[K]
}

// NewSet creates an empty set.
func NewSet[K comparable]() *Set[K] {
	return &Set[K]{}
}

// Of creates a set holding entries in the given ingestion order.
func Of[K comparable](entries ...entry.Entry[K]) *Set[K] {
	s := &Set[K]{entries: make([]entry.Entry[K], 0, len(entries))}
	for _, e := range entries {
		s.Ingest(e)
	}
	return s
}

// Ingest appends e. No ordering is imposed until Snapshot.
func (s *Set[K]) Ingest(e entry.Entry[K]) {
	s.entries = append(s.entries, e)
}

// Len returns the number of ingested entries.
func (s *Set[K]) Len() int { return len(s.entries) }

// Snapshot returns the entries sorted by descending score. Equal scores
// keep ingestion order. The set itself is left unchanged.
func (s *Set[K]) Snapshot() merged.Result[K] {
	if len(s.entries) == 0 {
		return merged.Result[K]{}
	}
	sorted := slices.Clone(s.entries)
	slices.SortStableFunc(sorted, entry.CompareScore[K])
	return merged.FromOwned(sorted)
}
