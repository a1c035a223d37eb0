// Package gather merges ranked hits reported independently by shards.
//
// An Aggregator is created per distributed search. Responders call Ingest
// concurrently, the dispatcher calls SignalComplete (or Expect), and a
// caller blocks in Retrieve or RetrieveWithin for the merged result.
package gather

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kailas-cloud/vecgather/internal/domain/search/merged"
	"github.com/kailas-cloud/vecgather/internal/domain/search/ranked"
)

// DefaultID identifies aggregators constructed without an owner name.
const DefaultID = "vecgather"

// Aggregator accumulates per-shard sets and reduces them on retrieval.
// All methods are safe for concurrent use.
type Aggregator[K comparable] struct {
	id       string
	limit    int
	strategy ReduceStrategy[K]

	mu       sync.Mutex
	sets     map[string]*ranked.Set[K]
	expected int // -1 until Expect is called
	ended    bool
	done     chan struct{}

	// gen changes on every Ingest and Reset; a cached merge is valid only
	// for the generation it was computed from.
	gen       uint64
	cached    *merged.Result[K]
	cachedGen uint64
}

// New creates an aggregator. id is used for diagnostics only.
func New[K comparable](id string, cfg Config[K]) (*Aggregator[K], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		id = DefaultID
	}
	return &Aggregator[K]{
		id:       id,
		limit:    cfg.Limit,
		strategy: cfg.strategy(),
		sets:     make(map[string]*ranked.Set[K]),
		expected: -1,
		done:     make(chan struct{}),
	}, nil
}

// ID returns the diagnostic identity.
func (a *Aggregator[K]) ID() string { return a.id }

// Ingest records set as shardID's response, replacing any earlier one.
// The aggregator owns set afterwards; callers must not keep ingesting into it.
func (a *Aggregator[K]) Ingest(shardID string, set *ranked.Set[K]) {
	if set == nil {
		set = ranked.NewSet[K]()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.sets[shardID] = set
	a.invalidateLocked()
	if a.expected > 0 && len(a.sets) >= a.expected {
		a.signalLocked()
	}
}

// Reset discards all ingested sets and any cached merge. Completion state
// is left as is.
func (a *Aggregator[K]) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sets = make(map[string]*ranked.Set[K])
	a.invalidateLocked()
}

// SignalComplete ends the gather phase and wakes blocked retrievers.
// Calling it more than once is a no-op.
func (a *Aggregator[K]) SignalComplete() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signalLocked()
}

// Expect declares how many distinct shards will respond. Completion is
// signaled as soon as that many have ingested; n == 0 signals immediately.
// A negative n clears the expectation.
func (a *Aggregator[K]) Expect(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n < 0 {
		a.expected = -1
		return
	}
	a.expected = n
	if len(a.sets) >= n {
		a.signalLocked()
	}
}

// Complete reports whether the gather phase has ended.
func (a *Aggregator[K]) Complete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ended
}

// Retrieve blocks until completion is signaled and returns the merged
// result. It returns ctx.Err() if ctx is done first. Reduce errors are
// returned unmodified.
func (a *Aggregator[K]) Retrieve(ctx context.Context) (merged.Result[K], error) {
	select {
	case <-a.done:
	case <-ctx.Done():
		return merged.Result[K]{}, ctx.Err()
	}
	res, _, err := a.reduce()
	return res, err
}

// Coverage describes the data a merge was computed from. It is captured
// together with the sets, so it always matches the returned result.
type Coverage struct {
	// Complete is true when the gather phase had ended before the sets
	// were taken.
	Complete bool
	// Responded is the number of shard sets that went into the merge.
	Responded int
}

// RetrieveWithin waits up to timeout for completion. On expiry it returns
// a merge of whatever has been ingested so far; the returned Coverage tells
// the two apart. Reduce errors are returned unmodified.
func (a *Aggregator[K]) RetrieveWithin(timeout time.Duration) (merged.Result[K], Coverage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-a.done:
	case <-timer.C:
	}
	return a.reduce()
}

func (a *Aggregator[K]) reduce() (merged.Result[K], Coverage, error) {
	a.mu.Lock()
	cov := Coverage{Complete: a.ended, Responded: len(a.sets)}
	if cov.Complete && a.cached != nil && a.cachedGen == a.gen {
		res := *a.cached
		a.mu.Unlock()
		return res, cov, nil
	}
	sets := a.orderedSetsLocked()
	gen := a.gen
	a.mu.Unlock()

	res, err := a.strategy.Reduce(sets, a.limit)
	if err != nil {
		return merged.Result[K]{}, Coverage{}, err
	}

	// Only a merge over complete data is worth reusing.
	if cov.Complete {
		a.mu.Lock()
		if a.gen == gen {
			a.cached = &res
			a.cachedGen = gen
		}
		a.mu.Unlock()
	}
	return res, cov, nil
}

// orderedSetsLocked returns the sets ordered by shard ID, which fixes the
// tiebreak between shards independently of arrival order.
func (a *Aggregator[K]) orderedSetsLocked() []*ranked.Set[K] {
	ids := make([]string, 0, len(a.sets))
	for id := range a.sets {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	sets := make([]*ranked.Set[K], len(ids))
	for i, id := range ids {
		sets[i] = a.sets[id]
	}
	return sets
}

func (a *Aggregator[K]) invalidateLocked() {
	a.gen++
	a.cached = nil
}

func (a *Aggregator[K]) signalLocked() {
	if a.ended {
		return
	}
	a.ended = true
	close(a.done)
}
