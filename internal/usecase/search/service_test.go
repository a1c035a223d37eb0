package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kailas-cloud/vecgather/internal/domain"
	"github.com/kailas-cloud/vecgather/internal/domain/search/entry"
	"github.com/kailas-cloud/vecgather/internal/domain/search/merged"
	"github.com/kailas-cloud/vecgather/internal/domain/search/mode"
	"github.com/kailas-cloud/vecgather/internal/domain/search/ranked"
	"github.com/kailas-cloud/vecgather/internal/domain/search/request"
	"github.com/kailas-cloud/vecgather/internal/usecase/gather"
)

// --- Mocks ---

type mockShard struct {
	id    string
	hits  []entry.Entry[string]
	err   error
	delay time.Duration
	block bool // wait for ctx cancellation

	mu      sync.Mutex
	lastQry ShardQuery
	calls   int

	inflight *atomic.Int32
	peak     *atomic.Int32
}

func (m *mockShard) ID() string { return m.id }

func (m *mockShard) Search(ctx context.Context, q ShardQuery) (*ranked.Set[string], error) {
	m.mu.Lock()
	m.lastQry = q
	m.calls++
	m.mu.Unlock()

	if m.inflight != nil {
		n := m.inflight.Add(1)
		defer m.inflight.Add(-1)
		for {
			p := m.peak.Load()
			if n <= p || m.peak.CompareAndSwap(p, n) {
				break
			}
		}
	}

	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return ranked.Of(m.hits...), nil
}

func (m *mockShard) query() ShardQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQry
}

type mockEmbedder struct {
	vec    []float32
	err    error
	called bool
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.called = true
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

func shardA() *mockShard {
	return &mockShard{id: "a", hits: []entry.Entry[string]{entry.New("3", 0.9), entry.New("1", 0.8)}}
}

func shardB() *mockShard {
	return &mockShard{id: "b", hits: []entry.Entry[string]{entry.New("2", 0.85), entry.New("4", 0.1)}}
}

func makeRequest(t *testing.T, m mode.Mode, limit int, timeout time.Duration) *request.Request {
	t.Helper()
	r, err := request.New("test query", m, nil, 10, limit, timeout)
	require.NoError(t, err)
	return &r
}

func newService(t *testing.T, shards []ShardSearcher, embed Embedder, cfg Config) *Service {
	t.Helper()
	return New(shards, embed, cfg, zaptest.NewLogger(t))
}

// --- Tests ---

func TestSearch_MergesAllShards(t *testing.T) {
	svc := newService(t, []ShardSearcher{shardA(), shardB()}, nil, Config{})

	out, err := svc.Search(context.Background(), makeRequest(t, mode.Keyword, 10, 0))
	require.NoError(t, err)

	assert.True(t, out.Complete)
	assert.Equal(t, []string{"3", "2", "1", "4"}, out.Hits.Keys())
	assert.Equal(t, 2, out.Shards)
	assert.Equal(t, 2, out.Responded)
	assert.Zero(t, out.Failed)
	assert.NotEmpty(t, out.SearchID)
}

func TestSearch_Limit(t *testing.T) {
	svc := newService(t, []ShardSearcher{shardA(), shardB()}, nil, Config{})

	out, err := svc.Search(context.Background(), makeRequest(t, mode.Keyword, 3, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "1"}, out.Hits.Keys())
}

func TestSearch_NoShards(t *testing.T) {
	svc := newService(t, nil, nil, Config{Timeout: 10 * time.Second})

	start := time.Now()
	out, err := svc.Search(context.Background(), makeRequest(t, mode.Keyword, 10, 0))
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second, "nothing to wait for")
	assert.True(t, out.Complete)
	assert.Equal(t, 0, out.Hits.Size())
}

func TestSearch_ShardFailureIsNotFatal(t *testing.T) {
	broken := &mockShard{id: "c", err: errors.New("connection refused")}
	svc := newService(t, []ShardSearcher{shardA(), broken}, nil, Config{})

	out, err := svc.Search(context.Background(), makeRequest(t, mode.Keyword, 10, 0))
	require.NoError(t, err)

	assert.True(t, out.Complete)
	assert.Equal(t, []string{"3", "1"}, out.Hits.Keys())
	assert.Equal(t, 1, out.Responded)
	assert.Equal(t, 1, out.Failed)
}

func TestSearch_TimeoutReturnsPartial(t *testing.T) {
	slow := &mockShard{id: "slow", block: true}
	svc := newService(t, []ShardSearcher{shardA(), slow}, nil, Config{})

	start := time.Now()
	out, err := svc.Search(context.Background(), makeRequest(t, mode.Keyword, 10, 50*time.Millisecond))
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, out.Complete)
	assert.Equal(t, []string{"3", "1"}, out.Hits.Keys())
	assert.Equal(t, 1, out.Responded)
	assert.Equal(t, out.Responded, shardsInHits(out.Hits, map[string]string{"3": "a", "1": "a"}))
}

// gatedShard answers only after gate is closed.
type gatedShard struct {
	*mockShard
	gate     <-chan struct{}
	answered chan struct{}
}

func (g *gatedShard) Search(ctx context.Context, q ShardQuery) (*ranked.Set[string], error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer close(g.answered)
	return g.mockShard.Search(ctx, q)
}

func TestSearch_ShardArrivingDuringMergeKeepsResultPartial(t *testing.T) {
	merging := make(chan struct{})
	late := &gatedShard{mockShard: shardB(), gate: merging, answered: make(chan struct{})}

	var once sync.Once
	slowMerge := gather.ReduceFunc[string](func(sets []*ranked.Set[string], limit int) (merged.Result[string], error) {
		once.Do(func() { close(merging) })
		<-late.answered
		time.Sleep(20 * time.Millisecond) // let the late set be ingested
		return gather.KWayMerge[string]{}.Reduce(sets, limit)
	})
	svc := newService(t, []ShardSearcher{shardA(), late}, nil, Config{Strategy: slowMerge})

	out, err := svc.Search(context.Background(), makeRequest(t, mode.Keyword, 10, 30*time.Millisecond))
	require.NoError(t, err)

	assert.False(t, out.Complete, "merge ran without shard b")
	assert.Equal(t, []string{"3", "1"}, out.Hits.Keys())
	assert.Equal(t, 1, out.Responded)
}

func shardsInHits(hits merged.Result[string], owner map[string]string) int {
	seen := make(map[string]struct{})
	for _, k := range hits.Keys() {
		seen[owner[k]] = struct{}{}
	}
	return len(seen)
}

func TestSearch_ServiceTimeoutDefault(t *testing.T) {
	slow := &mockShard{id: "slow", block: true}
	svc := newService(t, []ShardSearcher{slow}, nil, Config{Timeout: 30 * time.Millisecond})

	out, err := svc.Search(context.Background(), makeRequest(t, mode.Keyword, 10, 0))
	require.NoError(t, err)
	assert.False(t, out.Complete)
	assert.Equal(t, 0, out.Hits.Size())
}

func TestSearch_Semantic(t *testing.T) {
	a := shardA()
	embed := &mockEmbedder{vec: []float32{0.1, 0.2}}
	svc := newService(t, []ShardSearcher{a}, embed, Config{})

	_, err := svc.Search(context.Background(), makeRequest(t, mode.Semantic, 10, 0))
	require.NoError(t, err)

	assert.True(t, embed.called)
	assert.Equal(t, []float32{0.1, 0.2}, a.query().Vector)
	assert.Equal(t, mode.Semantic, a.query().Mode)
}

func TestSearch_KeywordSkipsEmbedder(t *testing.T) {
	a := shardA()
	embed := &mockEmbedder{vec: []float32{0.1}}
	svc := newService(t, []ShardSearcher{a}, embed, Config{})

	_, err := svc.Search(context.Background(), makeRequest(t, mode.Keyword, 10, 0))
	require.NoError(t, err)

	assert.False(t, embed.called)
	assert.Equal(t, "test query", a.query().Text)
	assert.Nil(t, a.query().Vector)
}

func TestSearch_SemanticWithoutEmbedder(t *testing.T) {
	svc := newService(t, []ShardSearcher{shardA()}, nil, Config{})

	_, err := svc.Search(context.Background(), makeRequest(t, mode.Semantic, 10, 0))
	assert.ErrorIs(t, err, domain.ErrSemanticSearchDisabled)
}

func TestSearch_EmbedError(t *testing.T) {
	a := shardA()
	embed := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	svc := newService(t, []ShardSearcher{a}, embed, Config{})

	_, err := svc.Search(context.Background(), makeRequest(t, mode.Semantic, 10, 0))
	assert.ErrorIs(t, err, domain.ErrEmbeddingProviderError)
	assert.Zero(t, a.calls, "shards must not be queried when embedding fails")
}

func TestSearch_ReduceFailurePropagates(t *testing.T) {
	boom := errors.New("reduce failed")
	failing := gather.ReduceFunc[string](func([]*ranked.Set[string], int) (merged.Result[string], error) {
		return merged.Result[string]{}, boom
	})
	svc := newService(t, []ShardSearcher{shardA()}, nil, Config{Strategy: failing})

	_, err := svc.Search(context.Background(), makeRequest(t, mode.Keyword, 10, 0))
	assert.ErrorIs(t, err, boom)
}

func TestSearch_SortStrategyMatchesDefault(t *testing.T) {
	svc := newService(t, []ShardSearcher{shardA(), shardB()}, nil, Config{Strategy: gather.SortMerge[string]{}})

	out, err := svc.Search(context.Background(), makeRequest(t, mode.Keyword, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "1", "4"}, out.Hits.Keys())
}

func TestSearch_MaxConcurrency(t *testing.T) {
	var inflight, peak atomic.Int32
	shards := make([]ShardSearcher, 6)
	for i := range shards {
		shards[i] = &mockShard{
			id:       string(rune('a' + i)),
			hits:     []entry.Entry[string]{entry.New(string(rune('a'+i)), float64(i))},
			delay:    20 * time.Millisecond,
			inflight: &inflight,
			peak:     &peak,
		}
	}
	svc := newService(t, shards, nil, Config{MaxConcurrency: 2, Timeout: 5 * time.Second})

	out, err := svc.Search(context.Background(), makeRequest(t, mode.Keyword, 10, 0))
	require.NoError(t, err)

	assert.True(t, out.Complete)
	assert.Equal(t, 6, out.Hits.Size())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestSearch_PassesTags(t *testing.T) {
	a := shardA()
	svc := newService(t, []ShardSearcher{a}, nil, Config{})

	r, err := request.New("q", mode.Keyword, map[string]string{"lang": "go"}, 7, 10, 0)
	require.NoError(t, err)

	_, err = svc.Search(context.Background(), &r)
	require.NoError(t, err)
	assert.Equal(t, "go", a.query().Tags["lang"])
	assert.Equal(t, 7, a.query().TopK)
}
