package vecgather

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/vecgather/internal/domain/search/entry"
	"github.com/kailas-cloud/vecgather/internal/domain/search/ranked"
	healthuc "github.com/kailas-cloud/vecgather/internal/usecase/health"
	searchuc "github.com/kailas-cloud/vecgather/internal/usecase/search"
)

// --- Mocks ---

type fakeShard struct {
	id    string
	hits  []entry.Entry[string]
	block bool
	query searchuc.ShardQuery
}

func (f *fakeShard) ID() string { return f.id }

func (f *fakeShard) Search(ctx context.Context, q searchuc.ShardQuery) (*ranked.Set[string], error) {
	f.query = q
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return ranked.Of(f.hits...), nil
}

func (f *fakeShard) Ping(context.Context) error { return nil }

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

func newTestClient(t *testing.T, cfg *clientConfig, shards ...*fakeShard) *Client {
	t.Helper()
	ss := make([]searchuc.ShardSearcher, len(shards))
	pp := make(map[string]healthuc.ShardPinger, len(shards))
	for i, s := range shards {
		ss[i] = s
		pp[s.id] = s
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	require.NoError(t, err)
	c, err := wireClient(cfg, ss, pp, obs)
	require.NoError(t, err)
	return c
}

// --- Tests ---

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"no shards", nil, "at least one shard"},
		{"no id", []Option{WithShard(Shard{Addrs: []string{"x:1"}, Index: "i"})}, "shard id is required"},
		{"no addr", []Option{WithShard(Shard{ID: "a", Index: "i"})}, "address required"},
		{"no index", []Option{WithShard(Shard{ID: "a", Addrs: []string{"x:1"}})}, "index name required"},
		{
			"duplicate",
			[]Option{
				WithShard(Shard{ID: "a", Addrs: []string{"x:1"}, Index: "i"}),
				WithShard(Shard{ID: "a", Addrs: []string{"x:2"}, Index: "i"}),
			},
			"duplicate shard id",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(context.Background(), tc.opts...)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestWireClient_UnknownStrategy(t *testing.T) {
	_, err := wireClient(&clientConfig{strategy: "bogo"}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestClient_Search(t *testing.T) {
	a := &fakeShard{id: "a", hits: []entry.Entry[string]{entry.New("x", 0.9), entry.New("y", 0.3)}}
	b := &fakeShard{id: "b", hits: []entry.Entry[string]{entry.New("z", 0.5)}}
	c := newTestClient(t, &clientConfig{}, a, b)

	res, err := c.Search(context.Background(), "q", &SearchOptions{Limit: 2, Tags: map[string]string{"lang": "go"}})
	require.NoError(t, err)

	assert.Equal(t, []Hit{{Key: "x", Score: 0.9}, {Key: "z", Score: 0.5}}, res.Hits)
	assert.True(t, res.Complete)
	assert.Equal(t, 2, res.Shards)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "go", a.query.Tags["lang"])
}

func TestClient_SearchNilOptions(t *testing.T) {
	c := newTestClient(t, &clientConfig{}, &fakeShard{id: "a"})

	res, err := c.Search(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.True(t, res.Complete)
}

func TestClient_SearchPartial(t *testing.T) {
	a := &fakeShard{id: "a", hits: []entry.Entry[string]{entry.New("x", 1)}}
	slow := &fakeShard{id: "slow", block: true}
	c := newTestClient(t, &clientConfig{}, a, slow)

	res, err := c.Search(context.Background(), "q", &SearchOptions{Timeout: 30 * time.Millisecond})
	require.NoError(t, err)
	assert.False(t, res.Complete)
	assert.Equal(t, []Hit{{Key: "x", Score: 1}}, res.Hits)
}

func TestClient_SearchInvalid(t *testing.T) {
	c := newTestClient(t, &clientConfig{}, &fakeShard{id: "a"})

	_, err := c.Search(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestClient_SemanticWithoutEmbedder(t *testing.T) {
	c := newTestClient(t, &clientConfig{}, &fakeShard{id: "a"})

	_, err := c.Search(context.Background(), "q", &SearchOptions{Mode: SemanticMode})
	assert.ErrorIs(t, err, ErrSemanticSearchDisabled)
}

func TestClient_SemanticWithEmbedder(t *testing.T) {
	a := &fakeShard{id: "a"}
	emb := &mockEmbedder{fn: func(context.Context, string) (EmbeddingResult, error) {
		return EmbeddingResult{Embedding: []float32{1, 2}}, nil
	}}
	c := newTestClient(t, &clientConfig{embedder: emb}, a)

	_, err := c.Search(context.Background(), "q", &SearchOptions{Mode: SemanticMode})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, a.query.Vector)
}

func TestEmbedderAdapter_WrapsErrors(t *testing.T) {
	adapter := &embedderAdapter{inner: &mockEmbedder{fn: func(context.Context, string) (EmbeddingResult, error) {
		return EmbeddingResult{}, errors.New("quota")
	}}}

	_, err := adapter.Embed(context.Background(), "q")
	assert.ErrorIs(t, err, ErrEmbeddingProviderError)
	assert.Contains(t, err.Error(), "quota")
}

func TestClient_Health(t *testing.T) {
	c := newTestClient(t, &clientConfig{}, &fakeShard{id: "a"}, &fakeShard{id: "b"})

	h := c.Health(context.Background())
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, map[string]string{"shard:a": "ok", "shard:b": "ok"}, h.Checks)
}

func TestClient_Observability(t *testing.T) {
	reg := prometheus.NewRegistry()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	slow := &fakeShard{id: "slow", block: true}
	c := newTestClient(t, &clientConfig{metricsReg: reg, logger: logger}, &fakeShard{id: "a"}, slow)

	_, err := c.Search(context.Background(), "q", &SearchOptions{Timeout: 10 * time.Millisecond})
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "", nil)
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("search", "partial")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("search", "error")), 0.001)
	assert.Contains(t, logs.String(), "partial result")
	assert.Contains(t, logs.String(), "operation failed")
}

func TestNewObserver_ReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	o1, err := newObserver(nil, reg)
	require.NoError(t, err)
	o2, err := newObserver(nil, reg)
	require.NoError(t, err)

	assert.Same(t, o1.metrics.operations, o2.metrics.operations)
}

func TestObserver_NilSafe(t *testing.T) {
	var o *observer
	assert.NotPanics(t, func() {
		o.observe("search", time.Now(), nil)
		o.observeSearch(time.Now(), &SearchResult{}, nil)
	})
}
