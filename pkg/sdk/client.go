package vecgather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbValkey "github.com/kailas-cloud/vecgather/internal/db/valkey"
	"github.com/kailas-cloud/vecgather/internal/domain"
	"github.com/kailas-cloud/vecgather/internal/domain/search/mode"
	"github.com/kailas-cloud/vecgather/internal/domain/search/request"
	shardrepo "github.com/kailas-cloud/vecgather/internal/repository/shard"
	"github.com/kailas-cloud/vecgather/internal/usecase/gather"
	healthuc "github.com/kailas-cloud/vecgather/internal/usecase/health"
	searchuc "github.com/kailas-cloud/vecgather/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "doc:"
)

// SearchMode selects how each shard ranks its hits.
type SearchMode string

// Search modes.
const (
	KeywordMode  SearchMode = SearchMode(mode.Keyword)
	SemanticMode SearchMode = SearchMode(mode.Semantic)
)

// SearchOptions configures a search query. Zero values use the defaults.
type SearchOptions struct {
	Mode    SearchMode
	Tags    map[string]string // exact-match tag filters applied on every shard
	TopK    int               // hits requested from each shard
	Limit   int               // merged hits returned
	Timeout time.Duration     // overrides WithTimeout for this call
}

// Hit is one merged search hit.
type Hit struct {
	Key   string
	Score float64
}

// SearchResult is the merged answer of one search.
type SearchResult struct {
	ID        string
	Hits      []Hit
	Complete  bool // false when the deadline expired before every shard answered
	Shards    int
	Responded int
	Failed    int
	Took      time.Duration
}

// searchUseCase is the internal interface for scatter-gather search.
type searchUseCase interface {
	Search(ctx context.Context, req *request.Request) (searchuc.Outcome, error)
}

// Client is the vecgather SDK entry point.
type Client struct {
	closers   []func()
	searchSvc searchUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New connects to every shard and returns a ready Client.
// The provided context bounds the initial readiness checks.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{readinessTimeout: defaultReadinessTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}
	if err := validateShards(cfg.shards); err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var (
		closers  []func()
		searcher = make([]searchuc.ShardSearcher, 0, len(cfg.shards))
		pingers  = make(map[string]healthuc.ShardPinger, len(cfg.shards))
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, s := range cfg.shards {
		store, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    s.Addrs,
			Username: s.Username,
			Password: s.Password,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("vecgather: shard %s: %w", s.ID, err)
		}
		closers = append(closers, store.Close)

		if err := store.WaitForReady(ctx, cfg.readinessTimeout); err != nil {
			closeAll()
			return nil, fmt.Errorf("vecgather: shard %s not ready: %w", s.ID, err)
		}

		prefix := s.KeyPrefix
		if prefix == "" {
			prefix = defaultKeyPrefix
		}
		searcher = append(searcher, shardrepo.New(s.ID, store, s.Index, prefix))
		pingers[s.ID] = store
	}

	c, err := wireClient(cfg, searcher, pingers, obs)
	if err != nil {
		closeAll()
		return nil, err
	}
	c.closers = closers
	return c, nil
}

func validateShards(shards []Shard) error {
	if len(shards) == 0 {
		return fmt.Errorf("%w: at least one shard required (use WithShard)", domain.ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(shards))
	for _, s := range shards {
		switch {
		case s.ID == "":
			return fmt.Errorf("%w: shard id is required", domain.ErrInvalidConfig)
		case len(s.Addrs) == 0:
			return fmt.Errorf("%w: shard %s: address required", domain.ErrInvalidConfig, s.ID)
		case s.Index == "":
			return fmt.Errorf("%w: shard %s: index name required", domain.ErrInvalidConfig, s.ID)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate shard id %q", domain.ErrInvalidConfig, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

func wireClient(
	cfg *clientConfig,
	shards []searchuc.ShardSearcher,
	pingers map[string]healthuc.ShardPinger,
	obs *observer,
) (*Client, error) {
	strategy, err := gather.StrategyByName[string](cfg.strategy)
	if err != nil {
		return nil, fmt.Errorf("vecgather: %w", err)
	}

	var (
		emb     searchuc.Embedder
		checker healthuc.EmbeddingChecker
	)
	if cfg.embedder != nil {
		emb = &embedderAdapter{inner: cfg.embedder}
		if hc, ok := cfg.embedder.(healthuc.EmbeddingChecker); ok {
			checker = hc
		}
	}

	searchSvc := searchuc.New(shards, emb, searchuc.Config{
		Name:           "vecgather-sdk",
		Timeout:        cfg.timeout,
		MaxConcurrency: cfg.maxConcurrency,
		Strategy:       strategy,
	}, zap.NewNop())

	return &Client{
		searchSvc: searchSvc,
		healthSvc: healthuc.New(pingers, checker),
		obs:       obs,
	}, nil
}

// Close releases all shard connections.
func (c *Client) Close() {
	for _, fn := range c.closers {
		fn()
	}
	c.closers = nil
}

// Search sends query to every shard and returns the merged hits.
// A partial result is not an error; check SearchResult.Complete.
func (c *Client) Search(ctx context.Context, query string, opts *SearchOptions) (res *SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observeSearch(start, res, err) }()

	if opts == nil {
		opts = &SearchOptions{}
	}
	req, err := request.New(query, mode.Mode(opts.Mode), opts.Tags, opts.TopK, opts.Limit, opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out, err := c.searchSvc.Search(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return fromOutcome(out), nil
}

func fromOutcome(out searchuc.Outcome) *SearchResult {
	hits := make([]Hit, 0, out.Hits.Size())
	for _, e := range out.Hits.Entries() {
		hits = append(hits, Hit{Key: e.Key(), Score: e.Score()})
	}
	return &SearchResult{
		ID:        out.SearchID,
		Hits:      hits,
		Complete:  out.Complete,
		Shards:    out.Shards,
		Responded: out.Responded,
		Failed:    out.Failed,
		Took:      out.Took,
	}
}

// embedderAdapter wraps public Embedder to satisfy the internal embedder contract.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingProviderError) {
			return domain.EmbeddingResult{}, err
		}
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingProviderError, err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
