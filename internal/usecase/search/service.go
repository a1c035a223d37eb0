package search

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/vecgather/internal/domain"
	"github.com/kailas-cloud/vecgather/internal/domain/search/merged"
	"github.com/kailas-cloud/vecgather/internal/domain/search/mode"
	"github.com/kailas-cloud/vecgather/internal/domain/search/ranked"
	"github.com/kailas-cloud/vecgather/internal/domain/search/request"
	"github.com/kailas-cloud/vecgather/internal/metrics"
	"github.com/kailas-cloud/vecgather/internal/usecase/gather"
)

// DefaultTimeout bounds the gather phase when neither the request nor the
// service config sets one.
const DefaultTimeout = 2 * time.Second

// Config tunes the dispatcher.
type Config struct {
	// Name identifies the aggregators this service creates.
	Name string
	// Timeout is the default gather deadline.
	Timeout time.Duration
	// MaxConcurrency caps in-flight shard requests per search. 0 means one per shard.
	MaxConcurrency int
	// Strategy overrides the default k-way merge.
	Strategy gather.ReduceStrategy[string]
}

// Outcome is the merged answer of one scatter-gather search.
type Outcome struct {
	SearchID  string
	Hits      merged.Result[string]
	Complete  bool // false when the deadline expired before every shard answered
	Shards    int
	Responded int
	Failed    int
	Took      time.Duration
}

// Service scatters a query to every shard and gathers the ranked hits.
type Service struct {
	shards []ShardSearcher
	embed  Embedder
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer
}

// New creates a search service. embed may be nil, which disables semantic mode.
func New(shards []ShardSearcher, embed Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		shards: shards,
		embed:  embed,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("vecgather/search"),
	}
}

// Shards returns the number of configured shards.
func (s *Service) Shards() int { return len(s.shards) }

// Search runs req on every shard and merges the results. Shard failures
// reduce the result but are not errors; a merge failure is.
func (s *Service) Search(ctx context.Context, req *request.Request) (Outcome, error) {
	start := time.Now()
	searchID := uuid.NewString()
	m := string(req.Mode())

	ctx, span := s.tracer.Start(ctx, "search.scatter_gather", trace.WithAttributes(
		attribute.String("search.id", searchID),
		attribute.String("search.mode", m),
		attribute.Int("search.shards", len(s.shards)),
		attribute.Int("search.limit", req.Limit()),
	))
	defer span.End()

	log := s.logger.With(zap.String("search_id", searchID), zap.String("mode", m))

	q, err := s.shardQuery(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.GatherRequestsTotal.WithLabelValues(m, "failed").Inc()
		return Outcome{}, err
	}

	agg, err := gather.New(s.cfg.Name, gather.Config[string]{Limit: req.Limit(), Strategy: s.cfg.Strategy})
	if err != nil {
		return Outcome{}, fmt.Errorf("create aggregator: %w", err)
	}
	agg.Expect(len(s.shards))

	scatterCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var failed atomic.Int32
	go s.scatter(scatterCtx, q, agg, &failed, log)

	timeout := req.Timeout()
	if timeout <= 0 {
		timeout = s.cfg.Timeout
	}

	hits, cov, err := agg.RetrieveWithin(timeout)
	took := time.Since(start)
	metrics.GatherDuration.WithLabelValues(m).Observe(took.Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.GatherRequestsTotal.WithLabelValues(m, "failed").Inc()
		log.Error("merge failed", zap.String("aggregator", agg.ID()), zap.Error(err))
		return Outcome{}, fmt.Errorf("merge shard results: %w", err)
	}

	out := Outcome{
		SearchID:  searchID,
		Hits:      hits,
		Complete:  cov.Complete,
		Shards:    len(s.shards),
		Responded: cov.Responded,
		Failed:    int(failed.Load()),
		Took:      took,
	}

	outcome := "complete"
	if !out.Complete {
		outcome = "partial"
		log.Warn("gather deadline expired, returning partial result",
			zap.Duration("timeout", timeout),
			zap.Int("responded", out.Responded),
			zap.Int("shards", out.Shards),
		)
	}
	metrics.GatherRequestsTotal.WithLabelValues(m, outcome).Inc()
	metrics.MergedHits.Observe(float64(hits.Size()))
	span.SetAttributes(
		attribute.Bool("search.complete", out.Complete),
		attribute.Int("search.hits", hits.Size()),
		attribute.Int("search.failed_shards", out.Failed),
	)

	return out, nil
}

// shardQuery builds the per-shard query, embedding the text in semantic mode.
func (s *Service) shardQuery(ctx context.Context, req *request.Request) (ShardQuery, error) {
	q := ShardQuery{
		Mode: req.Mode(),
		Text: req.Query(),
		Tags: req.Tags(),
		TopK: req.TopK(),
	}
	if req.Mode() != mode.Semantic {
		return q, nil
	}
	if s.embed == nil {
		return ShardQuery{}, domain.ErrSemanticSearchDisabled
	}
	emb, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		return ShardQuery{}, fmt.Errorf("vectorize query: %w", err)
	}
	q.Vector = emb.Embedding
	return q, nil
}

// scatter fans q out to every shard and signals completion once each has
// answered or failed.
func (s *Service) scatter(
	ctx context.Context, q ShardQuery, agg *gather.Aggregator[string],
	failed *atomic.Int32, log *zap.Logger,
) {
	var g errgroup.Group
	if s.cfg.MaxConcurrency > 0 {
		g.SetLimit(s.cfg.MaxConcurrency)
	}

	for _, sh := range s.shards {
		g.Go(func() error {
			set, err := s.searchShard(ctx, sh, q)
			if err != nil {
				failed.Add(1)
				if !errors.Is(err, context.Canceled) {
					log.Warn("shard search failed", zap.String("shard", sh.ID()), zap.Error(err))
				}
				return nil
			}
			agg.Ingest(sh.ID(), set)
			return nil
		})
	}

	_ = g.Wait()
	agg.SignalComplete()
}

func (s *Service) searchShard(ctx context.Context, sh ShardSearcher, q ShardQuery) (*ranked.Set[string], error) {
	ctx, span := s.tracer.Start(ctx, "search.shard", trace.WithAttributes(
		attribute.String("shard.id", sh.ID()),
	))
	defer span.End()

	start := time.Now()
	set, err := sh.Search(ctx, q)
	metrics.ShardRequestDuration.WithLabelValues(sh.ID()).Observe(time.Since(start).Seconds())

	if err != nil {
		status := "error"
		if errors.Is(err, context.Canceled) {
			status = "canceled"
		}
		metrics.ShardRequestsTotal.WithLabelValues(sh.ID(), status).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrShardUnavailable, sh.ID(), err)
	}

	if set == nil {
		set = ranked.NewSet[string]()
	}
	metrics.ShardRequestsTotal.WithLabelValues(sh.ID(), "ok").Inc()
	span.SetAttributes(attribute.Int("shard.hits", set.Len()))
	return set, nil
}
