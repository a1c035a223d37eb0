package vecgather

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// Shard describes one Valkey node (or cluster) holding part of the corpus.
type Shard struct {
	ID        string
	Addrs     []string
	Username  string
	Password  string
	Index     string // FT index name on this shard
	KeyPrefix string // stripped from hit keys; default "doc:"
}

type clientConfig struct {
	shards           []Shard
	embedder         Embedder
	timeout          time.Duration
	maxConcurrency   int
	strategy         string
	readinessTimeout time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithShard adds a shard. Shard IDs must be unique.
func WithShard(s Shard) Option {
	return optionFunc(func(c *clientConfig) {
		c.shards = append(c.shards, s)
	})
}

// WithEmbedder sets the query embedding provider. Required for SemanticMode.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithTimeout sets the default gather deadline. Default: 2s.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithMaxConcurrency caps in-flight shard requests per search.
// Default: one per shard.
func WithMaxConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxConcurrency = n
	})
}

// WithMergeStrategy selects the merge algorithm: "kway" (default) or "sort".
func WithMergeStrategy(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.strategy = name
	})
}

// WithReadinessTimeout bounds the startup wait for each shard. Default: 10s.
func WithReadinessTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.readinessTimeout = d
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts, durations, hit counts)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
