package search

import (
	"context"

	"github.com/kailas-cloud/vecgather/internal/domain"
	"github.com/kailas-cloud/vecgather/internal/domain/search/mode"
	"github.com/kailas-cloud/vecgather/internal/domain/search/ranked"
)

// ShardQuery is what every shard receives for one scatter-gather search.
type ShardQuery struct {
	Mode   mode.Mode
	Text   string
	Vector []float32 // set for semantic mode
	Tags   map[string]string
	TopK   int
}

// ShardSearcher runs a query against a single shard and returns its local ranking.
type ShardSearcher interface {
	ID() string
	Search(ctx context.Context, q ShardQuery) (*ranked.Set[string], error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
