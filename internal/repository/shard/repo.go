package shard

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/vecgather/internal/db"
	"github.com/kailas-cloud/vecgather/internal/domain/search/entry"
	"github.com/kailas-cloud/vecgather/internal/domain/search/mode"
	"github.com/kailas-cloud/vecgather/internal/domain/search/ranked"
	searchuc "github.com/kailas-cloud/vecgather/internal/usecase/search"
)

// store is the consumer interface for per-shard search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo implements usecase/search.ShardSearcher for one shard.
type Repo struct {
	id        string
	store     store
	index     string
	keyPrefix string
}

// New creates a shard repository. keyPrefix is stripped from hit keys.
func New(id string, s store, index, keyPrefix string) *Repo {
	return &Repo{id: id, store: s, index: index, keyPrefix: keyPrefix}
}

// ID returns the shard identity used for ingestion.
func (r *Repo) ID() string { return r.id }

// Search runs the query on this shard and returns its local ranking.
func (r *Repo) Search(ctx context.Context, q searchuc.ShardQuery) (*ranked.Set[string], error) {
	var (
		sr  *db.SearchResult
		err error
	)

	switch q.Mode {
	case mode.Semantic:
		sr, err = r.store.SearchKNN(ctx, &db.KNNQuery{
			IndexName:    r.index,
			Tags:         q.Tags,
			Vector:       q.Vector,
			K:            q.TopK,
			ReturnFields: []string{"__vector_score"},
		})
	case mode.Keyword:
		sr, err = r.store.SearchBM25(ctx, &db.TextQuery{
			IndexName:    r.index,
			Query:        q.Text,
			Tags:         q.Tags,
			TopK:         q.TopK,
			ReturnFields: []string{"__content"},
		})
	default:
		return nil, fmt.Errorf("shard %s: unsupported search mode: %s", r.id, q.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("shard %s search %s: %w", r.id, q.Mode, err)
	}

	return r.toSet(sr), nil
}

// toSet converts store hits into a ranked set in the order the shard returned them.
func (r *Repo) toSet(sr *db.SearchResult) *ranked.Set[string] {
	set := ranked.NewSet[string]()
	if sr == nil {
		return set
	}
	for _, e := range sr.Entries {
		set.Ingest(entry.New(strings.TrimPrefix(e.Key, r.keyPrefix), e.Score))
	}
	return set
}
