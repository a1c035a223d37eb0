package request

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/vecgather/internal/domain"
	"github.com/kailas-cloud/vecgather/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultTopK    = 10
	MaxTopK        = 500
	DefaultLimit   = 20
	MaxLimit       = 1000
	MaxTimeout     = time.Minute
)

// Request is a validated scatter-gather query.
type Request struct {
	query      string
	searchMode mode.Mode
	tags       map[string]string
	topK       int
	limit      int
	timeout    time.Duration
}

// New validates and normalizes search parameters.
// Defaults: mode=keyword, topK=10 per shard, limit=20 merged hits.
// A zero timeout means "use the service default".
func New(
	query string,
	m mode.Mode,
	tags map[string]string,
	topK, limit int,
	timeout time.Duration,
) (Request, error) {
	if query == "" {
		return Request{}, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidRequest, MaxQueryLength)
	}
	if m == "" {
		m = mode.Keyword
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("%w: invalid search mode %q", domain.ErrInvalidRequest, m)
	}
	for k := range tags {
		if k == "" {
			return Request{}, fmt.Errorf("%w: empty tag name", domain.ErrInvalidRequest)
		}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if timeout < 0 {
		return Request{}, fmt.Errorf("%w: timeout must not be negative", domain.ErrInvalidRequest)
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	return Request{
		query:      query,
		searchMode: m,
		tags:       tags,
		topK:       topK,
		limit:      limit,
		timeout:    timeout,
	}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Mode returns the search strategy.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// Tags returns exact-match tag filters applied on every shard.
func (r *Request) Tags() map[string]string { return r.tags }

// TopK returns the number of hits requested from each shard.
func (r *Request) TopK() int { return r.topK }

// Limit returns the maximum number of merged hits.
func (r *Request) Limit() int { return r.limit }

// Timeout returns the gather deadline, or 0 for the service default.
func (r *Request) Timeout() time.Duration { return r.timeout }
