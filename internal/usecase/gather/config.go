package gather

import (
	"fmt"

	"github.com/kailas-cloud/vecgather/internal/domain"
)

// Config is fixed for the lifetime of an Aggregator.
type Config[K comparable] struct {
	// Limit caps the merged result size. 0 means unbounded.
	Limit int
	// Strategy overrides the default KWayMerge.
	Strategy ReduceStrategy[K]
}

// Validate checks the configuration for correctness.
func (c Config[K]) Validate() error {
	if c.Limit < 0 {
		return fmt.Errorf("%w: limit must be >= 0, got %d", domain.ErrInvalidConfig, c.Limit)
	}
	return nil
}

func (c Config[K]) strategy() ReduceStrategy[K] {
	if c.Strategy == nil {
		return KWayMerge[K]{}
	}
	return c.Strategy
}
