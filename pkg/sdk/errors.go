package vecgather

import "github.com/kailas-cloud/vecgather/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrInvalidConfig          = domain.ErrInvalidConfig
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrSemanticSearchDisabled = domain.ErrSemanticSearchDisabled
)
