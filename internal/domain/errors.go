package domain

import "errors"

var (
	// ErrInvalidRequest signals a malformed search request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidConfig signals an invalid aggregation or service setting.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrShardUnavailable signals a shard that failed to answer.
	ErrShardUnavailable = errors.New("shard unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrSemanticSearchDisabled signals a semantic query without a configured embedder.
	ErrSemanticSearchDisabled = errors.New("semantic search is not configured")
)
