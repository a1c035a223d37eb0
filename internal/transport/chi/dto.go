package chi

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodeUnauthorized           ErrorCode = "unauthorized"
	ErrorCodeRateLimited            ErrorCode = "rate_limited"
	ErrorCodeSemanticSearchDisabled ErrorCode = "semantic_search_disabled"
	ErrorCodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query     string            `json:"query"`
	Mode      string            `json:"mode,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	TopK      int               `json:"top_k,omitempty"`
	Limit     int               `json:"limit,omitempty"`
	TimeoutMs int               `json:"timeout_ms,omitempty"`
}

// SearchHit is one merged hit.
type SearchHit struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

// SearchResponse is the body of a successful POST /search.
type SearchResponse struct {
	SearchID  string      `json:"search_id"`
	Hits      []SearchHit `json:"hits"`
	Complete  bool        `json:"complete"`
	Shards    int         `json:"shards"`
	Responded int         `json:"responded"`
	Failed    int         `json:"failed"`
	TookMs    int64       `json:"took_ms"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
