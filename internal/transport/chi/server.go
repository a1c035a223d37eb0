package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgather/internal/domain"
	"github.com/kailas-cloud/vecgather/internal/domain/search/mode"
	"github.com/kailas-cloud/vecgather/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/vecgather/internal/logger"
	"github.com/kailas-cloud/vecgather/internal/metrics"
	healthuc "github.com/kailas-cloud/vecgather/internal/usecase/health"
	searchuc "github.com/kailas-cloud/vecgather/internal/usecase/search"
)

const maxBodyBytes = 1 << 20

// Searcher runs a scatter-gather search.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) (searchuc.Outcome, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Limits are the request defaults applied before validation.
type Limits struct {
	DefaultLimit int
	MaxLimit     int
	DefaultTopK  int
}

// Options configures the router middleware chain.
type Options struct {
	APIKeys        []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server serves the scatter-gather HTTP API.
type Server struct {
	search        Searcher
	health        HealthChecker
	limits        Limits
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, health HealthChecker, limits Limits, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search: search,
		health: health,
		limits: limits,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrSemanticSearchDisabled, http.StatusBadRequest, ErrorCodeSemanticSearchDisabled),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProviderError),
	}
	return s
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(RateLimitMiddleware(opts.RateLimitRPS, opts.RateLimitBurst))
	r.Use(BearerAuthMiddleware(opts.APIKeys))
	r.Use(metrics.Middleware())

	r.Post("/search", s.Search)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
	return r
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := s.requestFromBody(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	ctx := logpkg.With(r.Context(),
		zap.String("search_mode", string(req.Mode())),
		zap.Int("search_limit", req.Limit()),
	)
	out, err := s.search.Search(ctx, &req)
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	if !out.Complete {
		w.Header().Set("X-Gather-Partial", "true")
	}
	writeJSON(w, http.StatusOK, searchResponse(out))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func (s *Server) requestFromBody(body SearchRequest) (request.Request, error) {
	limit := body.Limit
	if limit <= 0 {
		limit = s.limits.DefaultLimit
	}
	if s.limits.MaxLimit > 0 && limit > s.limits.MaxLimit {
		limit = s.limits.MaxLimit
	}
	topK := body.TopK
	if topK <= 0 {
		topK = s.limits.DefaultTopK
	}
	return request.New(
		body.Query,
		mode.Mode(body.Mode),
		body.Tags,
		topK,
		limit,
		time.Duration(body.TimeoutMs)*time.Millisecond,
	)
}

func searchResponse(out searchuc.Outcome) SearchResponse {
	hits := make([]SearchHit, 0, out.Hits.Size())
	for _, e := range out.Hits.Entries() {
		hits = append(hits, SearchHit{Key: e.Key(), Score: e.Score()})
	}
	return SearchResponse{
		SearchID:  out.SearchID,
		Hits:      hits,
		Complete:  out.Complete,
		Shards:    out.Shards,
		Responded: out.Responded,
		Failed:    out.Failed,
		TookMs:    out.Took.Milliseconds(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrSemanticSearchDisabled,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logpkg.FromContext(ctx)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
