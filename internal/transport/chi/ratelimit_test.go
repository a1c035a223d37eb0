package chi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimitMiddleware(0, 0)(okHandler())
	for range 50 {
		assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/search", "").Code)
	}
}

func TestRateLimit_RejectsAfterBurst(t *testing.T) {
	h := RateLimitMiddleware(0.001, 2)(okHandler())

	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/search", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/search", "").Code)

	rr := serve(h, http.MethodPost, "/search", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1000", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), string(ErrorCodeRateLimited))
}

func TestRateLimit_ExemptPaths(t *testing.T) {
	h := RateLimitMiddleware(0.001, 1)(okHandler())

	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/search", "").Code)
	for range 5 {
		assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health", "").Code)
	}
}

func TestRateLimit_DefaultBurst(t *testing.T) {
	h := RateLimitMiddleware(0.001, 0)(okHandler())

	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/search", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, http.MethodPost, "/search", "").Code)
}
