package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vroom/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func limitedRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(NewHTTPRateLimitMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func doRequest(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)
	return w
}

func TestHTTPRateLimitMiddleware_DisabledAllowsEverything(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = false

	router := limitedRouter(cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.1:1234").Code)
	}
}

func TestHTTPRateLimitMiddleware_LimitsPerIP(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 1
	cfg.RateLimiting.HTTP.Burst = 1
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	router := limitedRouter(cfg)

	require.Equal(t, http.StatusOK, doRequest(router, "10.0.0.1:1234").Code)

	w := doRequest(router, "10.0.0.1:1234")
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error"])

	// A different caller has its own bucket.
	assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.2:1234").Code)
}

func TestHTTPRateLimitMiddleware_ForwardedForChain(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 1
	cfg.RateLimiting.HTTP.Burst = 1
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	router := limitedRouter(cfg)

	send := func(xff string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "127.0.0.1:1"
		req.Header.Set("X-Forwarded-For", xff)
		router.ServeHTTP(w, req)
		return w.Code
	}

	// The first hop identifies the caller even with multiple proxies.
	require.Equal(t, http.StatusOK, send("203.0.113.7, 10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.7, 10.0.0.9"))
	assert.Equal(t, http.StatusOK, send("203.0.113.8, 10.0.0.1"))
}

func TestCallerLimiters_EvictIdle(t *testing.T) {
	limiters := newCallerLimiters(rate.Limit(1), 1)

	limiters.allow("a")
	limiters.allow("b")
	require.Len(t, limiters.entries, 2)

	limiters.mu.Lock()
	limiters.entries["a"].lastSeen = time.Now().Add(-time.Hour)
	limiters.mu.Unlock()

	limiters.evictIdle(10 * time.Minute)

	limiters.mu.Lock()
	defer limiters.mu.Unlock()
	assert.Len(t, limiters.entries, 1)
	assert.Contains(t, limiters.entries, "b")
}
