package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_AllHealthy(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.AddCheck("redis", func(ctx context.Context) error { return nil })

	status := h.CheckAll(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["redis"])
}

func TestHealthChecker_FailingCheck(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.AddCheck("redis", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "connection refused", status.Checks["redis"])
}

func TestHealthChecker_ReportsConnections(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.SetConnectionCounter(func() int { return 3 })

	status := h.CheckAll(context.Background())
	assert.Equal(t, 3, status.Connections)
}

func TestHealthChecker_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewHealthChecker(time.Second)
	h.SetConnectionCounter(func() int { return 1 })
	h.AddCheck("redis", func(ctx context.Context) error {
		return errors.New("down")
	})

	router := gin.New()
	router.GET("/health", h.Handler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"connections":1`)
	assert.Contains(t, rec.Body.String(), `"down"`)
}
