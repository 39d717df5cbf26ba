package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ProtonGraph/internal/interfaces/http/handlers"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

func testRouter(t *testing.T, checks map[string]handlers.HealthChecker) *gin.Engine {
	t.Helper()
	return NewRouter(RouterConfig{
		HealthHandler: handlers.NewHealthHandler(checks, logging.NewNopLogger()),
		Logger:        logging.NewNopLogger(),
		Mode:          gin.TestMode,
	})
}

func TestHealthEndpoints(t *testing.T) {
	router := testRouter(t, map[string]handlers.HealthChecker{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return nil },
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessFailsOnBrokenDependency(t *testing.T) {
	router := testRouter(t, map[string]handlers.HealthChecker{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New(errors.ErrCodeCacheError, "down") },
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "down")
}

func TestMetricsEndpoint(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "routertest"}, logging.NewNopLogger())
	require.NoError(t, err)
	router := NewRouter(RouterConfig{
		Logger:           logging.NewNopLogger(),
		MetricsCollector: collector,
		Mode:             gin.TestMode,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	router := testRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
