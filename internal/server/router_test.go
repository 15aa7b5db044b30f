package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthReflectsNodeReports(t *testing.T) {
	gin.SetMode(gin.TestMode)
	node := NewNodeHealth()
	r := NewHTTPRouter(Handlers{Node: node})

	w := get(r, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ledger":"UP"`)

	node.ReportNode(false)
	assert.Contains(t, get(r, "/health").Body.String(), `"ledger":"DOWN"`)

	resp, err := node.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: LedgerHealthService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	node.ReportNode(true)
	resp, err = node.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: LedgerHealthService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestRouterBaseRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewHTTPRouter(Handlers{})

	assert.Contains(t, get(r, "/api/v1/ping").Body.String(), `"pong":true`)
	assert.Equal(t, http.StatusOK, get(r, "/metrics").Code)
	// 未配置的模块不注册路由
	assert.Equal(t, http.StatusNotFound, get(r, "/api/v1/products").Code)
	assert.Contains(t, get(r, "/health").Body.String(), `"ledger":"UNKNOWN"`)
}
