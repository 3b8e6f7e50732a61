package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"apollo-supervisor/internal/config"
	"apollo-supervisor/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupervisor(t *testing.T) *services.Supervisor {
	cfg := config.Default()
	cfg.Supervisor.Root = t.TempDir()
	cfg.CoreServices = nil
	cfg.Watchdog.Enabled = false
	sup := services.NewSupervisor(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sup.Shutdown(ctx)
	})
	return sup
}

func TestRouterCorsOnAPI(t *testing.T) {
	router := NewRouter(newTestSupervisor(t), gin.TestMode)

	req := httptest.NewRequest(http.MethodOptions, "/api/supervisor/launch", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterNoCorsOutsideAPI(t *testing.T) {
	router := NewRouter(newTestSupervisor(t), gin.TestMode)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterCountsRequests(t *testing.T) {
	sup := newTestSupervisor(t)
	router := NewRouter(sup, gin.TestMode)

	before := sup.GetHealthz().Metrics.TotalRequests
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/supervisor/status", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, before+3, sup.GetHealthz().Metrics.TotalRequests)
}
