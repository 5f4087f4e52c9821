package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupMonitoredRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(MetricsMiddleware())
	router.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	router.GET("/fail", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fail"})
	})
	return router
}

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	router := setupMonitoredRouter()

	before := GetMetrics()

	req, _ := http.NewRequest("GET", "/ok", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	req, _ = http.NewRequest("GET", "/fail", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	after := GetMetrics()

	if after.RequestCount != before.RequestCount+2 {
		t.Errorf("Expected request count to grow by 2, got %d -> %d",
			before.RequestCount, after.RequestCount)
	}

	if after.ErrorCount != before.ErrorCount+1 {
		t.Errorf("Expected error count to grow by 1, got %d -> %d",
			before.ErrorCount, after.ErrorCount)
	}

	if after.Endpoints["GET /ok"] == 0 {
		t.Error("Expected endpoint call recorded")
	}
}

func TestHealthHandlerHealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	RegisterHealthCheck("always_ok", func(ctx context.Context) error {
		return nil
	})
	defer unregisterHealthCheck("always_ok")

	router := gin.New()
	router.GET("/health", HealthHandler())

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if response["status"] != "healthy" {
		t.Errorf("Expected healthy, got %v", response["status"])
	}
}

func TestHealthHandlerUnhealthyDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	RegisterHealthCheck("always_down", func(ctx context.Context) error {
		return errors.New("dependency down")
	})
	defer unregisterHealthCheck("always_down")

	router := gin.New()
	router.GET("/health", HealthHandler())

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestLivenessHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/live", LivenessHandler())

	req, _ := http.NewRequest("GET", "/live", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestRunHealthChecksReRunsProbes(t *testing.T) {
	calls := 0
	RegisterHealthCheck("counted", func(ctx context.Context) error {
		calls++
		return nil
	})
	defer unregisterHealthCheck("counted")

	RunHealthChecks()
	RunHealthChecks()

	if calls != 2 {
		t.Errorf("Expected probe run on every invocation, got %d calls", calls)
	}
}

func unregisterHealthCheck(name string) {
	globalHealthChecker.mu.Lock()
	defer globalHealthChecker.mu.Unlock()
	delete(globalHealthChecker.checks, name)
}
