package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/envlens/envmonitor-service/internal/upstream"
)

// createBenchmarkRequest creates an HTTP request with correlation context.
func createBenchmarkRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(context.WithValue(req.Context(), "correlation_id", "bench-id"))
	req = req.WithContext(context.WithValue(req.Context(), "logger", zap.NewNop()))
	return req
}

// BenchmarkHandler_GetDashboard_Populated benchmarks the dashboard snapshot
// path with every domain carrying a payload.
func BenchmarkHandler_GetDashboard_Populated(b *testing.B) {
	fx := newFixture(b, nil)
	if err := fx.coord.FetchAll(context.Background(), false); err != nil {
		b.Fatalf("FetchAll: %v", err)
	}
	router := newRouter(fx.handler)
	req := createBenchmarkRequest("GET", "/api/dashboard")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkHandler_GetDomain_CacheHit benchmarks a single-domain read where
// the chain serves from cache.
func BenchmarkHandler_GetDomain_CacheHit(b *testing.B) {
	fx := newFixture(b, nil)
	if err := fx.coord.FetchAll(context.Background(), false); err != nil {
		b.Fatalf("FetchAll: %v", err)
	}
	router := newRouter(fx.handler)
	req := createBenchmarkRequest("GET", "/api/domains/surface_temperature")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkHandler_GetDomain_Error benchmarks the error body path.
func BenchmarkHandler_GetDomain_Error(b *testing.B) {
	fx := newFixture(b, nil)
	fx.temp.setErr(upstream.ErrUpstreamFailure)
	router := newRouter(fx.handler)
	req := createBenchmarkRequest("GET", "/api/domains/not_a_domain")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkHandler_GetHealth benchmarks the health verdict, which walks
// every domain and the error-rate window.
func BenchmarkHandler_GetHealth(b *testing.B) {
	fx := newFixture(b, &HealthConfig{
		DegradedWindow:   5 * time.Minute,
		DegradedErrorPct: 50,
	})
	if err := fx.coord.FetchAll(context.Background(), false); err != nil {
		b.Fatalf("FetchAll: %v", err)
	}
	router := newRouter(fx.handler)
	req := createBenchmarkRequest("GET", "/health")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}
