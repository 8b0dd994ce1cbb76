package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestMetrics_Usable verifies that all Prometheus metrics can be used without
// panic, ensuring label dimensions match usage across the chain, coordinator,
// http, and upstream packages.
func TestMetrics_Usable(t *testing.T) {
	// Route uses path template to avoid cardinality (e.g. /api/domains/{domain}).
	HTTPRequestsTotal.WithLabelValues("GET", "/api/dashboard", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/dashboard").Observe(0.01)
	UpstreamCallsTotal.WithLabelValues("open-meteo", "success").Inc()
	UpstreamCallDuration.WithLabelValues("open-meteo", "success").Observe(0.1)
	FetchRetriesTotal.WithLabelValues("heatmap").Inc()
	StrategyFallthroughsTotal.WithLabelValues("air_quality", "waqi", "invalid").Inc()
	ChainExhaustedTotal.WithLabelValues("vegetation").Inc()
	CacheHitsTotal.WithLabelValues("climate").Inc()
	CacheMissesTotal.WithLabelValues("climate").Inc()
	CacheClearsTotal.Inc()
	CoalescedFetchesTotal.WithLabelValues("heatmap").Inc()
	RefreshCyclesTotal.WithLabelValues("interval").Inc()
	DomainStateGauge.WithLabelValues("carbon").Set(1)
	RateLimitDeniedTotal.Inc()
	CircuitBreakerTransitionsTotal.WithLabelValues("waqi", "closed", "open").Inc()
	CircuitBreakerStateGauge.WithLabelValues("waqi").Set(1)
}

// TestRecordUpstreamCall verifies the helper records without panicking for
// each status label it is called with.
func TestRecordUpstreamCall(t *testing.T) {
	RecordUpstreamCall("nasa-power", "success", 120*time.Millisecond)
	RecordUpstreamCall("nasa-power", "server_error", 2*time.Second)
	RecordUpstreamCall("waqi", "rate_limited", 10*time.Millisecond)
}

// TestRecordDomainState verifies state strings map onto gauge values without panic.
func TestRecordDomainState(t *testing.T) {
	for _, state := range []string{"loading", "success", "error", "no-data"} {
		RecordDomainState("heatmap", state)
	}
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	UpstreamCallsTotal.WithLabelValues("open-meteo", "success").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "upstreamCallsTotal") {
		t.Error("metrics output missing upstreamCallsTotal")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics output missing Go runtime collector metrics")
	}
}

// TestRegisterDomainErrorRateGauges verifies gauge registration is idempotent
// and the gauge function computes a percentage.
func TestRegisterDomainErrorRateGauges(t *testing.T) {
	rate := func(domain string, window time.Duration) (int, int) { return 1, 4 }
	RegisterDomainErrorRateGauges([]string{"heatmap"}, time.Minute, rate)
	// Second call must not panic on duplicate registration.
	RegisterDomainErrorRateGauges([]string{"heatmap"}, time.Minute, rate)

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), "domainErrorRatePct") {
		t.Error("metrics output missing domainErrorRatePct")
	}
}
