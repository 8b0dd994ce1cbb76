package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases, SLO breaches.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream provider call rate. Watch for: error vs success ratio per provider.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency per call. Watch for: p95 > 2s (provider degradation), p99 > 5s (timeout risk).
	UpstreamCallDuration *prometheus.HistogramVec

	// Whole-chain retry passes per domain. Watch for: high retries = unstable upstreams.
	FetchRetriesTotal *prometheus.CounterVec

	// Strategy fallthroughs within a chain pass, by reason (failure, invalid, breaker_open).
	StrategyFallthroughsTotal *prometheus.CounterVec

	// Chains exhausted with no real data. The UI shows stale data plus a retry control.
	ChainExhaustedTotal *prometheus.CounterVec

	// Cache hits/misses per domain. Hit rate = hits/(hits+misses).
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Force-refresh cache clears.
	CacheClearsTotal prometheus.Counter

	// Coalesced fetches: callers that waited on an in-flight chain run instead of starting one.
	CoalescedFetchesTotal *prometheus.CounterVec

	// Refresh cycles by trigger (interval, manual, force).
	RefreshCyclesTotal *prometheus.CounterVec

	// Per-domain state gauge: 0 loading, 1 success, 2 error, 3 no-data.
	DomainStateGauge *prometheus.GaugeVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker transitions and current state per strategy (0 closed, 1 open, 2 half-open).
	CircuitBreakerTransitionsTotal *prometheus.CounterVec
	CircuitBreakerStateGauge       *prometheus.GaugeVec

	errorRateGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream provider API calls",
		},
		[]string{"provider", "status"},
	)
	UpstreamCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamCallDurationSeconds",
			Help:    "Upstream provider latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "status"},
	)
	FetchRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchRetriesTotal",
			Help: "Total number of whole-chain retry passes",
		},
		[]string{"domain"},
	)
	StrategyFallthroughsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategyFallthroughsTotal",
			Help: "Strategy fallthroughs within a chain pass, by reason",
		},
		[]string{"domain", "strategy", "reason"},
	)
	ChainExhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainExhaustedTotal",
			Help: "Chain runs that exhausted every strategy and retry",
		},
		[]string{"domain"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits per domain",
		},
		[]string{"domain"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of cache misses per domain",
		},
		[]string{"domain"},
	)
	CacheClearsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheClearsTotal",
			Help: "Total number of force-refresh cache clears",
		},
	)
	CoalescedFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coalescedFetchesTotal",
			Help: "Fetches served by waiting on an in-flight chain run",
		},
		[]string{"domain"},
	)
	RefreshCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refreshCyclesTotal",
			Help: "Dashboard refresh cycles by trigger",
		},
		[]string{"trigger"},
	)
	DomainStateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "domainState",
			Help: "Per-domain state: 0 loading, 1 success, 2 error, 3 no-data",
		},
		[]string{"domain"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions per strategy",
		},
		[]string{"strategy", "from", "to"},
	)
	CircuitBreakerStateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per strategy: 0 closed, 1 open, 2 half-open",
		},
		[]string{"strategy"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamCallDuration,
		FetchRetriesTotal, StrategyFallthroughsTotal, ChainExhaustedTotal,
		CacheHitsTotal, CacheMissesTotal, CacheClearsTotal,
		CoalescedFetchesTotal, RefreshCyclesTotal, DomainStateGauge,
		RateLimitDeniedTotal,
		CircuitBreakerTransitionsTotal, CircuitBreakerStateGauge,
	)
}

// RegisterDomainErrorRateGauges registers a gauge per domain reporting the
// upstream error percentage within the window. Call from main after the
// traffic tracker exists.
func RegisterDomainErrorRateGauges(domains []string, window time.Duration, errorRate func(domain string, window time.Duration) (errors, total int)) {
	errorRateGaugesOnce.Do(func() {
		for _, d := range domains {
			d := d
			registry.MustRegister(prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name:        "domainErrorRatePct",
					Help:        "Upstream error percentage per domain in the sliding window",
					ConstLabels: prometheus.Labels{"domain": d},
				},
				func() float64 {
					errs, total := errorRate(d, window)
					if total == 0 {
						return 0
					}
					return float64(errs) * 100 / float64(total)
				},
			))
		}
	})
}

// RecordUpstreamCall records one provider call with its latency.
func RecordUpstreamCall(provider, status string, duration time.Duration) {
	UpstreamCallsTotal.WithLabelValues(provider, status).Inc()
	UpstreamCallDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
}

// RecordDomainState sets the per-domain state gauge.
func RecordDomainState(domain string, state string) {
	var v float64
	switch state {
	case "loading":
		v = 0
	case "success":
		v = 1
	case "error":
		v = 2
	case "no-data":
		v = 3
	}
	DomainStateGauge.WithLabelValues(domain).Set(v)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
