package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/envlens/envmonitor-service/internal/cache"
	"github.com/envlens/envmonitor-service/internal/chain"
	"github.com/envlens/envmonitor-service/internal/coordinator"
	"github.com/envlens/envmonitor-service/internal/models"
	"github.com/envlens/envmonitor-service/internal/retry"
	"github.com/envlens/envmonitor-service/internal/upstream"
)

// TestIntegration_RefreshToDisplay drives a real provider strategy through
// the chain, coordinator, and router: refresh from a fake upstream, read the
// normalized payload off the dashboard, then break the upstream and verify
// stale retention end to end.
func TestIntegration_RefreshToDisplay(t *testing.T) {
	var failUpstream atomic.Bool
	var upstreamHits atomic.Int64
	fakeMeteo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHits.Add(1)
		if failUpstream.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"time":"` + time.Now().UTC().Format("2006-01-02T15:04") + `","temperature_2m":16.4}}`))
	}))
	defer fakeMeteo.Close()

	store := cache.NewInMemoryCache()
	tempChain := chain.New(chain.Config{
		Domain:     models.DomainSurfaceTemperature,
		Strategies: []upstream.Strategy{upstream.NewOpenMeteoCurrent(fakeMeteo.URL, time.Second)},
		Cache:      store,
		TTL:        time.Minute,
		Retry:      retry.Options{Retries: 2, InitialDelay: time.Millisecond},
	})
	coord := coordinator.New(coordinator.Config{
		Chains: map[models.Domain]*chain.Chain{models.DomainSurfaceTemperature: tempChain},
		Cache:  store,
	})
	router := newRouter(NewHandler(coord, nil, zap.NewNop()))

	// First refresh pulls from the fake upstream.
	req := httptest.NewRequest("POST", "/api/refresh", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/domains/surface_temperature", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("domain status = %d, want 200", w.Code)
	}
	var view struct {
		State       string `json:"state"`
		LastPayload struct {
			Celsius  float64 `json:"celsius"`
			Provider string  `json:"provider"`
		} `json:"lastPayload"`
		Freshness struct {
			AgeBucket string `json:"ageBucket"`
		} `json:"freshness"`
	}
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.State != "success" {
		t.Fatalf("state = %q, want success", view.State)
	}
	if view.LastPayload.Celsius != 16.4 || view.LastPayload.Provider != "open-meteo" {
		t.Errorf("payload = %+v, want normalized 16.4C from open-meteo", view.LastPayload)
	}
	if view.Freshness.AgeBucket != "fresh" {
		t.Errorf("freshness = %q, want fresh", view.Freshness.AgeBucket)
	}

	// A repeat refresh is served from cache, not the upstream.
	hitsBefore := upstreamHits.Load()
	req = httptest.NewRequest("POST", "/api/refresh", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if upstreamHits.Load() != hitsBefore {
		t.Errorf("upstream hit on cache-served refresh")
	}

	// Break the upstream and force: the domain flips to error but the old
	// payload stays on display.
	failUpstream.Store(true)
	req = httptest.NewRequest("POST", "/api/refresh?force=true", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("forced refresh status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/domains/surface_temperature", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.State != "error" {
		t.Errorf("state = %q, want error after broken upstream", view.State)
	}
	if view.LastPayload.Celsius != 16.4 {
		t.Errorf("payload = %+v, want stale 16.4C retained", view.LastPayload)
	}
}

// TestIntegration_NullTemperatureFallsThrough verifies a 200 response with a
// null critical field falls through to the next strategy in the chain.
func TestIntegration_NullTemperatureFallsThrough(t *testing.T) {
	nullMeteo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"time":"2026-08-30T12:00","temperature_2m":null}}`))
	}))
	defer nullMeteo.Close()
	goodMeteo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"time":"2026-08-30T12:00","temperature_2m":21.0}}`))
	}))
	defer goodMeteo.Close()

	store := cache.NewInMemoryCache()
	tempChain := chain.New(chain.Config{
		Domain: models.DomainSurfaceTemperature,
		Strategies: []upstream.Strategy{
			upstream.NewOpenMeteoCurrent(nullMeteo.URL, time.Second),
			upstream.NewOpenMeteoCurrent(goodMeteo.URL, time.Second),
		},
		Cache: store,
		TTL:   time.Minute,
		Retry: retry.Options{Retries: 1, InitialDelay: time.Millisecond},
	})
	coord := coordinator.New(coordinator.Config{
		Chains: map[models.Domain]*chain.Chain{models.DomainSurfaceTemperature: tempChain},
		Cache:  store,
	})
	router := newRouter(NewHandler(coord, nil, zap.NewNop()))

	req := httptest.NewRequest("POST", "/api/refresh/surface_temperature", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var view struct {
		State       string `json:"state"`
		LastPayload struct {
			Celsius float64 `json:"celsius"`
		} `json:"lastPayload"`
	}
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.State != "success" || view.LastPayload.Celsius != 21.0 {
		t.Errorf("view = %+v, want fallback strategy's 21.0C", view)
	}
}
