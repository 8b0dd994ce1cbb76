package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/envlens/envmonitor-service/internal/cache"
	"github.com/envlens/envmonitor-service/internal/chain"
	"github.com/envlens/envmonitor-service/internal/circuitbreaker"
	"github.com/envlens/envmonitor-service/internal/config"
	"github.com/envlens/envmonitor-service/internal/coordinator"
	httphandler "github.com/envlens/envmonitor-service/internal/http"
	"github.com/envlens/envmonitor-service/internal/lifecycle"
	"github.com/envlens/envmonitor-service/internal/models"
	"github.com/envlens/envmonitor-service/internal/observability"
	"github.com/envlens/envmonitor-service/internal/retry"
	"github.com/envlens/envmonitor-service/internal/traffic"
	"github.com/envlens/envmonitor-service/internal/upstream"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	var store cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		registerCachedPayloads()
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		store = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		store = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	chains := buildChains(cfg, store, logger)
	domains := make([]string, 0, len(chains))
	for domain := range chains {
		domains = append(domains, string(domain))
	}
	observability.RegisterDomainErrorRateGauges(domains, cfg.DegradedWindow, traffic.ErrorRate)

	coord := coordinator.New(coordinator.Config{
		Chains: chains,
		Cache:  store,
		Query: models.Query{
			Lat:         cfg.Latitude,
			Lon:         cfg.Longitude,
			RadiusKm:    cfg.RadiusKm,
			WindowHours: cfg.WindowHours,
			Year:        cfg.ClimateYear,
			Pollutants:  cfg.Pollutants,
		},
		Tracker: traffic.Default(),
		Logger:  logger,
	})

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	go func() {
		if err := coord.RunAutoRefresh(refreshCtx, cfg.RefreshInterval); err != nil && err != context.Canceled {
			logger.Error("auto refresh stopped", zap.Error(err))
		}
	}()

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(coord, healthConfig, logger)

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(httphandler.RateLimitMiddleware(limiter))
	apiRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	apiRouter.HandleFunc("/dashboard", handler.GetDashboard).Methods("GET")
	apiRouter.HandleFunc("/domains/{domain}", handler.GetDomain).Methods("GET")
	apiRouter.HandleFunc("/refresh", handler.PostRefresh).Methods("POST")
	apiRouter.HandleFunc("/refresh/{domain}", handler.PostRefreshDomain).Methods("POST")
	apiRouter.HandleFunc("/cache/stats", handler.GetCacheStats).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	stopRefresh()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	if err := httphandler.WaitForInFlight(shutdownCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// buildChains assembles the per-domain source chains in strict priority
// order. Keyed providers join their chain only when a key is configured;
// keyless providers and computation strategies carry the service otherwise.
func buildChains(cfg *config.Config, store cache.Cache, logger *zap.Logger) map[models.Domain]*chain.Chain {
	timeout := cfg.UpstreamTimeout

	meteoCurrent := upstream.NewOpenMeteoCurrent(cfg.OpenMeteoForecastURL, timeout)
	powerTemp := upstream.NewNASAPowerRecentTemp(cfg.NASAPowerURL, timeout)
	modisTerra := upstream.NewORNLModisNDVI("MOD13Q1", cfg.ModisURL, timeout)
	modisAqua := upstream.NewORNLModisNDVI("MYD13Q1", cfg.ModisURL, timeout)
	gfwCover := upstream.NewGFWForestCover("", cfg.ForestWatchURL, timeout)
	coverFromNDVI := &upstream.CoverFromNDVI{NDVI: modisTerra}

	temperature := []upstream.Strategy{meteoCurrent}
	heatmap := []upstream.Strategy{upstream.NewOpenMeteoGrid(cfg.OpenMeteoForecastURL, timeout)}
	air := []upstream.Strategy{upstream.NewOpenMeteoAirQuality(cfg.OpenMeteoAirQualityURL, timeout)}

	if cfg.WAQIToken != "" {
		air = append(air, upstream.NewWAQIFeed(cfg.WAQIToken, cfg.WAQIURL, timeout))
	} else {
		logger.Info("WAQI token absent; strategy skipped")
	}
	if cfg.OpenWeatherAPIKey != "" {
		owCurrent := upstream.NewOpenWeatherCurrent(cfg.OpenWeatherAPIKey, cfg.OpenWeatherURL, timeout)
		temperature = append(temperature, owCurrent)
		heatmap = append(heatmap, &upstream.GridFromPoint{Point: owCurrent})
		air = append(air, upstream.NewOpenWeatherAirPollution(cfg.OpenWeatherAPIKey, cfg.OpenWeatherURL, timeout))
	} else {
		logger.Info("OpenWeather key absent; strategies skipped")
	}
	temperature = append(temperature, powerTemp)
	heatmap = append(heatmap, &upstream.GridFromPoint{Point: powerTemp})

	strategies := map[models.Domain][]upstream.Strategy{
		models.DomainSurfaceTemperature: temperature,
		models.DomainHeatmap:            heatmap,
		models.DomainAirQuality:         air,
		models.DomainClimate: {
			upstream.NewOpenMeteoArchive(cfg.OpenMeteoArchiveURL, timeout),
			upstream.NewNASAPowerClimate(cfg.NASAPowerURL, timeout),
		},
		models.DomainVegetation: {modisTerra, modisAqua},
		models.DomainForestCover: {
			gfwCover,
			coverFromNDVI,
		},
		models.DomainCarbon: {
			upstream.NewGFWBiomass("", cfg.ForestWatchURL, timeout),
			&upstream.BiomassFromCover{Cover: gfwCover},
			&upstream.BiomassFromCover{Cover: coverFromNDVI},
		},
	}

	retryOpts := retry.Options{
		Retries:      cfg.RetryAttempts,
		InitialDelay: cfg.RetryBaseDelay,
		MaxDelay:     cfg.RetryMaxDelay,
	}

	chains := make(map[models.Domain]*chain.Chain, len(strategies))
	for domain, strats := range strategies {
		breakers := make(map[string]*circuitbreaker.CircuitBreaker, len(strats))
		for _, s := range strats {
			breakers[s.Name()] = newBreaker(cfg, s.Name())
		}
		chains[domain] = chain.New(chain.Config{
			Domain:          domain,
			Strategies:      strats,
			Cache:           store,
			TTL:             cfg.TTLFor(string(domain)),
			Retry:           retryOpts,
			Breakers:        breakers,
			CoalesceTimeout: cfg.CoalesceTimeout,
			Logger:          logger,
		})
	}
	return chains
}

// newBreaker creates a per-strategy circuit breaker with its transitions
// exported as metrics.
func newBreaker(cfg *config.Config, strategy string) *circuitbreaker.CircuitBreaker {
	observability.CircuitBreakerStateGauge.WithLabelValues(strategy).Set(0)
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		Timeout:          cfg.BreakerTimeout,
		Strategy:         strategy,
		OnStateChange: func(from, to circuitbreaker.State) {
			observability.CircuitBreakerTransitionsTotal.WithLabelValues(strategy, from.String(), to.String()).Inc()
			observability.CircuitBreakerStateGauge.WithLabelValues(strategy).Set(float64(to))
		},
	})
}

// registerCachedPayloads registers every raw observation type with the
// memcached codec. The in-memory backend stores values directly and does not
// need this.
func registerCachedPayloads() {
	cache.RegisterPayloadType(upstream.TempSample{})
	cache.RegisterPayloadType(upstream.GridObservation{})
	cache.RegisterPayloadType(upstream.AirObservation{})
	cache.RegisterPayloadType(upstream.ClimateObservation{})
	cache.RegisterPayloadType(upstream.VegetationObservation{})
	cache.RegisterPayloadType(upstream.CoverObservation{})
	cache.RegisterPayloadType(upstream.BiomassObservation{})
}
