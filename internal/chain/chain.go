package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/envlens/envmonitor-service/internal/cache"
	"github.com/envlens/envmonitor-service/internal/circuitbreaker"
	"github.com/envlens/envmonitor-service/internal/models"
	"github.com/envlens/envmonitor-service/internal/observability"
	"github.com/envlens/envmonitor-service/internal/retry"
	"github.com/envlens/envmonitor-service/internal/upstream"
)

// ErrNoRealData is returned when every strategy in every retry pass failed.
// The chain never substitutes synthetic data; estimation, where it exists at
// all, lives in explicitly labeled computation strategies.
var ErrNoRealData = errors.New("no real data available")

// Chain is the per-domain source-chain fetcher: an ordered list of strategies
// tried strictly in priority order, wrapped as a whole in one retry budget,
// fronted by the TTL cache.
type Chain struct {
	domain     models.Domain
	strategies []upstream.Strategy
	cache      cache.Cache
	ttl        time.Duration
	retryOpts  retry.Options
	breakers   map[string]*circuitbreaker.CircuitBreaker
	coalescer  *coalescer
	logger     *zap.Logger
}

// Config assembles a Chain.
type Config struct {
	Domain     models.Domain
	Strategies []upstream.Strategy
	Cache      cache.Cache
	TTL        time.Duration
	Retry      retry.Options
	// Breakers maps strategy name to its circuit breaker. Strategies without
	// an entry run unprotected.
	Breakers map[string]*circuitbreaker.CircuitBreaker
	// CoalesceTimeout enables request coalescing when positive: concurrent
	// fetches for the same key share one chain run.
	CoalesceTimeout time.Duration
	Logger          *zap.Logger
}

// New creates a Chain. TTL defaults to 10 minutes, the retry budget to 3.
func New(cfg Config) *Chain {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Retry.Retries <= 0 {
		cfg.Retry.Retries = 3
	}
	c := &Chain{
		domain:     cfg.Domain,
		strategies: cfg.Strategies,
		cache:      cfg.Cache,
		ttl:        cfg.TTL,
		retryOpts:  cfg.Retry,
		breakers:   cfg.Breakers,
		logger:     cfg.Logger,
	}
	if cfg.CoalesceTimeout > 0 {
		c.coalescer = newCoalescer(cfg.CoalesceTimeout)
	}
	return c
}

// Domain returns the chain's domain.
func (c *Chain) Domain() models.Domain { return c.domain }

// TTL returns the chain's cache TTL.
func (c *Chain) TTL() time.Duration { return c.ttl }

// Fetch returns the domain payload for q: a live cache hit short-circuits
// with no network call; otherwise the whole strategy chain runs under one
// retry budget and a success is cached before being returned.
func (c *Chain) Fetch(ctx context.Context, q models.Query) (any, error) {
	key := Key(c.domain, q)

	value, age, ok, err := c.cache.Get(ctx, key)
	if err == nil && ok {
		observability.CacheHitsTotal.WithLabelValues(string(c.domain)).Inc()
		if c.logger != nil {
			c.logger.Debug("cache hit", zap.String("domain", string(c.domain)), zap.String("key", key), zap.Duration("age", age))
		}
		return value, nil
	}
	if err != nil && c.logger != nil {
		c.logger.Warn("cache get failed", zap.String("domain", string(c.domain)), zap.Error(err))
	}
	observability.CacheMissesTotal.WithLabelValues(string(c.domain)).Inc()

	if c.coalescer != nil {
		value, shared, err := c.coalescer.getOrDo(ctx, key, func() (any, error) {
			return c.fetchFresh(ctx, q, key)
		})
		if shared {
			observability.CoalescedFetchesTotal.WithLabelValues(string(c.domain)).Inc()
		}
		return value, err
	}
	return c.fetchFresh(ctx, q, key)
}

// fetchFresh runs the retry-wrapped chain and caches a success under key.
func (c *Chain) fetchFresh(ctx context.Context, q models.Query, key string) (any, error) {
	opts := c.retryOpts
	opts.OnRetry = func(attempt int, wait time.Duration, err error) {
		observability.FetchRetriesTotal.WithLabelValues(string(c.domain)).Inc()
		if c.logger != nil {
			c.logger.Debug("retrying strategy chain",
				zap.String("domain", string(c.domain)),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		}
		if c.retryOpts.OnRetry != nil {
			c.retryOpts.OnRetry(attempt, wait, err)
		}
	}

	// Each retry pass restarts from strategy 1, re-preferring the most
	// authoritative source on every attempt.
	res := retry.Do(ctx, func(ctx context.Context) (any, error) {
		return c.runChainOnce(ctx, q)
	}, opts)
	if !res.Success() {
		observability.ChainExhaustedTotal.WithLabelValues(string(c.domain)).Inc()
		if c.logger != nil {
			c.logger.Warn("strategy chain exhausted",
				zap.String("domain", string(c.domain)),
				zap.Int("attempts", res.Attempts),
				zap.Error(res.Err))
		}
		return nil, fmt.Errorf("%s after %d attempts: %w: %w", c.domain, res.Attempts, ErrNoRealData, res.Err)
	}

	if err := c.cache.Set(ctx, key, res.Data, c.ttl); err != nil && c.logger != nil {
		c.logger.Warn("cache set failed", zap.String("domain", string(c.domain)), zap.Error(err))
	}
	return res.Data, nil
}

// runChainOnce tries every strategy strictly in priority order and returns
// the first usable payload. Invalid payloads and failures both fall through to
// the next strategy without backoff; backoff happens only between whole-chain
// passes.
func (c *Chain) runChainOnce(ctx context.Context, q models.Query) (any, error) {
	var lastErr error
	for _, strat := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		breaker := c.breakers[strat.Name()]
		if breaker != nil && !breaker.Allow() {
			observability.StrategyFallthroughsTotal.WithLabelValues(string(c.domain), strat.Name(), "breaker_open").Inc()
			if lastErr == nil {
				lastErr = fmt.Errorf("%s: circuit breaker open", strat.Name())
			}
			continue
		}

		payload, err := strat.Fetch(ctx, q)
		if err == nil {
			if breaker != nil {
				breaker.RecordSuccess()
			}
			return payload, nil
		}
		if breaker != nil {
			breaker.RecordFailure()
		}

		reason := "failure"
		if errors.Is(err, upstream.ErrInvalidPayload) {
			reason = "invalid"
		}
		observability.StrategyFallthroughsTotal.WithLabelValues(string(c.domain), strat.Name(), reason).Inc()
		if c.logger != nil {
			c.logger.Debug("strategy fallthrough",
				zap.String("domain", string(c.domain)),
				zap.String("strategy", strat.Name()),
				zap.String("reason", reason),
				zap.Error(err))
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no strategies configured")
	}
	return nil, lastErr
}

// Key builds the deterministic cache key for one (domain, query) pair.
// Coordinates are fixed to 4 decimals so float formatting can never split
// logically identical requests across entries.
func Key(domain models.Domain, q models.Query) string {
	var b strings.Builder
	b.WriteString(string(domain))
	b.WriteByte(':')
	b.WriteString(strconv.FormatFloat(q.Lat, 'f', 4, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(q.Lon, 'f', 4, 64))
	if q.RadiusKm > 0 {
		b.WriteString(":r")
		b.WriteString(strconv.FormatFloat(q.RadiusKm, 'f', 1, 64))
	}
	if q.WindowHours > 0 {
		b.WriteString(":w")
		b.WriteString(strconv.Itoa(q.WindowHours))
	}
	if q.Year > 0 {
		b.WriteString(":y")
		b.WriteString(strconv.Itoa(q.Year))
	}
	if len(q.Pollutants) > 0 {
		b.WriteString(":p")
		b.WriteString(strings.Join(q.Pollutants, ","))
	}
	return b.String()
}
