// Package coordinator owns the dashboard state: one source chain per domain,
// a per-domain status record, and the refresh cycle that keeps both current.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/envlens/envmonitor-service/internal/cache"
	"github.com/envlens/envmonitor-service/internal/chain"
	"github.com/envlens/envmonitor-service/internal/models"
	"github.com/envlens/envmonitor-service/internal/observability"
	"github.com/envlens/envmonitor-service/internal/processor"
	"github.com/envlens/envmonitor-service/internal/traffic"
)

// ErrUnknownDomain is returned for a domain the coordinator has no chain for.
var ErrUnknownDomain = errors.New("unknown domain")

// Coordinator runs refresh cycles across every configured domain and holds
// the last known per-domain status. A failed refresh never blanks the last
// good payload.
type Coordinator struct {
	mu       sync.Mutex
	statuses map[models.Domain]*models.DomainStatus

	chains  map[models.Domain]*chain.Chain
	cache   cache.Cache
	query   models.Query
	tracker *traffic.Tracker
	logger  *zap.Logger
	now     func() time.Time
}

// Config assembles a Coordinator.
type Config struct {
	Chains map[models.Domain]*chain.Chain
	Cache  cache.Cache
	// Query is the dashboard's configured location and parameters, shared by
	// every domain refresh.
	Query   models.Query
	Tracker *traffic.Tracker
	Logger  *zap.Logger
}

// New creates a Coordinator with every domain in the loading state.
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		statuses: make(map[models.Domain]*models.DomainStatus, len(cfg.Chains)),
		chains:   cfg.Chains,
		cache:    cfg.Cache,
		query:    cfg.Query,
		tracker:  cfg.Tracker,
		logger:   cfg.Logger,
		now:      time.Now,
	}
	for domain := range cfg.Chains {
		c.statuses[domain] = &models.DomainStatus{Domain: domain, State: models.StateLoading}
		observability.RecordDomainState(string(domain), string(models.StateLoading))
	}
	return c
}

// Domains returns the configured domains in stable order.
func (c *Coordinator) Domains() []models.Domain {
	out := make([]models.Domain, 0, len(c.chains))
	for _, d := range models.AllDomains() {
		if _, ok := c.chains[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// FetchAll refreshes every domain concurrently. force clears the cache first
// so every chain re-fetches from its sources. One domain's failure never
// affects another; the returned error aggregates the failures.
func (c *Coordinator) FetchAll(ctx context.Context, force bool) error {
	trigger := "auto"
	if force {
		trigger = "force"
		if err := c.cache.Clear(ctx); err != nil {
			if c.logger != nil {
				c.logger.Warn("cache clear failed", zap.Error(err))
			}
		} else {
			observability.CacheClearsTotal.Inc()
		}
	}
	observability.RefreshCyclesTotal.WithLabelValues(trigger).Inc()

	start := c.now()
	domains := c.Domains()
	var wg sync.WaitGroup
	errCh := make(chan error, len(domains))
	for _, domain := range domains {
		domain := domain
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.RefreshOne(ctx, domain); err != nil {
				errCh <- fmt.Errorf("%s: %w", domain, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if c.logger != nil {
		c.logger.Info("refresh cycle complete",
			zap.String("trigger", trigger),
			zap.Int("domains", len(domains)),
			zap.Int("errors", len(errs)),
			zap.Duration("duration", c.now().Sub(start)))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// RefreshOne runs a single domain's chain and updates its status record.
func (c *Coordinator) RefreshOne(ctx context.Context, domain models.Domain) error {
	ch, ok := c.chains[domain]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}

	c.setLoading(domain)

	raw, err := ch.Fetch(ctx, c.query)
	if err != nil {
		c.recordFailure(domain, err)
		return err
	}

	payload, err := processor.Normalize(domain, raw)
	if err != nil {
		c.recordFailure(domain, err)
		return err
	}

	now := c.now()
	c.mu.Lock()
	st := c.statuses[domain]
	st.State = models.StateSuccess
	st.LastTimestamp = &now
	st.LastPayload = payload
	st.LastError = ""
	c.mu.Unlock()

	if c.tracker != nil {
		c.tracker.RecordSuccess(string(domain))
	}
	observability.RecordDomainState(string(domain), string(models.StateSuccess))
	return nil
}

// setLoading flips a domain to loading without touching its last payload.
func (c *Coordinator) setLoading(domain models.Domain) {
	c.mu.Lock()
	c.statuses[domain].State = models.StateLoading
	c.mu.Unlock()
	observability.RecordDomainState(string(domain), string(models.StateLoading))
}

// recordFailure marks a failed refresh. The previous payload and timestamp
// survive so the dashboard keeps showing stale data with an honest label.
func (c *Coordinator) recordFailure(domain models.Domain, err error) {
	c.mu.Lock()
	st := c.statuses[domain]
	if errors.Is(err, chain.ErrNoRealData) && st.LastPayload == nil {
		st.State = models.StateNoData
	} else {
		st.State = models.StateError
	}
	st.LastError = err.Error()
	state := st.State
	c.mu.Unlock()

	if c.tracker != nil {
		c.tracker.RecordError(string(domain))
	}
	observability.RecordDomainState(string(domain), string(state))
	if c.logger != nil {
		c.logger.Warn("domain refresh failed",
			zap.String("domain", string(domain)),
			zap.String("state", string(state)),
			zap.Error(err))
	}
}

// Status returns a copy of one domain's status.
func (c *Coordinator) Status(domain models.Domain) (models.DomainStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.statuses[domain]
	if !ok {
		return models.DomainStatus{}, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	return *st, nil
}

// Snapshot returns a copy of every domain's status keyed by domain.
func (c *Coordinator) Snapshot() map[models.Domain]models.DomainStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[models.Domain]models.DomainStatus, len(c.statuses))
	for domain, st := range c.statuses {
		out[domain] = *st
	}
	return out
}

// CacheStats reports the backing cache's entry stats.
func (c *Coordinator) CacheStats(ctx context.Context) (cache.Stats, error) {
	return c.cache.Stats(ctx)
}

// RunAutoRefresh runs an initial full refresh, then refreshes at the given
// interval until ctx is done.
func (c *Coordinator) RunAutoRefresh(ctx context.Context, interval time.Duration) error {
	if err := c.FetchAll(ctx, false); err != nil && c.logger != nil {
		c.logger.Warn("initial refresh incomplete", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.FetchAll(ctx, false); err != nil && c.logger != nil {
				c.logger.Warn("periodic refresh incomplete", zap.Error(err))
			}
		}
	}
}
