// Package traffic tracks per-domain refresh outcomes over a sliding window.
// It is the single source of truth for the health endpoint's degraded verdict
// and the per-domain error-rate gauges.
package traffic

import (
	"sync"
	"time"
)

var defaultTracker = NewTracker()

// Default returns the process-wide tracker shared by the coordinator, the
// health endpoint, and the error-rate gauges.
func Default() *Tracker {
	return defaultTracker
}

// RecordSuccess records a successful refresh outcome for domain.
func RecordSuccess(domain string) {
	defaultTracker.RecordSuccess(domain)
}

// RecordError records a failed refresh outcome for domain.
func RecordError(domain string) {
	defaultTracker.RecordError(domain)
}

// RecordDenied records a rate-limit denial (429) on the API surface.
func RecordDenied() {
	defaultTracker.RecordDenied()
}

// ErrorRate returns (errorCount, totalCount) for domain within the window.
func ErrorRate(domain string, window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(domain, window)
}

// WorstErrorRate returns the highest error fraction across all tracked
// domains within the window, with the domain it belongs to. Domains with no
// outcomes are skipped.
func WorstErrorRate(window time.Duration) (domain string, rate float64) {
	return defaultTracker.WorstErrorRate(window)
}

// DenialCount returns the number of rate-limit denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains sliding windows of outcome timestamps keyed by domain.
type Tracker struct {
	mu      sync.Mutex
	domains map[string]*outcomes
	denied  []time.Time
}

type outcomes struct {
	successTimes []time.Time
	errorTimes   []time.Time
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{domains: make(map[string]*outcomes)}
}

// RecordSuccess records a successful refresh outcome for domain.
func (t *Tracker) RecordSuccess(domain string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o := t.domainLocked(domain)
	now := time.Now()
	o.successTimes = append(o.successTimes, now)
	t.pruneLocked(now)
}

// RecordError records a failed refresh outcome for domain.
func (t *Tracker) RecordError(domain string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o := t.domainLocked(domain)
	now := time.Now()
	o.errorTimes = append(o.errorTimes, now)
	t.pruneLocked(now)
}

// RecordDenied records a rate-limit denial on the API surface.
func (t *Tracker) RecordDenied() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.denied = append(t.denied, now)
	t.pruneLocked(now)
}

// ErrorRate returns (errorCount, totalCount) for domain within the window.
// Denials are surface-level and never count toward a domain's error rate.
func (t *Tracker) ErrorRate(domain string, window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.domains[domain]
	if !ok {
		return 0, 0
	}
	cutoff := time.Now().Add(-window)
	errCount := countInWindow(o.errorTimes, cutoff)
	successCount := countInWindow(o.successTimes, cutoff)
	return errCount, errCount + successCount
}

// WorstErrorRate returns the highest per-domain error fraction in the window.
func (t *Tracker) WorstErrorRate(window time.Duration) (domain string, rate float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	for name, o := range t.domains {
		errCount := countInWindow(o.errorTimes, cutoff)
		total := errCount + countInWindow(o.successTimes, cutoff)
		if total == 0 {
			continue
		}
		if r := float64(errCount) / float64(total); domain == "" || r > rate {
			domain = name
			rate = r
		}
	}
	return domain, rate
}

// DenialCount returns the number of rate-limit denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countInWindow(t.denied, time.Now().Add(-window))
}

// Reset clears all recorded outcomes from the tracker.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.domains = make(map[string]*outcomes)
	t.denied = nil
}

// domainLocked returns the outcome slices for domain, creating them on first
// use. Must be called with the mutex held.
func (t *Tracker) domainLocked(domain string) *outcomes {
	o, ok := t.domains[domain]
	if !ok {
		o = &outcomes{}
		t.domains[domain] = o
	}
	return o
}

// countInWindow counts timestamps that are not before the cutoff time.
func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked removes timestamps older than maxAge (1 hour) from every
// outcome slice. Must be called with the mutex held.
func (t *Tracker) pruneLocked(now time.Time) {
	maxAge := time.Hour
	cutoff := now.Add(-maxAge)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	for _, o := range t.domains {
		prune(&o.successTimes)
		prune(&o.errorTimes)
	}
	prune(&t.denied)
}
