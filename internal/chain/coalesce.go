package chain

import (
	"context"
	"sync"
	"time"
)

// inFlightRun tracks one chain run that multiple callers may wait on.
type inFlightRun struct {
	done   chan struct{}
	result any
	err    error
}

// coalescer shares one in-flight chain run among concurrent fetches for the
// same cache key, so a burst of dashboard loads costs one upstream pass.
type coalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRun
	timeout  time.Duration
}

func newCoalescer(timeout time.Duration) *coalescer {
	return &coalescer{
		inFlight: make(map[string]*inFlightRun),
		timeout:  timeout,
	}
}

// getOrDo runs fn for key, or waits on an already-running fn for the same
// key. shared reports whether this caller waited instead of running fn.
// Waiting respects both ctx and the coalescer timeout so a stuck run cannot
// block callers indefinitely.
func (co *coalescer) getOrDo(ctx context.Context, key string, fn func() (any, error)) (result any, shared bool, err error) {
	co.mu.Lock()
	run, exists := co.inFlight[key]
	if !exists {
		run = &inFlightRun{done: make(chan struct{})}
		co.inFlight[key] = run
		co.mu.Unlock()

		run.result, run.err = fn()
		close(run.done)

		co.mu.Lock()
		delete(co.inFlight, key)
		co.mu.Unlock()
		return run.result, false, run.err
	}
	co.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, co.timeout)
	defer cancel()
	select {
	case <-run.done:
		return run.result, true, run.err
	case <-waitCtx.Done():
		return nil, true, waitCtx.Err()
	}
}
