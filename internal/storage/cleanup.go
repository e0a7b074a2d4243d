package storage

import (
	"sync"
	"sync/atomic"
	"time"
)

// cleanupGate runs an expiry sweep at most once per interval across goroutines.
type cleanupGate struct {
	mu       sync.Mutex
	last     atomic.Int64
	interval time.Duration
}

func newCleanupGate(interval time.Duration, now time.Time) *cleanupGate {
	g := &cleanupGate{interval: interval}
	g.last.Store(now.Unix())
	return g
}

func (g *cleanupGate) due(now time.Time) bool {
	return now.Sub(time.Unix(g.last.Load(), 0)) >= g.interval
}

// maybeRun calls sweep when the interval has elapsed and records success.
func (g *cleanupGate) maybeRun(now time.Time, sweep func(now time.Time) error) error {
	if !g.due(now) {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.due(now) {
		return nil
	}
	if err := sweep(now); err != nil {
		return err
	}
	g.last.Store(now.Unix())
	return nil
}

// rewind pushes the last sweep back so the next call is due; used by tests.
func (g *cleanupGate) rewind(d time.Duration) {
	g.last.Store(time.Now().Add(-d).Unix())
}
