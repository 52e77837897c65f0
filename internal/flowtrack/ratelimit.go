package flowtrack

import (
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/firestorm/internal/metrics"
)

const defaultRateLimitWindow = 10 * time.Second

// rateLimiter caps the fragments accepted per source address within a
// fixed window. Counters are dropped wholesale when the window rolls over.
type rateLimiter struct {
	mu          sync.Mutex
	current     map[netip.Addr]*atomic.Int64
	windowStart time.Time
	window      time.Duration
	max         int64

	rejected atomic.Int64
}

// newRateLimiter returns nil when maxPerWindow disables limiting.
func newRateLimiter(maxPerWindow int, window time.Duration) *rateLimiter {
	if maxPerWindow <= 0 {
		return nil
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return &rateLimiter{
		current: make(map[netip.Addr]*atomic.Int64),
		window:  window,
		max:     int64(maxPerWindow),
	}
}

// allow counts one fragment from src at now and reports whether it is
// within the limit.
func (l *rateLimiter) allow(src netip.Addr, now time.Time) bool {
	l.mu.Lock()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		l.current = make(map[netip.Addr]*atomic.Int64)
		l.windowStart = now
	}
	counter, ok := l.current[src]
	if !ok {
		counter = &atomic.Int64{}
		l.current[src] = counter
	}
	l.mu.Unlock()

	if counter.Add(1) > l.max {
		l.rejected.Add(1)
		metrics.FlowFragmentsRejectedTotal.Inc()
		return false
	}
	return true
}

func (l *rateLimiter) activeSources() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.current)
}
