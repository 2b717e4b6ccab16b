package net

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter rate-limits outgoing requests per host, built directly on
// golang.org/x/time/rate instead of a hand-rolled token bucket. One
// HostLimiter can back every adapter's Client since each adapter talks to a
// single host; it still keys by host so a shared Client can serve several
// exchanges without cross-throttling them.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewHostLimiter creates a limiter with the given requests-per-second and
// burst capacity, applied independently per host.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &HostLimiter{limiters: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (h *HostLimiter) get(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.rps), h.burst)
		h.limiters[host] = l
	}
	return l
}

// Wait blocks until a request to host is allowed or ctx is cancelled.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	return h.get(host).Wait(ctx)
}
