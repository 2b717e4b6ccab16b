package net

import (
	"time"

	"github.com/sony/gobreaker"
)

// newBreaker builds a per-host gobreaker.CircuitBreaker: trip after 3
// consecutive failures, or after a minimum sample size once the failure
// ratio crosses 5%. Protocol and transport errors both count as failures
// here; a tripped breaker turns further REST calls into an immediate
// Protocol error until the breaker's timeout elapses, which is what lets
// the polling strategy's "wait one period, retry" loop actually back off
// instead of hammering a down host once per tick.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	return gobreaker.NewCircuitBreaker(st)
}
