// Package timeutil provides the small set of timestamp helpers shared by
// every strategy and adapter: rounding down to an interval boundary,
// computing a historical fetch window, and reading the wall clock.
package timeutil

import "time"

// NowSeconds returns the current wall-clock time in integer Unix seconds.
func NowSeconds() int64 { return time.Now().Unix() }

// RoundDown rounds t down to the nearest multiple of delta seconds:
// RoundDown(t, delta) % delta == 0 and t - delta < RoundDown(t, delta) <= t,
// for delta > 0.
func RoundDown(t, delta int64) int64 {
	if delta <= 0 {
		return t
	}
	r := t % delta
	if r < 0 {
		r += delta
	}
	return t - r
}

// Window computes the (start, end) pair covering the last n bars of
// duration delta seconds, ending at the interval boundary at or before now.
func Window(now, delta int64, n int) (start, end int64) {
	end = RoundDown(now, delta)
	start = end - delta*int64(n)
	return start, end
}
