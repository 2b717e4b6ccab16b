package mockexchange

import (
	"math/rand"
	"sync"

	"github.com/sawpanic/barfeed/internal/bar"
)

// seriesKey identifies one (pair, interval) candle series.
type seriesKey struct {
	pair     string
	interval string
}

// series holds one (pair, interval) candle series' mutable generation
// state: the bars generated so far (newest last), the newest bar's open
// time, and the walk's current price. Anchors and trends are kept per pair
// on the Generator.
type series struct {
	bars     []bar.Bar
	lastOpen int64
	last     float64 // last close, the random walk's current position
}

// Generator is the bar factory: it produces an initial history and
// appends bars in real time, bounded by a max-deviation-from-anchor rule.
// Trending series and price-event injections are supported for scenario
// tests.
type Generator struct {
	mu sync.Mutex
	rng *rand.Rand

	anchors   map[string]float64
	trends    map[string]float64
	all       map[seriesKey]*series
	retention int
}

// NewGenerator builds a Generator seeded deterministically, so repeated
// test runs against the mock exchange see reproducible candle sequences.
func NewGenerator(seed int64, retention int) *Generator {
	if retention <= 0 {
		retention = 1000
	}
	return &Generator{
		rng:       rand.New(rand.NewSource(seed)),
		anchors:   make(map[string]float64),
		trends:    make(map[string]float64),
		all:       make(map[seriesKey]*series),
		retention: retention,
	}
}

// RegisterPair sets the anchor price a pair's random walk is bounded
// around.
func (g *Generator) RegisterPair(pair string, anchor float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.anchors[pair] = anchor
}

// SetTrend biases a pair's random walk with a per-bar additive drift,
// expressed as a fraction of the anchor price. Used by scenario tests that
// need a directional series rather than pure noise.
func (g *Generator) SetTrend(pair string, driftFraction float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.trends[pair] = driftFraction
}

// InjectEvent applies a one-off multiplicative shock to a pair's current
// price, the way a real exchange's book might gap on news.
func (g *Generator) InjectEvent(pair string, multiplier float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, s := range g.all {
		if k.pair == pair {
			s.last *= multiplier
		}
	}
}

// History returns (building it if necessary) the initial history for a
// (pair, interval) series ending at alignedNow, seeding count+1 bars (from
// alignedNow - count*delta through alignedNow inclusive) when the series
// doesn't exist yet.
func (g *Generator) History(pair, interval string, alignedNow int64, count int) []bar.Bar {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.seriesFor(pair, interval, alignedNow, count)
	out := make([]bar.Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Advance brings every known series up to date as of now: it computes how
// many interval boundaries have elapsed since the series' last bar,
// creates that many new bars, and returns the bars newly appended per
// series.
func (g *Generator) Advance(now int64) map[seriesKey][]bar.Bar {
	g.mu.Lock()
	defer g.mu.Unlock()
	fresh := make(map[seriesKey][]bar.Bar)
	for k, s := range g.all {
		delta := IntervalSeconds[k.interval]
		if delta == 0 {
			continue
		}
		alignedNow := now - now%delta
		var appended []bar.Bar
		for s.lastOpen+delta <= alignedNow {
			next := g.nextBar(k.pair, s.lastOpen+delta)
			s.bars = append(s.bars, next)
			s.lastOpen = next.OpenTime
			s.last = next.Close
			appended = append(appended, next)
		}
		if len(s.bars) > g.retention {
			s.bars = s.bars[len(s.bars)-g.retention:]
		}
		if len(appended) > 0 {
			fresh[k] = appended
		}
	}
	return fresh
}

// seriesFor returns the series for (pair, interval), lazily seeding its
// initial history if this is the first time it's been requested.
func (g *Generator) seriesFor(pair, interval string, alignedNow int64, count int) *series {
	delta := IntervalSeconds[interval]
	k := seriesKey{pair, interval}
	s, ok := g.all[k]
	if ok {
		return s
	}
	anchor := g.anchors[pair]
	if anchor <= 0 {
		anchor = 100
	}
	s = &series{last: anchor}
	g.all[k] = s
	start := alignedNow - delta*int64(count)
	for t := start; t <= alignedNow; t += delta {
		b := g.nextBar(pair, t)
		s.bars = append(s.bars, b)
		s.lastOpen = b.OpenTime
		s.last = b.Close
	}
	return s
}

// nextBar produces the next bar for pair at openTime, starting from the
// series' current price and walking it a bounded random step, biased by
// any configured trend, and clamped so it never drifts more than 30% from
// the registered anchor.
func (g *Generator) nextBar(pair string, openTime int64) bar.Bar {
	anchor := g.anchors[pair]
	if anchor <= 0 {
		anchor = 100
	}
	var last float64
	// Find current price: prefer an existing series for this pair at any
	// interval so a trend/event injection is visible across all of them;
	// fall back to anchor for the very first bar.
	found := false
	for sk, s := range g.all {
		if sk.pair == pair {
			last = s.last
			found = true
			break
		}
	}
	if !found {
		last = anchor
	}

	drift := g.trends[pair] * anchor
	stepPct := (g.rng.Float64() - 0.5) * 0.01 // +/-0.5% per bar
	next := last + last*stepPct + drift

	maxDev := anchor * 0.3
	if next > anchor+maxDev {
		next = anchor + maxDev
	}
	if next < anchor-maxDev {
		next = anchor - maxDev
	}
	if next <= 0 {
		next = anchor
	}

	high := next * (1 + g.rng.Float64()*0.002)
	low := next * (1 - g.rng.Float64()*0.002)
	if low > last {
		low = last
	}
	if high < last {
		high = last
	}

	return bar.Bar{
		OpenTime:            openTime,
		Open:                last,
		High:                high,
		Low:                 low,
		Close:               next,
		BaseVolume:          1 + g.rng.Float64()*50,
		QuoteVolume:         (1 + g.rng.Float64()*50) * next,
		TradeCount:          int64(10 + g.rng.Intn(200)),
		TakerBuyBaseVolume:  g.rng.Float64() * 25,
		TakerBuyQuoteVolume: g.rng.Float64() * 25 * next,
	}
}
