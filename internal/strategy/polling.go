// Package strategy implements the two data-acquisition strategies:
// Polling and Streaming.
package strategy

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/barfeed/internal/bar"
	"github.com/sawpanic/barfeed/internal/metrics"
	"github.com/sawpanic/barfeed/internal/ohlcv"
	"github.com/sawpanic/barfeed/internal/ohlcv/errkind"
	"github.com/sawpanic/barfeed/internal/timeutil"
)

// PollingConfig parameterizes Polling. Zero-valued Limit and Lag are
// defaulted by NewPolling.
type PollingConfig struct {
	Pair     string
	Interval string
	Limit    int           // bars fetched per call
	Lag      time.Duration // delay past the interval boundary before fetching
	Logger   *zerolog.Logger
	Metrics  *metrics.Recorder
}

// DefaultPollingConfig fills Limit and Lag with conservative defaults.
func DefaultPollingConfig(pair, interval string) PollingConfig {
	return PollingConfig{Pair: pair, Interval: interval, Limit: 200, Lag: 2 * time.Second}
}

// Polling is the polling strategy: it wakes on interval boundaries,
// fetches the adapter's historical endpoint, and offers the result to the
// store. It owns its own timer and never gives up on failure — it logs
// and retries on the next tick.
type Polling struct {
	cfg     PollingConfig
	adapter ohlcv.Adapter
	fetcher ohlcv.HistoricalFetcher
	store   *bar.Store
	delta   int64
	log     zerolog.Logger
}

// NewPolling builds a Polling strategy. delta is the interval's duration
// in seconds, taken from the adapter's SupportedIntervals map by the
// caller (normally the feed controller).
func NewPolling(cfg PollingConfig, adapter ohlcv.Adapter, fetcher ohlcv.HistoricalFetcher, store *bar.Store, delta int64) *Polling {
	if cfg.Limit <= 0 {
		cfg.Limit = 200
	}
	if cfg.Lag <= 0 {
		cfg.Lag = 2 * time.Second
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Polling{cfg: cfg, adapter: adapter, fetcher: fetcher, store: store, delta: delta, log: logger.With().
		Str("exchange", adapter.ExchangeID()).Str("pair", cfg.Pair).Str("interval", cfg.Interval).Logger()}
}

// Run blocks until ctx is cancelled, fetching on every interval boundary
// plus the configured lag. It never returns an error; transport/shape
// failures are logged and retried after one period.
func (p *Polling) Run(ctx context.Context) {
	for {
		wait := p.timeUntilNextTick()
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if _, err := p.FetchHistory(ctx, nil, p.cfg.Limit); err != nil {
			if errkind.Is(err, errkind.Cancelled) {
				return
			}
			p.log.Warn().Err(err).Msg("poll tick failed, retrying next period")
		}
	}
}

func (p *Polling) timeUntilNextTick() time.Duration {
	now := timeutil.NowSeconds()
	nextBoundary := timeutil.RoundDown(now, p.delta) + p.delta
	target := time.Unix(nextBoundary, 0).Add(p.cfg.Lag)
	d := time.Until(target)
	if d < 0 {
		d = 0
	}
	return d
}

// FetchHistory performs a one-shot historical fetch independent of the
// Run loop. A nil start fetches the most recent `limit` bars; a non-nil
// start narrows to [*start, now]. It returns the bars inserted during the
// call (after store dedup/eviction rules are applied).
func (p *Polling) FetchHistory(ctx context.Context, start *int64, limit int) ([]bar.Bar, error) {
	if limit <= 0 {
		limit = p.cfg.Limit
	}

	params := p.adapter.RESTParams(p.cfg.Pair, p.cfg.Interval, start, limit)
	url := p.adapter.RESTURL()

	payload, err := p.dispatchFetch(ctx, url, params)
	if err != nil {
		p.cfg.Metrics.RESTError(p.adapter.ExchangeID(), errkind.KindOf(err).String())
		return nil, err
	}
	p.cfg.Metrics.RESTRequest(p.adapter.ExchangeID(), "success")

	bars, err := p.adapter.ParseREST(payload)
	if err != nil {
		p.cfg.Metrics.ShapeError(p.adapter.ExchangeID(), "rest")
		return nil, errkind.New(errkind.Shape, err)
	}

	inserted := make([]bar.Bar, 0, len(bars))
	for _, b := range bars {
		if p.store.Offer(b) {
			inserted = append(inserted, b)
			p.cfg.Metrics.BarInserted(p.adapter.ExchangeID(), p.cfg.Pair)
		}
	}
	return inserted, nil
}

// dispatchFetch honors the adapter's sync/async capability flag: a
// sync-only adapter's fetch is dispatched onto its own goroutine so a slow
// or misbehaving adapter implementation cannot stall the polling loop's
// own control flow; an async-capable adapter's fetch is awaited directly
// since it is already expected to cooperate with the scheduler.
func (p *Polling) dispatchFetch(ctx context.Context, url string, params map[string]string) (json.RawMessage, error) {
	if p.adapter.FetchesAsync() {
		return p.fetcher.FetchJSON(ctx, url, params)
	}

	type res struct {
		payload json.RawMessage
		err     error
	}
	ch := make(chan res, 1)
	go func() {
		payload, err := p.fetcher.FetchJSON(ctx, url, params)
		ch <- res{payload: payload, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, errkind.New(errkind.Cancelled, ctx.Err())
	case r := <-ch:
		return r.payload, r.err
	}
}
