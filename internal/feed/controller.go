// Package feed implements the FeedController façade: the single public
// entry point that owns a store, an adapter, and one active acquisition
// strategy for a (exchange, pair, interval) triple, behind one struct with
// a validating constructor.
package feed

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/barfeed/internal/bar"
	"github.com/sawpanic/barfeed/internal/metrics"
	netpkg "github.com/sawpanic/barfeed/internal/net"
	"github.com/sawpanic/barfeed/internal/ohlcv"
	"github.com/sawpanic/barfeed/internal/ohlcv/errkind"
	"github.com/sawpanic/barfeed/internal/strategy"
)

// StrategyKind selects which acquisition strategy start() runs.
type StrategyKind int

const (
	// Auto prefers streaming when the adapter's WS interval table supports
	// the configured interval, falling back to polling otherwise.
	Auto StrategyKind = iota
	PollingKind
	WebsocketKind
)

func (k StrategyKind) String() string {
	switch k {
	case PollingKind:
		return "polling"
	case WebsocketKind:
		return "websocket"
	default:
		return "auto"
	}
}

// ControllerConfig parameterizes a Controller. HTTPClient and WSDialer
// default to a shared *internal/net.Client when nil; a host may supply its
// own rate-limiter/HTTP assistant/logger instead.
type ControllerConfig struct {
	Pair     string
	Interval string
	Capacity int

	HTTPClient ohlcv.HistoricalFetcher
	WSDialer   ohlcv.WSDialer

	Logger  *zerolog.Logger
	Metrics *metrics.Recorder

	Polling   strategy.PollingConfig
	Streaming strategy.StreamingConfig
}

// Controller is the FeedController.
type Controller struct {
	cfg     ControllerConfig
	adapter ohlcv.Adapter
	store   *bar.Store
	delta   int64
	log     zerolog.Logger

	mu      sync.Mutex
	running bool
	kind    StrategyKind
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewController validates and builds a Controller. Construction fails if
// the interval is not in the adapter's supported map, or if capacity is
// not positive.
func NewController(adapter ohlcv.Adapter, cfg ControllerConfig) (*Controller, error) {
	if cfg.Capacity <= 0 {
		return nil, errkind.Newf(errkind.Misuse, "feed: capacity must be positive, got %d", cfg.Capacity)
	}
	delta, ok := adapter.SupportedIntervals()[cfg.Interval]
	if !ok {
		return nil, errkind.Newf(errkind.Misuse, "feed: interval %q not supported by exchange %q", cfg.Interval, adapter.ExchangeID())
	}

	if cfg.HTTPClient == nil || cfg.WSDialer == nil {
		shared := netpkg.NewClient(netpkg.DefaultClientConfig())
		if cfg.HTTPClient == nil {
			cfg.HTTPClient = shared
		}
		if cfg.WSDialer == nil {
			cfg.WSDialer = shared
		}
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("exchange", adapter.ExchangeID()).
		Str("pair", cfg.Pair).Str("interval", cfg.Interval).Logger()

	return &Controller{
		cfg:     cfg,
		adapter: adapter,
		store:   bar.NewStore(delta, cfg.Capacity),
		delta:   delta,
		log:     logger,
		kind:    Auto,
	}, nil
}

// resolveKind turns Auto into a concrete choice based on the adapter's
// declared WS interval support: prefer streaming if the adapter supports
// the interval, else poll.
func (c *Controller) resolveKind(kind StrategyKind) StrategyKind {
	if kind != Auto {
		return kind
	}
	if _, ok := c.adapter.WSSupportedIntervals()[c.cfg.Interval]; ok {
		return WebsocketKind
	}
	return PollingKind
}

// Start launches the chosen strategy in the background. It is idempotent:
// calling Start again with the same resolved kind while already running is
// a no-op; calling it with a different kind while running is a Misuse
// error.
func (c *Controller) Start(kind StrategyKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	resolved := c.resolveKind(kind)
	if c.running {
		if c.kind == resolved {
			return nil
		}
		return errkind.Newf(errkind.Misuse, "feed: already running strategy %q, cannot start %q", c.kind, resolved)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.kind = resolved
	c.running = true

	c.wg.Add(1)
	switch resolved {
	case PollingKind:
		pcfg := c.cfg.Polling
		pcfg.Pair, pcfg.Interval = c.cfg.Pair, c.cfg.Interval
		if pcfg.Logger == nil {
			pcfg.Logger = &c.log
		}
		if pcfg.Metrics == nil {
			pcfg.Metrics = c.cfg.Metrics
		}
		p := strategy.NewPolling(pcfg, c.adapter, c.cfg.HTTPClient, c.store, c.delta)
		go func() {
			defer c.wg.Done()
			p.Run(ctx)
		}()
	case WebsocketKind:
		scfg := c.cfg.Streaming
		scfg.Pair, scfg.Interval = c.cfg.Pair, c.cfg.Interval
		if scfg.Logger == nil {
			scfg.Logger = &c.log
		}
		if scfg.Metrics == nil {
			scfg.Metrics = c.cfg.Metrics
		}
		s := strategy.NewStreaming(scfg, c.adapter, c.cfg.WSDialer, c.store, c.backfillFunc())
		go func() {
			defer c.wg.Done()
			s.Run(ctx)
		}()
	default:
		c.wg.Done()
		c.running = false
		return errkind.Newf(errkind.Misuse, "feed: unresolvable strategy kind %q", resolved)
	}

	c.log.Info().Str("strategy", resolved.String()).Msg("feed controller started")
	return nil
}

// backfillFunc binds a transient Polling instance's FetchHistory as the
// streaming strategy's backfill-on-reconnect hook.
func (c *Controller) backfillFunc() strategy.BackfillFunc {
	pcfg := c.cfg.Polling
	pcfg.Pair, pcfg.Interval = c.cfg.Pair, c.cfg.Interval
	pcfg.Logger = &c.log
	pcfg.Metrics = c.cfg.Metrics
	p := strategy.NewPolling(pcfg, c.adapter, c.cfg.HTTPClient, c.store, c.delta)
	return p.FetchHistory
}

// Stop cancels the running strategy and waits for it to unwind. It is
// idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.running = false
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	c.log.Info().Msg("feed controller stopped")
}

// FetchHistory performs a one-shot historical fetch independent of
// Start/Stop. A nil end fetches whatever the adapter's single REST call
// returns for [start, now]; a non-nil end additionally trims the result to
// open_time <= *end, since the adapter contract has no end parameter of
// its own.
func (c *Controller) FetchHistory(ctx context.Context, start, end *int64, limit int) ([]bar.Bar, error) {
	pcfg := c.cfg.Polling
	pcfg.Pair, pcfg.Interval = c.cfg.Pair, c.cfg.Interval
	pcfg.Logger = &c.log
	pcfg.Metrics = c.cfg.Metrics
	p := strategy.NewPolling(pcfg, c.adapter, c.cfg.HTTPClient, c.store, c.delta)

	bars, err := p.FetchHistory(ctx, start, limit)
	if err != nil {
		return nil, err
	}
	if end == nil {
		return bars, nil
	}
	trimmed := bars[:0]
	for _, b := range bars {
		if b.OpenTime <= *end {
			trimmed = append(trimmed, b)
		}
	}
	return trimmed, nil
}

// Bars returns a snapshot of the store's current sequence.
func (c *Controller) Bars() []bar.Bar { return c.store.Snapshot() }

// Table returns the ten-column tabular projection of the store's current
// sequence.
func (c *Controller) Table() bar.Table { return bar.ToTable(c.store.Snapshot()) }

// GapFree reports the store's equidistance check.
func (c *Controller) GapFree() bool { return c.store.SortedAndEquidistant() }

// Running reports whether a strategy is currently active, and which kind.
func (c *Controller) Running() (StrategyKind, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kind, c.running
}
