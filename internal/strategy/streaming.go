package strategy

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/barfeed/internal/bar"
	"github.com/sawpanic/barfeed/internal/metrics"
	"github.com/sawpanic/barfeed/internal/ohlcv"
	"github.com/sawpanic/barfeed/internal/ohlcv/errkind"
)

// State is one of the streaming strategy's states.
type State int

const (
	Idle State = iota
	Connecting
	Subscribing
	Streaming
	Backoff
	Terminal
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Subscribing:
		return "subscribing"
	case Streaming:
		return "streaming"
	case Backoff:
		return "backoff"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// BackfillFunc performs a bounded historical fetch of at most limit bars
// from start (the most recent bars when start is nil) and
// offers the results to the store; it is the polling strategy's
// FetchHistory bound to a specific range.
type BackfillFunc func(ctx context.Context, start *int64, limit int) ([]bar.Bar, error)

// StreamingConfig parameterizes StreamingStrategy. SubscribeTimeout is
// checked only when Receive returns an error before the first frame: past
// it, the failure is logged as a subscribe timeout. A Receive that is still
// blocked is not interrupted, so the move to BACKOFF waits for the
// transport's own receive timeout.
type StreamingConfig struct {
	Pair             string
	Interval         string
	SubscribeTimeout time.Duration
	BackoffBase      time.Duration
	BackoffCap       time.Duration
	BackfillLimit    int
	Logger           *zerolog.Logger
	Metrics          *metrics.Recorder
}

// DefaultStreamingConfig fills in conservative defaults.
func DefaultStreamingConfig(pair, interval string) StreamingConfig {
	return StreamingConfig{
		Pair:             pair,
		Interval:         interval,
		SubscribeTimeout: 10 * time.Second,
		BackoffBase:      500 * time.Millisecond,
		BackoffCap:       30 * time.Second,
		BackfillLimit:    200,
	}
}

// StreamingStrategy implements the streaming strategy state machine:
// connect, subscribe, stream, keep-alive, reconnect-with-backoff, and a
// bounded historical backfill on every transition into SUBSCRIBING.
type StreamingStrategy struct {
	cfg      StreamingConfig
	adapter  ohlcv.Adapter
	dialer   ohlcv.WSDialer
	store    *bar.Store
	backfill BackfillFunc
	log      zerolog.Logger

	mu    sync.RWMutex
	state State
}

// NewStreaming builds a StreamingStrategy.
func NewStreaming(cfg StreamingConfig, adapter ohlcv.Adapter, dialer ohlcv.WSDialer, store *bar.Store, backfill BackfillFunc) *StreamingStrategy {
	def := DefaultStreamingConfig(cfg.Pair, cfg.Interval)
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = def.SubscribeTimeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = def.BackoffCap
	}
	if cfg.BackfillLimit <= 0 {
		cfg.BackfillLimit = def.BackfillLimit
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &StreamingStrategy{
		cfg: cfg, adapter: adapter, dialer: dialer, store: store, backfill: backfill,
		state: Idle,
		log: logger.With().Str("exchange", adapter.ExchangeID()).
			Str("pair", cfg.Pair).Str("interval", cfg.Interval).Logger(),
	}
}

// State returns the strategy's current state.
func (s *StreamingStrategy) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *StreamingStrategy) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.log.Debug().Str("state", st.String()).Msg("streaming state transition")
	s.cfg.Metrics.StreamState(s.adapter.ExchangeID(), s.cfg.Pair, int(st))
}

// Run drives the state machine until ctx is cancelled, transitioning to
// TERMINAL. It never returns an error to the caller; Transport/Protocol
// failures only ever manifest as additional BACKOFF cycles.
func (s *StreamingStrategy) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			s.setState(Terminal)
			return
		}

		if attempt > 0 {
			s.cfg.Metrics.WSReconnect(s.adapter.ExchangeID())
		}
		s.setState(Connecting)
		conn, err := s.dialer.WSDial(ctx, s.adapter.WSURL())
		if err != nil {
			if ctx.Err() != nil {
				s.setState(Terminal)
				return
			}
			s.log.Warn().Err(err).Msg("ws open failed")
			attempt = s.backoff(ctx, attempt)
			continue
		}

		streamed := s.runConnection(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			s.setState(Terminal)
			return
		}
		if streamed {
			attempt = 0 // a successful STREAMING period resets the backoff attempt counter
		}
		attempt = s.backoff(ctx, attempt)
	}
}

// runConnection drives SUBSCRIBING -> STREAMING -> (BACKOFF on error) for
// one WebSocket connection. It returns true iff the connection reached
// STREAMING at least once, which resets the backoff attempt counter.
func (s *StreamingStrategy) runConnection(ctx context.Context, conn ohlcv.WSConn) bool {
	s.setState(Subscribing)

	if err := conn.Send(s.adapter.WSSubscribePayload(s.cfg.Pair, s.cfg.Interval)); err != nil {
		s.log.Warn().Err(err).Msg("ws subscribe send failed")
		return false
	}
	if err := s.runBackfill(ctx); err != nil {
		s.log.Warn().Err(err).Msg("backfill-on-subscribe failed")
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if ka, ok := s.adapter.KeepAlive(); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.keepAliveLoop(connCtx, conn, ka)
		}()
	}
	defer wg.Wait()

	subscribed := false
	subscribeDeadline := time.Now().Add(s.cfg.SubscribeTimeout)

	for {
		if ctx.Err() != nil {
			return subscribed
		}

		frame, err := conn.Receive()
		if err != nil {
			if !subscribed && time.Now().After(subscribeDeadline) {
				s.log.Warn().Msg("subscribe timed out")
			} else {
				s.log.Debug().Err(err).Msg("ws receive ended")
			}
			return subscribed
		}

		bars, ok := s.adapter.ParseWS(frame)
		if !subscribed {
			subscribed = true
			s.setState(Streaming)
		}
		if !ok {
			continue // ack, heartbeat, or another channel's frame
		}
		for _, b := range bars {
			if s.store.Offer(b) {
				s.cfg.Metrics.BarInserted(s.adapter.ExchangeID(), s.cfg.Pair)
			}
		}
	}
}

// runBackfill performs the bounded historical fetch on reconnect: range is
// [last_bar_open_time, now], or a default window if the store is empty.
func (s *StreamingStrategy) runBackfill(ctx context.Context) error {
	var start *int64
	if newest, ok := s.store.Newest(); ok {
		t := newest.OpenTime
		start = &t
	}
	_, err := s.backfill(ctx, start, s.cfg.BackfillLimit)
	return err
}

func (s *StreamingStrategy) keepAliveLoop(ctx context.Context, conn ohlcv.WSConn, ka ohlcv.KeepAliveSettings) {
	ticker := time.NewTicker(ka.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var err error
			if ka.Payload == nil {
				err = conn.Ping()
			} else if text, isText := ka.Payload.(string); isText {
				err = conn.SendText(text)
			} else {
				err = conn.Send(ka.Payload)
			}
			if err != nil {
				s.log.Warn().Err(err).Msg("keep-alive send failed")
				return
			}
		}
	}
}

// backoff waits min(cap, base * 2^attempt) plus jitter, or returns
// immediately if ctx is cancelled. It returns the next attempt count.
func (s *StreamingStrategy) backoff(ctx context.Context, attempt int) int {
	s.setState(Backoff)

	delay := time.Duration(float64(s.cfg.BackoffBase) * math.Pow(2, float64(attempt)))
	if delay > s.cfg.BackoffCap {
		delay = s.cfg.BackoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	delay += jitter

	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
	if errkind.Recoverable(ctx.Err()) && attempt < 30 {
		return attempt + 1
	}
	return attempt
}
