package mockexchange

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/barfeed/internal/bar"
)

// ServerConfig configures a Server. Zero-valued fields are defaulted by
// NewServer.
type ServerConfig struct {
	Addr         string
	HistoryBars  int
	TickInterval time.Duration
	RateLimit    int
	RateWindow   time.Duration
	Seed         int64
	Retention    int
	Logger       *zerolog.Logger
}

// DefaultServerConfig fills every field with a sane default.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "127.0.0.1:0",
		HistoryBars:  200,
		TickInterval: time.Second,
		RateLimit:    100,
		RateWindow:   time.Second,
		Seed:         1,
		Retention:    1000,
	}
}

// Server is the generic mock exchange: it hosts HTTP routes and one
// WebSocket endpoint per plugin, applying the same
// network-condition/rate-limit envelope uniformly ahead of every plugin's
// exchange-specific handlers. The router is a mux-plus-http.Server shell
// expanded into per-plugin REST/WS routes.
type Server struct {
	cfg      ServerConfig
	router   *mux.Router
	upgrader websocket.Upgrader
	plugins  map[string]Plugin
	gen      *Generator
	hub      *Hub
	conds    *NetworkConditions
	limiter  *SlidingWindowLimiter
	log      zerolog.Logger

	httpSrv  *http.Server
	listener net.Listener

	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewServer builds a Server with the given plugins mounted.
func NewServer(cfg ServerConfig, plugins ...Plugin) *Server {
	def := DefaultServerConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.HistoryBars <= 0 {
		cfg.HistoryBars = def.HistoryBars
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = def.RateWindow
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	s := &Server{
		cfg:      cfg,
		router:   mux.NewRouter(),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		plugins:  make(map[string]Plugin, len(plugins)),
		gen:      NewGenerator(cfg.Seed, cfg.Retention),
		hub:      NewHub(logger),
		conds:    NewNetworkConditions(),
		limiter:  NewSlidingWindowLimiter(cfg.RateLimit, cfg.RateWindow),
		log:      logger,
	}
	for _, p := range plugins {
		s.plugins[p.ExchangeID()] = p
		s.mount(p)
	}
	return s
}

func (s *Server) mount(p Plugin) {
	envelope := func(h http.Handler) http.Handler {
		return s.conds.Middleware(s.limiter.Middleware(h))
	}
	s.router.Handle(p.RESTRoute(), envelope(s.restHandler(p))).Methods(http.MethodGet)
	s.router.Handle(p.WSRoute(), envelope(s.wsHandler(p)))
}

// RegisterPair seeds the shared generator with a pair's anchor price; all
// mounted plugins generate candles for the same underlying series,
// formatted into each exchange's own shape.
func (s *Server) RegisterPair(pair string, anchor float64) {
	s.gen.RegisterPair(pair, anchor)
}

// NetworkConditions returns the fault-injection control surface.
func (s *Server) NetworkConditions() *NetworkConditions { return s.conds }

// Generator returns the bar factory, exposed so scenario tests can inject
// trends/events directly.
func (s *Server) Generator() *Generator { return s.gen }

// Start binds the listener and begins serving, along with the background
// candle-generation loop that ticks every TickInterval and advances every
// registered series by however many interval boundaries have elapsed.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.httpSrv = &http.Server{Handler: s.router}

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("mock exchange: serve error")
		}
	}()

	s.wg.Add(1)
	go s.tickLoop(ctx)

	return nil
}

// Addr returns the actual bound address, useful when ServerConfig.Addr
// requested an ephemeral port ("127.0.0.1:0").
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops the background generator and gracefully closes the HTTP
// server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stop != nil {
		s.stop()
	}
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	s.wg.Wait()
	return err
}

func (s *Server) tickLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.broadcastFresh(s.gen.Advance(now.Unix()))
		}
	}
}

func (s *Server) broadcastFresh(fresh map[seriesKey][]bar.Bar) {
	for key, bars := range fresh {
		for _, p := range s.plugins {
			symbol := p.NormalizeSymbol(key.pair)
			subKey := p.SubscriptionKey(symbol, key.interval)
			for _, b := range bars {
				frame, err := p.FormatWSCandle(b, symbol, key.interval)
				if err != nil {
					s.log.Warn().Err(err).Str("exchange", p.ExchangeID()).Msg("mock exchange: format candle failed")
					continue
				}
				s.hub.broadcastCandle(subKey, frame)
			}
		}
	}
}

func (s *Server) restHandler(p Plugin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := p.ParseRESTQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		limit := q.Limit
		if limit <= 0 {
			limit = s.cfg.HistoryBars
		}
		now := time.Now().Unix()
		delta := IntervalSeconds[q.Interval]
		alignedNow := now
		if delta > 0 {
			alignedNow = now - now%delta
		}
		bars := s.gen.History(q.Symbol, q.Interval, alignedNow, s.cfg.HistoryBars)
		bars = filterBars(bars, q.Start, q.End, limit)

		body, err := p.FormatRESTCandles(bars, q.Symbol, q.Interval)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

func filterBars(bars []bar.Bar, start, end *int64, limit int) []bar.Bar {
	out := bars[:0]
	for _, b := range bars {
		if start != nil && b.OpenTime < *start {
			continue
		}
		if end != nil && b.OpenTime > *end {
			continue
		}
		out = append(out, b)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// wsHandler upgrades the connection, registers it with the hub, and runs
// its read loop: parse each frame as a subscribe/unsubscribe request, ack
// it, and on subscribe immediately push the current last bar for each
// (pair, interval) subscribed to.
func (s *Server) wsHandler(p Plugin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		id := s.hub.Register(conn)
		defer func() {
			s.hub.Unregister(id)
			_ = conn.Close()
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			reqs, err := p.ParseSubscribe(data)
			if err != nil {
				continue
			}
			if ack, err := p.FormatSubscribeAck(reqs); err == nil {
				s.hub.sendTo(id, ack)
			}
			for _, req := range reqs {
				symbol := p.NormalizeSymbol(req.Pair)
				key := p.SubscriptionKey(symbol, req.Interval)
				if req.Unsub {
					s.hub.Unsubscribe(id, key)
					continue
				}
				s.hub.Subscribe(id, key)
				now := time.Now().Unix()
				delta := IntervalSeconds[req.Interval]
				alignedNow := now
				if delta > 0 {
					alignedNow = now - now%delta
				}
				hist := s.gen.History(req.Pair, req.Interval, alignedNow, 1)
				if len(hist) == 0 {
					continue
				}
				last := hist[len(hist)-1]
				if frame, err := p.FormatWSCandle(last, symbol, req.Interval); err == nil {
					s.hub.sendTo(id, frame)
				}
			}
		}
	}
}
