// Package net is the thin, injectable network client: a REST function
// returning parsed JSON, and a duplex WebSocket assistant. Both are
// swappable, so the core can run against internal/mockexchange in tests or
// a host's shared HTTP stack in production.
package net

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/barfeed/internal/ohlcv"
	"github.com/sawpanic/barfeed/internal/ohlcv/errkind"
)

// ClientConfig configures a Client. Zero-valued fields are defaulted by
// NewClient.
type ClientConfig struct {
	RequestTimeout  time.Duration
	WSDialTimeout   time.Duration
	WSReceiveTimeout time.Duration
	UserAgent       string
	RPS             float64
	Burst           int
	Logger          *zerolog.Logger
}

// DefaultClientConfig fills every field with a sane default.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RequestTimeout:   10 * time.Second,
		WSDialTimeout:    10 * time.Second,
		WSReceiveTimeout: 60 * time.Second,
		UserAgent:        "barfeed/1.0 (+ohlcv-feed)",
		RPS:              8,
		Burst:            8,
	}
}

// Client implements ohlcv.HistoricalFetcher for REST and provides a
// reconnect-friendly WebSocket dial for streaming. It is safe for
// concurrent use by multiple feed controllers; each host gets its own
// rate limiter bucket and circuit breaker.
type Client struct {
	cfg      ClientConfig
	http     *http.Client
	limiter  *HostLimiter
	log      zerolog.Logger
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient builds a Client from cfg, defaulting any zero fields.
func NewClient(cfg ClientConfig) *Client {
	def := DefaultClientConfig()
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.WSDialTimeout == 0 {
		cfg.WSDialTimeout = def.WSDialTimeout
	}
	if cfg.WSReceiveTimeout == 0 {
		cfg.WSReceiveTimeout = def.WSReceiveTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.RPS == 0 {
		cfg.RPS = def.RPS
	}
	if cfg.Burst == 0 {
		cfg.Burst = def.Burst
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.RequestTimeout},
		limiter: NewHostLimiter(cfg.RPS, cfg.Burst),
		log:      logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (c *Client) breakerFor(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[host]
	if !ok {
		b = newBreaker(host)
		c.breakers[host] = b
	}
	return b
}

// FetchJSON issues a GET to rawURL with the given query params, respecting
// the per-host rate limiter and circuit breaker, and returns the decoded
// JSON body. Errors are tagged with an errkind.Kind: Transport for
// connection-level failures, RateLimit for 429, Protocol for any other
// non-2xx status.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, params map[string]string) (json.RawMessage, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errkind.New(errkind.Misuse, err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	if err := c.limiter.Wait(ctx, u.Host); err != nil {
		return nil, errkind.New(errkind.Cancelled, err)
	}

	breaker := c.breakerFor(u.Host)
	result, err := breaker.Execute(func() (any, error) {
		return c.doGet(ctx, u.String())
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errkind.New(errkind.Protocol, err)
		}
		return nil, err
	}
	return result.(json.RawMessage), nil
}

func (c *Client) doGet(ctx context.Context, fullURL string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, errkind.New(errkind.Misuse, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errkind.New(errkind.Cancelled, err)
		}
		return nil, errkind.New(errkind.Transport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errkind.New(errkind.Transport, err)
	}

	c.log.Debug().Str("url", fullURL).Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).Msg("ohlcv rest fetch")

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, errkind.RateLimited(fmt.Errorf("http 429: %s", string(body)), retryAfter)
	}
	if resp.StatusCode >= 400 {
		return nil, errkind.New(errkind.Protocol, fmt.Errorf("http %d: %s", resp.StatusCode, string(body)))
	}

	return json.RawMessage(body), nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := time.ParseDuration(header + "s"); err == nil {
		return secs
	}
	return 0
}

// WSDial opens a WebSocket connection to rawURL, respecting WSDialTimeout.
// It returns the ohlcv.WSConn interface rather than the concrete *WSConn so
// Client satisfies ohlcv.WSDialer.
func (c *Client) WSDial(ctx context.Context, rawURL string) (ohlcv.WSConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.WSDialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, rawURL, nil)
	if err != nil {
		return nil, errkind.New(errkind.Transport, err)
	}
	return &WSConn{conn: conn, receiveTimeout: c.cfg.WSReceiveTimeout, log: c.log}, nil
}

// WSConn wraps a gorilla/websocket connection with the read/write shape
// the streaming strategy needs: text-frame send, text-frame receive with a
// liveness timeout, and a close that unblocks any in-flight Receive.
type WSConn struct {
	conn           *websocket.Conn
	receiveTimeout time.Duration
	log            zerolog.Logger
}

// Send writes v as a JSON text frame.
func (w *WSConn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errkind.New(errkind.Misuse, err)
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errkind.New(errkind.Transport, err)
	}
	return nil
}

// SendText writes a raw text frame (used for ping/pong-shaped keep-alives
// that are not JSON).
func (w *WSConn) SendText(text string) error {
	if err := w.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return errkind.New(errkind.Transport, err)
	}
	return nil
}

// Ping sends a protocol-level WebSocket ping frame.
func (w *WSConn) Ping() error {
	if err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
		return errkind.New(errkind.Transport, err)
	}
	return nil
}

// Receive blocks for at most the configured receive timeout and returns
// the next text frame. A timeout is reported as a Transport error so the
// streaming state machine treats it the same as any other liveness
// failure.
func (w *WSConn) Receive() (json.RawMessage, error) {
	w.conn.SetReadDeadline(time.Now().Add(w.receiveTimeout))
	msgType, data, err := w.conn.ReadMessage()
	if err != nil {
		return nil, errkind.New(errkind.Transport, err)
	}
	if msgType != websocket.TextMessage {
		return nil, errkind.Newf(errkind.Shape, "unexpected frame type %d", msgType)
	}
	return json.RawMessage(data), nil
}

// Close closes the underlying connection; any goroutine blocked in
// Receive unblocks with a Transport error.
func (w *WSConn) Close() error {
	return w.conn.Close()
}
