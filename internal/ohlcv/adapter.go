// Package ohlcv holds the exchange adapter contract, the interval table
// shape, timestamp normalization, and the process-wide exchange registry.
// Nothing exchange-specific lives here; concrete adapters live under
// internal/adapters/<exchange>.
package ohlcv

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/barfeed/internal/bar"
)

// TimestampUnit is the wire unit an adapter declares; ConvertToExchange
// encodes a seconds timestamp in it. EnsureSeconds does not take a unit and
// infers one from the value's magnitude instead.
type TimestampUnit int

const (
	Seconds TimestampUnit = iota
	Milliseconds
	Microseconds
	ISO8601
	UndefinedUnit
)

// IntervalTable maps a canonical interval name ("1m", "1h", ...) to its
// duration in seconds.
type IntervalTable map[string]int64

// Endpoints holds the two URLs an adapter talks to. They are constructor
// parameters, not package-level constants, precisely so that tests can
// redirect an adapter at the mock exchange simulator without mutating any
// global state.
type Endpoints struct {
	REST string
	WS   string
}

// Adapter is the capability set a single (exchange, market-type) module
// must provide. FetchesAsync and FetchesSync are mutually exclusive;
// exactly one must be true.
type Adapter interface {
	ExchangeID() string
	FormatPair(pair string) string
	RESTURL() string
	WSURL() string
	SupportedIntervals() IntervalTable
	WSSupportedIntervals() map[string]struct{}
	RESTParams(pair, interval string, start *int64, limit int) map[string]string
	ParseREST(payload json.RawMessage) ([]bar.Bar, error)
	WSSubscribePayload(pair, interval string) any
	ParseWS(frame json.RawMessage) ([]bar.Bar, bool)

	TimestampUnit() TimestampUnit
	FetchesAsync() bool
	FetchesSync() bool

	// KeepAlive returns the exchange's client-initiated heartbeat settings,
	// or ok=false if the adapter relies on the transport instead.
	KeepAlive() (KeepAliveSettings, bool)
}

// KeepAliveSettings describes the client-initiated heartbeat a streaming
// strategy must send to keep a WebSocket connection alive.
type KeepAliveSettings struct {
	Interval time.Duration
	Payload  any // nil for a protocol-level ping
}

// HistoricalFetcher is the synchronous half of RESTParams/ParseREST: given
// params already built by RESTParams, perform the HTTP round trip. It is
// implemented by internal/net.Client and injected into the polling strategy
// (through the feed controller), so adapters stay transport-agnostic; it is
// declared here because fetching is part of the adapter's own capability
// surface (FetchesAsync/FetchesSync).
type HistoricalFetcher interface {
	FetchJSON(ctx context.Context, url string, params map[string]string) (json.RawMessage, error)
}

// WSDialer opens a WebSocket connection; together with HistoricalFetcher it
// forms the injectable network surface the strategies depend on.
// internal/net.Client implements this; the streaming strategy depends only
// on the interface so it can be driven by internal/mockexchange in tests.
type WSDialer interface {
	WSDial(ctx context.Context, url string) (WSConn, error)
}

// WSConn is the per-connection assistant the streaming strategy drives:
// send, receive, ping, close. internal/net.WSConn implements this.
type WSConn interface {
	Send(v any) error
	SendText(text string) error
	Ping() error
	Receive() (payload json.RawMessage, err error)
	Close() error
}

// EnsureSeconds converts a raw timestamp of unknown magnitude/shape into
// integer Unix seconds, using a magnitude heuristic: values above 10^16 are
// nanoseconds, above 10^13 are microseconds, above 10^10 are milliseconds,
// otherwise seconds. Strings are parsed as numeric first, then as RFC 3339
// (UTC assumed when no offset is present).
func EnsureSeconds(v any) (int64, error) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return ensureSecondsFromMagnitude(f), nil
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.Unix(), nil
		}
		if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC); err == nil {
			return t.Unix(), nil
		}
		return 0, fmt.Errorf("ensure_seconds: unparsable timestamp %q", s)
	case int64:
		switch {
		case x > 1e16:
			return x / 1_000_000_000, nil
		case x > 1e13:
			return x / 1_000_000, nil
		case x > 1e10:
			return x / 1_000, nil
		default:
			return x, nil
		}
	case int:
		return EnsureSeconds(int64(x))
	case float64:
		return ensureSecondsFromMagnitude(x), nil
	case time.Time:
		return x.Unix(), nil
	default:
		return 0, fmt.Errorf("ensure_seconds: unsupported type %T", v)
	}
}

func ensureSecondsFromMagnitude(f float64) int64 {
	switch {
	case f > 1e16:
		return int64(f / 1e9)
	case f > 1e13:
		return int64(f / 1e6)
	case f > 1e10:
		return int64(f / 1e3)
	default:
		return int64(f)
	}
}

// ConvertToExchange converts a Unix-seconds timestamp into the unit an
// adapter's TimestampUnit declares. ISO8601/Undefined return the seconds
// value formatted as RFC 3339 / unchanged respectively, so callers can
// always format the result into RESTParams without a type switch.
func ConvertToExchange(unit TimestampUnit, tSeconds int64) any {
	switch unit {
	case Milliseconds:
		return tSeconds * 1000
	case Microseconds:
		return tSeconds * 1_000_000
	case ISO8601:
		return time.Unix(tSeconds, 0).UTC().Format(time.RFC3339)
	default:
		return tSeconds
	}
}
