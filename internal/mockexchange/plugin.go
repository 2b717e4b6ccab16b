// Package mockexchange implements a generic HTTP+WebSocket server that
// reproduces enough of each exchange's public surface (REST candle
// history, WS candle streaming, subscribe/unsubscribe, rate limiting,
// induced network faults) to drive the full strategy state machine under
// controlled test conditions. The generic server shell (gorilla/mux +
// http.Server + graceful shutdown) and the WS accept/broadcast loop
// generalize one exchange's client-side connection handling into a server
// that drives many.
package mockexchange

import (
	"net/http"
	"strings"

	"github.com/sawpanic/barfeed/internal/bar"
)

// SubscribeRequest is one (pair, interval) pair parsed out of a client's
// subscribe frame.
type SubscribeRequest struct {
	Pair     string
	Interval string
	Unsub    bool
}

// RESTQuery is an exchange's REST candle-history query, normalized to a
// single {symbol, interval, start_time, end_time, limit} shape regardless
// of how the real API names its parameters.
type RESTQuery struct {
	Symbol   string
	Interval string
	Start    *int64
	End      *int64
	Limit    int
}

// Plugin is the per-exchange contract: the generic server supplies
// network-condition simulation, rate limiting, and bar storage; a plugin
// supplies only the exchange-specific wire shapes.
type Plugin interface {
	ExchangeID() string

	// NormalizeSymbol converts the generator's canonical pair name (e.g.
	// "BTC-USDT") into this exchange's own wire symbol (e.g. "BTCUSDT"),
	// mirroring the real adapter's FormatPair so the mock's frames look
	// exactly like the exchange's.
	NormalizeSymbol(pair string) string

	// RESTRoute is the path the generic server mounts this plugin's REST
	// candle handler at (e.g. "/api/v3/klines" for binance).
	RESTRoute() string
	// WSRoute is the path the generic server mounts this plugin's
	// WebSocket upgrade handler at.
	WSRoute() string

	// ParseRESTQuery normalizes an inbound REST request's query params.
	ParseRESTQuery(r *http.Request) (RESTQuery, error)
	// FormatRESTCandles renders bars into this exchange's REST response
	// body shape.
	FormatRESTCandles(bars []bar.Bar, symbol, interval string) ([]byte, error)

	// ParseSubscribe decodes a client's WS subscribe/unsubscribe frame.
	ParseSubscribe(frame []byte) ([]SubscribeRequest, error)
	// FormatSubscribeAck builds the acknowledgement frame for a batch of
	// subscribe requests.
	FormatSubscribeAck(reqs []SubscribeRequest) ([]byte, error)
	// FormatWSCandle renders one bar into this exchange's WS push-frame
	// shape.
	FormatWSCandle(b bar.Bar, symbol, interval string) ([]byte, error)

	// SubscriptionKey deterministically maps (pair, interval) to the
	// internal subscription identifier the hub keys broadcasts by.
	SubscriptionKey(symbol, interval string) string
}

// IntervalSeconds is shared across plugins: every plugin's interval names
// resolve to the same canonical seconds table the core adapters use, so
// the mock server's bar generator and a plugin's formatters agree on
// interval boundaries.
var IntervalSeconds = map[string]int64{
	"1m": 60, "3m": 180, "5m": 300, "15m": 900, "30m": 1800,
	"1h": 3600, "2h": 7200, "4h": 14400, "6h": 21600, "12h": 43200,
	"1d": 86400, "1w": 604800,
}

// knownQuoteAssets lists quote currencies long enough, and distinct
// enough from one another as suffixes, to split an unseparated exchange
// symbol like "BTCUSDT" back into a canonical "BTC-USDT" pair name.
var knownQuoteAssets = []string{"USDT", "USDC", "BUSD", "USD", "EUR", "BTC", "ETH"}

// CanonicalizePair recovers the generator's canonical "BASE-QUOTE" pair
// name from an exchange's own wire symbol, so every plugin's REST/WS
// handlers resolve back to the same underlying candle series regardless
// of how that exchange spells the pair on the wire. It is the inverse of
// each core adapter's FormatPair.
func CanonicalizePair(wireSymbol string) string {
	upper := strings.ToUpper(wireSymbol)
	upper = strings.TrimSuffix(upper, "-SWAP")
	if strings.Contains(upper, "-") {
		return upper
	}
	for _, q := range knownQuoteAssets {
		if strings.HasSuffix(upper, q) && len(upper) > len(q) {
			return upper[:len(upper)-len(q)] + "-" + q
		}
	}
	return upper
}
