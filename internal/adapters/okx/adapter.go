// Package okx is the candle adapter for OKX spot and perpetual swap
// markets, grounded on the guard/baseURL/httpClient constructor shape of
// internal/providers/adapters/okx.go, adapted to OKX's arrays-of-strings
// REST envelope and its candle<interval> WS channel.
package okx

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/barfeed/internal/bar"
	"github.com/sawpanic/barfeed/internal/ohlcv"
)

func init() {
	ohlcv.Global().MustRegister("okx", NewSpot)
	ohlcv.Global().MustRegister("okx-perp", NewPerpetual)
}

var intervals = ohlcv.IntervalTable{
	"1m": 60, "3m": 180, "5m": 300, "15m": 900, "30m": 1800,
	"1h": 3600, "2h": 7200, "4h": 14400, "6h": 21600, "12h": 43200,
	"1d": 86400, "1w": 604800,
}

var wsBarName = map[string]string{
	"1m": "candle1m", "3m": "candle3m", "5m": "candle5m", "15m": "candle15m",
	"30m": "candle30m", "1h": "candle1H", "2h": "candle2H", "4h": "candle4H",
	"6h": "candle6H", "12h": "candle12H", "1d": "candle1D", "1w": "candle1W",
}

type market int

const (
	spot market = iota
	perpetual
)

type adapter struct {
	m  market
	ep ohlcv.Endpoints
}

// NewSpot builds the OKX spot candle adapter.
func NewSpot(ep ohlcv.Endpoints) ohlcv.Adapter { return &adapter{m: spot, ep: defaultEndpoints(ep)} }

// NewPerpetual builds the OKX perpetual swap candle adapter. OKX serves
// both markets from the same REST/WS hosts, distinguished only by the
// instId suffix ("-SWAP"), so the endpoints are shared.
func NewPerpetual(ep ohlcv.Endpoints) ohlcv.Adapter {
	return &adapter{m: perpetual, ep: defaultEndpoints(ep)}
}

func defaultEndpoints(ep ohlcv.Endpoints) ohlcv.Endpoints {
	if ep.REST == "" {
		ep.REST = "https://www.okx.com/api/v5/market/candles"
	}
	if ep.WS == "" {
		ep.WS = "wss://ws.okx.com:8443/ws/v5/public"
	}
	return ep
}

func (a *adapter) ExchangeID() string {
	if a.m == perpetual {
		return "okx-perp"
	}
	return "okx"
}

// FormatPair turns "btc-usdt" into OKX's instId "BTC-USDT", appending the
// perpetual swap suffix when this adapter is the perpetual variant.
func (a *adapter) FormatPair(pair string) string {
	norm := strings.ToUpper(strings.NewReplacer("/", "-", "_", "-").Replace(pair))
	if a.m == perpetual && !strings.HasSuffix(norm, "-SWAP") {
		norm += "-SWAP"
	}
	return norm
}

func (a *adapter) RESTURL() string { return a.ep.REST }
func (a *adapter) WSURL() string   { return a.ep.WS }

func (a *adapter) SupportedIntervals() ohlcv.IntervalTable { return intervals }

func (a *adapter) WSSupportedIntervals() map[string]struct{} {
	out := make(map[string]struct{}, len(intervals))
	for k := range intervals {
		out[k] = struct{}{}
	}
	return out
}

func (a *adapter) RESTParams(pair, interval string, start *int64, limit int) map[string]string {
	params := map[string]string{
		"instId": a.FormatPair(pair),
		"bar":    restBarName(interval),
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	if start != nil {
		params["before"] = fmt.Sprintf("%v", ohlcv.ConvertToExchange(a.TimestampUnit(), *start))
	}
	return params
}

func restBarName(interval string) string {
	switch interval {
	case "1h":
		return "1H"
	case "2h":
		return "2H"
	case "4h":
		return "4H"
	case "6h":
		return "6H"
	case "12h":
		return "12H"
	case "1d":
		return "1D"
	case "1w":
		return "1W"
	default:
		return interval
	}
}

// restEnvelope is OKX's {code, msg, data} REST wrapper.
type restEnvelope struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// ParseREST decodes OKX's arrays-of-strings candle rows:
// [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm].
func (a *adapter) ParseREST(payload json.RawMessage) ([]bar.Bar, error) {
	var env restEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("okx: decode candles: %w", err)
	}
	if env.Code != "" && env.Code != "0" {
		return nil, fmt.Errorf("okx: api error %s: %s", env.Code, env.Msg)
	}
	bars := make([]bar.Bar, 0, len(env.Data))
	for _, row := range env.Data {
		b, ok := parseCandleRow(row)
		if !ok {
			continue
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseCandleRow(row []string) (bar.Bar, bool) {
	if len(row) < 7 {
		return bar.Bar{}, false
	}
	openTime, err := ohlcv.EnsureSeconds(row[0])
	if err != nil {
		return bar.Bar{}, false
	}
	return bar.Bar{
		OpenTime:   openTime,
		Open:       parseF(row[1]),
		High:       parseF(row[2]),
		Low:        parseF(row[3]),
		Close:      parseF(row[4]),
		BaseVolume: parseF(row[5]),
		QuoteVolume: parseF(row[6]),
	}, true
}

func (a *adapter) WSSubscribePayload(pair, interval string) any {
	return map[string]any{
		"op": "subscribe",
		"args": []map[string]string{
			{"channel": wsBarName[interval], "instId": a.FormatPair(pair)},
		},
	}
}

// wsFrame is OKX's push-data envelope: {arg: {channel, instId}, data: [[...]]}.
type wsFrame struct {
	Arg struct {
		Channel string `json:"channel"`
		InstId  string `json:"instId"`
	} `json:"arg"`
	Data [][]string `json:"data"`
}

func (a *adapter) ParseWS(frame json.RawMessage) ([]bar.Bar, bool) {
	var f wsFrame
	if err := json.Unmarshal(frame, &f); err != nil || !strings.HasPrefix(f.Arg.Channel, "candle") {
		return nil, false
	}
	bars := make([]bar.Bar, 0, len(f.Data))
	for _, row := range f.Data {
		b, ok := parseCandleRow(row)
		if !ok {
			continue
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, false
	}
	return bars, true
}

func (a *adapter) TimestampUnit() ohlcv.TimestampUnit { return ohlcv.Milliseconds }
func (a *adapter) FetchesAsync() bool                 { return true }
func (a *adapter) FetchesSync() bool                  { return false }

// KeepAlive sends the literal text "ping" every 20 seconds; OKX replies
// with "pong" and drops connections that go quiet for 30s.
func (a *adapter) KeepAlive() (ohlcv.KeepAliveSettings, bool) {
	return ohlcv.KeepAliveSettings{Interval: 20 * time.Second, Payload: "ping"}, true
}

func parseF(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
