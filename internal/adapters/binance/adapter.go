// Package binance is the candle adapter for Binance spot and USD-M
// perpetual futures, grounded on the field layout and array-of-arrays
// parsing of an exchange client's GetKlines, adapted from a guarded
// one-shot REST fetcher into the Adapter contract of internal/ohlcv: a
// spot and a perpetual constructor sharing one set of helpers — one
// module, two constructors, rather than two near-identical files.
package binance

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sawpanic/barfeed/internal/bar"
	"github.com/sawpanic/barfeed/internal/ohlcv"
)

func init() {
	ohlcv.Global().MustRegister("binance", NewSpot)
	ohlcv.Global().MustRegister("binance-perp", NewPerpetual)
}

var spotIntervals = ohlcv.IntervalTable{
	"1m": 60, "3m": 180, "5m": 300, "15m": 900, "30m": 1800,
	"1h": 3600, "2h": 7200, "4h": 14400, "6h": 21600, "12h": 43200,
	"1d": 86400, "1w": 604800,
}

type market int

const (
	spot market = iota
	perpetual
)

// adapter implements ohlcv.Adapter for both Binance markets; only the
// endpoint paths and the exchange id differ between them.
type adapter struct {
	m  market
	ep ohlcv.Endpoints
}

// NewSpot builds the Binance spot candle adapter.
func NewSpot(ep ohlcv.Endpoints) ohlcv.Adapter { return &adapter{m: spot, ep: defaultEndpoints(spot, ep)} }

// NewPerpetual builds the Binance USD-M perpetual candle adapter.
func NewPerpetual(ep ohlcv.Endpoints) ohlcv.Adapter {
	return &adapter{m: perpetual, ep: defaultEndpoints(perpetual, ep)}
}

func defaultEndpoints(m market, ep ohlcv.Endpoints) ohlcv.Endpoints {
	if ep.REST == "" {
		if m == spot {
			ep.REST = "https://api.binance.com/api/v3/klines"
		} else {
			ep.REST = "https://fapi.binance.com/fapi/v1/klines"
		}
	}
	if ep.WS == "" {
		if m == spot {
			ep.WS = "wss://stream.binance.com:9443/ws"
		} else {
			ep.WS = "wss://fstream.binance.com/ws"
		}
	}
	return ep
}

func (a *adapter) ExchangeID() string {
	if a.m == perpetual {
		return "binance-perp"
	}
	return "binance"
}

// FormatPair strips any separator and upper-cases, e.g. "btc-usdt" -> "BTCUSDT".
func (a *adapter) FormatPair(pair string) string {
	p := strings.ToUpper(pair)
	p = strings.NewReplacer("-", "", "/", "", "_", "").Replace(p)
	return p
}

func (a *adapter) RESTURL() string { return a.ep.REST }
func (a *adapter) WSURL() string   { return a.ep.WS }

func (a *adapter) SupportedIntervals() ohlcv.IntervalTable    { return spotIntervals }
func (a *adapter) WSSupportedIntervals() map[string]struct{} {
	out := make(map[string]struct{}, len(spotIntervals))
	for k := range spotIntervals {
		out[k] = struct{}{}
	}
	return out
}

func (a *adapter) RESTParams(pair, interval string, start *int64, limit int) map[string]string {
	params := map[string]string{
		"symbol":   a.FormatPair(pair),
		"interval": interval,
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	if start != nil {
		params["startTime"] = fmt.Sprintf("%v", ohlcv.ConvertToExchange(a.TimestampUnit(), *start))
	}
	return params
}

// ParseREST decodes Binance's array-of-arrays kline shape:
// [open_time, open, high, low, close, volume, close_time, quote_volume,
//  trade_count, taker_buy_base, taker_buy_quote, ignore].
func (a *adapter) ParseREST(payload json.RawMessage) ([]bar.Bar, error) {
	var rows [][]any
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("binance: decode klines: %w", err)
	}
	bars := make([]bar.Bar, 0, len(rows))
	for _, row := range rows {
		b, ok := parseKlineRow(row)
		if !ok {
			continue
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseKlineRow(row []any) (bar.Bar, bool) {
	if len(row) < 11 {
		return bar.Bar{}, false
	}
	openTime, err := ohlcv.EnsureSeconds(row[0])
	if err != nil {
		return bar.Bar{}, false
	}
	return bar.Bar{
		OpenTime:            openTime,
		Open:                asFloat(row[1]),
		High:                asFloat(row[2]),
		Low:                 asFloat(row[3]),
		Close:               asFloat(row[4]),
		BaseVolume:          asFloat(row[5]),
		QuoteVolume:         asFloat(row[7]),
		TradeCount:          asInt(row[8]),
		TakerBuyBaseVolume:  asFloat(row[9]),
		TakerBuyQuoteVolume: asFloat(row[10]),
	}, true
}

// klineWSFrame is Binance's combined-stream kline event wrapper.
type klineWSFrame struct {
	EventType string `json:"e"`
	K         struct {
		OpenTime   int64  `json:"t"`
		Open       string `json:"o"`
		High       string `json:"h"`
		Low        string `json:"l"`
		Close      string `json:"c"`
		Volume     string `json:"v"`
		QuoteVol   string `json:"q"`
		TradeCount int64  `json:"n"`
		TakerBase  string `json:"V"`
		TakerQuote string `json:"Q"`
	} `json:"k"`
}

func (a *adapter) WSSubscribePayload(pair, interval string) any {
	return map[string]any{
		"method": "SUBSCRIBE",
		"params": []string{fmt.Sprintf("%s@kline_%s", strings.ToLower(a.FormatPair(pair)), interval)},
		"id":     1,
	}
}

// ParseWS decodes one kline event frame. Non-kline frames (subscribe acks)
// are reported as ok=false rather than an error: malformed/irrelevant
// frames are swallowed, not fatal.
func (a *adapter) ParseWS(frame json.RawMessage) ([]bar.Bar, bool) {
	var f klineWSFrame
	if err := json.Unmarshal(frame, &f); err != nil || f.EventType != "kline" {
		return nil, false
	}
	openTime, err := ohlcv.EnsureSeconds(f.K.OpenTime)
	if err != nil {
		return nil, false
	}
	return []bar.Bar{{
		OpenTime:            openTime,
		Open:                parseStrFloat(f.K.Open),
		High:                parseStrFloat(f.K.High),
		Low:                 parseStrFloat(f.K.Low),
		Close:               parseStrFloat(f.K.Close),
		BaseVolume:          parseStrFloat(f.K.Volume),
		QuoteVolume:         parseStrFloat(f.K.QuoteVol),
		TradeCount:          f.K.TradeCount,
		TakerBuyBaseVolume:  parseStrFloat(f.K.TakerBase),
		TakerBuyQuoteVolume: parseStrFloat(f.K.TakerQuote),
	}}, true
}

func (a *adapter) TimestampUnit() ohlcv.TimestampUnit { return ohlcv.Milliseconds }
func (a *adapter) FetchesAsync() bool                 { return true }
func (a *adapter) FetchesSync() bool                  { return false }

// KeepAlive reports no client-initiated heartbeat: Binance's combined
// stream relies on the server's own protocol-level ping/pong, which
// internal/net.WSConn answers to transparently.
func (a *adapter) KeepAlive() (ohlcv.KeepAliveSettings, bool) {
	return ohlcv.KeepAliveSettings{}, false
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	default:
		return 0
	}
}

func asInt(v any) int64 {
	switch x := v.(type) {
	case float64:
		return int64(x)
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	default:
		return 0
	}
}

func parseStrFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
