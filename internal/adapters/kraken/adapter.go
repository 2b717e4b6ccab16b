// Package kraken is the candle adapter for Kraken spot and Kraken
// Futures (perpetual), grounded on internal/providers/kraken/client.go's
// guarded-client shape and internal/providers/kraken/websocket.go's
// subscribe/ping/reconnect loop. Kraken's spot and futures APIs genuinely
// differ in timestamp resolution (spot: seconds, futures: milliseconds),
// so unlike binance this adapter's two constructors do not share a single
// TimestampUnit.
package kraken

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
	ohlcv.Global().MustRegister("kraken", NewSpot)
	ohlcv.Global().MustRegister("kraken-perp", NewPerpetual)
}

var spotIntervals = ohlcv.IntervalTable{
	"1m": 60, "5m": 300, "15m": 900, "30m": 1800, "1h": 3600,
	"4h": 14400, "1d": 86400, "1w": 604800,
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

// NewSpot builds the Kraken spot candle adapter.
func NewSpot(ep ohlcv.Endpoints) ohlcv.Adapter {
	if ep.REST == "" {
		ep.REST = "https://api.kraken.com/0/public/OHLC"
	}
	if ep.WS == "" {
		ep.WS = "wss://ws.kraken.com/v2"
	}
	return &adapter{m: spot, ep: ep}
}

// NewPerpetual builds the Kraken Futures (perpetual) candle adapter.
func NewPerpetual(ep ohlcv.Endpoints) ohlcv.Adapter {
	if ep.REST == "" {
		ep.REST = "https://futures.kraken.com/derivatives/api/v3/charts"
	}
	if ep.WS == "" {
		ep.WS = "wss://futures.kraken.com/ws/v1"
	}
	return &adapter{m: perpetual, ep: ep}
}

func (a *adapter) ExchangeID() string {
	if a.m == perpetual {
		return "kraken-perp"
	}
	return "kraken"
}

// FormatPair upper-cases and strips separators, e.g. "btc-usd" -> "BTCUSD".
// Kraken's own XBT/BTC aliasing is left to the caller; this adapter works
// purely in the canonical pair names the rest of the system uses.
func (a *adapter) FormatPair(pair string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", "/", "", "_", "").Replace(pair))
}

func (a *adapter) RESTURL() string { return a.ep.REST }
func (a *adapter) WSURL() string   { return a.ep.WS }

func (a *adapter) SupportedIntervals() ohlcv.IntervalTable { return spotIntervals }

func (a *adapter) WSSupportedIntervals() map[string]struct{} {
	out := make(map[string]struct{}, len(spotIntervals))
	for k := range spotIntervals {
		out[k] = struct{}{}
	}
	return out
}

func (a *adapter) RESTParams(pair, interval string, start *int64, limit int) map[string]string {
	params := map[string]string{
		"pair":     a.FormatPair(pair),
		"interval": strconv.FormatInt(spotIntervals[interval]/60, 10),
	}
	_ = limit // Kraken's public OHLC endpoint has no limit param; it returns up to 720 points
	if start != nil {
		params["since"] = fmt.Sprintf("%v", ohlcv.ConvertToExchange(a.TimestampUnit(), *start))
	}
	return params
}

// restEnvelope is Kraken's {error, result} REST wrapper. result keys off
// the pair name plus a trailing "last" cursor field this adapter ignores.
type restEnvelope struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

// ParseREST decodes Kraken's object-of-arrays-keyed-by-pair shape: each
// row is [time, open, high, low, close, vwap, volume, count].
func (a *adapter) ParseREST(payload json.RawMessage) ([]bar.Bar, error) {
	var env restEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("kraken: decode OHLC: %w", err)
	}
	if len(env.Error) > 0 {
		return nil, fmt.Errorf("kraken: api error: %s", strings.Join(env.Error, "; "))
	}
	var bars []bar.Bar
	for key, raw := range env.Result {
		if key == "last" {
			continue
		}
		var rows [][]any
		if err := json.Unmarshal(raw, &rows); err != nil {
			continue
		}
		for _, row := range rows {
			b, ok := parseOHLCRow(a.TimestampUnit(), row)
			if !ok {
				continue
			}
			bars = append(bars, b)
		}
	}
	return bars, nil
}

func parseOHLCRow(unit ohlcv.TimestampUnit, row []any) (bar.Bar, bool) {
	if len(row) < 8 {
		return bar.Bar{}, false
	}
	openTime, err := ohlcv.EnsureSeconds(row[0])
	if err != nil {
		return bar.Bar{}, false
	}
	return bar.Bar{
		OpenTime:   openTime,
		Open:       asFloat(row[1]),
		High:       asFloat(row[2]),
		Low:        asFloat(row[3]),
		Close:      asFloat(row[4]),
		BaseVolume: asFloat(row[6]),
		TradeCount: asInt(row[7]),
	}, true
}

func (a *adapter) WSSubscribePayload(pair, interval string) any {
	return map[string]any{
		"method": "subscribe",
		"params": map[string]any{
			"channel":  "ohlc",
			"symbol":   []string{a.FormatPair(pair)},
			"interval": spotIntervals[interval] / 60,
		},
	}
}

// wsFrame is Kraken v2's ohlc channel push, an object frame keyed by
// channel name rather than a bare array.
type wsFrame struct {
	Channel string `json:"channel"`
	Type    string `json:"type"`
	Data    []struct {
		Symbol    string  `json:"symbol"`
		Open      float64 `json:"open"`
		High      float64 `json:"high"`
		Low       float64 `json:"low"`
		Close     float64 `json:"close"`
		Volume    float64 `json:"volume"`
		Trades    int64   `json:"trades"`
		IntervalBegin string `json:"interval_begin"`
	} `json:"data"`
}

func (a *adapter) ParseWS(frame json.RawMessage) ([]bar.Bar, bool) {
	var f wsFrame
	if err := json.Unmarshal(frame, &f); err != nil || f.Channel != "ohlc" {
		return nil, false
	}
	bars := make([]bar.Bar, 0, len(f.Data))
	for _, d := range f.Data {
		openTime, err := ohlcv.EnsureSeconds(d.IntervalBegin)
		if err != nil {
			continue
		}
		bars = append(bars, bar.Bar{
			OpenTime:   openTime,
			Open:       d.Open,
			High:       d.High,
			Low:        d.Low,
			Close:      d.Close,
			BaseVolume: d.Volume,
			TradeCount: d.Trades,
		})
	}
	if len(bars) == 0 {
		return nil, false
	}
	return bars, true
}

// TimestampUnit differs by market: Kraken's spot OHLC endpoint has always
// used whole seconds, while Kraken Futures' charts API reports
// milliseconds, a genuine wire-format difference rather than an
// inconsistency to paper over.
func (a *adapter) TimestampUnit() ohlcv.TimestampUnit {
	if a.m == perpetual {
		return ohlcv.Milliseconds
	}
	return ohlcv.Seconds
}

func (a *adapter) FetchesAsync() bool { return true }
func (a *adapter) FetchesSync() bool  { return false }

// KeepAlive sends a JSON {"method":"ping"} every 15 seconds; Kraken's v2
// WS gateway closes idle connections after roughly a minute of silence.
func (a *adapter) KeepAlive() (ohlcv.KeepAliveSettings, bool) {
	return ohlcv.KeepAliveSettings{Interval: 15 * time.Second, Payload: map[string]string{"method": "ping"}}, true
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
