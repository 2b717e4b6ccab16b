// Package coinbase is the candle adapter for Coinbase's public retail
// spot market, grounded on the guarded-client constructor shape shared by
// internal/providers/adapters. Coinbase's public API has no perpetual
// market, so this package offers only NewSpot and registers only
// "coinbase" — there is deliberately no NewPerpetual and no "coinbase-perp"
// registry entry.
package coinbase

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sawpanic/barfeed/internal/bar"
	"github.com/sawpanic/barfeed/internal/ohlcv"
)

func init() {
	ohlcv.Global().MustRegister("coinbase", NewSpot)
}

var intervals = ohlcv.IntervalTable{
	"1m": 60, "5m": 300, "15m": 900, "1h": 3600, "6h": 21600, "1d": 86400,
}

type adapter struct {
	ep ohlcv.Endpoints
}

// NewSpot builds the Coinbase spot candle adapter.
func NewSpot(ep ohlcv.Endpoints) ohlcv.Adapter {
	if ep.REST == "" {
		ep.REST = "https://api.exchange.coinbase.com/products"
	}
	if ep.WS == "" {
		ep.WS = "wss://advanced-trade-ws.coinbase.com"
	}
	return &adapter{ep: ep}
}

func (a *adapter) ExchangeID() string { return "coinbase" }

// FormatPair turns "btcusd" or "btc_usd" into Coinbase's dash-delimited
// product id "BTC-USD". An undelimited pair is split before its last three
// characters ("btcusdt" becomes "BTCU-SDT"). A pair already containing a
// dash is left as-is (upper-cased).
func (a *adapter) FormatPair(pair string) string {
	p := strings.ToUpper(strings.NewReplacer("_", "-", "/", "-").Replace(pair))
	if strings.Contains(p, "-") {
		return p
	}
	if len(p) > 3 {
		return p[:len(p)-3] + "-" + p[len(p)-3:]
	}
	return p
}

// RESTURL returns the products-collection base. The real Coinbase API
// nests the product id into the path ("/products/<id>/candles"); this
// adapter instead carries product_id as a RESTParams query param so
// RESTURL can stay pair-independent, matching the fixed-URL contract every
// other adapter follows.
func (a *adapter) RESTURL() string { return a.ep.REST }
func (a *adapter) WSURL() string   { return a.ep.WS }

func (a *adapter) SupportedIntervals() ohlcv.IntervalTable { return intervals }

// WSSupportedIntervals is empty: Coinbase's Advanced Trade "candles"
// channel pushes 5-minute candles only, regardless of subscribe interval,
// so this adapter does not advertise per-interval WS support and the feed
// controller's Auto resolution always falls back to polling.
func (a *adapter) WSSupportedIntervals() map[string]struct{} { return map[string]struct{}{} }

func (a *adapter) RESTParams(pair, interval string, start *int64, limit int) map[string]string {
	params := map[string]string{
		"granularity": granularityName(interval),
		"product_id":  a.FormatPair(pair),
	}
	if start != nil {
		params["start"] = fmt.Sprintf("%d", *start)
	}
	_ = limit // Coinbase has no limit param; it always returns up to 300 candles for the window
	return params
}

func granularityName(interval string) string {
	switch interval {
	case "1m":
		return "ONE_MINUTE"
	case "5m":
		return "FIVE_MINUTE"
	case "15m":
		return "FIFTEEN_MINUTE"
	case "1h":
		return "ONE_HOUR"
	case "6h":
		return "SIX_HOUR"
	case "1d":
		return "ONE_DAY"
	default:
		return interval
	}
}

// ParseREST decodes Coinbase's arrays-of-numbers candle rows:
// [time, low, high, open, close, volume] — note the unusual column order,
// low/high before open/close, and seconds-only timestamps.
func (a *adapter) ParseREST(payload json.RawMessage) ([]bar.Bar, error) {
	var rows [][]float64
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("coinbase: decode candles: %w", err)
	}
	bars := make([]bar.Bar, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		bars = append(bars, bar.Bar{
			OpenTime:   int64(row[0]),
			Low:        row[1],
			High:       row[2],
			Open:       row[3],
			Close:      row[4],
			BaseVolume: row[5],
		})
	}
	return bars, nil
}

func (a *adapter) WSSubscribePayload(pair, interval string) any {
	return map[string]any{
		"type":        "subscribe",
		"product_ids": []string{a.FormatPair(pair)},
		"channel":     "candles",
	}
}

// wsEvent is one Advanced Trade "candles" channel message.
type wsEvent struct {
	Channel string `json:"channel"`
	Events  []struct {
		Candles []struct {
			Start  string `json:"start"`
			Open   string `json:"open"`
			High   string `json:"high"`
			Low    string `json:"low"`
			Close  string `json:"close"`
			Volume string `json:"volume"`
		} `json:"candles"`
	} `json:"events"`
}

func (a *adapter) ParseWS(frame json.RawMessage) ([]bar.Bar, bool) {
	var ev wsEvent
	if err := json.Unmarshal(frame, &ev); err != nil || ev.Channel != "candles" {
		return nil, false
	}
	var bars []bar.Bar
	for _, e := range ev.Events {
		for _, c := range e.Candles {
			openTime, err := ohlcv.EnsureSeconds(c.Start)
			if err != nil {
				continue
			}
			bars = append(bars, bar.Bar{
				OpenTime:   openTime,
				Open:       parseF(c.Open),
				High:       parseF(c.High),
				Low:        parseF(c.Low),
				Close:      parseF(c.Close),
				BaseVolume: parseF(c.Volume),
			})
		}
	}
	if len(bars) == 0 {
		return nil, false
	}
	return bars, true
}

func (a *adapter) TimestampUnit() ohlcv.TimestampUnit { return ohlcv.Seconds }
func (a *adapter) FetchesAsync() bool                 { return true }
func (a *adapter) FetchesSync() bool                  { return false }

// KeepAlive reports no client-initiated heartbeat: Coinbase's Advanced
// Trade feed pings at the protocol level.
func (a *adapter) KeepAlive() (ohlcv.KeepAliveSettings, bool) {
	return ohlcv.KeepAliveSettings{}, false
}

func parseF(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
