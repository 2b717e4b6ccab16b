package plugins

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sawpanic/barfeed/internal/bar"
	"github.com/sawpanic/barfeed/internal/mockexchange"
)

// Kraken is the mock exchange plugin reproducing
// internal/adapters/kraken's {error,result}-enveloped object-of-arrays REST
// shape and WS v2 "ohlc" channel. Perpetual is a distinct instance with its
// own timestamp unit (milliseconds, vs. seconds for spot) for the "since"
// query parameter and the WS interval_begin field, matching the one real
// adapter whose two markets genuinely disagree on wire units. REST rows
// carry seconds for both markets.
type Kraken struct {
	Perpetual bool
}

func (k Kraken) ExchangeID() string {
	if k.Perpetual {
		return "kraken-perp"
	}
	return "kraken"
}

func (k Kraken) NormalizeSymbol(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(pair, "-", ""))
}

func (k Kraken) RESTRoute() string {
	if k.Perpetual {
		return "/derivatives/api/v3/charts"
	}
	return "/0/public/OHLC"
}

func (k Kraken) WSRoute() string {
	if k.Perpetual {
		return "/ws/v1"
	}
	return "/ws"
}

var krakenIntervalMinutes = map[string]int64{
	"1m": 1, "5m": 5, "15m": 15, "30m": 30,
	"1h": 60, "4h": 240, "1d": 1440, "1w": 10080,
}

func (k Kraken) ParseRESTQuery(r *http.Request) (mockexchange.RESTQuery, error) {
	q := r.URL.Query()
	pair := q.Get("pair")
	if pair == "" {
		return mockexchange.RESTQuery{}, fmt.Errorf("kraken mock: missing pair")
	}
	var interval string
	for name, mins := range krakenIntervalMinutes {
		if strconv.FormatInt(mins, 10) == q.Get("interval") {
			interval = name
			break
		}
	}
	if interval == "" {
		return mockexchange.RESTQuery{}, fmt.Errorf("kraken mock: unknown interval %q", q.Get("interval"))
	}
	out := mockexchange.RESTQuery{
		Symbol:   mockexchange.CanonicalizePair(pair),
		Interval: interval,
	}
	if v := q.Get("since"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			if k.Perpetual {
				sec /= 1000
			}
			out.Start = &sec
		}
	}
	return out, nil
}

func (k Kraken) FormatRESTCandles(bars []bar.Bar, symbol, interval string) ([]byte, error) {
	rows := make([][]any, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, []any{
			b.OpenTime,
			fmt.Sprintf("%.8f", b.Open),
			fmt.Sprintf("%.8f", b.High),
			fmt.Sprintf("%.8f", b.Low),
			fmt.Sprintf("%.8f", b.Close),
			fmt.Sprintf("%.8f", b.Close),
			fmt.Sprintf("%.8f", b.BaseVolume),
			b.TradeCount,
		})
	}
	var last int64
	if len(bars) > 0 {
		last = bars[len(bars)-1].OpenTime
	}
	env := map[string]any{
		"error": []string{},
		"result": map[string]any{
			symbol: rows,
			"last":  last,
		},
	}
	return json.Marshal(env)
}

func (k Kraken) ParseSubscribe(frame []byte) ([]mockexchange.SubscribeRequest, error) {
	var msg struct {
		Method string `json:"method"`
		Params struct {
			Channel  string   `json:"channel"`
			Symbol   []string `json:"symbol"`
			Interval int64    `json:"interval"`
		} `json:"params"`
	}
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, err
	}
	if msg.Params.Channel != "ohlc" {
		return nil, nil
	}
	var interval string
	for name, mins := range krakenIntervalMinutes {
		if mins == msg.Params.Interval {
			interval = name
			break
		}
	}
	if interval == "" {
		return nil, fmt.Errorf("kraken mock: unknown subscribe interval %d", msg.Params.Interval)
	}
	unsub := strings.EqualFold(msg.Method, "unsubscribe")
	var out []mockexchange.SubscribeRequest
	for _, s := range msg.Params.Symbol {
		out = append(out, mockexchange.SubscribeRequest{
			Pair:     mockexchange.CanonicalizePair(s),
			Interval: interval,
			Unsub:    unsub,
		})
	}
	return out, nil
}

func (k Kraken) FormatSubscribeAck(reqs []mockexchange.SubscribeRequest) ([]byte, error) {
	return json.Marshal(map[string]any{"method": "subscribe", "success": true})
}

func (k Kraken) FormatWSCandle(b bar.Bar, symbol, interval string) ([]byte, error) {
	ts := b.OpenTime
	if k.Perpetual {
		ts = b.OpenTime * 1000
	}
	frame := struct {
		Channel string `json:"channel"`
		Type    string `json:"type"`
		Data    []struct {
			Symbol        string  `json:"symbol"`
			IntervalBegin string  `json:"interval_begin"`
			Open          float64 `json:"open"`
			High          float64 `json:"high"`
			Low           float64 `json:"low"`
			Close         float64 `json:"close"`
			Volume        float64 `json:"volume"`
		} `json:"data"`
	}{Channel: "ohlc", Type: "update"}
	frame.Data = append(frame.Data, struct {
		Symbol        string  `json:"symbol"`
		IntervalBegin string  `json:"interval_begin"`
		Open          float64 `json:"open"`
		High          float64 `json:"high"`
		Low           float64 `json:"low"`
		Close         float64 `json:"close"`
		Volume        float64 `json:"volume"`
	}{
		Symbol:        symbol,
		IntervalBegin: strconv.FormatInt(ts, 10),
		Open:          b.Open,
		High:          b.High,
		Low:           b.Low,
		Close:         b.Close,
		Volume:        b.BaseVolume,
	})
	return json.Marshal(frame)
}

func (k Kraken) SubscriptionKey(symbol, interval string) string {
	return k.ExchangeID() + ":ohlc:" + symbol + ":" + strconv.FormatInt(krakenIntervalMinutes[interval], 10)
}
