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

// Coinbase is the mock exchange plugin reproducing
// internal/adapters/coinbase's arrays-of-numbers REST shape (seconds,
// low/high/open/close column order) and Advanced Trade "candles" WS
// channel. Spot only, matching the real adapter.
type Coinbase struct{}

func (Coinbase) ExchangeID() string { return "coinbase" }

func (Coinbase) NormalizeSymbol(pair string) string { return strings.ToUpper(pair) }

func (Coinbase) RESTRoute() string { return "/products/candles" }
func (Coinbase) WSRoute() string   { return "/ws" }

var coinbaseGranularity = map[string]string{
	"1m": "ONE_MINUTE", "5m": "FIVE_MINUTE", "15m": "FIFTEEN_MINUTE",
	"1h": "ONE_HOUR", "6h": "SIX_HOUR", "1d": "ONE_DAY",
}

var coinbaseGranularityToInterval = func() map[string]string {
	out := make(map[string]string, len(coinbaseGranularity))
	for k, v := range coinbaseGranularity {
		out[v] = k
	}
	return out
}()

func (Coinbase) ParseRESTQuery(r *http.Request) (mockexchange.RESTQuery, error) {
	q := r.URL.Query()
	productID := q.Get("product_id")
	if productID == "" {
		return mockexchange.RESTQuery{}, fmt.Errorf("coinbase mock: missing product_id")
	}
	interval, ok := coinbaseGranularityToInterval[q.Get("granularity")]
	if !ok {
		return mockexchange.RESTQuery{}, fmt.Errorf("coinbase mock: unknown granularity %q", q.Get("granularity"))
	}
	out := mockexchange.RESTQuery{
		Symbol:   mockexchange.CanonicalizePair(productID),
		Interval: interval,
	}
	if v := q.Get("start"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			out.Start = &sec
		}
	}
	return out, nil
}

func (Coinbase) FormatRESTCandles(bars []bar.Bar, symbol, interval string) ([]byte, error) {
	rows := make([][]float64, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, []float64{
			float64(b.OpenTime), b.Low, b.High, b.Open, b.Close, b.BaseVolume,
		})
	}
	return json.Marshal(rows)
}

func (Coinbase) ParseSubscribe(frame []byte) ([]mockexchange.SubscribeRequest, error) {
	var msg struct {
		Type       string   `json:"type"`
		ProductIds []string `json:"product_ids"`
		Channel    string   `json:"channel"`
	}
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, err
	}
	if msg.Channel != "candles" {
		return nil, nil
	}
	unsub := strings.EqualFold(msg.Type, "unsubscribe")
	var out []mockexchange.SubscribeRequest
	for _, p := range msg.ProductIds {
		out = append(out, mockexchange.SubscribeRequest{
			Pair:     mockexchange.CanonicalizePair(p),
			Interval: "5m", // Advanced Trade always pushes 5-minute candles
			Unsub:    unsub,
		})
	}
	return out, nil
}

func (Coinbase) FormatSubscribeAck(reqs []mockexchange.SubscribeRequest) ([]byte, error) {
	return json.Marshal(map[string]any{"channel": "subscriptions"})
}

func (Coinbase) FormatWSCandle(b bar.Bar, symbol, interval string) ([]byte, error) {
	frame := struct {
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
	}{Channel: "candles"}
	frame.Events = append(frame.Events, struct {
		Candles []struct {
			Start  string `json:"start"`
			Open   string `json:"open"`
			High   string `json:"high"`
			Low    string `json:"low"`
			Close  string `json:"close"`
			Volume string `json:"volume"`
		} `json:"candles"`
	}{
		Candles: []struct {
			Start  string `json:"start"`
			Open   string `json:"open"`
			High   string `json:"high"`
			Low    string `json:"low"`
			Close  string `json:"close"`
			Volume string `json:"volume"`
		}{{
			Start:  strconv.FormatInt(b.OpenTime, 10),
			Open:   fmt.Sprintf("%.8f", b.Open),
			High:   fmt.Sprintf("%.8f", b.High),
			Low:    fmt.Sprintf("%.8f", b.Low),
			Close:  fmt.Sprintf("%.8f", b.Close),
			Volume: fmt.Sprintf("%.8f", b.BaseVolume),
		}},
	})
	return json.Marshal(frame)
}

func (Coinbase) SubscriptionKey(symbol, interval string) string {
	return "candles:" + symbol
}
