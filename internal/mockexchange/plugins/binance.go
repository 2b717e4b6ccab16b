// Package plugins holds the four internal/mockexchange.Plugin
// implementations, one per exchange, mirroring the wire shapes their
// internal/adapters counterparts parse.
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

// Binance is the mock exchange plugin reproducing
// internal/adapters/binance's REST array-of-arrays and combined-stream WS
// kline shapes.
type Binance struct{}

func (Binance) ExchangeID() string { return "binance" }

func (Binance) NormalizeSymbol(pair string) string {
	return strings.ToUpper(strings.NewReplacer("-", "").Replace(pair))
}

func (Binance) RESTRoute() string { return "/api/v3/klines" }
func (Binance) WSRoute() string   { return "/ws" }

func (Binance) ParseRESTQuery(r *http.Request) (mockexchange.RESTQuery, error) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		return mockexchange.RESTQuery{}, fmt.Errorf("binance mock: missing symbol")
	}
	out := mockexchange.RESTQuery{
		Symbol:   mockexchange.CanonicalizePair(symbol),
		Interval: q.Get("interval"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out.Limit = n
		}
	}
	if v := q.Get("startTime"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			sec := ms / 1000
			out.Start = &sec
		}
	}
	return out, nil
}

func (Binance) FormatRESTCandles(bars []bar.Bar, symbol, interval string) ([]byte, error) {
	rows := make([][]any, 0, len(bars))
	for _, b := range bars {
		closeTime := b.OpenTime*1000 + mockexchange.IntervalSeconds[interval]*1000 - 1
		rows = append(rows, []any{
			b.OpenTime * 1000,
			fmt.Sprintf("%.8f", b.Open),
			fmt.Sprintf("%.8f", b.High),
			fmt.Sprintf("%.8f", b.Low),
			fmt.Sprintf("%.8f", b.Close),
			fmt.Sprintf("%.8f", b.BaseVolume),
			closeTime,
			fmt.Sprintf("%.8f", b.QuoteVolume),
			b.TradeCount,
			fmt.Sprintf("%.8f", b.TakerBuyBaseVolume),
			fmt.Sprintf("%.8f", b.TakerBuyQuoteVolume),
			"0",
		})
	}
	return json.Marshal(rows)
}

func (Binance) ParseSubscribe(frame []byte) ([]mockexchange.SubscribeRequest, error) {
	var msg struct {
		Method string   `json:"method"`
		Params []string `json:"params"`
	}
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, err
	}
	unsub := strings.EqualFold(msg.Method, "UNSUBSCRIBE")
	var out []mockexchange.SubscribeRequest
	for _, p := range msg.Params {
		parts := strings.SplitN(p, "@kline_", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, mockexchange.SubscribeRequest{
			Pair:     mockexchange.CanonicalizePair(parts[0]),
			Interval: parts[1],
			Unsub:    unsub,
		})
	}
	return out, nil
}

func (Binance) FormatSubscribeAck(reqs []mockexchange.SubscribeRequest) ([]byte, error) {
	return json.Marshal(map[string]any{"result": nil, "id": 1})
}

func (Binance) FormatWSCandle(b bar.Bar, symbol, interval string) ([]byte, error) {
	delta := mockexchange.IntervalSeconds[interval]
	type kline struct {
		OpenTime   int64  `json:"t"`
		CloseTime  int64  `json:"T"`
		Symbol     string `json:"s"`
		Interval   string `json:"i"`
		Open       string `json:"o"`
		Close      string `json:"c"`
		High       string `json:"h"`
		Low        string `json:"l"`
		Volume     string `json:"v"`
		TradeCount int64  `json:"n"`
		QuoteVol   string `json:"q"`
		TakerBase  string `json:"V"`
		TakerQuote string `json:"Q"`
	}
	frame := struct {
		EventType string `json:"e"`
		EventTime int64  `json:"E"`
		Symbol    string `json:"s"`
		K         kline  `json:"k"`
	}{
		EventType: "kline",
		EventTime: b.OpenTime * 1000,
		Symbol:    symbol,
		K: kline{
			OpenTime:   b.OpenTime * 1000,
			CloseTime:  b.OpenTime*1000 + delta*1000 - 1,
			Symbol:     symbol,
			Interval:   interval,
			Open:       fmt.Sprintf("%.8f", b.Open),
			Close:      fmt.Sprintf("%.8f", b.Close),
			High:       fmt.Sprintf("%.8f", b.High),
			Low:        fmt.Sprintf("%.8f", b.Low),
			Volume:     fmt.Sprintf("%.8f", b.BaseVolume),
			TradeCount: b.TradeCount,
			QuoteVol:   fmt.Sprintf("%.8f", b.QuoteVolume),
			TakerBase:  fmt.Sprintf("%.8f", b.TakerBuyBaseVolume),
			TakerQuote: fmt.Sprintf("%.8f", b.TakerBuyQuoteVolume),
		},
	}
	return json.Marshal(frame)
}

func (Binance) SubscriptionKey(symbol, interval string) string {
	return strings.ToLower(symbol) + "@kline_" + interval
}
