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

// OKX is the mock exchange plugin reproducing internal/adapters/okx's
// {code,data}-enveloped REST shape and candle<interval> WS channel.
type OKX struct{}

func (OKX) ExchangeID() string { return "okx" }

func (OKX) NormalizeSymbol(pair string) string {
	return strings.ToUpper(strings.NewReplacer("_", "-").Replace(pair))
}

func (OKX) RESTRoute() string { return "/api/v5/market/candles" }
func (OKX) WSRoute() string   { return "/ws/v5/public" }

var okxBarName = map[string]string{
	"1m": "1m", "3m": "3m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "1H", "2h": "2H", "4h": "4H", "6h": "6H", "12h": "12H",
	"1d": "1D", "1w": "1W",
}

var okxBarToInterval = func() map[string]string {
	out := make(map[string]string, len(okxBarName))
	for k, v := range okxBarName {
		out[v] = k
	}
	return out
}()

func (OKX) ParseRESTQuery(r *http.Request) (mockexchange.RESTQuery, error) {
	q := r.URL.Query()
	instId := q.Get("instId")
	if instId == "" {
		return mockexchange.RESTQuery{}, fmt.Errorf("okx mock: missing instId")
	}
	interval, ok := okxBarToInterval[q.Get("bar")]
	if !ok {
		interval = strings.ToLower(q.Get("bar"))
	}
	out := mockexchange.RESTQuery{
		Symbol:   mockexchange.CanonicalizePair(instId),
		Interval: interval,
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out.Limit = n
		}
	}
	if v := q.Get("before"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			sec := ms / 1000
			out.Start = &sec
		}
	}
	return out, nil
}

func (OKX) FormatRESTCandles(bars []bar.Bar, symbol, interval string) ([]byte, error) {
	data := make([][]string, 0, len(bars))
	for _, b := range bars {
		data = append(data, []string{
			strconv.FormatInt(b.OpenTime*1000, 10),
			fmt.Sprintf("%.8f", b.Open),
			fmt.Sprintf("%.8f", b.High),
			fmt.Sprintf("%.8f", b.Low),
			fmt.Sprintf("%.8f", b.Close),
			fmt.Sprintf("%.8f", b.BaseVolume),
			fmt.Sprintf("%.8f", b.QuoteVolume),
			fmt.Sprintf("%.8f", b.QuoteVolume),
			"1",
		})
	}
	env := map[string]any{"code": "0", "msg": "", "data": data}
	return json.Marshal(env)
}

func (OKX) ParseSubscribe(frame []byte) ([]mockexchange.SubscribeRequest, error) {
	var msg struct {
		Op   string `json:"op"`
		Args []struct {
			Channel string `json:"channel"`
			InstId  string `json:"instId"`
		} `json:"args"`
	}
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, err
	}
	unsub := strings.EqualFold(msg.Op, "unsubscribe")
	var out []mockexchange.SubscribeRequest
	for _, a := range msg.Args {
		if !strings.HasPrefix(a.Channel, "candle") {
			continue
		}
		interval, ok := okxBarToInterval[strings.TrimPrefix(a.Channel, "candle")]
		if !ok {
			continue
		}
		out = append(out, mockexchange.SubscribeRequest{
			Pair:     mockexchange.CanonicalizePair(a.InstId),
			Interval: interval,
			Unsub:    unsub,
		})
	}
	return out, nil
}

func (OKX) FormatSubscribeAck(reqs []mockexchange.SubscribeRequest) ([]byte, error) {
	return json.Marshal(map[string]any{"event": "subscribe"})
}

func (OKX) FormatWSCandle(b bar.Bar, symbol, interval string) ([]byte, error) {
	frame := struct {
		Arg struct {
			Channel string `json:"channel"`
			InstId  string `json:"instId"`
		} `json:"arg"`
		Data [][]string `json:"data"`
	}{}
	frame.Arg.Channel = "candle" + okxBarName[interval]
	frame.Arg.InstId = symbol
	frame.Data = [][]string{{
		strconv.FormatInt(b.OpenTime*1000, 10),
		fmt.Sprintf("%.8f", b.Open),
		fmt.Sprintf("%.8f", b.High),
		fmt.Sprintf("%.8f", b.Low),
		fmt.Sprintf("%.8f", b.Close),
		fmt.Sprintf("%.8f", b.BaseVolume),
		fmt.Sprintf("%.8f", b.QuoteVolume),
		fmt.Sprintf("%.8f", b.QuoteVolume),
		"0",
	}}
	return json.Marshal(frame)
}

func (OKX) SubscriptionKey(symbol, interval string) string {
	return "candle" + okxBarName[interval] + ":" + symbol
}
