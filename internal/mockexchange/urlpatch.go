package mockexchange

import "github.com/sawpanic/barfeed/internal/ohlcv"

// pluginRoutes maps each exchange id to the REST/WS paths its mock Plugin
// is mounted at, letting Patch build an Endpoints pair without requiring a
// live Server handle (the exchange id alone is enough once its plugin is
// registered in a Server).
var pluginRoutes = map[string]struct {
	rest string
	ws   string
}{
	"binance":      {"/api/v3/klines", "/ws"},
	"binance-perp": {"/api/v3/klines", "/ws"},
	"okx":          {"/api/v5/market/candles", "/ws/v5/public"},
	"okx-perp":     {"/api/v5/market/candles", "/ws/v5/public"},
	"coinbase":     {"/products/candles", "/ws"},
	"kraken":       {"/0/public/OHLC", "/ws"},
	"kraken-perp":  {"/derivatives/api/v3/charts", "/ws/v1"},
}

// Patch builds the ohlcv.Endpoints an exchange's adapter constructor
// should be called with so that it talks to a mock Server running at addr,
// instead of the real exchange host. Rather than mutating any package-level
// constant, callers build a fresh Endpoints value and pass it straight to
// the adapter's own constructor.
func Patch(exchangeID, addr string) (ohlcv.Endpoints, bool) {
	routes, ok := pluginRoutes[exchangeID]
	if !ok {
		return ohlcv.Endpoints{}, false
	}
	return ohlcv.Endpoints{
		REST: "http://" + addr + routes.rest,
		WS:   "ws://" + addr + routes.ws,
	}, true
}
