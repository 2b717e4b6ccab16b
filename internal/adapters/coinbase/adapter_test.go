package coinbase

import (
	"encoding/json"
	"testing"

	"github.com/sawpanic/barfeed/internal/ohlcv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpot_ExchangeIDAndPairFormat(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	assert.Equal(t, "coinbase", a.ExchangeID())
	assert.Equal(t, "BTC-USD", a.FormatPair("btcusd"))
	assert.Equal(t, "BTC-USD", a.FormatPair("btc-usd"))
}

func TestWSSupportedIntervals_IsEmpty(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	assert.Empty(t, a.WSSupportedIntervals())
}

func TestRESTParams_GranularityName(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	params := a.RESTParams("BTC-USD", "1h", nil, 100)
	assert.Equal(t, "ONE_HOUR", params["granularity"])
	assert.Equal(t, "BTC-USD", params["product_id"])
}

func TestParseREST_ArraysOfNumbersLowHighOpenCloseOrder(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	payload := json.RawMessage(`[[1609459200, 28900.0, 29100.5, 29000.1, 29050.3, 120.5]]`)
	bars, err := a.ParseREST(payload)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	b := bars[0]
	assert.EqualValues(t, 1609459200, b.OpenTime)
	assert.Equal(t, 29000.1, b.Open)
	assert.Equal(t, 29100.5, b.High)
	assert.Equal(t, 28900.0, b.Low)
	assert.Equal(t, 29050.3, b.Close)
	assert.Equal(t, 120.5, b.BaseVolume)
}

func TestParseWS_CandlesChannel(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	frame := json.RawMessage(`{
		"channel":"candles",
		"events":[{"candles":[{"start":"1609459200","open":"29000.1","high":"29100.5","low":"28900.0","close":"29050.3","volume":"120.5"}]}]
	}`)
	bars, ok := a.ParseWS(frame)
	require.True(t, ok)
	require.Len(t, bars, 1)
	assert.EqualValues(t, 1609459200, bars[0].OpenTime)
}

func TestParseWS_NonCandlesChannelIgnored(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	_, ok := a.ParseWS(json.RawMessage(`{"channel":"heartbeats"}`))
	assert.False(t, ok)
}

func TestTimestampUnit_IsSeconds(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	assert.Equal(t, ohlcv.Seconds, a.TimestampUnit())
}

func TestNoPerpetualRegistryEntry(t *testing.T) {
	_, err := ohlcv.Global().New("coinbase-perp", ohlcv.Endpoints{})
	assert.Error(t, err)
}
