package kraken

import (
	"encoding/json"
	"testing"

	"github.com/sawpanic/barfeed/internal/ohlcv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpot_ExchangeIDAndTimestampUnit(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	assert.Equal(t, "kraken", a.ExchangeID())
	assert.Equal(t, ohlcv.Seconds, a.TimestampUnit())
}

func TestPerpetual_ExchangeIDAndTimestampUnit(t *testing.T) {
	a := NewPerpetual(ohlcv.Endpoints{})
	assert.Equal(t, "kraken-perp", a.ExchangeID())
	assert.Equal(t, ohlcv.Milliseconds, a.TimestampUnit())
}

func TestFormatPair_StripsSeparators(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	assert.Equal(t, "BTCUSD", a.FormatPair("btc-usd"))
	assert.Equal(t, "BTCUSD", a.FormatPair("btc/usd"))
}

func TestParseREST_ObjectOfArraysKeyedByPair(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	payload := json.RawMessage(`{
		"error":[],
		"result":{
			"XXBTZUSD":[[1609459200,"29000.1","29100.5","28900.0","29050.3","29010.0","120.5",512]],
			"last":1609459260
		}
	}`)
	bars, err := a.ParseREST(payload)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	b := bars[0]
	assert.EqualValues(t, 1609459200, b.OpenTime)
	assert.Equal(t, 29000.1, b.Open)
	assert.Equal(t, 120.5, b.BaseVolume)
	assert.EqualValues(t, 512, b.TradeCount)
}

func TestParseREST_ErrorArrayIsError(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	_, err := a.ParseREST(json.RawMessage(`{"error":["EQuery:Unknown asset pair"],"result":{}}`))
	require.Error(t, err)
}

func TestParseWS_OHLCChannelFrame(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	frame := json.RawMessage(`{
		"channel":"ohlc","type":"update",
		"data":[{"symbol":"BTC/USD","open":29000.1,"high":29100.5,"low":28900.0,"close":29050.3,"volume":120.5,"trades":512,"interval_begin":"1609459200"}]
	}`)
	bars, ok := a.ParseWS(frame)
	require.True(t, ok)
	require.Len(t, bars, 1)
	assert.EqualValues(t, 1609459200, bars[0].OpenTime)
}

func TestParseWS_NonOHLCChannelIgnored(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	_, ok := a.ParseWS(json.RawMessage(`{"channel":"heartbeat"}`))
	assert.False(t, ok)
}

func TestKeepAlive_SendsJSONPing(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	ka, ok := a.KeepAlive()
	require.True(t, ok)
	m, ok := ka.Payload.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "ping", m["method"])
}

func TestRESTParams_IntervalIsMinutes(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	params := a.RESTParams("BTCUSD", "1h", nil, 0)
	assert.Equal(t, "60", params["interval"])
}
