package okx

import (
	"encoding/json"
	"testing"

	"github.com/sawpanic/barfeed/internal/ohlcv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpot_ExchangeIDAndPairFormat(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	assert.Equal(t, "okx", a.ExchangeID())
	assert.Equal(t, "BTC-USDT", a.FormatPair("btc-usdt"))
}

func TestPerpetual_AppendsSwapSuffix(t *testing.T) {
	a := NewPerpetual(ohlcv.Endpoints{})
	assert.Equal(t, "okx-perp", a.ExchangeID())
	assert.Equal(t, "BTC-USDT-SWAP", a.FormatPair("btc-usdt"))
}

func TestRESTParams_UsesBarAndInstId(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	params := a.RESTParams("BTC-USDT", "1h", nil, 100)
	assert.Equal(t, "BTC-USDT", params["instId"])
	assert.Equal(t, "1H", params["bar"])
	assert.Equal(t, "100", params["limit"])
}

func TestParseREST_EnvelopeWrappedArraysOfStrings(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	payload := json.RawMessage(`{
		"code":"0","msg":"",
		"data":[["1609459200000","29000.1","29100.5","28900.0","29050.3","120.5","3498765.4","3498765.4","1"]]
	}`)
	bars, err := a.ParseREST(payload)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.EqualValues(t, 1609459200, bars[0].OpenTime)
	assert.Equal(t, 29000.1, bars[0].Open)
	assert.Equal(t, 120.5, bars[0].BaseVolume)
}

func TestParseREST_ErrorCodeIsError(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	_, err := a.ParseREST(json.RawMessage(`{"code":"50001","msg":"service unavailable","data":[]}`))
	require.Error(t, err)
}

func TestParseWS_CandleChannelFrame(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	frame := json.RawMessage(`{
		"arg":{"channel":"candle1m","instId":"BTC-USDT"},
		"data":[["1609459200000","29000.1","29100.5","28900.0","29050.3","120.5","3498765.4","3498765.4","0"]]
	}`)
	bars, ok := a.ParseWS(frame)
	require.True(t, ok)
	require.Len(t, bars, 1)
	assert.EqualValues(t, 1609459200, bars[0].OpenTime)
}

func TestParseWS_NonCandleChannelIgnored(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	_, ok := a.ParseWS(json.RawMessage(`{"event":"subscribe","arg":{"channel":"candle1m"}}`))
	assert.False(t, ok)
}

func TestKeepAlive_SendsPingText(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	ka, ok := a.KeepAlive()
	require.True(t, ok)
	assert.Equal(t, "ping", ka.Payload)
}

func TestWSSubscribePayload_UsesChannelAndInstId(t *testing.T) {
	a := NewSpot(ohlcv.Endpoints{})
	payload := a.WSSubscribePayload("BTC-USDT", "1m")
	m, ok := payload.(map[string]any)
	require.True(t, ok)
	args, ok := m["args"].([]map[string]string)
	require.True(t, ok)
	require.Len(t, args, 1)
	assert.Equal(t, "candle1m", args[0]["channel"])
	assert.Equal(t, "BTC-USDT", args[0]["instId"])
}
