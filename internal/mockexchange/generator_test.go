package mockexchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_History_SeedsEquidistantBars(t *testing.T) {
	g := NewGenerator(7, 100)
	g.RegisterPair("BTC-USDT", 50000)

	bars := g.History("BTC-USDT", "1m", 600, 10)
	require.Len(t, bars, 11) // inclusive of alignedNow
	for i := 1; i < len(bars); i++ {
		assert.Equal(t, bars[i-1].OpenTime+60, bars[i].OpenTime)
	}
}

func TestGenerator_History_StaysWithinMaxDeviation(t *testing.T) {
	g := NewGenerator(3, 100)
	g.RegisterPair("BTC-USDT", 50000)
	bars := g.History("BTC-USDT", "1m", 6000, 50)
	for _, b := range bars {
		assert.InDelta(t, 50000, b.Close, 50000*0.3+1)
	}
}

func TestGenerator_Advance_ProducesOneBarPerElapsedBoundary(t *testing.T) {
	g := NewGenerator(1, 100)
	g.RegisterPair("BTC-USDT", 50000)
	g.History("BTC-USDT", "1m", 0, 1)

	fresh := g.Advance(180)
	key := seriesKey{pair: "BTC-USDT", interval: "1m"}
	require.Contains(t, fresh, key)
	assert.Len(t, fresh[key], 3)
}

func TestGenerator_InjectEvent_ShocksCurrentPrice(t *testing.T) {
	g := NewGenerator(1, 100)
	g.RegisterPair("BTC-USDT", 50000)
	g.History("BTC-USDT", "1m", 0, 1)
	g.InjectEvent("BTC-USDT", 1.2)

	fresh := g.Advance(60)
	key := seriesKey{pair: "BTC-USDT", interval: "1m"}
	require.NotEmpty(t, fresh[key])
	assert.Greater(t, fresh[key][0].Open, 50000.0)
}

func TestGenerator_Retention_EvictsOldestBars(t *testing.T) {
	g := NewGenerator(1, 5)
	g.RegisterPair("BTC-USDT", 50000)
	g.History("BTC-USDT", "1m", 0, 1)
	g.Advance(600) // 10 boundaries, retention caps at 5
	bars := g.History("BTC-USDT", "1m", 600, 0)
	assert.LessOrEqual(t, len(bars), 5)
}
