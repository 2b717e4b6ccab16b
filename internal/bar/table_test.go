package bar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToTable_EmptyPreservesSchema(t *testing.T) {
	tbl := ToTable(nil)
	assert.Equal(t, Columns, tbl.Columns)
	assert.Equal(t, 0, tbl.Len())
}

func TestToTable_RowForRowEqualToSnapshot(t *testing.T) {
	bars := []Bar{
		{OpenTime: 60, Open: 1, High: 2, Low: 0.5, Close: 1.5, BaseVolume: 10, QuoteVolume: 15, TradeCount: 3, TakerBuyBaseVolume: 4, TakerBuyQuoteVolume: 6},
		{OpenTime: 120, Open: 1.5, High: 2.5, Low: 1, Close: 2, BaseVolume: 11, QuoteVolume: 16, TradeCount: 5, TakerBuyBaseVolume: 5, TakerBuyQuoteVolume: 7},
	}
	tbl := ToTable(bars)
	require.Equal(t, len(bars), tbl.Len())
	for i, b := range bars {
		assert.Equal(t, b, tbl.Row(i))
	}
}

func TestBar_RowRoundTrip(t *testing.T) {
	b := Bar{OpenTime: 60, Open: 1, High: 2, Low: 0.5, Close: 1.5, BaseVolume: 10, QuoteVolume: 15, TradeCount: 3, TakerBuyBaseVolume: 4, TakerBuyQuoteVolume: 6}
	row := b.ToRow()
	back, err := FromRow(row)
	require.NoError(t, err)
	assert.Equal(t, b, back)
}

func TestBar_RowRoundTripThroughStrings(t *testing.T) {
	// Exercises the trade_count widen-then-narrow path for a wire shape
	// delivering n_trades as a float or numeric string.
	row := [10]any{"60", "1.5", "2.5", "1.1", "2.0", "10.0", "15.0", float64(3), "4.0", "6.0"}
	b, err := FromRow(row)
	require.NoError(t, err)
	assert.Equal(t, int64(60), b.OpenTime)
	assert.Equal(t, int64(3), b.TradeCount)
}
