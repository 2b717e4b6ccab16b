package bar

// Table is the DataFrame-shaped projection of a bar snapshot: one column
// per field of Bar, in the fixed order of Columns, row-for-row equal to the
// snapshot it was built from. It is a handoff shape for consumer
// analytics, not a library in its own right.
type Table struct {
	Columns     [10]string
	OpenTime    []int64
	Open        []float64
	High        []float64
	Low         []float64
	Close       []float64
	Volume      []float64
	QuoteVolume []float64
	TradeCount  []int64
	TakerBase   []float64
	TakerQuote  []float64
}

// ToTable projects a bar snapshot into the ten-column table. An empty
// snapshot yields an empty table with the same schema.
func ToTable(bars []Bar) Table {
	t := Table{
		Columns:     Columns,
		OpenTime:    make([]int64, len(bars)),
		Open:        make([]float64, len(bars)),
		High:        make([]float64, len(bars)),
		Low:         make([]float64, len(bars)),
		Close:       make([]float64, len(bars)),
		Volume:      make([]float64, len(bars)),
		QuoteVolume: make([]float64, len(bars)),
		TradeCount:  make([]int64, len(bars)),
		TakerBase:   make([]float64, len(bars)),
		TakerQuote:  make([]float64, len(bars)),
	}
	for i, b := range bars {
		t.OpenTime[i] = b.OpenTime
		t.Open[i] = b.Open
		t.High[i] = b.High
		t.Low[i] = b.Low
		t.Close[i] = b.Close
		t.Volume[i] = b.BaseVolume
		t.QuoteVolume[i] = b.QuoteVolume
		t.TradeCount[i] = b.TradeCount
		t.TakerBase[i] = b.TakerBuyBaseVolume
		t.TakerQuote[i] = b.TakerBuyQuoteVolume
	}
	return t
}

// Len returns the number of rows in the table.
func (t Table) Len() int { return len(t.OpenTime) }

// Row reconstructs row i as a Bar, the inverse of ToTable for a single row.
func (t Table) Row(i int) Bar {
	return Bar{
		OpenTime:            t.OpenTime[i],
		Open:                t.Open[i],
		High:                t.High[i],
		Low:                 t.Low[i],
		Close:               t.Close[i],
		BaseVolume:          t.Volume[i],
		QuoteVolume:         t.QuoteVolume[i],
		TradeCount:          t.TradeCount[i],
		TakerBuyBaseVolume:  t.TakerBase[i],
		TakerBuyQuoteVolume: t.TakerQuote[i],
	}
}
