// Package bar defines the canonical OHLCV record and the bounded,
// time-ordered window (Store) that a feed controller keeps it in.
package bar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Bar is one OHLCV record for one interval. OpenTime is always expressed in
// integer seconds of Unix time and is always a multiple of the owning
// store's interval duration. Adapters build Bars leniently: unparsable or
// missing optional fields default to zero rather than rejecting the bar,
// per the adapter contract's tolerance requirement. FromRow, by contrast,
// returns an error for any field it cannot convert.
type Bar struct {
	OpenTime           int64
	Open               float64
	High               float64
	Low                float64
	Close              float64
	BaseVolume         float64
	QuoteVolume        float64
	TradeCount         int64
	TakerBuyBaseVolume float64
	TakerBuyQuoteVolume float64
}

// Columns is the fixed ten-column order used by both the array round-trip
// and the tabular projector.
var Columns = [10]string{
	"open_time", "open", "high", "low", "close",
	"volume", "quote_volume", "trade_count",
	"taker_buy_base", "taker_buy_quote",
}

// ToRow converts a Bar to its ten-element positional form, matching Columns.
func (b Bar) ToRow() [10]any {
	return [10]any{
		b.OpenTime, b.Open, b.High, b.Low, b.Close,
		b.BaseVolume, b.QuoteVolume, b.TradeCount,
		b.TakerBuyBaseVolume, b.TakerBuyQuoteVolume,
	}
}

// FromRow reconstructs a Bar from its ten-element positional form. It is the
// inverse of ToRow and is used by the round-trip tests.
func FromRow(row [10]any) (Bar, error) {
	var b Bar
	var err error
	if b.OpenTime, err = asInt64(row[0]); err != nil {
		return Bar{}, fmt.Errorf("open_time: %w", err)
	}
	if b.Open, err = asFloat64(row[1]); err != nil {
		return Bar{}, fmt.Errorf("open: %w", err)
	}
	if b.High, err = asFloat64(row[2]); err != nil {
		return Bar{}, fmt.Errorf("high: %w", err)
	}
	if b.Low, err = asFloat64(row[3]); err != nil {
		return Bar{}, fmt.Errorf("low: %w", err)
	}
	if b.Close, err = asFloat64(row[4]); err != nil {
		return Bar{}, fmt.Errorf("close: %w", err)
	}
	if b.BaseVolume, err = asFloat64(row[5]); err != nil {
		return Bar{}, fmt.Errorf("volume: %w", err)
	}
	if b.QuoteVolume, err = asFloat64(row[6]); err != nil {
		return Bar{}, fmt.Errorf("quote_volume: %w", err)
	}
	if b.TradeCount, err = asInt64(row[7]); err != nil {
		return Bar{}, fmt.Errorf("trade_count: %w", err)
	}
	if b.TakerBuyBaseVolume, err = asFloat64(row[8]); err != nil {
		return Bar{}, fmt.Errorf("taker_buy_base: %w", err)
	}
	if b.TakerBuyQuoteVolume, err = asFloat64(row[9]); err != nil {
		return Bar{}, fmt.Errorf("taker_buy_quote: %w", err)
	}
	return b, nil
}

func asInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func asFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// ParseOpenTime normalizes any of the wire shapes a bar timestamp may
// arrive in (integer or float seconds, decimal string, RFC 3339 string, or
// a time.Time) into integer seconds of Unix time. Numeric values are
// returned unscaled, whatever their magnitude. It does not apply the
// magnitude heuristic of ensure_seconds — callers that receive a raw
// numeric timestamp of unknown unit should go through
// internal/ohlcv.EnsureSeconds instead; this function is for values already
// known to be seconds-denominated but delivered in a variety of Go types.
func ParseOpenTime(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case time.Time:
		return x.Unix(), nil
	case string:
		s := strings.TrimSpace(x)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), nil
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.Unix(), nil
		}
		return 0, fmt.Errorf("unparsable timestamp %q", s)
	default:
		return 0, fmt.Errorf("unsupported timestamp type %T", v)
	}
}
