package marketdata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// RSIPoint is one bar of a Relative Strength Index series
type RSIPoint struct {
	Timestamp string
	RSI       float64
}

// MACDPoint is one bar of a MACD series
type MACDPoint struct {
	Timestamp string
	MACD      float64
	Signal    float64
	Histogram float64
}

// StochPoint is one bar of a slow stochastic oscillator series
type StochPoint struct {
	Timestamp string
	SlowK     float64
	SlowD     float64
}

// BBandsPoint is one bar of a Bollinger Bands series
type BBandsPoint struct {
	Timestamp string
	Upper     float64
	Middle    float64
	Lower     float64
}

// ParseQuotePrice extracts the last traded price from a GLOBAL_QUOTE payload.
func ParseQuotePrice(raw json.RawMessage) (decimal.Decimal, error) {
	var payload struct {
		Quote map[string]string `json:"Global Quote"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode quote: %w", err)
	}
	price, ok := payload.Quote["05. price"]
	if !ok || price == "" {
		return decimal.Zero, fmt.Errorf("quote has no price")
	}
	return decimal.NewFromString(price)
}

// ParseExchangeRate extracts the rate from a CURRENCY_EXCHANGE_RATE payload.
func ParseExchangeRate(raw json.RawMessage) (decimal.Decimal, error) {
	var payload struct {
		Rate map[string]string `json:"Realtime Currency Exchange Rate"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode exchange rate: %w", err)
	}
	rate, ok := payload.Rate["5. Exchange Rate"]
	if !ok || rate == "" {
		return decimal.Zero, fmt.Errorf("exchange rate missing")
	}
	return decimal.NewFromString(rate)
}

// ParseRSI returns the RSI series, most recent first.
func ParseRSI(raw json.RawMessage) ([]RSIPoint, error) {
	return parseSeries(raw, "RSI", func(ts string, v map[string]string) (RSIPoint, error) {
		rsi, err := field(v, "RSI")
		return RSIPoint{Timestamp: ts, RSI: rsi}, err
	})
}

// ParseMACD returns the MACD series, most recent first.
func ParseMACD(raw json.RawMessage) ([]MACDPoint, error) {
	return parseSeries(raw, "MACD", func(ts string, v map[string]string) (MACDPoint, error) {
		p := MACDPoint{Timestamp: ts}
		var err error
		if p.MACD, err = field(v, "MACD"); err != nil {
			return p, err
		}
		if p.Signal, err = field(v, "MACD_Signal"); err != nil {
			return p, err
		}
		p.Histogram, err = field(v, "MACD_Hist")
		return p, err
	})
}

// ParseStoch returns the stochastic series, most recent first.
func ParseStoch(raw json.RawMessage) ([]StochPoint, error) {
	return parseSeries(raw, "STOCH", func(ts string, v map[string]string) (StochPoint, error) {
		p := StochPoint{Timestamp: ts}
		var err error
		if p.SlowK, err = field(v, "SlowK"); err != nil {
			return p, err
		}
		p.SlowD, err = field(v, "SlowD")
		return p, err
	})
}

// ParseBBands returns the Bollinger Bands series, most recent first.
func ParseBBands(raw json.RawMessage) ([]BBandsPoint, error) {
	return parseSeries(raw, "BBANDS", func(ts string, v map[string]string) (BBandsPoint, error) {
		p := BBandsPoint{Timestamp: ts}
		var err error
		if p.Upper, err = field(v, "Real Upper Band"); err != nil {
			return p, err
		}
		if p.Middle, err = field(v, "Real Middle Band"); err != nil {
			return p, err
		}
		p.Lower, err = field(v, "Real Lower Band")
		return p, err
	})
}

// parseSeries decodes a "Technical Analysis: <name>" envelope. Provider
// timestamps are ISO formatted, so a descending string sort puts the newest bar first.
func parseSeries[T any](raw json.RawMessage, name string, build func(ts string, values map[string]string) (T, error)) ([]T, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", name, err)
	}
	section, ok := payload["Technical Analysis: "+name]
	if !ok {
		return nil, fmt.Errorf("%s payload has no technical analysis section", name)
	}

	var bars map[string]map[string]string
	if err := json.Unmarshal(section, &bars); err != nil {
		return nil, fmt.Errorf("failed to decode %s series: %w", name, err)
	}

	timestamps := make([]string, 0, len(bars))
	for ts := range bars {
		timestamps = append(timestamps, ts)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(timestamps)))

	points := make([]T, 0, len(timestamps))
	for _, ts := range timestamps {
		p, err := build(ts, bars[ts])
		if err != nil {
			return nil, fmt.Errorf("%s bar %s: %w", name, ts, err)
		}
		points = append(points, p)
	}
	return points, nil
}

func field(values map[string]string, name string) (float64, error) {
	s, ok := values[name]
	if !ok {
		return 0, fmt.Errorf("missing %q", name)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %q: %w", name, err)
	}
	return f, nil
}
