package marketdata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRSI_MostRecentFirst(t *testing.T) {
	raw := json.RawMessage(`{
		"Meta Data": {"1: Symbol": "AAPL", "2: Indicator": "Relative Strength Index (RSI)"},
		"Technical Analysis: RSI": {
			"2024-02-28": {"RSI": "55.1000"},
			"2024-03-01": {"RSI": "72.3456"},
			"2024-02-29": {"RSI": "64.0000"}
		}
	}`)

	points, err := ParseRSI(raw)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "2024-03-01", points[0].Timestamp)
	assert.InDelta(t, 72.3456, points[0].RSI, 1e-9)
	assert.Equal(t, "2024-02-28", points[2].Timestamp)
}

func TestParseMACD(t *testing.T) {
	raw := json.RawMessage(`{"Technical Analysis: MACD": {
		"2024-03-01": {"MACD": "1.5", "MACD_Signal": "1.2", "MACD_Hist": "0.3"},
		"2024-02-29": {"MACD": "1.0", "MACD_Signal": "1.1", "MACD_Hist": "-0.1"}
	}}`)

	points, err := ParseMACD(raw)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, MACDPoint{Timestamp: "2024-03-01", MACD: 1.5, Signal: 1.2, Histogram: 0.3}, points[0])
}

func TestParseStochAndBBands(t *testing.T) {
	stoch, err := ParseStoch(json.RawMessage(`{"Technical Analysis: STOCH": {"2024-03-01": {"SlowK": "85", "SlowD": "81"}}}`))
	require.NoError(t, err)
	assert.Equal(t, []StochPoint{{Timestamp: "2024-03-01", SlowK: 85, SlowD: 81}}, stoch)

	bands, err := ParseBBands(json.RawMessage(`{"Technical Analysis: BBANDS": {"2024-03-01": {
		"Real Upper Band": "110", "Real Middle Band": "100", "Real Lower Band": "90"}}}`))
	require.NoError(t, err)
	assert.Equal(t, []BBandsPoint{{Timestamp: "2024-03-01", Upper: 110, Middle: 100, Lower: 90}}, bands)
}

func TestParseSeries_Errors(t *testing.T) {
	_, err := ParseRSI(json.RawMessage(`{"Meta Data": {}}`))
	assert.Error(t, err)

	_, err = ParseRSI(json.RawMessage(`{"Technical Analysis: RSI": {"2024-03-01": {"RSI": "n/a"}}}`))
	assert.Error(t, err)

	_, err = ParseMACD(json.RawMessage(`{"Technical Analysis: MACD": {"2024-03-01": {"MACD": "1"}}}`))
	assert.Error(t, err)
}

func TestParseQuoteAndRate(t *testing.T) {
	price, err := ParseQuotePrice(json.RawMessage(`{"Global Quote": {"05. price": "189.4100"}}`))
	require.NoError(t, err)
	assert.Equal(t, "189.41", price.String())

	_, err = ParseQuotePrice(json.RawMessage(`{"Global Quote": {}}`))
	assert.Error(t, err)

	rate, err := ParseExchangeRate(json.RawMessage(`{"Realtime Currency Exchange Rate": {"5. Exchange Rate": "64250.12000000"}}`))
	require.NoError(t, err)
	assert.Equal(t, "64250.12", rate.String())
}
