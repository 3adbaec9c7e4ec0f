package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_ParameterOrderDoesNotMatter(t *testing.T) {
	a := NewKey(KindRSI, "symbol", "AAPL", "interval", "daily")
	b := NewKey(KindRSI, "interval", "daily", "symbol", "AAPL")

	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, "rsi:interval:daily:symbol:AAPL", a.String())
}

func TestKey_DifferentValuesDiffer(t *testing.T) {
	a := NewKey(KindStockQuote, "symbol", "AAPL")
	b := NewKey(KindStockQuote, "symbol", "MSFT")
	c := NewKey(KindStockDaily, "symbol", "AAPL")

	assert.NotEqual(t, a.String(), b.String())
	assert.NotEqual(t, a.String(), c.String())
}

func TestParseKey_RoundTripsEscapedValues(t *testing.T) {
	original := NewKey(KindSymbolSearch, "keywords", "BRK:B 100%")

	parsed, ok := ParseKey(original.String())
	require.True(t, ok)
	assert.Equal(t, KindSymbolSearch, parsed.Kind)
	assert.Equal(t, "BRK:B 100%", parsed.Params["keywords"])
}

func TestParseKey_RejectsMalformed(t *testing.T) {
	_, ok := ParseKey("rsi:symbol")
	assert.False(t, ok)

	_, ok = ParseKey("")
	assert.False(t, ok)
}

func TestNewKey_IgnoresDanglingName(t *testing.T) {
	k := NewKey(KindStockQuote, "symbol", "AAPL", "orphan")
	assert.Equal(t, "stock_quote:symbol:AAPL", k.String())
}
