package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/ccjoness/StellarIQ-API/apperrors"
	"github.com/ccjoness/StellarIQ-API/models"
	"github.com/ccjoness/StellarIQ-API/services/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource records every upstream call and answers from a table
// keyed by the function parameter.
type countingSource struct {
	mu        sync.Mutex
	calls     []url.Values
	responses map[string]json.RawMessage
	err       error
}

func (s *countingSource) Fetch(_ context.Context, params url.Values) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, params)
	if s.err != nil {
		return nil, s.err
	}
	if body, ok := s.responses[params.Get("function")]; ok {
		return body, nil
	}
	return json.RawMessage(`{}`), nil
}

func (s *countingSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestGateway(src Source) (*Gateway, *cache.Memory) {
	mem := cache.NewMemory()
	return NewGateway(src, cache.NewStore(mem, 15*time.Minute)), mem
}

func TestGateway_CacheAside(t *testing.T) {
	src := &countingSource{responses: map[string]json.RawMessage{
		"RSI": json.RawMessage(`{"Technical Analysis: RSI":{"2024-03-01":{"RSI":"71.2"}}}`),
	}}
	g, _ := newTestGateway(src)
	ctx := context.Background()

	first, err := g.RSI(ctx, "AAPL", "daily", 14, "close")
	require.NoError(t, err)
	assert.Equal(t, 1, src.Calls())

	second, err := g.RSI(ctx, "aapl", "daily", 14, "close")
	require.NoError(t, err)
	assert.Equal(t, 1, src.Calls(), "second fetch within TTL must not reach upstream")
	assert.JSONEq(t, string(first), string(second))

	params := src.calls[0]
	assert.Equal(t, "14", params.Get("time_period"))
	assert.Equal(t, "close", params.Get("series_type"))
}

func TestGateway_UpstreamErrorNotCached(t *testing.T) {
	src := &countingSource{err: apperrors.Upstream("fetch GLOBAL_QUOTE", errors.New("status 503"))}
	g, mem := newTestGateway(src)

	_, err := g.StockQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstream(err))
	assert.Equal(t, 0, mem.Len())
}

func TestGateway_RejectsInvalidInterval(t *testing.T) {
	src := &countingSource{}
	g, _ := newTestGateway(src)
	ctx := context.Background()

	_, err := g.StockIntraday(ctx, "AAPL", "2min", "compact")
	assert.True(t, apperrors.IsConfiguration(err))

	_, err = g.CryptoIntraday(ctx, "BTC", "USD", "daily")
	assert.True(t, apperrors.IsConfiguration(err))

	_, err = g.Stoch(ctx, "AAPL", "yearly")
	assert.True(t, apperrors.IsConfiguration(err))

	_, err = g.StockDaily(ctx, "AAPL", "huge")
	assert.True(t, apperrors.IsConfiguration(err))

	assert.Equal(t, 0, src.Calls())

	_, err = g.StockIntraday(ctx, "AAPL", "15min", "compact")
	assert.NoError(t, err)
	assert.Equal(t, 1, src.Calls())
}

func TestGateway_InvalidateOnlyTouchesSymbol(t *testing.T) {
	src := &countingSource{}
	g, mem := newTestGateway(src)
	ctx := context.Background()

	_, _ = g.StockQuote(ctx, "AAPL")
	_, _ = g.RSI(ctx, "AAPL", "daily", 14, "close")
	_, _ = g.MACD(ctx, "AAPL", "daily", "close")
	_, _ = g.RSI(ctx, "MSFT", "daily", 14, "close")
	_, _ = g.CryptoExchangeRate(ctx, "BTC", "USD")
	_, _ = g.SearchSymbol(ctx, "AAPL")
	require.Equal(t, 6, mem.Len())

	removed := g.Invalidate(ctx, "aapl")
	assert.Equal(t, 3, removed)
	assert.Equal(t, 3, mem.Len())

	assert.Equal(t, 1, g.Invalidate(ctx, "BTC"))

	calls := src.Calls()
	_, _ = g.RSI(ctx, "MSFT", "daily", 14, "close")
	assert.Equal(t, calls, src.Calls(), "MSFT entry must survive AAPL invalidation")
}

func TestGateway_CurrentPrice(t *testing.T) {
	src := &countingSource{responses: map[string]json.RawMessage{
		"GLOBAL_QUOTE":           json.RawMessage(`{"Global Quote":{"05. price":"189.4100"}}`),
		"CURRENCY_EXCHANGE_RATE": json.RawMessage(`{"Realtime Currency Exchange Rate":{"5. Exchange Rate":"64250.5"}}`),
	}}
	g, _ := newTestGateway(src)
	ctx := context.Background()

	price, err := g.CurrentPrice(ctx, "AAPL", models.AssetEquity)
	require.NoError(t, err)
	assert.Equal(t, "189.41", price.String())

	rate, err := g.CurrentPrice(ctx, "BTC", models.AssetCrypto)
	require.NoError(t, err)
	assert.Equal(t, "64250.5", rate.String())
	assert.Equal(t, "USD", src.calls[1].Get("to_currency"))

	_, err = g.CurrentPrice(ctx, "AAPL", models.AssetClass("bond"))
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestGateway_CurrentPriceUnparseableIsUpstream(t *testing.T) {
	src := &countingSource{responses: map[string]json.RawMessage{
		"GLOBAL_QUOTE": json.RawMessage(`{"Global Quote":{}}`),
	}}
	g, _ := newTestGateway(src)

	_, err := g.CurrentPrice(context.Background(), "ZZZZ", models.AssetEquity)
	assert.True(t, apperrors.IsUpstream(err))
}
