package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/ccjoness/StellarIQ-API/apperrors"
	"github.com/ccjoness/StellarIQ-API/models"
	"github.com/ccjoness/StellarIQ-API/services/cache"
	"github.com/shopspring/decimal"
)

// Source performs an upstream call. *Fetcher is the production Source.
type Source interface {
	Fetch(ctx context.Context, params url.Values) (json.RawMessage, error)
}

// intradayIntervals are the only intervals intraday endpoints accept
var intradayIntervals = map[string]bool{
	"1min": true, "5min": true, "15min": true, "30min": true, "60min": true,
}

// indicatorIntervals extend the intraday set with the calendar intervals
var indicatorIntervals = map[string]bool{
	"1min": true, "5min": true, "15min": true, "30min": true, "60min": true,
	"daily": true, "weekly": true, "monthly": true,
}

var outputSizes = map[string]bool{"compact": true, "full": true}

var seriesTypes = map[string]bool{"close": true, "open": true, "high": true, "low": true}

// symbolKinds lists every key family whose entries can reference a symbol.
var symbolKinds = []cache.Kind{
	cache.KindStockQuote,
	cache.KindStockDaily,
	cache.KindStockIntraday,
	cache.KindCryptoDaily,
	cache.KindCryptoWeekly,
	cache.KindCryptoMonthly,
	cache.KindCryptoIntraday,
	cache.KindCryptoRate,
	cache.KindRSI,
	cache.KindMACD,
	cache.KindStoch,
	cache.KindBBands,
}

// Gateway exposes one cache-aside accessor per provider data kind.
// Concurrent misses on the same key may both reach upstream; the payloads
// are idempotent so the last write simply wins.
type Gateway struct {
	source Source
	cache  *cache.Store
}

// NewGateway creates a gateway over source, caching with the store's default TTL
func NewGateway(source Source, store *cache.Store) *Gateway {
	return &Gateway{source: source, cache: store}
}

// StockQuote returns the GLOBAL_QUOTE payload
func (g *Gateway) StockQuote(ctx context.Context, symbol string) (json.RawMessage, error) {
	symbol = normalize(symbol)
	return g.cachedOrFetch(ctx,
		cache.NewKey(cache.KindStockQuote, "symbol", symbol),
		url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {symbol}},
	)
}

// StockDaily returns the TIME_SERIES_DAILY payload
func (g *Gateway) StockDaily(ctx context.Context, symbol, outputSize string) (json.RawMessage, error) {
	symbol = normalize(symbol)
	if err := checkEnum("StockDaily", "outputsize", outputSize, outputSizes); err != nil {
		return nil, err
	}
	return g.cachedOrFetch(ctx,
		cache.NewKey(cache.KindStockDaily, "symbol", symbol, "outputsize", outputSize),
		url.Values{"function": {"TIME_SERIES_DAILY"}, "symbol": {symbol}, "outputsize": {outputSize}},
	)
}

// StockIntraday returns the TIME_SERIES_INTRADAY payload
func (g *Gateway) StockIntraday(ctx context.Context, symbol, interval, outputSize string) (json.RawMessage, error) {
	symbol = normalize(symbol)
	if err := checkEnum("StockIntraday", "interval", interval, intradayIntervals); err != nil {
		return nil, err
	}
	if err := checkEnum("StockIntraday", "outputsize", outputSize, outputSizes); err != nil {
		return nil, err
	}
	return g.cachedOrFetch(ctx,
		cache.NewKey(cache.KindStockIntraday, "symbol", symbol, "interval", interval, "outputsize", outputSize),
		url.Values{"function": {"TIME_SERIES_INTRADAY"}, "symbol": {symbol}, "interval": {interval}, "outputsize": {outputSize}},
	)
}

// SearchSymbol returns SYMBOL_SEARCH matches for keywords
func (g *Gateway) SearchSymbol(ctx context.Context, keywords string) (json.RawMessage, error) {
	keywords = strings.TrimSpace(keywords)
	if keywords == "" {
		return nil, apperrors.Configuration("SearchSymbol", "keywords must not be empty")
	}
	return g.cachedOrFetch(ctx,
		cache.NewKey(cache.KindSymbolSearch, "keywords", keywords),
		url.Values{"function": {"SYMBOL_SEARCH"}, "keywords": {keywords}},
	)
}

// CryptoDaily returns the DIGITAL_CURRENCY_DAILY payload
func (g *Gateway) CryptoDaily(ctx context.Context, symbol, market string) (json.RawMessage, error) {
	return g.cryptoSeries(ctx, cache.KindCryptoDaily, "DIGITAL_CURRENCY_DAILY", symbol, market)
}

// CryptoWeekly returns the DIGITAL_CURRENCY_WEEKLY payload
func (g *Gateway) CryptoWeekly(ctx context.Context, symbol, market string) (json.RawMessage, error) {
	return g.cryptoSeries(ctx, cache.KindCryptoWeekly, "DIGITAL_CURRENCY_WEEKLY", symbol, market)
}

// CryptoMonthly returns the DIGITAL_CURRENCY_MONTHLY payload
func (g *Gateway) CryptoMonthly(ctx context.Context, symbol, market string) (json.RawMessage, error) {
	return g.cryptoSeries(ctx, cache.KindCryptoMonthly, "DIGITAL_CURRENCY_MONTHLY", symbol, market)
}

func (g *Gateway) cryptoSeries(ctx context.Context, kind cache.Kind, function, symbol, market string) (json.RawMessage, error) {
	symbol, market = normalize(symbol), normalize(market)
	return g.cachedOrFetch(ctx,
		cache.NewKey(kind, "symbol", symbol, "market", market),
		url.Values{"function": {function}, "symbol": {symbol}, "market": {market}},
	)
}

// CryptoIntraday returns the CRYPTO_INTRADAY payload
func (g *Gateway) CryptoIntraday(ctx context.Context, symbol, market, interval string) (json.RawMessage, error) {
	symbol, market = normalize(symbol), normalize(market)
	if err := checkEnum("CryptoIntraday", "interval", interval, intradayIntervals); err != nil {
		return nil, err
	}
	return g.cachedOrFetch(ctx,
		cache.NewKey(cache.KindCryptoIntraday, "symbol", symbol, "market", market, "interval", interval),
		url.Values{"function": {"CRYPTO_INTRADAY"}, "symbol": {symbol}, "market": {market}, "interval": {interval}},
	)
}

// CryptoExchangeRate returns the CURRENCY_EXCHANGE_RATE payload
func (g *Gateway) CryptoExchangeRate(ctx context.Context, from, to string) (json.RawMessage, error) {
	from, to = normalize(from), normalize(to)
	return g.cachedOrFetch(ctx,
		cache.NewKey(cache.KindCryptoRate, "from_currency", from, "to_currency", to),
		url.Values{"function": {"CURRENCY_EXCHANGE_RATE"}, "from_currency": {from}, "to_currency": {to}},
	)
}

// RSI returns the Relative Strength Index payload
func (g *Gateway) RSI(ctx context.Context, symbol, interval string, timePeriod int, seriesType string) (json.RawMessage, error) {
	return g.indicator(ctx, cache.KindRSI, "RSI", symbol, interval, timePeriod, seriesType)
}

// MACD returns the Moving Average Convergence Divergence payload
func (g *Gateway) MACD(ctx context.Context, symbol, interval, seriesType string) (json.RawMessage, error) {
	return g.indicator(ctx, cache.KindMACD, "MACD", symbol, interval, 0, seriesType)
}

// Stoch returns the slow stochastic oscillator payload
func (g *Gateway) Stoch(ctx context.Context, symbol, interval string) (json.RawMessage, error) {
	return g.indicator(ctx, cache.KindStoch, "STOCH", symbol, interval, 0, "")
}

// BBands returns the Bollinger Bands payload
func (g *Gateway) BBands(ctx context.Context, symbol, interval string, timePeriod int, seriesType string) (json.RawMessage, error) {
	return g.indicator(ctx, cache.KindBBands, "BBANDS", symbol, interval, timePeriod, seriesType)
}

// indicator validates and fetches a technical indicator. A zero timePeriod
// or empty seriesType leaves that parameter out of both the request and the key.
func (g *Gateway) indicator(ctx context.Context, kind cache.Kind, function, symbol, interval string, timePeriod int, seriesType string) (json.RawMessage, error) {
	symbol = normalize(symbol)
	if err := checkEnum(function, "interval", interval, indicatorIntervals); err != nil {
		return nil, err
	}
	if seriesType != "" {
		if err := checkEnum(function, "series_type", seriesType, seriesTypes); err != nil {
			return nil, err
		}
	}
	if timePeriod < 0 {
		return nil, apperrors.Configuration(function, "time_period must be positive")
	}

	pairs := []string{"symbol", symbol, "interval", interval}
	params := url.Values{"function": {function}, "symbol": {symbol}, "interval": {interval}}
	if timePeriod > 0 {
		period := strconv.Itoa(timePeriod)
		pairs = append(pairs, "time_period", period)
		params.Set("time_period", period)
	}
	if seriesType != "" {
		pairs = append(pairs, "series_type", seriesType)
		params.Set("series_type", seriesType)
	}
	return g.cachedOrFetch(ctx, cache.NewKey(kind, pairs...), params)
}

// CurrentPrice returns the latest price: the quote for equities and the USD
// exchange rate for crypto.
func (g *Gateway) CurrentPrice(ctx context.Context, symbol string, class models.AssetClass) (decimal.Decimal, error) {
	op := "CurrentPrice " + symbol
	switch class {
	case models.AssetCrypto:
		raw, err := g.CryptoExchangeRate(ctx, symbol, "USD")
		if err != nil {
			return decimal.Zero, err
		}
		rate, err := ParseExchangeRate(raw)
		if err != nil {
			return decimal.Zero, apperrors.Upstream(op, err)
		}
		return rate, nil
	case models.AssetEquity:
		raw, err := g.StockQuote(ctx, symbol)
		if err != nil {
			return decimal.Zero, err
		}
		price, err := ParseQuotePrice(raw)
		if err != nil {
			return decimal.Zero, apperrors.Upstream(op, err)
		}
		return price, nil
	default:
		return decimal.Zero, apperrors.Configuration(op, fmt.Sprintf("unknown asset class %q", class))
	}
}

// Invalidate drops every cached payload that references symbol and returns
// how many entries were removed.
func (g *Gateway) Invalidate(ctx context.Context, symbol string) int {
	symbol = normalize(symbol)
	removed := g.cache.DeleteWhere(ctx, symbolKinds, func(k cache.Key) bool {
		return k.Params["symbol"] == symbol || k.Params["from_currency"] == symbol
	})
	log.Printf("Invalidated %d cached payloads for %s", removed, symbol)
	return removed
}

func (g *Gateway) cachedOrFetch(ctx context.Context, key cache.Key, params url.Values) (json.RawMessage, error) {
	k := key.String()

	var cached json.RawMessage
	if g.cache.Get(ctx, k, &cached) {
		return cached, nil
	}

	payload, err := g.source.Fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	g.cache.Set(ctx, k, payload)
	return payload, nil
}

func checkEnum(op, name, value string, allowed map[string]bool) error {
	if !allowed[value] {
		return apperrors.Configuration(op, fmt.Sprintf("invalid %s %q", name, value))
	}
	return nil
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
