// Package analysis classifies technical indicators into overbought, oversold
// or neutral signals and aggregates them with a named strategy.
package analysis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/ccjoness/StellarIQ-API/models"
	"github.com/ccjoness/StellarIQ-API/services/marketdata"
	"github.com/shopspring/decimal"
)

// MarketData is the subset of the gateway the analyzer reads from
type MarketData interface {
	CurrentPrice(ctx context.Context, symbol string, class models.AssetClass) (decimal.Decimal, error)
	RSI(ctx context.Context, symbol, interval string, timePeriod int, seriesType string) (json.RawMessage, error)
	MACD(ctx context.Context, symbol, interval, seriesType string) (json.RawMessage, error)
	Stoch(ctx context.Context, symbol, interval string) (json.RawMessage, error)
	BBands(ctx context.Context, symbol, interval string, timePeriod int, seriesType string) (json.RawMessage, error)
}

const (
	analysisInterval = "daily"
	seriesType       = "close"
	rsiPeriod        = 14
	bbandsPeriod     = 20
)

// Result is the outcome of analyzing one symbol
type Result struct {
	Symbol       string            `json:"symbol"`
	AssetClass   models.AssetClass `json:"asset_class"`
	CurrentPrice *decimal.Decimal  `json:"current_price,omitempty"`
	Signals      []IndicatorSignal `json:"signals"`
	Verdict
	Strategy   string    `json:"strategy"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Analyzer fetches indicators for a symbol and runs a strategy over them
type Analyzer struct {
	data       MarketData
	strategy   Strategy
	thresholds Thresholds
	now        func() time.Time
}

// NewAnalyzer creates an analyzer aggregating with strategy
func NewAnalyzer(data MarketData, strategy Strategy, thresholds Thresholds) *Analyzer {
	return &Analyzer{
		data:       data,
		strategy:   strategy,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Strategy returns the analyzer's default strategy
func (a *Analyzer) Strategy() Strategy {
	return a.strategy
}

// Analyze runs the default strategy over symbol
func (a *Analyzer) Analyze(ctx context.Context, symbol string, class models.AssetClass) (*Result, error) {
	return a.AnalyzeWith(ctx, symbol, class, a.strategy)
}

// AnalyzeWith evaluates all four indicators for symbol and aggregates them
// with strategy. A single indicator failing is logged and skipped; failing
// to price the symbol, or every indicator failing, is returned as an error
// so callers never act on a verdict built from nothing.
func (a *Analyzer) AnalyzeWith(ctx context.Context, symbol string, class models.AssetClass, strategy Strategy) (*Result, error) {
	price, err := a.data.CurrentPrice(ctx, symbol, class)
	if err != nil {
		return nil, err
	}

	var (
		signals  []IndicatorSignal
		firstErr error
		failures int
	)
	collect := func(name string, sig IndicatorSignal, ok bool, err error) {
		if err != nil {
			log.Printf("Error analyzing %s for %s: %v", name, symbol, err)
			failures++
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		if ok {
			signals = append(signals, sig)
		}
	}

	sig, ok, err := a.rsi(ctx, symbol)
	collect(IndicatorRSI, sig, ok, err)
	sig, ok, err = a.macd(ctx, symbol)
	collect(IndicatorMACD, sig, ok, err)
	sig, ok, err = a.stoch(ctx, symbol)
	collect(IndicatorStoch, sig, ok, err)
	sig, ok, err = a.bollinger(ctx, symbol, price.InexactFloat64())
	collect(IndicatorBollinger, sig, ok, err)

	if failures == 4 {
		return nil, firstErr
	}

	return &Result{
		Symbol:       symbol,
		AssetClass:   class,
		CurrentPrice: &price,
		Signals:      signals,
		Verdict:      strategy.Aggregate(signals),
		Strategy:     strategy.Name(),
		AnalyzedAt:   a.now().UTC(),
	}, nil
}

func (a *Analyzer) rsi(ctx context.Context, symbol string) (IndicatorSignal, bool, error) {
	raw, err := a.data.RSI(ctx, symbol, analysisInterval, rsiPeriod, seriesType)
	if err != nil {
		return IndicatorSignal{}, false, err
	}
	points, err := marketdata.ParseRSI(raw)
	if err != nil {
		return IndicatorSignal{}, false, err
	}
	sig, ok := ClassifyRSI(points, a.thresholds)
	return sig, ok, nil
}

func (a *Analyzer) macd(ctx context.Context, symbol string) (IndicatorSignal, bool, error) {
	raw, err := a.data.MACD(ctx, symbol, analysisInterval, seriesType)
	if err != nil {
		return IndicatorSignal{}, false, err
	}
	points, err := marketdata.ParseMACD(raw)
	if err != nil {
		return IndicatorSignal{}, false, err
	}
	sig, ok := ClassifyMACD(points)
	return sig, ok, nil
}

func (a *Analyzer) stoch(ctx context.Context, symbol string) (IndicatorSignal, bool, error) {
	raw, err := a.data.Stoch(ctx, symbol, analysisInterval)
	if err != nil {
		return IndicatorSignal{}, false, err
	}
	points, err := marketdata.ParseStoch(raw)
	if err != nil {
		return IndicatorSignal{}, false, err
	}
	sig, ok := ClassifyStoch(points, a.thresholds)
	return sig, ok, nil
}

func (a *Analyzer) bollinger(ctx context.Context, symbol string, price float64) (IndicatorSignal, bool, error) {
	raw, err := a.data.BBands(ctx, symbol, analysisInterval, bbandsPeriod, seriesType)
	if err != nil {
		return IndicatorSignal{}, false, err
	}
	points, err := marketdata.ParseBBands(raw)
	if err != nil {
		return IndicatorSignal{}, false, err
	}
	sig, ok := ClassifyBollinger(points, price)
	return sig, ok, nil
}
