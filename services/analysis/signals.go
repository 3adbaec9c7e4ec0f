package analysis

import (
	"fmt"
	"math"

	"github.com/ccjoness/StellarIQ-API/models"
	"github.com/ccjoness/StellarIQ-API/services/marketdata"
)

// Indicator names as they appear on signals
const (
	IndicatorRSI       = "RSI"
	IndicatorMACD      = "MACD"
	IndicatorStoch     = "Stochastic"
	IndicatorBollinger = "Bollinger Bands"
)

// Thresholds are the overbought/oversold levels for the bounded oscillators
type Thresholds struct {
	RSIOverbought   float64
	RSIOversold     float64
	StochOverbought float64
	StochOversold   float64
}

// DefaultThresholds returns the conventional 70/30 RSI and 80/20 stochastic levels
func DefaultThresholds() Thresholds {
	return Thresholds{
		RSIOverbought:   70,
		RSIOversold:     30,
		StochOverbought: 80,
		StochOversold:   20,
	}
}

// IndicatorSignal is one indicator's independent classification
type IndicatorSignal struct {
	Indicator   string           `json:"indicator"`
	Condition   models.Condition `json:"condition"`
	Value       float64          `json:"value"`
	Strength    float64          `json:"strength"` // 0-1
	Description string           `json:"description"`
}

// ClassifyRSI classifies the most recent RSI bar
func ClassifyRSI(points []marketdata.RSIPoint, th Thresholds) (IndicatorSignal, bool) {
	if len(points) == 0 {
		return IndicatorSignal{}, false
	}
	v := points[0].RSI
	cond, strength := classifyOscillator(v, th.RSIOverbought, th.RSIOversold)
	return IndicatorSignal{
		Indicator:   IndicatorRSI,
		Condition:   cond,
		Value:       v,
		Strength:    strength,
		Description: fmt.Sprintf("RSI at %.2f indicates %s conditions", v, cond),
	}, true
}

// ClassifyMACD looks for a signal-line crossover between the two most recent
// bars. A bullish cross reads as oversold (a buying opportunity), a bearish
// cross as overbought.
func ClassifyMACD(points []marketdata.MACDPoint) (IndicatorSignal, bool) {
	if len(points) < 2 {
		return IndicatorSignal{}, false
	}
	cur, prev := points[0], points[1]
	sig := IndicatorSignal{Indicator: IndicatorMACD, Value: cur.MACD}

	switch {
	case cur.MACD > cur.Signal && prev.MACD <= prev.Signal:
		sig.Condition = models.ConditionOversold
		sig.Strength = crossoverStrength(cur)
		sig.Description = "MACD bullish crossover - potential buy signal"
	case cur.MACD < cur.Signal && prev.MACD >= prev.Signal:
		sig.Condition = models.ConditionOverbought
		sig.Strength = crossoverStrength(cur)
		sig.Description = "MACD bearish crossover - potential sell signal"
	default:
		sig.Condition = models.ConditionNeutral
		sig.Strength = 0.3
		if cur.MACD > cur.Signal {
			sig.Description = "MACD above signal line - bullish momentum"
		} else {
			sig.Description = "MACD below signal line - bearish momentum"
		}
	}
	return sig, true
}

func crossoverStrength(p marketdata.MACDPoint) float64 {
	if p.MACD == 0 {
		return 1
	}
	return math.Min(math.Abs(p.MACD-p.Signal)/math.Abs(p.MACD), 1)
}

// ClassifyStoch averages %K and %D of the most recent bar
func ClassifyStoch(points []marketdata.StochPoint, th Thresholds) (IndicatorSignal, bool) {
	if len(points) == 0 {
		return IndicatorSignal{}, false
	}
	avg := (points[0].SlowK + points[0].SlowD) / 2
	cond, strength := classifyOscillator(avg, th.StochOverbought, th.StochOversold)
	return IndicatorSignal{
		Indicator:   IndicatorStoch,
		Condition:   cond,
		Value:       avg,
		Strength:    strength,
		Description: fmt.Sprintf("Stochastic at %.2f indicates %s conditions", avg, cond),
	}, true
}

// ClassifyBollinger places price relative to the most recent bands
func ClassifyBollinger(points []marketdata.BBandsPoint, price float64) (IndicatorSignal, bool) {
	if len(points) == 0 {
		return IndicatorSignal{}, false
	}
	b := points[0]
	width := b.Upper - b.Lower
	sig := IndicatorSignal{Indicator: IndicatorBollinger, Value: price}

	switch {
	case price >= b.Upper:
		sig.Condition = models.ConditionOverbought
		sig.Strength = bandStrength(price-b.Upper, width)
		sig.Description = fmt.Sprintf("Price %.2f at upper band - overbought", price)
	case price <= b.Lower:
		sig.Condition = models.ConditionOversold
		sig.Strength = bandStrength(b.Lower-price, width)
		sig.Description = fmt.Sprintf("Price %.2f at lower band - oversold", price)
	default:
		sig.Condition = models.ConditionNeutral
		sig.Strength = 0.5
		sig.Description = fmt.Sprintf("Price %.2f within bands - neutral", price)
	}
	return sig, true
}

func bandStrength(distance, width float64) float64 {
	if width <= 0 {
		if distance > 0 {
			return 1
		}
		return 0
	}
	return math.Min(distance/width, 1)
}

// classifyOscillator applies inclusive thresholds to a 0-100 oscillator.
// Strength is the distance past the threshold relative to the room left.
func classifyOscillator(v, overbought, oversold float64) (models.Condition, float64) {
	switch {
	case v >= overbought:
		return models.ConditionOverbought, ratio(v-overbought, 100-overbought)
	case v <= oversold:
		return models.ConditionOversold, ratio(oversold-v, oversold)
	default:
		return models.ConditionNeutral, 0.5
	}
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 1
	}
	return math.Min(num/den, 1)
}
