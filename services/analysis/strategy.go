package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/ccjoness/StellarIQ-API/apperrors"
	"github.com/ccjoness/StellarIQ-API/models"
)

// RiskLevel grades how stretched an overall condition is
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskUnknown RiskLevel = "unknown"
)

// Verdict is the aggregate of a set of indicator signals
type Verdict struct {
	Condition      models.Condition `json:"overall_condition"`
	Confidence     float64          `json:"confidence"`
	RiskLevel      RiskLevel        `json:"risk_level"`
	Recommendation string           `json:"recommendation"`
}

// Strategy turns independent indicator signals into one verdict
type Strategy interface {
	Name() string
	Description() string
	Aggregate(signals []IndicatorSignal) Verdict
}

// DefaultStrategy is used when no strategy is configured
const DefaultStrategy = "weighted"

var strategies = map[string]Strategy{}

// RegisterStrategy makes a strategy selectable by name
func RegisterStrategy(s Strategy) {
	strategies[s.Name()] = s
}

func init() {
	RegisterStrategy(WeightedStrategy{})
	RegisterStrategy(AgreementStrategy{})
}

// StrategyByName looks up a registered strategy. An empty name selects the default.
func StrategyByName(name string) (Strategy, error) {
	if name == "" {
		name = DefaultStrategy
	}
	s, ok := strategies[name]
	if !ok {
		return nil, apperrors.Configuration("analysis.StrategyByName", fmt.Sprintf("unknown strategy %q", name))
	}
	return s, nil
}

// StrategyNames lists registered strategies in sorted order
func StrategyNames() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var noSignals = Verdict{
	Condition:      models.ConditionNeutral,
	Confidence:     0,
	RiskLevel:      RiskUnknown,
	Recommendation: "No signals available",
}

// =============================================================================
// WEIGHTED STRATEGY
// Strength-weighted vote across condition buckets
// =============================================================================

type WeightedStrategy struct{}

func (WeightedStrategy) Name() string { return "weighted" }
func (WeightedStrategy) Description() string {
	return "Sums signal strength per condition, normalizes, and picks the heaviest bucket; ties are neutral"
}

func (WeightedStrategy) Aggregate(signals []IndicatorSignal) Verdict {
	if len(signals) == 0 {
		return noSignals
	}

	scores := map[models.Condition]float64{}
	total := 0.0
	for _, s := range signals {
		scores[bucket(s.Condition)] += s.Strength
		total += s.Strength
	}
	if total == 0 {
		return noSignals
	}

	best := models.ConditionNeutral
	bestScore := -1.0
	tied := false
	for _, cond := range []models.Condition{models.ConditionOverbought, models.ConditionOversold, models.ConditionNeutral} {
		score := scores[cond] / total
		switch {
		case score > bestScore:
			best, bestScore, tied = cond, score, false
		case score == bestScore:
			tied = true
		}
	}
	if tied {
		best = models.ConditionNeutral
	}
	return verdict(best, bestScore)
}

// =============================================================================
// AGREEMENT STRATEGY
// Discrete vote: a condition needs at least two indicators behind it
// =============================================================================

type AgreementStrategy struct{}

func (AgreementStrategy) Name() string { return "agreement" }
func (AgreementStrategy) Description() string {
	return "Requires two or more indicators to agree, oversold first; confidence grows by 0.125 per agreeing indicator from 0.5"
}

func (AgreementStrategy) Aggregate(signals []IndicatorSignal) Verdict {
	if len(signals) == 0 {
		return noSignals
	}

	counts := map[models.Condition]int{}
	for _, s := range signals {
		counts[bucket(s.Condition)]++
	}

	oversold := counts[models.ConditionOversold] >= 2
	overbought := counts[models.ConditionOverbought] >= 2

	cond := models.ConditionNeutral
	switch {
	case oversold:
		cond = models.ConditionOversold
	case overbought:
		cond = models.ConditionOverbought
	}
	return verdict(cond, math.Min(0.5+0.125*float64(counts[cond]), 1))
}

func bucket(c models.Condition) models.Condition {
	if c == models.ConditionOverbought || c == models.ConditionOversold {
		return c
	}
	return models.ConditionNeutral
}

func verdict(cond models.Condition, confidence float64) Verdict {
	v := Verdict{Condition: cond, Confidence: confidence, RiskLevel: RiskMedium}
	switch cond {
	case models.ConditionOverbought:
		v.Recommendation = "Consider selling - multiple indicators suggest overbought conditions"
		if confidence > 0.7 {
			v.RiskLevel = RiskHigh
		}
	case models.ConditionOversold:
		v.Recommendation = "Consider buying - multiple indicators suggest oversold conditions"
		if confidence > 0.7 {
			v.RiskLevel = RiskLow
		}
	default:
		v.Recommendation = "Hold - mixed or neutral signals from technical indicators"
	}
	return v
}
