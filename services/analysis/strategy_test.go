package analysis

import (
	"testing"

	"github.com/ccjoness/StellarIQ-API/apperrors"
	"github.com/ccjoness/StellarIQ-API/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signal(cond models.Condition, strength float64) IndicatorSignal {
	return IndicatorSignal{Indicator: "test", Condition: cond, Strength: strength}
}

func TestWeightedStrategy(t *testing.T) {
	tests := []struct {
		name       string
		signals    []IndicatorSignal
		want       models.Condition
		confidence float64
		risk       RiskLevel
	}{
		{
			name:    "no signals",
			signals: nil,
			want:    models.ConditionNeutral, confidence: 0, risk: RiskUnknown,
		},
		{
			name: "overbought majority by weight",
			signals: []IndicatorSignal{
				signal(models.ConditionOverbought, 0.5),
				signal(models.ConditionOverbought, 0.75),
				signal(models.ConditionNeutral, 0.3),
				signal(models.ConditionNeutral, 0.5),
			},
			want: models.ConditionOverbought, confidence: 1.25 / 2.05, risk: RiskMedium,
		},
		{
			name: "strong overbought is high risk",
			signals: []IndicatorSignal{
				signal(models.ConditionOverbought, 1.0),
				signal(models.ConditionNeutral, 0.3),
			},
			want: models.ConditionOverbought, confidence: 1.0 / 1.3, risk: RiskHigh,
		},
		{
			name: "strong oversold is low risk",
			signals: []IndicatorSignal{
				signal(models.ConditionOversold, 0.9),
				signal(models.ConditionOversold, 0.9),
				signal(models.ConditionNeutral, 0.3),
			},
			want: models.ConditionOversold, confidence: 1.8 / 2.1, risk: RiskLow,
		},
		{
			name: "tie resolves to neutral",
			signals: []IndicatorSignal{
				signal(models.ConditionOverbought, 0.5),
				signal(models.ConditionOversold, 0.5),
			},
			want: models.ConditionNeutral, confidence: 0.5, risk: RiskMedium,
		},
		{
			name:    "zero total strength",
			signals: []IndicatorSignal{signal(models.ConditionOverbought, 0)},
			want:    models.ConditionNeutral, confidence: 0, risk: RiskUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := WeightedStrategy{}.Aggregate(tt.signals)
			assert.Equal(t, tt.want, v.Condition)
			assert.InDelta(t, tt.confidence, v.Confidence, 1e-9)
			assert.Equal(t, tt.risk, v.RiskLevel)
			assert.NotEmpty(t, v.Recommendation)
		})
	}
}

func TestAgreementStrategy(t *testing.T) {
	tests := []struct {
		name       string
		signals    []IndicatorSignal
		want       models.Condition
		confidence float64
	}{
		{"no signals", nil, models.ConditionNeutral, 0},
		{"three overbought", []IndicatorSignal{
			signal(models.ConditionOverbought, 0.1),
			signal(models.ConditionOverbought, 0.1),
			signal(models.ConditionOverbought, 0.1),
			signal(models.ConditionNeutral, 0.5),
		}, models.ConditionOverbought, 0.875},
		{"four oversold caps at one", []IndicatorSignal{
			signal(models.ConditionOversold, 0.2),
			signal(models.ConditionOversold, 0.2),
			signal(models.ConditionOversold, 0.2),
			signal(models.ConditionOversold, 0.2),
		}, models.ConditionOversold, 1.0},
		{"single dissenters stay neutral", []IndicatorSignal{
			signal(models.ConditionOverbought, 1),
			signal(models.ConditionOversold, 1),
			signal(models.ConditionNeutral, 0.5),
			signal(models.ConditionNeutral, 0.5),
		}, models.ConditionNeutral, 0.75},
		{"two and two split goes oversold", []IndicatorSignal{
			signal(models.ConditionOverbought, 1),
			signal(models.ConditionOverbought, 1),
			signal(models.ConditionOversold, 1),
			signal(models.ConditionOversold, 1),
		}, models.ConditionOversold, 0.75},
		{"three overbought still lose to two oversold", []IndicatorSignal{
			signal(models.ConditionOverbought, 1),
			signal(models.ConditionOverbought, 1),
			signal(models.ConditionOverbought, 1),
			signal(models.ConditionOversold, 0.1),
			signal(models.ConditionOversold, 0.1),
		}, models.ConditionOversold, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := AgreementStrategy{}.Aggregate(tt.signals)
			assert.Equal(t, tt.want, v.Condition)
			assert.InDelta(t, tt.confidence, v.Confidence, 1e-9)
		})
	}
}

func TestStrategyByName(t *testing.T) {
	s, err := StrategyByName("")
	require.NoError(t, err)
	assert.Equal(t, "weighted", s.Name())

	s, err = StrategyByName("agreement")
	require.NoError(t, err)
	assert.Equal(t, "agreement", s.Name())

	_, err = StrategyByName("astrology")
	assert.True(t, apperrors.IsConfiguration(err))

	assert.Equal(t, []string{"agreement", "weighted"}, StrategyNames())
}
