package scorer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexoptions/kernel/domain"
)

func baseSignal(strategyID string, strength float64) domain.Signal {
	return domain.Signal{
		StrategyID:   strategyID,
		Symbol:       domain.NIFTY,
		Direction:    domain.CALL,
		Strike:       22000,
		EntryPrice:   100,
		TargetPrice:  130,
		StopLoss:     90,
		Strength:     strength,
		SupportCount: 1,
	}
}

func TestScorePassThroughAppliesOnlyStrengthThreshold(t *testing.T) {
	sc := New(nil, 0.9, 50)
	signals := []domain.Signal{baseSignal("pcr_analysis", 60), baseSignal("oi_change_patterns", 40)}

	out := sc.Score(signals)
	require.Len(t, out, 1)
	assert.Equal(t, "pcr_analysis", out[0].StrategyID)
}

type rejectingModel struct{}

func (rejectingModel) Version() int { return FeatureVersion }
func (rejectingModel) Predict(Features) (float64, error) {
	return 0, errors.New("feature version mismatch")
}

func TestScoreDropsSignalsTheModelRejects(t *testing.T) {
	sc := New(rejectingModel{}, 0.1, 0)
	out := sc.Score([]domain.Signal{baseSignal("pcr_analysis", 80)})
	assert.Empty(t, out)
}

type fixedModel struct{ p float64 }

func (fixedModel) Version() int { return FeatureVersion }
func (m fixedModel) Predict(Features) (float64, error) { return m.p, nil }

func TestScoreAppliesMLThresholdWhenModelIsNotPassThrough(t *testing.T) {
	sc := New(fixedModel{p: 0.3}, 0.5, 0)
	out := sc.Score([]domain.Signal{baseSignal("pcr_analysis", 80)})
	assert.Empty(t, out)

	sc2 := New(fixedModel{p: 0.9}, 0.5, 0)
	out2 := sc2.Score([]domain.Signal{baseSignal("pcr_analysis", 80)})
	assert.Len(t, out2, 1)
}

func TestScoreTieBreakKeepsHighestComposite(t *testing.T) {
	sc := New(nil, 0, 0)
	weak := baseSignal("pcr_analysis", 40)
	strong := baseSignal("oi_change_patterns", 90)

	out := sc.Score([]domain.Signal{weak, strong})
	require.Len(t, out, 1)
	assert.Equal(t, "oi_change_patterns", out[0].StrategyID)
}

func TestCompositeClampsSupportAndRiskRewardTerms(t *testing.T) {
	s := baseSignal("pcr_analysis", 100)
	s.SupportCount = 50 // far beyond the /10 clamp
	s.TargetPrice = 1000
	s.StopLoss = 99 // huge risk-reward, should clamp rrTerm to 1
	scored := Scored{Signal: s, MLProbability: 1}
	got := composite(scored)
	// all four terms maxed: 0.4 + 0.3 + 0.2 + 0.1
	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestCompositeNegativeRiskRewardClampsToZero(t *testing.T) {
	s := baseSignal("pcr_analysis", 0)
	s.EntryPrice = 100
	s.TargetPrice = 90 // target below entry for a CALL: negative numerator
	s.StopLoss = 80
	scored := Scored{Signal: s, MLProbability: 0}
	got := composite(scored)
	assert.GreaterOrEqual(t, got, 0.0)
}
