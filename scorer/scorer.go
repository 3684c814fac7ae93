// Package scorer attaches an ML probability to each Signal and filters
// the ensemble down to the set that clears both configured thresholds,
// applying the tie-break composite when several signals collide on the
// same (symbol, strike, direction). Scoring is pure: no I/O, no
// mutation of shared state.
package scorer

import "github.com/indexoptions/kernel/domain"

// FeatureVersion pins the exact feature schema a Model is trained
// against: Greeks + market context + the three engineered scalars
// below. A model trained against a different version must not be
// loaded against this scorer.
const FeatureVersion = 1

// Features is the fixed input vector handed to a Model.
type Features struct {
	Version int
	Delta, Gamma, Theta, Vega float64
	Spot, IV, VIX, PCR        float64
	Strength                  float64
	SupportCount              int
	RiskReward                float64
}

func featuresOf(s domain.Signal) Features {
	return Features{
		Version:      FeatureVersion,
		Delta:        s.Greeks.Delta,
		Gamma:        s.Greeks.Gamma,
		Theta:        s.Greeks.Theta,
		Vega:         s.Greeks.Vega,
		Spot:         s.Context.Spot,
		IV:           s.Context.IV,
		VIX:          s.Context.VIX,
		PCR:          s.Context.PCR,
		Strength:     s.Strength,
		SupportCount: s.SupportCount,
		RiskReward:   s.RiskReward(),
	}
}

// Model is the pluggable ML boundary: given engineered features it
// returns a probability in [0,1]. A model trained on a different
// FeatureVersion must reject the input rather than guess.
type Model interface {
	Version() int
	Predict(f Features) (float64, error)
}

// PassThroughModel is used when no trained model is loaded: probability
// equals strength/100.
type PassThroughModel struct{}

func (PassThroughModel) Version() int { return FeatureVersion }

func (PassThroughModel) Predict(f Features) (float64, error) {
	return f.Strength / 100, nil
}

// Scored is a Signal with its attached ML probability.
type Scored struct {
	domain.Signal
	MLProbability float64
	Composite     float64
}

// Scorer filters and ranks signals using a Model plus the two
// configured thresholds.
type Scorer struct {
	Model               Model
	MinMLScore          float64
	MinStrategyStrength float64
}

// New builds a Scorer; nil model falls back to PassThroughModel, in
// which case only MinStrategyStrength is applied.
func New(model Model, minML, minStrength float64) *Scorer {
	if model == nil {
		model = PassThroughModel{}
	}
	return &Scorer{Model: model, MinMLScore: minML, MinStrategyStrength: minStrength}
}

// Score scores and filters a batch of signals, then resolves ties
// across signals colliding on (symbol, strike, direction), keeping only
// the highest-composite survivor per key.
func (sc *Scorer) Score(signals []domain.Signal) []Scored {
	_, passThrough := sc.Model.(PassThroughModel)

	byKey := make(map[tieKey]Scored)
	for _, s := range signals {
		if s.Strength < sc.MinStrategyStrength {
			continue
		}
		ml, err := sc.Model.Predict(featuresOf(s))
		if err != nil {
			continue // model rejected the input (e.g. feature-version mismatch); drop, don't guess
		}
		if !passThrough && ml < sc.MinMLScore {
			continue
		}
		sr := Scored{Signal: s, MLProbability: ml}
		sr.Composite = composite(sr)
		key := tieKey{s.Symbol, s.Strike, s.Direction}
		if existing, ok := byKey[key]; !ok || sr.Composite > existing.Composite {
			byKey[key] = sr
		}
	}

	out := make([]Scored, 0, len(byKey))
	for _, v := range byKey {
		out = append(out, v)
	}
	return out
}

type tieKey struct {
	Symbol    domain.Underlying
	Strike    float64
	Direction domain.Side
}

// composite blends ML probability, raw strategy strength, cross-strategy
// support and risk/reward into one tie-break score.
func composite(s Scored) float64 {
	supportTerm := float64(s.SupportCount) / 10
	if supportTerm > 1 {
		supportTerm = 1
	}
	rrTerm := s.RiskReward() / 3
	if rrTerm > 1 {
		rrTerm = 1
	}
	if rrTerm < 0 {
		rrTerm = 0
	}
	return 0.4*s.MLProbability + 0.3*(s.Strength/100) + 0.2*supportTerm + 0.1*rrTerm
}
