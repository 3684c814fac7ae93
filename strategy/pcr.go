package strategy

import "github.com/indexoptions/kernel/domain"

// PCRAnalysis fades extreme put-call-ratio readings: a very high PCR
// (heavy put writing) is read as bullish, a very low PCR as bearish.
type PCRAnalysis struct{}

func (PCRAnalysis) ID() string { return "pcr_analysis" }

func (s PCRAnalysis) Analyse(snap domain.Snapshot) []domain.Signal {
	pcr := snap.Chain.PCR
	var side domain.Side
	var strength float64
	var reason string
	switch {
	case pcr >= 1.5:
		side, strength, reason = domain.CALL, clamp((pcr-1.5)*100, 0, 100), "PCR extreme high, contrarian bullish"
	case pcr <= 0.6 && pcr > 0:
		side, strength, reason = domain.PUT, clamp((0.6-pcr)*200, 0, 100), "PCR extreme low, contrarian bearish"
	default:
		return nil
	}
	strike := snap.ATMStrike
	return []domain.Signal{buildSignal(s.ID(), snap, strike, side, strength, reason)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// buildSignal assembles the common fields every strategy must populate:
// Greeks and context pulled straight from the snapshot so nothing goes
// out zero-filled. Every field is long-only: a CALL signal's target
// sits above entry and its stop below; a PUT signal is the mirror
// image, target below entry and stop above, since a long PUT profits
// as price falls.
func buildSignal(id string, snap domain.Snapshot, strike float64, side domain.Side, strength float64, reason string) domain.Signal {
	entry := ltpAt(snap, strike, side)
	var target, stop float64
	var ladder domain.Ladder
	if side == domain.CALL {
		target = entry * 1.30
		stop = entry * 0.85
		ladder = domain.Ladder{T1: entry * 1.10, T2: entry * 1.20, T3: target, Enabled: true}
	} else {
		target = entry * 0.70
		stop = entry * 1.15
		ladder = domain.Ladder{T1: entry * 0.90, T2: entry * 0.80, T3: target, Enabled: true}
	}
	return domain.Signal{
		StrategyID:  id,
		Symbol:      snap.Underlying,
		Direction:   side,
		Strike:      strike,
		Expiry:      snap.CurrentExpiry,
		EntryPrice:  entry,
		TargetPrice: target,
		StopLoss:    stop,
		Ladder:      ladder,
		Strength:    strength,
		Reason:      reason,
		Greeks:      greeksAt(snap, strike, side),
		Context:     context(snap),
		ProducedAt:  snap.LastRefresh,
	}
}
