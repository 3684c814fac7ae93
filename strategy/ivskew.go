package strategy

import "github.com/indexoptions/kernel/domain"

// IVSkew compares implied vol between the nearest OTM call and put: a
// richer put (put skew) signals hedging demand/fear and is read
// bullish-contrarian on the underlying's near-term drift; a richer call
// signals the opposite.
type IVSkew struct{}

func (IVSkew) ID() string { return "iv_skew" }

func (s IVSkew) Analyse(snap domain.Snapshot) []domain.Signal {
	callIV := legByOffset(snap, 1, domain.CALL)
	putIV := legByOffset(snap, -1, domain.PUT)
	if callIV == 0 || putIV == 0 {
		return nil
	}
	skew := putIV - callIV
	var side domain.Side
	var reason string
	switch {
	case skew >= 3:
		side, reason = domain.CALL, "put skew elevated, fear overpriced, contrarian bullish"
	case skew <= -3:
		side, reason = domain.PUT, "call skew elevated, greed overpriced, contrarian bearish"
	default:
		return nil
	}
	strength := clamp(absf(skew)*10, 0, 100)
	return []domain.Signal{buildSignal(s.ID(), snap, snap.ATMStrike, side, strength, reason)}
}

// legByOffset finds the strike one tick away from ATM in the given
// direction (offset>0 = above ATM, <0 = below) and returns that leg's
// implied vol, falling back to the ATM leg when no adjacent strike is
// quoted.
func legByOffset(snap domain.Snapshot, offset int, side domain.Side) float64 {
	var best float64
	bestDist := -1.0
	target := snap.ATMStrike
	for k, pair := range snap.Chain.Strikes {
		if offset > 0 && k <= snap.ATMStrike {
			continue
		}
		if offset < 0 && k >= snap.ATMStrike {
			continue
		}
		d := absf(k - snap.ATMStrike)
		if bestDist < 0 || d < bestDist {
			bestDist = d
			target = k
		}
		_ = pair
	}
	leg := greeksLeg(snap, target, side)
	best = leg
	return best
}

func greeksLeg(snap domain.Snapshot, strike float64, side domain.Side) float64 {
	pair, ok := snap.Chain.Strikes[strike]
	if !ok {
		return 0
	}
	if side == domain.CALL {
		return pair.Call.ImpliedVol
	}
	return pair.Put.ImpliedVol
}
