package strategy

import "github.com/indexoptions/kernel/domain"

// OIChangePatterns reads lopsided open-interest buildup between the two
// sides of the ATM strike as directional pressure: heavy call writing
// caps upside (bearish), heavy put writing caps downside (bullish).
type OIChangePatterns struct{}

func (OIChangePatterns) ID() string { return "oi_change_patterns" }

func (s OIChangePatterns) Analyse(snap domain.Snapshot) []domain.Signal {
	pair, ok := snap.Chain.Strikes[snap.ATMStrike]
	if !ok {
		return nil
	}
	total := pair.Call.OpenInterest + pair.Put.OpenInterest
	if total == 0 {
		return nil
	}
	callShare := pair.Call.OpenInterest / total
	var side domain.Side
	var reason string
	switch {
	case callShare >= 0.65:
		side, reason = domain.PUT, "heavy call OI buildup at ATM, resistance forming"
	case callShare <= 0.35:
		side, reason = domain.CALL, "heavy put OI buildup at ATM, support forming"
	default:
		return nil
	}
	strength := clamp((callShare-0.5)*200, 0, 100)
	if side == domain.CALL {
		strength = clamp((0.5-callShare)*200, 0, 100)
	}
	return []domain.Signal{buildSignal(s.ID(), snap, snap.ATMStrike, side, strength, reason)}
}
