package strategy

import "github.com/indexoptions/kernel/domain"

// MaxPainPull reads spot's distance from the max-pain strike as a pull
// toward expiry: option writers, who dominate OI, are assumed to defend
// the strike that minimises their aggregate payout.
type MaxPainPull struct{}

func (MaxPainPull) ID() string { return "max_pain" }

func (s MaxPainPull) Analyse(snap domain.Snapshot) []domain.Signal {
	mp := snap.Chain.MaxPainStrike
	if mp == 0 || snap.Spot == 0 {
		return nil
	}
	distPct := (mp - snap.Spot) / snap.Spot
	const threshold = 0.005 // half a percent
	var side domain.Side
	var reason string
	switch {
	case distPct >= threshold:
		side, reason = domain.CALL, "spot below max pain, pull upward expected"
	case distPct <= -threshold:
		side, reason = domain.PUT, "spot above max pain, pull downward expected"
	default:
		return nil
	}
	strength := clamp(absf(distPct)*2000, 0, 100)
	return []domain.Signal{buildSignal(s.ID(), snap, snap.ATMStrike, side, strength, reason)}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
