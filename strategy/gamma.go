package strategy

import "github.com/indexoptions/kernel/domain"

// GammaExposure reads concentrated gamma at a nearby strike as a pin
// risk: price tends to gravitate toward the strike where dealer gamma
// (proxied here by OI-weighted gamma) is largest, since dealer hedging
// flow dampens moves away from it and amplifies moves toward it once
// through.
type GammaExposure struct{}

func (GammaExposure) ID() string { return "gamma_scalping" }

func (s GammaExposure) Analyse(snap domain.Snapshot) []domain.Signal {
	var peakStrike float64
	var peakExposure float64
	for k, pair := range snap.Chain.Strikes {
		exposure := pair.Call.Greeks.Gamma*pair.Call.OpenInterest + pair.Put.Greeks.Gamma*pair.Put.OpenInterest
		if exposure > peakExposure {
			peakExposure = exposure
			peakStrike = k
		}
	}
	if peakStrike == 0 || snap.Spot == 0 {
		return nil
	}
	dist := (peakStrike - snap.Spot) / snap.Spot
	const threshold = 0.003
	var side domain.Side
	var reason string
	switch {
	case dist >= threshold:
		side, reason = domain.CALL, "gamma peak above spot, pinning pull upward"
	case dist <= -threshold:
		side, reason = domain.PUT, "gamma peak below spot, pinning pull downward"
	default:
		return nil
	}
	strength := clamp(absf(dist)*3000, 0, 100)
	return []domain.Signal{buildSignal(s.ID(), snap, snap.ATMStrike, side, strength, reason)}
}
