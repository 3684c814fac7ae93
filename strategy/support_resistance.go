package strategy

import "github.com/indexoptions/kernel/domain"

// OISupportResistance treats strikes with the single largest put OI
// below spot as support and the largest call OI above spot as
// resistance, and signals a bounce once spot is within a tight band of
// either.
type OISupportResistance struct{}

func (OISupportResistance) ID() string { return "support_resistance" }

func (s OISupportResistance) Analyse(snap domain.Snapshot) []domain.Signal {
	if snap.Spot == 0 {
		return nil
	}
	var support, resistance float64
	var supportOI, resistanceOI float64
	for k, pair := range snap.Chain.Strikes {
		if k < snap.Spot && pair.Put.OpenInterest > supportOI {
			supportOI = pair.Put.OpenInterest
			support = k
		}
		if k > snap.Spot && pair.Call.OpenInterest > resistanceOI {
			resistanceOI = pair.Call.OpenInterest
			resistance = k
		}
	}
	const band = 0.002
	if support != 0 && absf(snap.Spot-support)/snap.Spot <= band {
		return []domain.Signal{buildSignal(s.ID(), snap, snap.ATMStrike, domain.CALL, 60, "spot testing OI support level")}
	}
	if resistance != 0 && absf(resistance-snap.Spot)/snap.Spot <= band {
		return []domain.Signal{buildSignal(s.ID(), snap, snap.ATMStrike, domain.PUT, 60, "spot testing OI resistance level")}
	}
	return nil
}
