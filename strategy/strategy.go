// Package strategy holds the Strategy contract and the built-in signal
// generators that analyse a market snapshot and emit candidate
// Signals. Every strategy is a pure function of a Snapshot: no I/O, no
// shared state, safe to fan out across goroutines.
package strategy

import "github.com/indexoptions/kernel/domain"

// Strategy analyses one snapshot and returns zero or more candidate
// signals. Implementations must not perform I/O and must be safe for
// concurrent, re-entrant invocation.
type Strategy interface {
	ID() string
	Analyse(snap domain.Snapshot) []domain.Signal
}

// context builds the MarketContext every signal must carry, so no
// strategy forgets to populate it — an unpopulated Greek or context
// field on an emitted signal is a bug in that strategy.
func context(snap domain.Snapshot) domain.MarketContext {
	return domain.MarketContext{
		Spot: snap.Spot,
		IV:   atmIV(snap),
		VIX:  snap.VIX,
		PCR:  snap.Chain.PCR,
	}
}

// atmIV returns the implied vol at the ATM strike, averaging both legs
// when both are quoted.
func atmIV(snap domain.Snapshot) float64 {
	pair, ok := snap.Chain.Strikes[snap.ATMStrike]
	if !ok {
		return 0
	}
	n, sum := 0, 0.0
	if pair.Call.ImpliedVol > 0 {
		sum += pair.Call.ImpliedVol
		n++
	}
	if pair.Put.ImpliedVol > 0 {
		sum += pair.Put.ImpliedVol
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// greeksAt returns the Greeks for one strike+side, or zero if unquoted.
func greeksAt(snap domain.Snapshot, strike float64, side domain.Side) domain.Greeks {
	pair, ok := snap.Chain.Strikes[strike]
	if !ok {
		return domain.Greeks{}
	}
	if side == domain.CALL {
		return pair.Call.Greeks
	}
	return pair.Put.Greeks
}

func ltpAt(snap domain.Snapshot, strike float64, side domain.Side) float64 {
	pair, ok := snap.Chain.Strikes[strike]
	if !ok {
		return 0
	}
	if side == domain.CALL {
		return pair.Call.LTP
	}
	return pair.Put.LTP
}

// Default returns the built-in strategy set.
func Default() []Strategy {
	return []Strategy{
		PCRAnalysis{},
		OIChangePatterns{},
		MaxPainPull{},
		IVSkew{},
		GammaExposure{},
		OISupportResistance{},
	}
}
