package market

import (
	"time"

	"github.com/indexoptions/kernel/domain"
)

// buildChain assembles an OptionChain from raw legs and computes the
// aggregates needed at refresh time: total OI per side, PCR, max-pain
// and ATM strike.
func buildChain(u domain.Underlying, expiry time.Time, spot float64, legs []domain.OptionLeg, at time.Time) domain.OptionChain {
	strikes := make(map[float64]domain.StrikePair, len(legs))
	for _, leg := range legs {
		pair := strikes[leg.Strike]
		if leg.Side == domain.CALL {
			pair.Call = leg
		} else {
			pair.Put = leg
		}
		strikes[leg.Strike] = pair
	}

	var totalCallOI, totalPutOI float64
	for _, pair := range strikes {
		totalCallOI += pair.Call.OpenInterest
		totalPutOI += pair.Put.OpenInterest
	}

	pcr := 0.0
	if totalCallOI > 0 {
		pcr = totalPutOI / totalCallOI
	}

	return domain.OptionChain{
		Underlying:    u,
		Expiry:        expiry,
		Strikes:       strikes,
		TotalCallOI:   totalCallOI,
		TotalPutOI:    totalPutOI,
		PCR:           pcr,
		MaxPainStrike: maxPain(strikes),
		ATMStrike:     atmStrike(strikes, spot),
		LastRefresh:   at,
	}
}

// maxPain returns the strike minimising aggregate option-writer losses
// at expiry: sum over K of max(spot-K,0)*callOI + max(K-spot,0)*putOI,
// minimised over candidate strikes (the candidate set is the strikes
// actually quoted).
func maxPain(strikes map[float64]domain.StrikePair) float64 {
	if len(strikes) == 0 {
		return 0
	}
	var best float64
	bestLoss := -1.0
	for candidate := range strikes {
		loss := 0.0
		for k, pair := range strikes {
			if candidate > k {
				loss += (candidate - k) * pair.Call.OpenInterest
			}
			if k > candidate {
				loss += (k - candidate) * pair.Put.OpenInterest
			}
		}
		if bestLoss < 0 || loss < bestLoss {
			bestLoss = loss
			best = candidate
		}
	}
	return best
}

// atmStrike returns the quoted strike nearest the spot price.
func atmStrike(strikes map[float64]domain.StrikePair, spot float64) float64 {
	var best float64
	bestDiff := -1.0
	for k := range strikes {
		d := k - spot
		if d < 0 {
			d = -d
		}
		if bestDiff < 0 || d < bestDiff {
			bestDiff = d
			best = k
		}
	}
	return best
}
