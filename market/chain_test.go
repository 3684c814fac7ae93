package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/indexoptions/kernel/domain"
)

func leg(strike float64, side domain.Side, oi float64) domain.OptionLeg {
	return domain.OptionLeg{Strike: strike, Side: side, OpenInterest: oi}
}

func TestBuildChainAggregatesOIAndPCR(t *testing.T) {
	at := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	legs := []domain.OptionLeg{
		leg(22000, domain.CALL, 100),
		leg(22000, domain.PUT, 300),
		leg(22100, domain.CALL, 200),
		leg(22100, domain.PUT, 50),
	}

	chain := buildChain(domain.NIFTY, at, 22050, legs, at)

	assert.Equal(t, domain.NIFTY, chain.Underlying)
	assert.Equal(t, 300.0, chain.TotalCallOI)
	assert.Equal(t, 350.0, chain.TotalPutOI)
	assert.InDelta(t, 350.0/300.0, chain.PCR, 1e-9)
	assert.Len(t, chain.Strikes, 2)
}

func TestBuildChainZeroCallOIGivesZeroPCR(t *testing.T) {
	at := time.Now()
	legs := []domain.OptionLeg{leg(22000, domain.PUT, 100)}
	chain := buildChain(domain.NIFTY, at, 22000, legs, at)
	assert.Equal(t, 0.0, chain.PCR)
}

func TestAtmStrikePicksNearestToSpot(t *testing.T) {
	strikes := map[float64]domain.StrikePair{
		21900: {}, 22000: {}, 22100: {},
	}
	assert.Equal(t, 22000.0, atmStrike(strikes, 22030))
	assert.Equal(t, 21900.0, atmStrike(strikes, 21920))
}

func TestMaxPainPicksMinimumAggregateWriterLoss(t *testing.T) {
	// All open interest concentrated at 22000 on both sides: every other
	// candidate strike costs writers money, 22000 costs nothing.
	strikes := map[float64]domain.StrikePair{
		21900: {Call: leg(21900, domain.CALL, 0), Put: leg(21900, domain.PUT, 0)},
		22000: {Call: leg(22000, domain.CALL, 500), Put: leg(22000, domain.PUT, 500)},
		22100: {Call: leg(22100, domain.CALL, 0), Put: leg(22100, domain.PUT, 0)},
	}
	assert.Equal(t, 22000.0, maxPain(strikes))
}

func TestMaxPainEmptyChainReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, maxPain(map[float64]domain.StrikePair{}))
}
