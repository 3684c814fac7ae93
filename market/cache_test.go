package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexoptions/kernel/domain"
)

func refreshWith(c *Cache, u domain.Underlying, spot, vix float64, at time.Time, legs ...domain.OptionLeg) (domain.MarketCondition, domain.MarketCondition) {
	return c.ApplyRefresh(RefreshInput{Underlying: u, Spot: spot, Expiry: at.AddDate(0, 0, 7), Legs: legs, VIX: vix, At: at})
}

func TestApplyRefreshPublishesSnapshotAndTracksVIX(t *testing.T) {
	c := NewCache([]domain.Underlying{domain.NIFTY})
	at := time.Now()

	refreshWith(c, domain.NIFTY, 22000, 14, at, leg(22000, domain.CALL, 10))

	snap, ok := c.Get(domain.NIFTY)
	require.True(t, ok)
	assert.Equal(t, 22000.0, snap.Spot)
	assert.Equal(t, 14.0, snap.VIX)
	assert.Equal(t, 14.0, c.VIX())
	assert.Equal(t, domain.ConditionNormal, snap.Condition)
}

func TestApplyRefreshReportsRegimeChange(t *testing.T) {
	c := NewCache([]domain.Underlying{domain.NIFTY})
	at := time.Now()

	prev, next := refreshWith(c, domain.NIFTY, 22000, 10, at)
	assert.Equal(t, domain.MarketCondition(""), prev)
	assert.Equal(t, domain.ConditionCalm, next)

	prev, next = refreshWith(c, domain.NIFTY, 22000, 27, at.Add(time.Minute))
	assert.Equal(t, domain.ConditionCalm, prev)
	assert.Equal(t, domain.ConditionVolatile, next)
}

func TestApplyRefreshUnknownUnderlyingIsNoop(t *testing.T) {
	c := NewCache([]domain.Underlying{domain.NIFTY})
	prev, next := refreshWith(c, domain.BANKNIFTY, 48000, 14, time.Now())
	assert.Equal(t, domain.MarketCondition(""), prev)
	assert.Equal(t, domain.MarketCondition(""), next)
}

func TestApplyTickUpdatesMatchingLegOnly(t *testing.T) {
	c := NewCache([]domain.Underlying{domain.NIFTY})
	at := time.Now()
	callLeg := domain.OptionLeg{InstrumentKey: "NIFTY-22000-20260806-CALL", Strike: 22000, Side: domain.CALL}
	putLeg := domain.OptionLeg{InstrumentKey: "NIFTY-22000-20260806-PUT", Strike: 22000, Side: domain.PUT}
	refreshWith(c, domain.NIFTY, 22000, 14, at, callLeg, putLeg)

	ok := c.ApplyTick(domain.NIFTY, "NIFTY-22000-20260806-CALL", 105.5, 105, 106, nil, at.Add(time.Second))
	require.True(t, ok)

	snap, _ := c.Get(domain.NIFTY)
	pair := snap.Chain.Strikes[22000]
	assert.Equal(t, 105.5, pair.Call.LTP)
	assert.False(t, pair.Call.Stale)
	assert.Equal(t, 0.0, pair.Put.LTP) // untouched
}

func TestApplyTickUnknownInstrumentKeyIsIgnored(t *testing.T) {
	c := NewCache([]domain.Underlying{domain.NIFTY})
	at := time.Now()
	callLeg := domain.OptionLeg{InstrumentKey: "NIFTY-22000-20260806-CALL", Strike: 22000, Side: domain.CALL}
	refreshWith(c, domain.NIFTY, 22000, 14, at, callLeg)

	ok := c.ApplyTick(domain.NIFTY, "NIFTY-99999-20260806-CALL", 1, 0, 0, nil, at)
	assert.False(t, ok)
}

func TestApplyTickUnknownUnderlyingIsIgnored(t *testing.T) {
	c := NewCache([]domain.Underlying{domain.NIFTY})
	ok := c.ApplyTick(domain.BANKNIFTY, "BANKNIFTY-48000-20260806-CALL", 1, 0, 0, nil, time.Now())
	assert.False(t, ok)
}

func TestApplyTickKeepsSnapshotFreshBetweenRefreshes(t *testing.T) {
	c := NewCache([]domain.Underlying{domain.NIFTY})
	at := time.Now()
	callLeg := domain.OptionLeg{InstrumentKey: "NIFTY-22000-20260806-CALL", Strike: 22000, Side: domain.CALL}
	refreshWith(c, domain.NIFTY, 22000, 14, at, callLeg)

	// Well past the 10s staleness threshold since the REST refresh, but a
	// tick has just arrived — the snapshot must read as fresh.
	tickAt := at.Add(30 * time.Second)
	ok := c.ApplyTick(domain.NIFTY, "NIFTY-22000-20260806-CALL", 110, 0, 0, nil, tickAt)
	require.True(t, ok)

	snap, _ := c.Get(domain.NIFTY)
	assert.False(t, snap.Stale(tickAt, Tstale))
}

func TestApplyTickLeavesChainLastRefreshPinnedToLastPull(t *testing.T) {
	c := NewCache([]domain.Underlying{domain.NIFTY})
	at := time.Now()
	callLeg := domain.OptionLeg{InstrumentKey: "NIFTY-22000-20260806-CALL", Strike: 22000, Side: domain.CALL}
	refreshWith(c, domain.NIFTY, 22000, 14, at, callLeg)

	tickAt := at.Add(5 * time.Second)
	c.ApplyTick(domain.NIFTY, "NIFTY-22000-20260806-CALL", 110, 0, 0, nil, tickAt)

	snap, _ := c.Get(domain.NIFTY)
	assert.Equal(t, at, snap.Chain.LastRefresh) // unchanged: every leg in one chain read shares one timestamp
	assert.Equal(t, tickAt, snap.LastRefresh)   // snapshot-level freshness does track the tick
}

func TestClassifyBands(t *testing.T) {
	assert.Equal(t, domain.ConditionCalm, Classify(10))
	assert.Equal(t, domain.ConditionCalm, Classify(13))
	assert.Equal(t, domain.ConditionNormal, Classify(20))
	assert.Equal(t, domain.ConditionVolatile, Classify(25))
	assert.Equal(t, domain.ConditionVolatile, Classify(40))
}
