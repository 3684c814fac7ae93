package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexoptions/kernel/circuitbreaker"
	"github.com/indexoptions/kernel/clock"
	"github.com/indexoptions/kernel/domain"
	"github.com/indexoptions/kernel/registry"
	"github.com/indexoptions/kernel/scorer"
)

var inHours = clock.Fixed{At: time.Date(2026, 7, 31, 10, 0, 0, 0, clock.IST)} // Friday, trading day

func testRegistry() *registry.Registry {
	return registry.New([]registry.Entry{
		{CanonicalID: "pcr_analysis", HumanName: "PCR Extreme", Allocation: 0.5},
	})
}

func defaultConfig() Config {
	return Config{
		StartingCapital: 1_000_000,
		MaxDailyLossPct: 3,
		PerTradeRiskPct: 1,
		MaxPositions:    5,
		MaxTradesPerDay: 10,
	}
}

func signalFor(strategyID string) scorer.Scored {
	return scorer.Scored{
		Signal: domain.Signal{
			StrategyID: strategyID,
			Symbol:     domain.NIFTY,
			Direction:  domain.CALL,
			EntryPrice: 100,
			StopLoss:   90,
		},
		MLProbability: 0.8,
	}
}

func TestCanTakeTradeRejectsWhenCircuitBreakerOpen(t *testing.T) {
	b := circuitbreaker.New()
	b.Trip(domain.TriggerDailyLoss, "breached", false, time.Now())
	m := New(defaultConfig(), testRegistry(), b, inHours)

	got := m.CanTakeTrade(signalFor("pcr_analysis"))
	assert.False(t, got.Admit)
	assert.Equal(t, "circuit_breaker_open", got.Reason)
}

func TestCanTakeTradeRejectsOutsideMarketHours(t *testing.T) {
	early := clock.Fixed{At: time.Date(2026, 7, 31, 8, 0, 0, 0, clock.IST)}
	m := New(defaultConfig(), testRegistry(), circuitbreaker.New(), early)

	got := m.CanTakeTrade(signalFor("pcr_analysis"))
	assert.False(t, got.Admit)
	assert.Equal(t, "outside_market_hours", got.Reason)
}

func TestCanTakeTradeRejectsDuringEODWindow(t *testing.T) {
	eod := clock.Fixed{At: time.Date(2026, 7, 31, 15, 29, 0, 0, clock.IST)}
	m := New(defaultConfig(), testRegistry(), circuitbreaker.New(), eod)

	got := m.CanTakeTrade(signalFor("pcr_analysis"))
	assert.False(t, got.Admit)
	assert.Equal(t, "eod_window", got.Reason)
}

func TestCanTakeTradeRejectsAtMaxPositions(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxPositions = 1
	m := New(cfg, testRegistry(), circuitbreaker.New(), inHours)
	m.MarkOpened("pcr_analysis", 1000)

	got := m.CanTakeTrade(signalFor("pcr_analysis"))
	assert.False(t, got.Admit)
	assert.Equal(t, "capital_cap", got.Reason)
}

func TestCanTakeTradeRejectsAtMaxTradesPerDay(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxTradesPerDay = 1
	m := New(cfg, testRegistry(), circuitbreaker.New(), inHours)
	m.MarkOpened("pcr_analysis", 1000)
	m.RecordTrade(domain.Trade{StrategyID: "pcr_analysis", Symbol: domain.NIFTY, EntryPrice: 10, Quantity: 1, NetPnL: 50, ExitTime: time.Now()})

	got := m.CanTakeTrade(signalFor("pcr_analysis"))
	assert.False(t, got.Admit)
	assert.Equal(t, "daily_trade_count_cap", got.Reason)
}

func TestCanTakeTradeRejectsDailyLossGate(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxDailyLossPct = 1
	m := New(cfg, testRegistry(), circuitbreaker.New(), inHours)
	// lose 2% of starting capital in one trade
	m.RecordTrade(domain.Trade{StrategyID: "pcr_analysis", Symbol: domain.NIFTY, EntryPrice: 10, Quantity: 1, NetPnL: -20_000, ExitTime: time.Now()})

	got := m.CanTakeTrade(signalFor("pcr_analysis"))
	assert.False(t, got.Admit)
	assert.Equal(t, "daily_loss_gate", got.Reason)
}

func TestCanTakeTradeRejectsPerStrategyCapExceeded(t *testing.T) {
	cfg := defaultConfig()
	cfg.StartingCapital = 10_000
	reg := registry.New([]registry.Entry{{CanonicalID: "pcr_analysis", Allocation: 0.1}}) // cap = 1000
	m := New(cfg, reg, circuitbreaker.New(), inHours)

	sig := signalFor("pcr_analysis")
	sig.EntryPrice = 1000 // * lot size 75 = 75000, far over the 1000 cap
	got := m.CanTakeTrade(sig)
	assert.False(t, got.Admit)
	assert.Equal(t, "per_strategy_cap", got.Reason)
}

func TestCanTakeTradeRejectsPostExitCooldown(t *testing.T) {
	cfg := defaultConfig()
	cfg.PostExitCooldown = time.Hour
	m := New(cfg, testRegistry(), circuitbreaker.New(), inHours)
	m.RecordTrade(domain.Trade{StrategyID: "pcr_analysis", Symbol: domain.NIFTY, EntryPrice: 10, Quantity: 1, NetPnL: 10, ExitTime: inHours.Now().Add(-10 * time.Minute)})

	got := m.CanTakeTrade(signalFor("pcr_analysis"))
	assert.False(t, got.Admit)
	assert.Equal(t, "post_exit_cooldown", got.Reason)
}

func TestCanTakeTradeAdmitsWhenAllChecksPass(t *testing.T) {
	m := New(defaultConfig(), testRegistry(), circuitbreaker.New(), inHours)
	got := m.CanTakeTrade(signalFor("pcr_analysis"))
	assert.True(t, got.Admit)
}

func TestSizePositionComputesQtyFromRiskCapital(t *testing.T) {
	cfg := defaultConfig()
	cfg.StartingCapital = 1_000_000
	cfg.PerTradeRiskPct = 1 // 10,000 risk capital
	m := New(cfg, testRegistry(), circuitbreaker.New(), inHours)

	sig := signalFor("pcr_analysis") // entry 100, stop 90 -> stop distance 10
	qty := m.SizePosition(sig)
	// rawQty = 10000/10 = 1000, rounded down to a multiple of lot size 75 -> 975
	assert.Equal(t, 975, qty)
}

func TestSizePositionZeroOrNegativeStopDistanceReturnsZero(t *testing.T) {
	m := New(defaultConfig(), testRegistry(), circuitbreaker.New(), inHours)
	sig := signalFor("pcr_analysis")
	sig.StopLoss = sig.EntryPrice // zero distance
	assert.Equal(t, 0, m.SizePosition(sig))
}

func TestSizePositionAggressiveModeHardCapsRiskFractionAtThreePercent(t *testing.T) {
	cfg := defaultConfig()
	cfg.StartingCapital = 1_000_000
	cfg.PerTradeRiskPct = 3 // 4.5% boosted would exceed the 3% hard cap
	cfg.AggressiveMode = true
	cfg.PerTradeCapitalCap = 1_000_000_000 // effectively disable the premium cap for this test
	m := New(cfg, testRegistry(), circuitbreaker.New(), inHours)

	sig := signalFor("pcr_analysis")
	sig.MLProbability = 0.9 // above the 0.7 aggressive threshold
	qty := m.SizePosition(sig)
	// riskFraction boosted to 4.5% then capped at 3%: 30,000/10 = 3000, already a multiple of lot 75
	assert.Equal(t, 3000, qty)
}

func TestSizePositionRejectsWhenPremiumExceedsCap(t *testing.T) {
	cfg := defaultConfig()
	cfg.StartingCapital = 1_000_000
	cfg.PerTradeRiskPct = 50 // deliberately oversized to blow past any cap
	cfg.PerTradeCapitalCap = 1000
	m := New(cfg, testRegistry(), circuitbreaker.New(), inHours)

	qty := m.SizePosition(signalFor("pcr_analysis"))
	assert.Equal(t, 0, qty)
}

func TestRecordTradeUpdatesDailyPnLCapitalUseAndOpenCount(t *testing.T) {
	m := New(defaultConfig(), testRegistry(), circuitbreaker.New(), inHours)
	m.MarkOpened("pcr_analysis", 5000)
	require.Equal(t, 0, m.Snapshot().DailyTradeCount) // MarkOpened only tracks capital-in-use, not trade count

	m.RecordTrade(domain.Trade{StrategyID: "pcr_analysis", Symbol: domain.NIFTY, EntryPrice: 50, Quantity: 75, NetPnL: 200, ExitTime: time.Now()})

	snap := m.Snapshot()
	assert.Equal(t, 200.0, snap.DailyPnL)
	assert.Equal(t, 1, snap.DailyTradeCount)
	assert.Equal(t, 1_000_200.0, snap.CurrentCapital)
	assert.Equal(t, 1250.0, snap.PerStrategyCapitalUse["pcr_analysis"]) // 5000 reserved - 50*75 premium released
}

func TestRecordTradeTripsBreakerAfterConsecutiveLosses(t *testing.T) {
	b := circuitbreaker.New()
	m := New(defaultConfig(), testRegistry(), b, inHours)

	for i := 0; i < 4; i++ {
		m.RecordTrade(domain.Trade{StrategyID: "pcr_analysis", Symbol: domain.NIFTY, EntryPrice: 10, Quantity: 1, NetPnL: -10, ExitTime: time.Now()})
	}

	assert.True(t, b.IsOpen())
}

func TestRecordTradeWinResetsConsecutiveLossStreak(t *testing.T) {
	b := circuitbreaker.New()
	m := New(defaultConfig(), testRegistry(), b, inHours)

	for i := 0; i < 3; i++ {
		m.RecordTrade(domain.Trade{StrategyID: "pcr_analysis", Symbol: domain.NIFTY, EntryPrice: 10, Quantity: 1, NetPnL: -10, ExitTime: time.Now()})
	}
	m.RecordTrade(domain.Trade{StrategyID: "pcr_analysis", Symbol: domain.NIFTY, EntryPrice: 10, Quantity: 1, NetPnL: 10, ExitTime: time.Now()})
	m.RecordTrade(domain.Trade{StrategyID: "pcr_analysis", Symbol: domain.NIFTY, EntryPrice: 10, Quantity: 1, NetPnL: -10, ExitTime: time.Now()})

	assert.False(t, b.IsOpen())
}

func TestDailyResetClearsCountersButNotCapital(t *testing.T) {
	m := New(defaultConfig(), testRegistry(), circuitbreaker.New(), inHours)
	m.RecordTrade(domain.Trade{StrategyID: "pcr_analysis", Symbol: domain.NIFTY, EntryPrice: 10, Quantity: 1, NetPnL: -10, ExitTime: time.Now()})

	m.DailyReset()

	snap := m.Snapshot()
	assert.Equal(t, 0.0, snap.DailyPnL)
	assert.Equal(t, 0, snap.DailyTradeCount)
	assert.Equal(t, 0, snap.ConsecutiveLosses)
	assert.NotEqual(t, snap.StartingCapital, 0.0)
}

func TestConfigAndUpdateConfigRoundTrip(t *testing.T) {
	m := New(defaultConfig(), testRegistry(), circuitbreaker.New(), inHours)
	m.UpdateConfig(5, 2, 8, 20, true)

	cfg := m.Config()
	assert.Equal(t, 5.0, cfg.MaxDailyLossPct)
	assert.Equal(t, 2.0, cfg.PerTradeRiskPct)
	assert.Equal(t, 8, cfg.MaxPositions)
	assert.Equal(t, 20, cfg.MaxTradesPerDay)
	assert.True(t, cfg.AggressiveMode)
	// fields outside the update's scope are preserved
	assert.Equal(t, 1_000_000.0, cfg.StartingCapital)
}

// S1 from the worked scenarios: starting_capital=100,000, per_trade_risk_pct=2,
// allocation(pcr_analysis)=0.15, a signal entry=125/stop=100/strength=80/ml=0.8.
func TestSizePositionAdmissionAndSizingWorkedExample(t *testing.T) {
	reg := registry.New([]registry.Entry{{CanonicalID: "pcr_analysis", Allocation: 0.15}})
	cfg := defaultConfig()
	cfg.StartingCapital = 100_000
	cfg.PerTradeRiskPct = 2
	m := New(cfg, reg, circuitbreaker.New(), inHours)

	sig := scorer.Scored{
		Signal: domain.Signal{
			StrategyID: "pcr_analysis",
			Symbol:     domain.NIFTY,
			Direction:  domain.CALL,
			EntryPrice: 125,
			StopLoss:   100,
			Strength:   80,
		},
		MLProbability: 0.8,
	}

	decision := m.CanTakeTrade(sig)
	require.True(t, decision.Admit)

	qty := m.SizePosition(sig)
	require.Greater(t, qty, 0)
	assert.Equal(t, 0, qty%domain.NIFTY.LotSize())
	assert.LessOrEqual(t, (sig.EntryPrice-sig.StopLoss)*float64(qty), 2000.0)

	m.MarkOpened(sig.StrategyID, sig.EntryPrice*float64(qty))
	snap := m.Snapshot()
	assert.LessOrEqual(t, snap.PerStrategyCapitalUse["pcr_analysis"], 15_000.0)
}

// S2: same as S1 with aggressive_mode=on and ml=0.75 — risk fraction is
// boosted ×1.5, capped at 3% of capital, still floored to lot size.
func TestSizePositionAggressiveModeBoostsAndCapsWorkedExample(t *testing.T) {
	reg := registry.New([]registry.Entry{{CanonicalID: "pcr_analysis", Allocation: 0.15}})
	cfg := defaultConfig()
	cfg.StartingCapital = 100_000
	cfg.PerTradeRiskPct = 2
	cfg.AggressiveMode = true
	m := New(cfg, reg, circuitbreaker.New(), inHours)

	sig := scorer.Scored{
		Signal: domain.Signal{
			StrategyID: "pcr_analysis",
			Symbol:     domain.NIFTY,
			Direction:  domain.CALL,
			EntryPrice: 125,
			StopLoss:   100,
			Strength:   80,
		},
		MLProbability: 0.75,
	}

	qty := m.SizePosition(sig)
	require.Greater(t, qty, 0)
	assert.Equal(t, 0, qty%domain.NIFTY.LotSize())

	// risk fraction boosted to 3% (hard cap) of 100,000 = 3,000 risk capital
	riskCapital := 100_000.0 * 0.03
	maxQtyFromRiskCapital := int(riskCapital/(sig.EntryPrice-sig.StopLoss)/float64(domain.NIFTY.LotSize())) * domain.NIFTY.LotSize()
	assert.Equal(t, maxQtyFromRiskCapital, qty)
}
