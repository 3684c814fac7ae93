// Package risk implements the admission and sizing gate: can a trade be
// taken right now, how big should it be, and what bookkeeping a closed
// trade leaves behind. The whole of RiskState is guarded by one mutex
// held only for short critical sections, mutated only from L2 (on
// admission) and L3 (on exit). Grounded directly on
// 07ff2077_web3guy0-polybot__risk-gate.go.go's RiskGate: hard-block
// checks, then size adjustments, then a composite risk score, then
// bookkeeping on exit — generalised from a crypto-perp position book to
// the options/strategy-allocation domain.
package risk

import (
	"sync"
	"time"

	"github.com/indexoptions/kernel/circuitbreaker"
	"github.com/indexoptions/kernel/clock"
	"github.com/indexoptions/kernel/domain"
	"github.com/indexoptions/kernel/logger"
	"github.com/indexoptions/kernel/registry"
	"github.com/indexoptions/kernel/scorer"
)

var log = logger.For("risk")

// Decision is the outcome of an admission check.
type Decision struct {
	Admit  bool
	Reason string
}

func reject(reason string) Decision { return Decision{Admit: false, Reason: reason} }

var admit = Decision{Admit: true}

// Config bundles the risk-relevant subset of the operator-facing
// configuration, plus the supplemented per-asset cooldown knob.
type Config struct {
	StartingCapital     float64
	MaxDailyLossPct     float64
	PerTradeRiskPct     float64
	MaxPositions        int
	MaxTradesPerDay     int
	AggressiveMode      bool
	PerTradeCapitalCap  float64 // absolute cap on premium*qty for one trade
	PostExitCooldown    time.Duration
}

// Manager is the risk gate. One instance per running kernel.
type Manager struct {
	cfg      Config
	reg      *registry.Registry
	breaker  *circuitbreaker.Breaker
	clk      clock.Clock

	mu             sync.Mutex
	state          domain.RiskState
	openPositions  int
	assetLastExit  map[string]time.Time
}

// New constructs a Manager with risk state seeded from the starting
// capital.
func New(cfg Config, reg *registry.Registry, breaker *circuitbreaker.Breaker, clk clock.Clock) *Manager {
	return &Manager{
		cfg:     cfg,
		reg:     reg,
		breaker: breaker,
		clk:     clk,
		state: domain.RiskState{
			CurrentCapital:        cfg.StartingCapital,
			StartingCapital:       cfg.StartingCapital,
			PerStrategyCapitalUse: map[string]float64{},
		},
		assetLastExit: map[string]time.Time{},
	}
}

// Config returns a copy of the current risk configuration, used by the
// control surface to fill in unspecified fields on a partial
// update_settings call.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// UpdateConfig applies operator-supplied overrides to the mutable risk
// knobs, leaving StartingCapital and PerTradeCapitalCap untouched since
// those are set once at boot.
func (m *Manager) UpdateConfig(maxDailyLossPct, perTradeRiskPct float64, maxPositions, maxTradesPerDay int, aggressive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.MaxDailyLossPct = maxDailyLossPct
	m.cfg.PerTradeRiskPct = perTradeRiskPct
	m.cfg.MaxPositions = maxPositions
	m.cfg.MaxTradesPerDay = maxTradesPerDay
	m.cfg.AggressiveMode = aggressive
}

// CanTakeTrade runs the admission gate: circuit breaker, market hours,
// position/trade/loss caps, per-strategy allocation, and cooldown.
func (m *Manager) CanTakeTrade(s scorer.Scored) Decision {
	now := m.clk.Now()

	if m.breaker.IsOpen() {
		return reject("circuit_breaker_open")
	}
	if !clock.IsMarketHours(now) {
		return reject("outside_market_hours")
	}
	if clock.ShouldForceEODExit(now) {
		return reject("eod_window")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.openPositions >= m.cfg.MaxPositions {
		return reject("capital_cap")
	}
	if m.state.DailyTradeCount >= m.cfg.MaxTradesPerDay {
		return reject("daily_trade_count_cap")
	}
	dailyPnLPct := 0.0
	if m.state.StartingCapital > 0 {
		dailyPnLPct = m.state.DailyPnL / m.state.StartingCapital * 100
	}
	if dailyPnLPct <= -m.cfg.MaxDailyLossPct {
		return reject("daily_loss_gate")
	}

	canonical := m.reg.Canonicalize(s.StrategyID)
	cap := m.reg.Allocation(canonical) * m.state.StartingCapital
	used := m.state.PerStrategyCapitalUse[canonical]
	estimate := s.EntryPrice * float64(s.Symbol.LotSize())
	if used+estimate > cap {
		return reject("per_strategy_cap")
	}

	if m.cfg.PostExitCooldown > 0 {
		if last, ok := m.assetLastExit[string(s.Symbol)]; ok && now.Sub(last) < m.cfg.PostExitCooldown {
			return reject("post_exit_cooldown")
		}
	}

	return admit
}

// SizePosition computes the lot-aligned quantity that risks no more
// than the configured fraction of capital on the distance to stop.
func (m *Manager) SizePosition(s scorer.Scored) int {
	m.mu.Lock()
	capital := m.state.StartingCapital
	m.mu.Unlock()

	riskFraction := m.cfg.PerTradeRiskPct / 100
	if m.cfg.AggressiveMode && s.MLProbability > 0.7 {
		riskFraction *= 1.5
		const hardCap = 0.03
		if riskFraction > hardCap {
			riskFraction = hardCap
		}
	}

	stopDistance := s.EntryPrice - s.StopLoss
	if s.Direction == domain.PUT {
		stopDistance = s.StopLoss - s.EntryPrice
	}
	if stopDistance <= 0 {
		return 0
	}

	riskCapital := capital * riskFraction
	rawQty := riskCapital / stopDistance

	lot := s.Symbol.LotSize()
	if lot <= 0 {
		return 0
	}
	qty := (int(rawQty) / lot) * lot
	if qty <= 0 {
		return 0
	}

	premium := s.EntryPrice * float64(qty)
	capCeiling := m.cfg.PerTradeCapitalCap
	if capCeiling <= 0 {
		capCeiling = capital * 0.25 // default ceiling when unset
	}
	if premium > capCeiling {
		return 0
	}

	return qty
}

// RecordTrade updates daily P&L and per-strategy capital-in-use from a
// closed trade's net (post-fee) P&L.
func (m *Manager) RecordTrade(t domain.Trade) {
	canonical := m.reg.Canonicalize(t.StrategyID)

	m.mu.Lock()
	m.state.DailyPnL += t.NetPnL
	m.state.CurrentCapital += t.NetPnL
	m.state.DailyTradeCount++
	premium := t.EntryPrice * float64(t.Quantity)
	m.state.PerStrategyCapitalUse[canonical] -= premium
	if m.state.PerStrategyCapitalUse[canonical] < 0 {
		m.state.PerStrategyCapitalUse[canonical] = 0
	}
	if m.openPositions > 0 {
		m.openPositions--
	}
	if t.NetPnL < 0 {
		m.state.ConsecutiveLosses++
	} else {
		m.state.ConsecutiveLosses = 0
	}
	m.assetLastExit[string(t.Symbol)] = t.ExitTime
	losses := m.state.ConsecutiveLosses
	m.mu.Unlock()

	log.With().Str("strategy", canonical).Float64("net_pnl", t.NetPnL).Msg("trade recorded")

	// Supplemented consecutive-loss trigger (see DESIGN.md), additive to
	// the breaker's other named triggers.
	const maxConsecLosses = 4
	if losses >= maxConsecLosses {
		m.breaker.Trip(domain.TriggerConsecutiveLoss, "consecutive loss limit reached", false, t.ExitTime)
	}
}

// MarkOpened increments the open-position count and reserves the
// strategy's capital-in-use; called by the kernel once the order
// manager reports a fill.
func (m *Manager) MarkOpened(strategyID string, premium float64) {
	canonical := m.reg.Canonicalize(strategyID)
	m.mu.Lock()
	m.openPositions++
	m.state.PerStrategyCapitalUse[canonical] += premium
	m.mu.Unlock()
}

// ShouldExitEOD reports whether the current time is within the
// forced end-of-day exit window.
func (m *Manager) ShouldExitEOD() bool {
	return clock.ShouldForceEODExit(m.clk.Now())
}

// DailyReset clears daily counters; called from the market-data loop at
// the pre-open tick alongside the circuit breaker's own daily reset.
func (m *Manager) DailyReset() {
	m.mu.Lock()
	m.state.DailyPnL = 0
	m.state.DailyTradeCount = 0
	m.state.ConsecutiveLosses = 0
	m.mu.Unlock()
}

// Snapshot returns a copy of the current risk state for reporting.
func (m *Manager) Snapshot() domain.RiskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.state
	cp.PerStrategyCapitalUse = make(map[string]float64, len(m.state.PerStrategyCapitalUse))
	for k, v := range m.state.PerStrategyCapitalUse {
		cp.PerStrategyCapitalUse[k] = v
	}
	return cp
}
