package kernel

import (
	"context"
	"fmt"

	"github.com/indexoptions/kernel/config"
	"github.com/indexoptions/kernel/domain"
	"github.com/indexoptions/kernel/eventbus"
	"github.com/indexoptions/kernel/position"
)

// Pause stops L2 from admitting new trades while leaving L1 and L3
// running, so open positions keep getting monitored — pausing must
// never abandon risk management.
func (k *Kernel) Pause() {
	k.paused.Store(true)
	k.bus.Publish(eventbus.Message{Kind: eventbus.KindSystemStatus, Text: "trading paused"})
}

// Resume re-enables L2 admission.
func (k *Kernel) Resume() {
	k.paused.Store(false)
	k.bus.Publish(eventbus.Message{Kind: eventbus.KindSystemStatus, Text: "trading resumed"})
}

// SetMode switches the order manager between paper and live execution
// at runtime. Only "paper" and "live" are valid.
func (k *Kernel) SetMode(mode string) error {
	var tm config.TradingMode
	switch mode {
	case string(config.ModePaper):
		tm = config.ModePaper
	case string(config.ModeLive):
		tm = config.ModeLive
	default:
		return fmt.Errorf("kernel: unknown mode %q", mode)
	}
	k.orderMgr.SetMode(tm)
	k.mode.Store(mode)
	k.bus.Publish(eventbus.Message{Kind: eventbus.KindSystemStatus, Text: "mode changed to " + mode})
	return nil
}

// Mode reports the order manager's current execution mode.
func (k *Kernel) Mode() string {
	if v, ok := k.mode.Load().(string); ok {
		return v
	}
	return string(config.ModePaper)
}

// CloseAllPositions force-exits every open position with the given
// reason, returning the number of positions a close was issued for (a
// close whose exit order fails is still counted and leaves that
// position open). It trips the
// circuit breaker sticky so L2 cannot re-enter until an operator
// explicitly resets it.
func (k *Kernel) CloseAllPositions(ctx context.Context, reason string) (int, error) {
	k.breaker.Trip(domain.TriggerEmergencySquareOff, reason, true, k.clk.Now())
	snapshot := k.positionsSnapshot()
	closed := 0
	for id, tracker := range snapshot {
		pos := tracker.Snapshot()
		decision := position.ExitDecision{Triggered: true, Reason: domain.ExitManual, Quantity: remainingQty(pos)}
		if decision.Quantity <= 0 {
			continue
		}
		k.closePosition(ctx, id, tracker, decision)
		closed++
	}
	return closed, nil
}

// TripCircuitBreaker latches the breaker open on operator request.
func (k *Kernel) TripCircuitBreaker(reason string) {
	k.breaker.Trip(domain.TriggerManual, reason, true, k.clk.Now())
}

// ResetCircuitBreaker clears the breaker, sticky trips included; a
// sticky trip only survives the daily auto-reset.
func (k *Kernel) ResetCircuitBreaker() {
	k.breaker.Reset()
}

// State reports the circuit breaker's latched state.
func (k *Kernel) State() domain.CircuitState {
	return k.breaker.State()
}

// UpdateSettings applies a subset of the operator-facing configuration
// at runtime. Unknown keys are ignored; known keys are checked against
// the same ranges config.Validate enforces, and any out-of-range value
// rejects the whole update.
func (k *Kernel) UpdateSettings(settings map[string]float64) error {
	cur := k.riskMgr.Config()
	maxDailyLossPct := getOr(settings, "max_daily_loss_pct", cur.MaxDailyLossPct)
	perTradeRiskPct := getOr(settings, "per_trade_risk_pct", cur.PerTradeRiskPct)
	maxPositions := int(getOr(settings, "max_positions", float64(cur.MaxPositions)))
	maxTradesPerDay := int(getOr(settings, "max_trades_per_day", float64(cur.MaxTradesPerDay)))
	switch {
	case maxDailyLossPct <= 0 || maxDailyLossPct > 20:
		return fmt.Errorf("kernel: max_daily_loss_pct must be in (0,20], got %v", maxDailyLossPct)
	case perTradeRiskPct <= 0 || perTradeRiskPct > 10:
		return fmt.Errorf("kernel: per_trade_risk_pct must be in (0,10], got %v", perTradeRiskPct)
	case maxPositions < 1 || maxPositions > 200:
		return fmt.Errorf("kernel: max_positions must be in [1,200], got %v", maxPositions)
	case maxTradesPerDay < 1 || maxTradesPerDay > 999:
		return fmt.Errorf("kernel: max_trades_per_day must be in [1,999], got %v", maxTradesPerDay)
	}
	aggressive := cur.AggressiveMode
	if v, ok := settings["aggressive_mode"]; ok {
		aggressive = v != 0
	}
	k.riskMgr.UpdateConfig(maxDailyLossPct, perTradeRiskPct, maxPositions, maxTradesPerDay, aggressive)
	k.bus.Publish(eventbus.Message{Kind: eventbus.KindSystemStatus, Text: "settings updated"})
	return nil
}

func getOr(m map[string]float64, key string, def float64) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}
