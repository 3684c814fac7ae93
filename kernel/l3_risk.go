package kernel

import (
	"context"
	"time"

	"github.com/indexoptions/kernel/domain"
	"github.com/indexoptions/kernel/eventbus"
	"github.com/indexoptions/kernel/metrics"
	"github.com/indexoptions/kernel/pnl"
	"github.com/indexoptions/kernel/position"
)

// riskMonitoringLoop is L3: per open position, fetch the latest price,
// recompute MTM, evaluate exits and circuit-breaker triggers. This loop
// must never miss its tick budget; its supervisor raises the circuit
// breaker on repeated crashes instead of silently retrying forever (see
// kernel.supervise).
func (k *Kernel) riskMonitoringLoop(ctx context.Context) {
	interval := time.Duration(k.cfg.MonitorIntervalS) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}
	lastPnLEmit := time.Time{}
	for {
		select {
		case <-k.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		k.checkCircuitTriggers()
		if k.breaker.IsOpen() {
			metrics.CircuitBreakerOpen.Set(1)
		} else {
			metrics.CircuitBreakerOpen.Set(0)
		}
		metrics.DailyPnL.Set(k.riskMgr.Snapshot().DailyPnL)

		snapshot := k.positionsSnapshot()
		var aggregatePnL float64
		for id, tracker := range snapshot {
			pos := tracker.Snapshot()
			price := k.currentPrice(pos)
			forceEOD := k.riskMgr.ShouldExitEOD()
			forceCircuit := k.breaker.IsOpen()

			decision := tracker.ApplyPrice(price, k.clk.Now(), 0, k.cfg.ReversalThreshold, forceEOD, forceCircuit)
			aggregatePnL += tracker.Snapshot().UnrealisedPnL

			if decision.Triggered {
				k.closePosition(ctx, id, tracker, decision)
			}
		}

		if time.Since(lastPnLEmit) >= time.Second {
			k.bus.Publish(eventbus.Message{Kind: eventbus.KindPnLUpdate, Detail: aggregatePnL})
			lastPnLEmit = time.Now()
		}
	}
}

func (k *Kernel) positionsSnapshot() map[string]*position.Tracker {
	k.posMu.Lock()
	defer k.posMu.Unlock()
	out := make(map[string]*position.Tracker, len(k.positions))
	for id, t := range k.positions {
		out[id] = t
	}
	return out
}

// currentPrice prefers the push-updated cache over the position's last
// known price; in this paper-mode kernel the cache is the source of truth
// for both push and pull prices.
func (k *Kernel) currentPrice(pos domain.Position) float64 {
	snap, ok := k.cache.Get(pos.Symbol)
	if !ok {
		return pos.CurrentPrice
	}
	pair, ok := snap.Chain.Strikes[pos.Strike]
	if !ok {
		return pos.CurrentPrice
	}
	if pos.Direction == domain.CALL {
		return pair.Call.LTP
	}
	return pair.Put.LTP
}

func (k *Kernel) closePosition(ctx context.Context, id string, tracker *position.Tracker, decision position.ExitDecision) {
	pos := tracker.Snapshot()
	fullClose := decision.Quantity >= remainingQty(pos)

	fill, err := k.orderMgr.Close(ctx, pos.InstrumentKey, pos.Direction, decision.Quantity, pos.CurrentPrice, 1000, pos.VIXEntry, fullClose)
	if err != nil {
		log.Err(err, "exit execution failed")
		return
	}

	tracker.ApplyExit(decision.Quantity, fullClose)

	gross, fees, net := pnl.Close(pos.Direction, pos.EntryPrice, fill.Price, decision.Quantity, k.fees)
	trade := domain.Trade{
		PositionID: id, SignalOrigin: pos.SignalOrigin, InstrumentKey: pos.InstrumentKey,
		Symbol: pos.Symbol, Direction: pos.Direction, Strike: pos.Strike, Expiry: pos.Expiry,
		Quantity: decision.Quantity, EntryPrice: pos.EntryPrice, EntryTime: pos.EntryTime,
		ExitPrice: fill.Price, ExitTime: fill.Timestamp, ExitReason: decision.Reason,
		StrategyID: pos.StrategyID, GrossPnL: gross, Fees: fees, NetPnL: net,
		MarketEntry: domain.MarketContext{Spot: pos.EntryPrice, VIX: pos.VIXEntry},
		RegimeEntry: pos.RegimeEntry, VIXEntry: pos.VIXEntry,
	}

	k.riskMgr.RecordTrade(trade)
	metrics.TradesTotal.WithLabelValues(trade.StrategyID, string(trade.ExitReason)).Inc()
	if k.store != nil {
		if err := k.store.SavePosition(tracker.Snapshot()); err != nil {
			log.Err(err, "persist position on exit failed")
		}
		if err := k.store.SaveTrade(trade); err != nil {
			log.Err(err, "persist trade failed")
		}
	}
	k.bus.Publish(eventbus.Message{Kind: eventbus.KindTradeClosed, Detail: trade})

	if fullClose {
		k.posMu.Lock()
		delete(k.positions, id)
		openCount := len(k.positions)
		k.posMu.Unlock()
		metrics.OpenPositions.Set(float64(openCount))
	}
}

func remainingQty(pos domain.Position) int {
	if !pos.Ladder.Enabled {
		return pos.Quantity
	}
	closed := pos.LadderFilled * (pos.Quantity / 3)
	remaining := pos.Quantity - closed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// checkCircuitTriggers evaluates the VIX-spike, daily-loss and IV-shock
// triggers against the current cache state (manual trips come from the
// control API).
func (k *Kernel) checkCircuitTriggers() {
	if k.breaker.IsOpen() {
		return
	}
	now := k.clk.Now()
	for _, u := range k.universe {
		snap, ok := k.cache.Get(u)
		if !ok {
			continue
		}
		if snap.VIX >= k.cfg.VIXHaltThreshold {
			k.breaker.Trip(domain.TriggerVIXSpike, "VIX breached halt threshold", false, now)
			return
		}
		if k.checkIVShock(snap, now) {
			return
		}
	}

	dailyPnLPct := k.dailyPnLPct()
	if dailyPnLPct <= -k.cfg.MaxDailyLossPct {
		k.breaker.Trip(domain.TriggerDailyLoss, "daily loss limit breached", false, now)
	}
}

// checkIVShock trips the breaker when |ΔIV|/IV >= 0.50 within a
// 5-minute window, evaluated per watched instrument (every leg quoted
// in the underlying's current chain).
func (k *Kernel) checkIVShock(snap domain.Snapshot, now time.Time) bool {
	const window = 5 * time.Minute
	k.ivMu.Lock()
	defer k.ivMu.Unlock()

	for strike, pair := range snap.Chain.Strikes {
		for _, leg := range []domain.OptionLeg{pair.Call, pair.Put} {
			if leg.ImpliedVol <= 0 {
				continue
			}
			key := leg.InstrumentKey
			prev, ok := k.ivHistory[key]
			k.ivHistory[key] = ivSample{iv: leg.ImpliedVol, at: now}
			if !ok || now.Sub(prev.at) > window {
				continue
			}
			if prev.iv == 0 {
				continue
			}
			delta := (leg.ImpliedVol - prev.iv) / prev.iv
			if delta < 0 {
				delta = -delta
			}
			if delta >= 0.50 {
				k.breaker.Trip(domain.TriggerIVShock, "IV shock detected on watched instrument", false, now)
				return true
			}
		}
		_ = strike
	}
	return false
}

func (k *Kernel) dailyPnLPct() float64 {
	st := k.riskMgr.Snapshot()
	if st.StartingCapital == 0 {
		return 0
	}
	return st.DailyPnL / st.StartingCapital * 100
}
