package kernel

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/indexoptions/kernel/clock"
	"github.com/indexoptions/kernel/domain"
	"github.com/indexoptions/kernel/eventbus"
	gmarket "github.com/indexoptions/kernel/market"
	"github.com/indexoptions/kernel/metrics"
	"github.com/indexoptions/kernel/position"
	"github.com/indexoptions/kernel/scorer"
)

// signalTradingLoop is L2: every decision_interval, fan every enabled
// strategy out over the current snapshot in parallel, score and filter
// the results, then walk survivors in composite order admitting and
// sizing each through the risk manager.
func (k *Kernel) signalTradingLoop(ctx context.Context) {
	interval := time.Duration(k.cfg.DecisionIntervalS) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	for {
		select {
		case <-k.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		if !clock.IsMarketHours(k.clk.Now()) {
			continue
		}
		if k.paused.Load() {
			continue // operator-paused: L1/L3 keep running, only new entries are gated
		}
		for _, u := range k.universe {
			k.runDecisionCycle(ctx, u)
		}
	}
}

func (k *Kernel) runDecisionCycle(ctx context.Context, u domain.Underlying) {
	snap, ok := k.cache.Get(u)
	if !ok || snap.Stale(k.clk.Now(), 10*time.Second) {
		return // a stale snapshot means no decision this cycle
	}
	if k.breaker.IsOpen() {
		return
	}

	signals := k.fanOutStrategies(snap)
	scored := k.scorer.Score(signals)
	sort.Slice(scored, func(i, j int) bool { return scored[i].Composite > scored[j].Composite })

	for _, s := range scored {
		k.admitAndExecute(ctx, s)
	}
}

// fanOutStrategies runs every strategy against the same snapshot
// concurrently; all see one immutable value, so every strategy in a
// cycle scores against the exact same market state.
func (k *Kernel) fanOutStrategies(snap domain.Snapshot) []domain.Signal {
	var mu sync.Mutex
	var all []domain.Signal
	var wg sync.WaitGroup
	for _, strat := range k.strats {
		strat := strat
		wg.Add(1)
		go func() {
			defer wg.Done()
			sigs := strat.Analyse(snap)
			if len(sigs) == 0 {
				return
			}
			mu.Lock()
			all = append(all, sigs...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return annotateSupport(all)
}

// annotateSupport sets SupportCount on each signal to the number of
// signals, itself included, proposing the same (symbol, strike, direction), for
// the scorer's tie-break composite.
func annotateSupport(signals []domain.Signal) []domain.Signal {
	counts := make(map[string]int, len(signals))
	key := func(s domain.Signal) string {
		return fmt.Sprintf("%s|%.2f|%s", s.Symbol, s.Strike, s.Direction)
	}
	for _, s := range signals {
		counts[key(s)]++
	}
	for i := range signals {
		signals[i].SupportCount = counts[key(signals[i])]
	}
	return signals
}

func (k *Kernel) admitAndExecute(ctx context.Context, s scorer.Scored) {
	decision := k.riskMgr.CanTakeTrade(s)
	if !decision.Admit {
		k.recordOutcome(s, "blocked_by_risk", decision.Reason)
		return
	}
	qty := k.riskMgr.SizePosition(s)
	if qty <= 0 {
		k.recordOutcome(s, "blocked_by_risk", "size_zero")
		return
	}

	key := instrumentKeyFor(s.Signal)
	fill, err := k.orderMgr.Open(ctx, key, s.Direction, qty, s.EntryPrice, 1000, s.Context.VIX)
	if err != nil {
		k.recordOutcome(s, "execution_failed", err.Error())
		return
	}

	pos := domain.Position{
		PositionID:    fmt.Sprintf("%s-%d", s.StrategyID, time.Now().UnixNano()),
		SignalOrigin:  s.StrategyID,
		InstrumentKey: key,
		Symbol:        s.Symbol,
		Direction:     s.Direction,
		Strike:        s.Strike,
		Expiry:        s.Expiry,
		Quantity:      fill.Quantity,
		EntryPrice:    fill.Price,
		EntryTime:     fill.Timestamp,
		CurrentPrice:  fill.Price,
		TargetPrice:   s.TargetPrice,
		StopLoss:      s.StopLoss,
		Ladder:        s.Ladder,
		State:         domain.StateOpen,
		StrategyID:    k.reg.Canonicalize(s.StrategyID),
		RegimeEntry:   gmarket.Classify(s.Context.VIX),
		VIXEntry:      s.Context.VIX,
		HourEntry:     fill.Timestamp.Hour(),
		MinuteEntry:   fill.Timestamp.Minute(),
		WeekdayEntry:  fill.Timestamp.Weekday(),
	}

	k.posMu.Lock()
	k.positions[pos.PositionID] = position.New(pos)
	openCount := len(k.positions)
	k.posMu.Unlock()
	metrics.OpenPositions.Set(float64(openCount))

	k.riskMgr.MarkOpened(s.StrategyID, fill.Price*float64(fill.Quantity))
	if k.store != nil {
		if err := k.store.SavePosition(pos); err != nil {
			log.Err(err, "persist position on open failed")
		}
	}
	k.bus.Publish(eventbus.Message{Kind: eventbus.KindPositionUpdate, Detail: pos})
	k.recordOutcome(s, "executed", "")
}

func instrumentKeyFor(s domain.Signal) domain.InstrumentKey {
	return domain.InstrumentKey(fmt.Sprintf("%s-%d-%s-%s", s.Symbol, int(s.Strike), s.Expiry.Format("20060102"), s.Direction))
}

func (k *Kernel) recordOutcome(s scorer.Scored, outcome, reason string) {
	metrics.SignalsTotal.WithLabelValues(s.StrategyID, outcome).Inc()
	k.recentMu.Lock()
	defer k.recentMu.Unlock()
	k.recent = append(k.recent, RecentSignal{
		StrategyID: s.StrategyID, Symbol: s.Symbol, Outcome: outcome, Reason: reason, At: time.Now(),
	})
	if len(k.recent) > recentSignalCap {
		k.recent = k.recent[len(k.recent)-recentSignalCap:]
	}
}

// RecentSignals returns a copy of the bounded recent-signals ring for
// operator visibility.
func (k *Kernel) RecentSignals() []RecentSignal {
	k.recentMu.Lock()
	defer k.recentMu.Unlock()
	out := make([]RecentSignal, len(k.recent))
	copy(out, k.recent)
	return out
}
