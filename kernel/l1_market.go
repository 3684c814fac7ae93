package kernel

import (
	"context"
	"strings"
	"time"

	"github.com/indexoptions/kernel/clock"
	"github.com/indexoptions/kernel/domain"
	"github.com/indexoptions/kernel/eventbus"
	gmarket "github.com/indexoptions/kernel/market"
)

// refreshInterval adapts the REST pull cadence: 30s with any position
// open, 60s idle, 20s when VIX > 25 (VIX takes priority since a
// volatility spike matters regardless of position count).
func (k *Kernel) refreshInterval() time.Duration {
	if k.cache.VIX() > 25 {
		return 20 * time.Second
	}
	if k.hasOpenPositions() {
		return 30 * time.Second
	}
	return 60 * time.Second
}

func (k *Kernel) hasOpenPositions() bool {
	k.posMu.Lock()
	defer k.posMu.Unlock()
	return len(k.positions) > 0
}

// marketDataLoop is L1: periodic REST refresh of quotes/chain/VIX per
// underlying, atomic cache swap, and regime-change event emission. It
// also folds in the daily risk/circuit-breaker reset at the pre-open
// tick, since this loop already ticks continuously through that window
// (see DESIGN.md "supplemented features").
func (k *Kernel) marketDataLoop(ctx context.Context) {
	lastResetDay := -1
	for {
		interval := k.refreshInterval()
		select {
		case <-k.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		now := k.clk.Now()
		if now.Hour() == 9 && now.Minute() == 0 && now.YearDay() != lastResetDay {
			k.riskMgr.DailyReset()
			k.breaker.DailyReset()
			lastResetDay = now.YearDay()
		}

		for _, u := range k.universe {
			k.refreshOne(ctx, u, now)
		}
	}
}

func (k *Kernel) refreshOne(ctx context.Context, u domain.Underlying, now time.Time) {
	expiry, err := clock.CurrentWeeklyExpiry(u, now)
	if err != nil {
		log.Err(err, "expiry calculation failed")
		return
	}

	legs, err := k.adapter.OptionChain(ctx, u, expiry)
	if err != nil {
		log.Err(err, "option chain fetch failed")
		return
	}
	vix, err := k.adapter.VIX(ctx)
	if err != nil {
		log.Err(err, "vix fetch failed")
		return
	}
	spot, err := k.adapter.Spot(ctx, u)
	if err != nil {
		log.Err(err, "spot fetch failed")
		return
	}

	prev, next := k.cache.ApplyRefresh(gmarket.RefreshInput{
		Underlying: u, Spot: spot, Expiry: expiry, Legs: legs, VIX: vix, At: now,
	})
	if prev != "" && prev != next {
		k.bus.Publish(eventbus.Message{
			Kind: eventbus.KindMarketCondition,
			Text: string(u) + " regime changed " + string(prev) + " -> " + string(next),
		})
	}
}

// tickFeedLoop is L1's push-path complement to the periodic pull refresh
// above: it connects the streaming feed once, then folds every tick into
// the cache via ApplyTick for the instruments currently subscribed
// (each open position's instrument, subscribed by orders.Manager on
// open; there is no base watch list). A failed connect or a closed tick
// channel ends the loop without a reconnect.
func (k *Kernel) tickFeedLoop(ctx context.Context) {
	if err := k.feed.Connect(ctx); err != nil {
		log.Err(err, "tick feed connect failed")
		return
	}
	defer k.feed.Close()

	for {
		select {
		case <-k.stopCh:
			return
		case <-ctx.Done():
			return
		case tick, ok := <-k.feed.Ticks():
			if !ok {
				return
			}
			u := underlyingOf(tick.InstrumentKey)
			if u == "" {
				continue
			}
			k.cache.ApplyTick(u, tick.InstrumentKey, tick.LTP, tick.Bid, tick.Ask, tick.Greeks, tick.LTT)
		}
	}
}

// underlyingOf recovers the underlying from an instrument key built by
// instrumentKeyFor ("<underlying>-<strike>-<expiry>-<direction>"); none
// of NIFTY/BANKNIFTY/SENSEX contain a hyphen, so splitting on the first
// one is unambiguous.
func underlyingOf(key domain.InstrumentKey) domain.Underlying {
	s := string(key)
	if i := strings.Index(s, "-"); i > 0 {
		return domain.Underlying(s[:i])
	}
	return ""
}
