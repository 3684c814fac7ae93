// Package kernel wires the market cache, strategy ensemble, scorer,
// risk manager, circuit breaker, order manager and event bus into
// three cooperating control loops. Grounded on
// e16f11aa_web3guy0-polybot__core-engine.go.go's Engine/mainLoop/
// positionMonitorLoop split, generalised from two loops to three
// (market-data, signal-trading, risk-monitoring) with explicit
// ordering, cancellation and crash-restart semantics.
package kernel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indexoptions/kernel/broker"
	"github.com/indexoptions/kernel/circuitbreaker"
	"github.com/indexoptions/kernel/clock"
	"github.com/indexoptions/kernel/domain"
	"github.com/indexoptions/kernel/eventbus"
	"github.com/indexoptions/kernel/logger"
	"github.com/indexoptions/kernel/orders"
	"github.com/indexoptions/kernel/pnl"
	"github.com/indexoptions/kernel/position"
	"github.com/indexoptions/kernel/registry"
	"github.com/indexoptions/kernel/risk"
	"github.com/indexoptions/kernel/scorer"
	"github.com/indexoptions/kernel/strategy"

	gmarket "github.com/indexoptions/kernel/market"
)

var log = logger.For("kernel")

// Store is the persistence boundary: positions are written on
// open/state-change/close, trades on close only.
type Store interface {
	SavePosition(domain.Position) error
	SaveTrade(domain.Trade) error
}

// Config bundles the kernel's own tunables (decision/monitor intervals,
// circuit-breaker thresholds) distinct from risk.Config.
type Config struct {
	DecisionIntervalS int
	MonitorIntervalS  int
	ReversalThreshold float64
	VIXHaltThreshold  float64
	MaxDailyLossPct   float64
}

// Kernel owns the three long-lived loops and the shared state they
// coordinate through: the market cache (single-writer), the position
// map (per-key locked) and the risk/circuit-breaker state (mutex
// guarded, owned by their own packages).
type Kernel struct {
	cfg     Config
	clk     clock.Clock
	universe []domain.Underlying

	cache    *gmarket.Cache
	adapter  broker.Adapter
	feed     broker.TickFeed
	reg      *registry.Registry
	strats   []strategy.Strategy
	scorer   *scorer.Scorer
	riskMgr  *risk.Manager
	breaker  *circuitbreaker.Breaker
	orderMgr *orders.Manager
	bus      *eventbus.Bus
	store    Store
	fees     pnl.FeeSchedule

	posMu     sync.Mutex
	positions map[string]*position.Tracker

	ivMu      sync.Mutex
	ivHistory map[domain.InstrumentKey]ivSample

	recentMu sync.Mutex
	recent   []RecentSignal

	running atomic.Bool
	paused  atomic.Bool
	mode    atomic.Value // string: "paper" | "live"
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// RecentSignal is one bounded ring entry recording a signal's fate,
// for operator visibility.
type RecentSignal struct {
	StrategyID string
	Symbol     domain.Underlying
	Outcome    string // executed | blocked_by_risk | execution_failed
	Reason     string
	At         time.Time
}

const recentSignalCap = 200

// New wires every collaborator into a Kernel.
func New(
	cfg Config,
	clk clock.Clock,
	universe []domain.Underlying,
	cache *gmarket.Cache,
	adapter broker.Adapter,
	feed broker.TickFeed,
	reg *registry.Registry,
	strats []strategy.Strategy,
	sc *scorer.Scorer,
	riskMgr *risk.Manager,
	breaker *circuitbreaker.Breaker,
	orderMgr *orders.Manager,
	bus *eventbus.Bus,
	store Store,
	fees pnl.FeeSchedule,
	mode string,
) *Kernel {
	k := &Kernel{
		cfg: cfg, clk: clk, universe: universe,
		cache: cache, adapter: adapter, feed: feed, reg: reg,
		strats: strats, scorer: sc, riskMgr: riskMgr, breaker: breaker,
		orderMgr: orderMgr, bus: bus, store: store, fees: fees,
		positions: make(map[string]*position.Tracker),
		ivHistory: make(map[domain.InstrumentKey]ivSample),
		stopCh:    make(chan struct{}),
	}
	k.mode.Store(mode)
	return k
}

// ivSample is the most recent IV reading kept per watched instrument,
// used to evaluate the 5-minute IV-shock circuit-breaker trigger.
type ivSample struct {
	iv float64
	at time.Time
}

// Start launches L1, L2 and L3, each under its own crash-catch-restart
// supervisor.
func (k *Kernel) Start(ctx context.Context) {
	if !k.running.CompareAndSwap(false, true) {
		return
	}
	k.stopCh = make(chan struct{})
	k.bus.Publish(eventbus.Message{Kind: eventbus.KindSystemStatus, Text: "kernel started"})

	k.supervise(ctx, "market-data-loop", k.marketDataLoop, false)
	k.supervise(ctx, "tick-feed-loop", k.tickFeedLoop, false)
	k.supervise(ctx, "signal-trading-loop", k.signalTradingLoop, false)
	k.supervise(ctx, "risk-monitoring-loop", k.riskMonitoringLoop, true)
}

// Stop requests cooperative shutdown: it closes the shared stop
// channel, so L1, L2, L3 and the tick-feed loop each return at their
// next check, and waits for all of them. The loops are not stopped in
// layer order, and L3 does not wait for open positions to close.
func (k *Kernel) Stop() {
	if !k.running.CompareAndSwap(true, false) {
		return
	}
	close(k.stopCh)
	k.wg.Wait()
	k.bus.Publish(eventbus.Message{Kind: eventbus.KindSystemStatus, Text: "kernel stopped"})
}

// supervise runs fn in a loop, catching panics and restarting with
// exponential backoff (1s -> 60s). isL3 marks the risk-monitoring loop,
// which raises the circuit breaker via a dedicated trigger on repeated
// crashes rather than just logging and retrying forever.
func (k *Kernel) supervise(ctx context.Context, name string, fn func(context.Context), isL3 bool) {
	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		backoff := time.Second
		crashes := 0
		for {
			select {
			case <-k.stopCh:
				return
			default:
			}

			crashed := k.runGuarded(ctx, name, fn)
			if !crashed {
				return // fn returned cleanly, e.g. stopCh fired mid-body
			}

			crashes++
			if isL3 && crashes >= 3 {
				k.breaker.Trip(domain.TriggerLoopFailure, name+" crashed repeatedly", true, k.clk.Now())
			}
			k.bus.Publish(eventbus.Message{Kind: eventbus.KindAlert, Level: eventbus.LevelError, Text: name + " crashed, restarting"})

			select {
			case <-k.stopCh:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 60*time.Second {
				backoff = 60 * time.Second
			}
		}
	}()
}

// runGuarded invokes fn and recovers a panic, returning whether the
// loop crashed (true) versus exited cleanly (false).
func (k *Kernel) runGuarded(ctx context.Context, name string, fn func(context.Context)) (crashed bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%s panicked: %v", name, r)
			crashed = true
		}
	}()
	fn(ctx)
	return false
}
