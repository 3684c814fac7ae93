// Command kernel boots the intraday options-trading kernel: loads
// config, wires the market cache, strategy ensemble, scorer, risk gate,
// circuit breaker, order manager and event bus into a kernel.Kernel,
// starts the control-surface HTTP server, and runs until signalled.
// The bootstrap is flat main wiring every collaborator, then blocking
// on signal.Notify.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/indexoptions/kernel/api"
	"github.com/indexoptions/kernel/broker"
	"github.com/indexoptions/kernel/circuitbreaker"
	"github.com/indexoptions/kernel/clock"
	"github.com/indexoptions/kernel/config"
	"github.com/indexoptions/kernel/domain"
	"github.com/indexoptions/kernel/eventbus"
	"github.com/indexoptions/kernel/kernel"
	"github.com/indexoptions/kernel/logger"
	gmarket "github.com/indexoptions/kernel/market"
	"github.com/indexoptions/kernel/orders"
	"github.com/indexoptions/kernel/pnl"
	"github.com/indexoptions/kernel/registry"
	"github.com/indexoptions/kernel/risk"
	"github.com/indexoptions/kernel/scorer"
	"github.com/indexoptions/kernel/store"
	"github.com/indexoptions/kernel/strategy"
)

var log = logger.For("main")

var universe = []domain.Underlying{domain.NIFTY, domain.BANKNIFTY, domain.SENSEX}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Errorf("config: %v", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Errorf("store: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	bus := eventbus.New()
	defer bus.Close()

	breaker := circuitbreaker.New()
	breaker.OnTrip(func(trigger domain.CircuitTrigger, reason string) {
		bus.Publish(eventbus.Message{
			Kind: eventbus.KindCircuitBreakerEvent, Level: eventbus.LevelError,
			Text: string(trigger), Detail: reason,
		})
	})

	clk := clock.Real{}
	reg := registry.Default()
	cache := gmarket.NewCache(universe)

	seedSpots := map[domain.Underlying]float64{
		domain.NIFTY: 22000, domain.BANKNIFTY: 48000, domain.SENSEX: 73000,
	}
	adapter := broker.NewSimulated(seedSpots)
	feed := broker.NewSimulatedFeed()

	orderMgr := orders.New(cfg.TradingMode, adapter, feed)

	riskMgr := risk.New(risk.Config{
		StartingCapital:    cfg.StartingCapital,
		MaxDailyLossPct:    cfg.MaxDailyLossPct,
		PerTradeRiskPct:    cfg.PerTradeRiskPct,
		MaxPositions:       cfg.MaxPositions,
		MaxTradesPerDay:    cfg.MaxTradesPerDay,
		AggressiveMode:     cfg.AggressiveMode,
		PerTradeCapitalCap: cfg.PerTradeCapitalCap,
		PostExitCooldown:   time.Duration(cfg.PostExitCooldownS) * time.Second,
	}, reg, breaker, clk)

	sc := scorer.New(scorer.PassThroughModel{}, cfg.MinMLScore, cfg.MinStrategyStrength)

	k := kernel.New(
		kernel.Config{
			DecisionIntervalS: cfg.RefreshIntervalOpenS,
			MonitorIntervalS:  cfg.MonitorIntervalS,
			ReversalThreshold: 0.02,
			VIXHaltThreshold:  cfg.VIXHaltThreshold,
			MaxDailyLossPct:   cfg.MaxDailyLossPct,
		},
		clk, universe, cache, adapter, feed, reg,
		strategy.Default(), sc, riskMgr, breaker, orderMgr, bus, db,
		pnl.DefaultFeeSchedule, string(cfg.TradingMode),
	)

	auth := api.NewAuth([]byte(cfg.JWTSecret), cfg.TOTPSecret, []byte(cfg.OperatorPasswordHash), cfg.EmergencyCredential)
	server := api.NewServer(k, bus, auth)

	go func() {
		if err := server.Run(cfg.HTTPAddr); err != nil {
			log.Errorf("api server stopped: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	k.Start(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Infof("shutting down")
	k.Stop()
}
