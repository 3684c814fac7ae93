// Package orders implements the order manager: live and paper execution
// behind the same signal-level call, subscription management on the
// tick feed, and cancellation retry with exponential backoff. Grounded
// on the order-placement/exit flow in
// e16f11aa_web3guy0-polybot__core-engine.go.go's executeSignal/
// exitPosition pair, generalised from the spot-equity exchange order
// model to options contracts with a distinct paper-mode slippage model.
package orders

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/indexoptions/kernel/broker"
	"github.com/indexoptions/kernel/config"
	"github.com/indexoptions/kernel/domain"
	"github.com/indexoptions/kernel/logger"
)

var log = logger.For("orders")

// Fill is the result of a successful entry or exit execution.
type Fill struct {
	Price     float64
	Quantity  int
	Timestamp time.Time
}

// FeedSubscriber is the subset of broker.TickFeed the order manager
// needs, kept narrow so tests can fake it without a real feed.
type FeedSubscriber interface {
	Subscribe(keys ...domain.InstrumentKey) error
	Unsubscribe(keys ...domain.InstrumentKey) error
}

// Manager places and closes orders in either paper or live mode,
// managing tick-feed subscriptions as positions open and close.
type Manager struct {
	mode   atomic.Value // config.TradingMode
	broker broker.Adapter
	feed   FeedSubscriber
	rng    *rand.Rand
}

// New constructs a Manager bound to one execution mode.
func New(mode config.TradingMode, adapter broker.Adapter, feed FeedSubscriber) *Manager {
	m := &Manager{broker: adapter, feed: feed, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	m.mode.Store(mode)
	return m
}

// SetMode switches the execution mode at runtime; in-flight orders are
// unaffected, only subsequent Open/Close calls observe the new mode.
func (m *Manager) SetMode(mode config.TradingMode) { m.mode.Store(mode) }

// Mode reports the current execution mode.
func (m *Manager) Mode() config.TradingMode { return m.mode.Load().(config.TradingMode) }

// Open executes an entry for a scored+sized signal, subscribing the
// instrument to the push feed on success so subsequent MTM ticks flow
// into the position tracker.
func (m *Manager) Open(ctx context.Context, key domain.InstrumentKey, side domain.Side, qty int, ltp float64, liquidity, volatility float64) (Fill, error) {
	var fill Fill
	var err error
	if m.Mode() == config.ModeLive {
		fill, err = m.liveFill(ctx, key, side, broker.Buy, qty)
	} else {
		fill = m.paperFill(broker.Buy, qty, ltp, liquidity, volatility)
	}
	if err != nil {
		return Fill{}, err
	}
	if subErr := m.feed.Subscribe(key); subErr != nil {
		log.Err(subErr, "tick feed subscribe failed")
	}
	return fill, nil
}

// Close executes an exit for an already-open position: the same
// InstrumentKey/Side, sold rather than bought.
func (m *Manager) Close(ctx context.Context, key domain.InstrumentKey, side domain.Side, qty int, ltp float64, liquidity, volatility float64, fullClose bool) (Fill, error) {
	var fill Fill
	var err error
	if m.Mode() == config.ModeLive {
		fill, err = m.liveFill(ctx, key, side, broker.Sell, qty)
	} else {
		fill = m.paperFill(broker.Sell, qty, ltp, liquidity, volatility)
	}
	if err != nil {
		return Fill{}, err
	}
	if fullClose {
		if unsubErr := m.feed.Unsubscribe(key); unsubErr != nil {
			log.Err(unsubErr, "tick feed unsubscribe failed")
		}
	}
	return fill, nil
}

// liveFill places an order through the broker adapter and polls status
// until a terminal state, retrying cancellation with exponential
// backoff on a timeout (up to 3 retries).
func (m *Manager) liveFill(ctx context.Context, key domain.InstrumentKey, side domain.Side, action broker.Action, qty int) (Fill, error) {
	ack, err := m.broker.PlaceOrder(ctx, broker.OrderRequest{InstrumentKey: key, Side: side, Action: action, Quantity: qty})
	if err != nil {
		return Fill{}, err
	}

	st, err := m.pollUntilTerminal(ctx, ack.BrokerOrderID)
	if err != nil {
		m.cancelWithRetry(ctx, ack.BrokerOrderID)
		return Fill{}, err
	}
	return Fill{Price: st.AvgFillPrice, Quantity: st.FilledQty, Timestamp: time.Now()}, nil
}

func (m *Manager) pollUntilTerminal(ctx context.Context, brokerOrderID string) (broker.OrderState, error) {
	deadline := time.Now().Add(10 * time.Second) // order submission must reach a terminal state within 10s
	for time.Now().Before(deadline) {
		st, err := m.broker.OrderStatus(ctx, brokerOrderID)
		if err != nil {
			return broker.OrderState{}, err
		}
		switch st.Status {
		case broker.OrderFilled:
			return st, nil
		case broker.OrderRejected, broker.OrderCancelled:
			return broker.OrderState{}, errRejected(st.Status)
		}
		select {
		case <-ctx.Done():
			return broker.OrderState{}, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return broker.OrderState{}, errTimeout
}

func (m *Manager) cancelWithRetry(ctx context.Context, brokerOrderID string) {
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if err := m.broker.CancelOrder(ctx, brokerOrderID); err == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	log.Errorf("order %s: cancellation failed after 3 retries", brokerOrderID)
}

// paperFill computes a synthetic execution price: spread ~0.05%, a
// size-and-liquidity-dependent 0.1-0.5% component, and a volatility
// multiplier, then records the fill immediately. Slippage always works
// against the trader: buys fill above LTP, sells fill below it.
func (m *Manager) paperFill(action broker.Action, qty int, ltp, liquidity, volatility float64) Fill {
	spread := ltp * 0.0005

	sizeImpact := 0.001
	if liquidity > 0 {
		sizeImpact = math.Min(0.005, math.Max(0.001, float64(qty)/liquidity*0.005))
	}
	sizeComponent := ltp * sizeImpact

	volMultiplier := 1.0
	if volatility > 0 {
		volMultiplier = 1 + math.Min(1, volatility/50)
	}

	slippage := (spread + sizeComponent) * volMultiplier
	price := ltp + slippage
	if action == broker.Sell {
		price = ltp - slippage
	}
	if price < 0.05 {
		price = 0.05
	}
	return Fill{Price: price, Quantity: qty, Timestamp: time.Now()}
}

type orderError string

func (e orderError) Error() string { return string(e) }

const errTimeout = orderError("orders: submission timed out")

func errRejected(status broker.OrderStatus) error {
	return orderError("orders: broker returned " + string(status))
}
