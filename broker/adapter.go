// Package broker defines the external broker boundary: quotes,
// option-chain discovery, order placement/cancellation/status, and a
// streaming tick feed, plus a token-bucket rate limiter and a token
// lifecycle manager. The limiter and token manager are standalone:
// neither Simulated nor the order manager calls them. This package owns no
// trading logic — it is the named interface the kernel's other
// packages program against, with one simulated paper-mode
// implementation for local running.
package broker

import (
	"context"
	"time"

	"github.com/indexoptions/kernel/domain"
)

// OrderSide mirrors domain.Side at the wire boundary so broker.Order
// doesn't leak kernel-internal types into a hypothetical real
// implementation's wire structs.
type OrderSide = domain.Side

// OrderStatus is an order's lifecycle state.
type OrderStatus string

const (
	OrderNew       OrderStatus = "NEW"
	OrderSubmitted OrderStatus = "SUBMITTED"
	OrderPartial   OrderStatus = "PARTIAL"
	OrderFilled    OrderStatus = "FILLED"
	OrderRejected  OrderStatus = "REJECTED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Action is the buy/sell direction of an order, independent of the
// option's Side (CALL/PUT): a position is opened with a Buy and closed
// with a Sell, regardless of which option type it holds.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// OrderRequest is what the order manager submits to place an order.
type OrderRequest struct {
	InstrumentKey domain.InstrumentKey
	Side          OrderSide
	Action        Action
	Quantity      int
	LimitPrice    float64 // 0 = market
}

// OrderAck is the broker's immediate response to a submission.
type OrderAck struct {
	BrokerOrderID string
	Status        OrderStatus
}

// OrderState is what order-status polling/streaming returns.
type OrderState struct {
	BrokerOrderID string
	Status        OrderStatus
	FilledQty     int
	AvgFillPrice  float64
}

// Tick is a single push frame: instrument key, LTP and last-trade-time
// at minimum, with richer frames populating bid/ask/Greeks.
type Tick struct {
	InstrumentKey domain.InstrumentKey
	LTP           float64
	LTT           time.Time
	Bid, Ask      float64
	Greeks        *domain.Greeks
}

// Adapter is the broker boundary every other package depends on.
type Adapter interface {
	Quotes(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]Tick, error)
	Spot(ctx context.Context, u domain.Underlying) (float64, error)
	OptionChain(ctx context.Context, u domain.Underlying, expiry time.Time) ([]domain.OptionLeg, error)
	VIX(ctx context.Context) (float64, error)

	PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error)
	CancelOrder(ctx context.Context, brokerOrderID string) error
	OrderStatus(ctx context.Context, brokerOrderID string) (OrderState, error)
	Positions(ctx context.Context) ([]OrderState, error)
}

// TickFeed is the streaming push boundary, owned by the tick-feed
// loop, which connects it once; nothing reconnects or resubscribes it
// after the connection drops.
type TickFeed interface {
	Connect(ctx context.Context) error
	Subscribe(keys ...domain.InstrumentKey) error
	Unsubscribe(keys ...domain.InstrumentKey) error
	Ticks() <-chan Tick
	Close() error
}
