package broker

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/indexoptions/kernel/domain"
)

// Simulated is a paper-mode Adapter: it never calls a real broker, but
// honours the same interface so the order manager and market-data loop
// run unmodified in either mode. Quotes are generated around a
// per-underlying reference spot with small random walk noise, which is
// enough to drive the kernel's control-loop and exit-timing behaviour
// end to end without a live venue.
type Simulated struct {
	mu       sync.Mutex
	spots    map[domain.Underlying]float64
	orders   map[string]*OrderState
	rng      *rand.Rand
	lotSizes map[domain.Underlying]int
}

// NewSimulated builds a simulated adapter seeded with a starting spot
// per underlying.
func NewSimulated(seedSpots map[domain.Underlying]float64) *Simulated {
	return &Simulated{
		spots:  seedSpots,
		orders: make(map[string]*OrderState),
		rng:    rand.New(rand.NewSource(1)),
	}
}

func (s *Simulated) Quotes(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]Tick, error) {
	out := make(map[domain.InstrumentKey]Tick, len(keys))
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		out[k] = Tick{InstrumentKey: k, LTP: s.priceFor(k), LTT: now}
	}
	return out, nil
}

// priceFor derives a deterministic-ish synthetic LTP for an instrument
// key; callers hold s.mu.
func (s *Simulated) priceFor(k domain.InstrumentKey) float64 {
	base := 100.0
	for _, c := range string(k) {
		base += float64(c % 7)
	}
	noise := s.rng.NormFloat64() * 0.5
	return math.Max(0.05, base+noise)
}

// Spot returns (and slowly random-walks) the reference spot price for
// an underlying.
func (s *Simulated) Spot(ctx context.Context, u domain.Underlying) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spot, ok := s.spots[u]
	if !ok {
		spot = defaultSpot(u)
	}
	spot += s.rng.NormFloat64() * spot * 0.0005
	if s.spots == nil {
		s.spots = map[domain.Underlying]float64{}
	}
	s.spots[u] = spot
	return spot, nil
}

func defaultSpot(u domain.Underlying) float64 {
	switch u {
	case domain.BANKNIFTY:
		return 48000
	case domain.SENSEX:
		return 73000
	default:
		return 22000
	}
}

func (s *Simulated) OptionChain(ctx context.Context, u domain.Underlying, expiry time.Time) ([]domain.OptionLeg, error) {
	s.mu.Lock()
	spot, ok := s.spots[u]
	s.mu.Unlock()
	if !ok {
		spot = 20000
	}
	step := strikeStep(u)
	var legs []domain.OptionLeg
	for i := -10; i <= 10; i++ {
		strike := math.Round((spot+float64(i)*step)/step) * step
		for _, side := range []domain.Side{domain.CALL, domain.PUT} {
			key := domain.InstrumentKey(fmt.Sprintf("%s-%d-%s-%s", u, int(strike), expiry.Format("20060102"), side))
			legs = append(legs, domain.OptionLeg{
				InstrumentKey: key,
				Strike:        strike,
				Side:          side,
				LTP:           syntheticPremium(spot, strike, side),
				Bid:           syntheticPremium(spot, strike, side) * 0.995,
				Ask:           syntheticPremium(spot, strike, side) * 1.005,
				OpenInterest:  float64(1000 + i*i*50),
				Volume:        float64(500 + i*i*20),
				ImpliedVol:    14 + math.Abs(float64(i))*0.3,
				Greeks:        syntheticGreeks(spot, strike, side),
				LastUpdate:    time.Now(),
			})
		}
	}
	return legs, nil
}

func strikeStep(u domain.Underlying) float64 {
	switch u {
	case domain.BANKNIFTY:
		return 100
	case domain.SENSEX:
		return 100
	default:
		return 50
	}
}

func syntheticPremium(spot, strike float64, side domain.Side) float64 {
	intrinsic := 0.0
	if side == domain.CALL {
		intrinsic = math.Max(0, spot-strike)
	} else {
		intrinsic = math.Max(0, strike-spot)
	}
	timeValue := math.Max(5, 60-math.Abs(spot-strike)*0.05)
	return intrinsic + timeValue
}

func syntheticGreeks(spot, strike float64, side domain.Side) domain.Greeks {
	moneyness := (spot - strike) / spot
	delta := 0.5 + moneyness*2
	if side == domain.PUT {
		delta = delta - 1
	}
	delta = math.Max(-1, math.Min(1, delta))
	return domain.Greeks{
		Delta: delta,
		Gamma: math.Max(0.0001, 0.01-math.Abs(moneyness)*0.05),
		Theta: -math.Abs(spot-strike) * 0.001,
		Vega:  math.Max(0.01, 0.2-math.Abs(moneyness)),
	}
}

func (s *Simulated) VIX(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return 14 + s.rng.Float64()*4, nil
}

func (s *Simulated) PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	id := uuid.NewString()
	s.mu.Lock()
	s.orders[id] = &OrderState{BrokerOrderID: id, Status: OrderFilled, FilledQty: req.Quantity, AvgFillPrice: s.priceFor(req.InstrumentKey)}
	s.mu.Unlock()
	return OrderAck{BrokerOrderID: id, Status: OrderFilled}, nil
}

func (s *Simulated) CancelOrder(ctx context.Context, brokerOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.orders[brokerOrderID]
	if !ok {
		return fmt.Errorf("broker: unknown order %s", brokerOrderID)
	}
	st.Status = OrderCancelled
	return nil
}

func (s *Simulated) OrderStatus(ctx context.Context, brokerOrderID string) (OrderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.orders[brokerOrderID]
	if !ok {
		return OrderState{}, fmt.Errorf("broker: unknown order %s", brokerOrderID)
	}
	return *st, nil
}

func (s *Simulated) Positions(ctx context.Context) ([]OrderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OrderState, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out, nil
}
