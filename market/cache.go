// Package market owns the single-writer, many-reader market-state cache.
// A fresh snapshot is built off to the side and published by swapping an
// atomic pointer, so readers never observe a partially updated snapshot
// (the same copy-on-write discipline the corpus uses for its exchange
// market-data cache, generalised here to the option-chain domain).
package market

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/indexoptions/kernel/domain"
	"github.com/indexoptions/kernel/logger"
)

// Tstale is how long a snapshot may go without any refresh — REST pull
// or tick — before it is treated as stale and decisions pause.
const Tstale = 10 * time.Second

var log = logger.For("market")

// Cache holds one published Snapshot per underlying plus the index-wide
// VIX reading, and a rolling window per underlying for indicator
// enrichment. The zero value is not usable; use NewCache.
type Cache struct {
	snapshots map[domain.Underlying]*atomic.Pointer[domain.Snapshot]

	mu      sync.Mutex // guards windows; only the refresher writes
	windows map[domain.Underlying]*window

	vix atomic.Value // float64
}

// NewCache builds an empty cache for the given universe of underlyings.
func NewCache(universe []domain.Underlying) *Cache {
	c := &Cache{
		snapshots: make(map[domain.Underlying]*atomic.Pointer[domain.Snapshot], len(universe)),
		windows:   make(map[domain.Underlying]*window, len(universe)),
	}
	for _, u := range universe {
		p := &atomic.Pointer[domain.Snapshot]{}
		p.Store(&domain.Snapshot{Underlying: u})
		c.snapshots[u] = p
		c.windows[u] = newWindow(120)
	}
	c.vix.Store(0.0)
	return c
}

// Get returns the currently published snapshot for an underlying. The
// returned value is a value-copy of the pointed-to struct's top level;
// callers must not mutate it.
func (c *Cache) Get(u domain.Underlying) (domain.Snapshot, bool) {
	p, ok := c.snapshots[u]
	if !ok {
		return domain.Snapshot{}, false
	}
	s := p.Load()
	if s == nil {
		return domain.Snapshot{}, false
	}
	return *s, true
}

// VIX returns the last published VIX reading.
func (c *Cache) VIX() float64 {
	return c.vix.Load().(float64)
}

// RefreshInput is what the broker adapter hands back for one underlying
// on a periodic pull; Cache derives everything else from it.
type RefreshInput struct {
	Underlying domain.Underlying
	Spot       float64
	Expiry     time.Time
	Legs       []domain.OptionLeg
	VIX        float64
	At         time.Time
}

// ApplyRefresh builds a brand-new Snapshot from a periodic pull and
// publishes it atomically, returning the previous and new market
// condition so the caller can decide whether a regime-changed event is
// warranted.
func (c *Cache) ApplyRefresh(in RefreshInput) (prev, next domain.MarketCondition) {
	p, ok := c.snapshots[in.Underlying]
	if !ok {
		return "", ""
	}
	old := p.Load()
	if old != nil {
		prev = old.Condition
	}

	chain := buildChain(in.Underlying, in.Expiry, in.Spot, in.Legs, in.At)

	c.mu.Lock()
	w := c.windows[in.Underlying]
	w.push(in.Spot, in.At)
	ind := w.indicators()
	c.mu.Unlock()

	next = Classify(in.VIX)
	snap := &domain.Snapshot{
		Underlying:    in.Underlying,
		Spot:          in.Spot,
		ATMStrike:     chain.ATMStrike,
		CurrentExpiry: in.Expiry,
		Chain:         chain,
		VIX:           in.VIX,
		Condition:     next,
		Indicators:    ind,
		LastRefresh:   in.At,
	}
	p.Store(snap)
	c.vix.Store(in.VIX)
	log.With().Str("underlying", string(in.Underlying)).Float64("spot", in.Spot).Msg("cache refreshed")
	return prev, next
}

// ApplyTick updates LTP (and bid/ask/Greeks when present) for a single
// instrument inside the current snapshot for its underlying. Ticks for
// an instrument-key the cache does not know about are ignored. The
// update is published as a new snapshot value so concurrent readers
// never see a half-written chain.
func (c *Cache) ApplyTick(u domain.Underlying, key domain.InstrumentKey, ltp float64, bid, ask float64, greeks *domain.Greeks, at time.Time) bool {
	p, ok := c.snapshots[u]
	if !ok {
		return false
	}
	old := p.Load()
	if old == nil {
		return false
	}
	next := *old // shallow copy of the snapshot header
	strikes := make(map[float64]domain.StrikePair, len(old.Chain.Strikes))
	for k, v := range old.Chain.Strikes {
		strikes[k] = v
	}
	next.Chain.Strikes = strikes

	found := false
	for strike, pair := range strikes {
		for _, leg := range []*domain.OptionLeg{&pair.Call, &pair.Put} {
			if leg.InstrumentKey != key {
				continue
			}
			leg.LTP = ltp
			leg.LastUpdate = at
			leg.Stale = false
			if bid > 0 {
				leg.Bid = bid
			}
			if ask > 0 {
				leg.Ask = ask
			}
			if greeks != nil {
				leg.Greeks = *greeks
			}
			found = true
		}
		strikes[strike] = pair
	}
	if !found {
		return false
	}
	// A live tick keeps the snapshot itself current for staleness
	// purposes even between REST pulls; the chain's own LastRefresh stays
	// pinned to the last full pull so every leg read in one chain still
	// carries the same timestamp.
	next.LastRefresh = at
	p.Store(&next)
	return true
}

// Classify maps a VIX reading to the broad volatility regime, exported
// so callers outside this package (e.g. the kernel, when it records a
// position's entry regime) use the exact same bands.
func Classify(vix float64) domain.MarketCondition {
	switch {
	case vix >= 25:
		return domain.ConditionVolatile
	case vix <= 13:
		return domain.ConditionCalm
	default:
		return domain.ConditionNormal
	}
}
