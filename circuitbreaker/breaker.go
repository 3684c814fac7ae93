// Package circuitbreaker implements a fault latch: CLOSED permits
// trading, OPEN refuses new entries while running exits continue.
// Grounded on the CLOSED/OPEN trip logic in
// 07ff2077_web3guy0-polybot__risk-gate.go.go's RiskGate, split out into
// its own package since it carries an independent reset policy (daily
// auto-reset vs. sticky manual override) distinct from the risk
// manager's admission checks.
package circuitbreaker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/indexoptions/kernel/domain"
	"github.com/indexoptions/kernel/logger"
)

var log = logger.For("circuitbreaker")

// Breaker is the fault latch. State reads are lock-free (atomic.Bool);
// state changes take the mutex so reason/trigger bookkeeping stays
// consistent with the state flip.
type Breaker struct {
	open   atomic.Bool
	sticky atomic.Bool

	mu      sync.Mutex
	trigger domain.CircuitTrigger
	reason  string
	trippedAt time.Time

	onTrip func(domain.CircuitTrigger, string)
}

// New returns a closed breaker.
func New() *Breaker {
	return &Breaker{}
}

// OnTrip registers a callback invoked (synchronously, after the
// breaker's own lock is released) whenever the breaker opens.
func (b *Breaker) OnTrip(fn func(domain.CircuitTrigger, string)) {
	b.mu.Lock()
	b.onTrip = fn
	b.mu.Unlock()
}

// IsOpen is the lock-free fast-path check every admission decision uses.
func (b *Breaker) IsOpen() bool { return b.open.Load() }

// State returns CLOSED or OPEN for reporting.
func (b *Breaker) State() domain.CircuitState {
	if b.open.Load() {
		return domain.CircuitOpen
	}
	return domain.CircuitClosed
}

// Trip raises the breaker for the given trigger, unless it is already
// open. Setting sticky=true means the daily auto-reset will not clear
// it; only Reset (operator-authenticated, at the call site) can.
func (b *Breaker) Trip(trigger domain.CircuitTrigger, reason string, sticky bool, now time.Time) {
	if b.open.CompareAndSwap(false, true) {
		b.mu.Lock()
		b.trigger, b.reason, b.trippedAt = trigger, reason, now
		cb := b.onTrip
		b.mu.Unlock()
		if sticky {
			b.sticky.Store(true)
		}
		log.With().Str("trigger", string(trigger)).Str("reason", reason).Msg("circuit breaker tripped")
		if cb != nil {
			cb(trigger, reason)
		}
	}
}

// Reset clears the latch. Callers (risk or API layer) are responsible
// for requiring the operator credential before calling this for a
// manual reset; the daily auto-reset path also goes through here.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.trigger, b.reason, b.trippedAt = "", "", time.Time{}
	b.mu.Unlock()
	b.sticky.Store(false)
	b.open.Store(false)
}

// DailyReset clears the latch at the pre-open tick unless a sticky
// override is set.
func (b *Breaker) DailyReset() {
	if b.sticky.Load() {
		log.Infof("daily reset skipped: sticky override active")
		return
	}
	b.Reset()
}

// Info returns the current trigger/reason/trip-time for reporting.
func (b *Breaker) Info() (domain.CircuitTrigger, string, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trigger, b.reason, b.trippedAt
}
