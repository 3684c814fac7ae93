// Package position wraps domain.Position with a per-position exclusive
// lock: concurrent ticks for the same instrument-key must serialise,
// and ticks arriving after CLOSED are discarded. Kept out of the domain
// package because domain is intentionally lock-free pure data (see
// domain/position.go).
package position

import (
	"sync"
	"time"

	"github.com/indexoptions/kernel/domain"
)

// ExitDecision is what evaluation returns when a trigger fires.
type ExitDecision struct {
	Triggered bool
	Reason    domain.ExitReason
	Quantity  int // quantity to close: full remaining, or one ladder step
}

// Tracker guards one open position's mutable fields with its own mutex,
// so two goroutines racing on the same instrument-key's ticks cannot
// both decide to exit.
type Tracker struct {
	mu  sync.Mutex
	pos domain.Position
}

// New wraps a freshly opened position.
func New(p domain.Position) *Tracker {
	return &Tracker{pos: p}
}

// Snapshot returns a copy of the current position state.
func (t *Tracker) Snapshot() domain.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos
}

// ApplyPrice recomputes unrealised P&L for a new price print and
// evaluates all exit triggers in priority order: stop-loss, forced
// circuit exit, forced EOD exit, target/ladder, then reversal. Ticks
// for an already-CLOSED position are discarded. reversalSignal is the
// dedicated detector's current strength (0 when no reversal pending);
// forceEOD/forceCircuit are computed by the caller (clock / breaker)
// once per loop iteration and passed in so Tracker stays free of those
// dependencies.
func (t *Tracker) ApplyPrice(price float64, at time.Time, reversalSignal float64, reversalThreshold float64, forceEOD, forceCircuit bool) ExitDecision {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pos.State == domain.StateClosed {
		return ExitDecision{}
	}

	t.pos.CurrentPrice = price
	t.pos.UnrealisedPnL = domain.Unrealised(t.pos.Direction, t.pos.EntryPrice, price, t.pos.Quantity)

	switch {
	case t.stopHit(price):
		return ExitDecision{Triggered: true, Reason: domain.ExitStopLoss, Quantity: t.remainingQty()}
	case forceCircuit:
		return ExitDecision{Triggered: true, Reason: domain.ExitCircuit, Quantity: t.remainingQty()}
	case forceEOD:
		return ExitDecision{Triggered: true, Reason: domain.ExitEOD, Quantity: t.remainingQty()}
	case t.targetHit(price):
		return t.evaluateTarget(price)
	case reversalSignal >= reversalThreshold && reversalThreshold > 0:
		return ExitDecision{Triggered: true, Reason: domain.ExitReversal, Quantity: t.remainingQty()}
	}
	return ExitDecision{}
}

func (t *Tracker) stopHit(price float64) bool {
	if t.pos.Direction == domain.CALL {
		return price <= t.pos.StopLoss
	}
	return price >= t.pos.StopLoss
}

// targetHit reports whether price has crossed the next level that would
// close some quantity: the plain target when no ladder is configured,
// or the next unfilled T1/T2/T3 step when one is (so a T1 cross is
// caught even though price hasn't yet reached T3).
func (t *Tracker) targetHit(price float64) bool {
	level := t.pos.TargetPrice
	if t.pos.Ladder.Enabled {
		levels := []float64{t.pos.Ladder.T1, t.pos.Ladder.T2, t.pos.Ladder.T3}
		if t.pos.LadderFilled >= len(levels) {
			return false
		}
		level = levels[t.pos.LadderFilled]
	}
	if t.pos.Direction == domain.CALL {
		return price >= level
	}
	return price <= level
}

// evaluateTarget handles both the plain-target and ladder cases. With a
// ladder, each crossed level closes 1/3 of the original quantity and
// the state walks OPEN -> PARTIAL -> CLOSED; the final step closes
// whatever remains so rounding never leaves a dust quantity open.
func (t *Tracker) evaluateTarget(price float64) ExitDecision {
	if !t.pos.Ladder.Enabled {
		return ExitDecision{Triggered: true, Reason: domain.ExitTarget, Quantity: t.remainingQty()}
	}

	levels := []float64{t.pos.Ladder.T1, t.pos.Ladder.T2, t.pos.Ladder.T3}
	step := t.pos.LadderFilled
	if step >= len(levels) {
		return ExitDecision{}
	}
	crossed := false
	if t.pos.Direction == domain.CALL {
		crossed = price >= levels[step]
	} else {
		crossed = price <= levels[step]
	}
	if !crossed {
		return ExitDecision{}
	}

	third := t.pos.Quantity / 3
	qty := third
	isLast := step == len(levels)-1
	if isLast {
		qty = t.remainingQty() // absorb rounding remainder on the final leg
	}
	return ExitDecision{Triggered: true, Reason: domain.ExitTarget, Quantity: qty}
}

// remainingQty is the quantity not yet closed by prior ladder fills.
func (t *Tracker) remainingQty() int {
	closed := t.pos.LadderFilled * (t.pos.Quantity / 3)
	remaining := t.pos.Quantity - closed
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// ApplyExit mutates state after the order manager confirms a close
// (full or partial). Enforces the monotone OPEN->PARTIAL->CLOSED
// lifecycle.
func (t *Tracker) ApplyExit(closedQty int, full bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pos.State == domain.StateClosed {
		return
	}
	if t.pos.Ladder.Enabled && !full {
		t.pos.LadderFilled++
		t.pos.State = domain.StatePartial
		return
	}
	t.pos.State = domain.StateClosed
}
