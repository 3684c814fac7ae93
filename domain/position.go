package domain

import "time"

// Position is an open (or partially closed) options position. Ownership:
// created by the order manager on fill, mutated only by the risk
// monitoring loop (price/state) and the order manager (state) — see
// position.Tracker for the concurrency wrapper that enforces this.
type Position struct {
	PositionID    string
	SignalOrigin  string
	InstrumentKey InstrumentKey
	Symbol        Underlying
	Direction     Side
	Strike        float64
	Expiry        time.Time
	Quantity      int
	EntryPrice    float64
	EntryTime     time.Time
	CurrentPrice  float64
	UnrealisedPnL float64
	TargetPrice   float64
	StopLoss      float64
	Ladder        Ladder
	LadderFilled  int // how many of the 3 ladder steps have already partial-exited
	State         PositionState
	StrategyID    string
	RegimeEntry   MarketCondition
	VIXEntry      float64
	HourEntry     int
	MinuteEntry   int
	WeekdayEntry  time.Weekday
}

// Unrealised computes (current-entry)*qty for CALL, mirrored for PUT —
// a long position only profits in its own direction of movement.
func Unrealised(direction Side, entry, current float64, qty int) float64 {
	if direction == CALL {
		return (current - entry) * float64(qty)
	}
	return (entry - current) * float64(qty)
}
