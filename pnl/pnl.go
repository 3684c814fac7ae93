// Package pnl implements a deterministic P&L calculator: long-only
// gross P&L by side, a pluggable fee schedule, and rounding to 2
// decimals. shopspring/decimal is used throughout so the
// result is bit-for-bit reproducible given identical inputs, regardless
// of float rounding order — the same discipline
// 07ff2077_web3guy0-polybot__risk-gate.go.go uses for every balance and
// P&L figure it carries.
package pnl

import (
	"github.com/shopspring/decimal"

	"github.com/indexoptions/kernel/domain"
)

// lotMultiplier is fixed at 1: quantity already counts units, not lots.
const lotMultiplier = 1

// FeeSchedule computes the fee breakdown for a closing trade. Pluggable
// so callers can swap in a different broker's schedule without
// touching the gross-P&L math.
type FeeSchedule func(entry, exit decimal.Decimal, qty int) domain.FeeBreakdown

// Gross computes the long-only gross P&L, rounded to 2 decimals.
func Gross(direction domain.Side, entry, exit float64, qty int) float64 {
	e := decimal.NewFromFloat(entry)
	x := decimal.NewFromFloat(exit)
	q := decimal.NewFromInt(int64(qty)).Mul(decimal.NewFromInt(lotMultiplier))

	var diff decimal.Decimal
	if direction == domain.CALL {
		diff = x.Sub(e)
	} else {
		diff = e.Sub(x)
	}
	return diff.Mul(q).Round(2).InexactFloat64()
}

// Close computes the full {gross, fees, net} decomposition for a trade
// using the given fee schedule.
func Close(direction domain.Side, entry, exit float64, qty int, fees FeeSchedule) (gross float64, breakdown domain.FeeBreakdown, net float64) {
	gross = Gross(direction, entry, exit, qty)
	breakdown = fees(decimal.NewFromFloat(entry), decimal.NewFromFloat(exit), qty)
	net = decimal.NewFromFloat(gross).Sub(decimal.NewFromFloat(breakdown.Total())).Round(2).InexactFloat64()
	return gross, breakdown, net
}

// DefaultFeeSchedule is the default fee schedule: a per-order brokerage
// of ₹20 minimum, or 0.05% of that order's turnover
// if higher (charged once on the entry order and once on the exit
// order), STT on the sell side (0.0625%), exchange charges (~0.053%),
// 18% GST on brokerage+exchange, and small SEBI and stamp components.
func DefaultFeeSchedule(entry, exit decimal.Decimal, qty int) domain.FeeBreakdown {
	q := decimal.NewFromInt(int64(qty))
	entryTurnover := entry.Mul(q)
	exitTurnover := exit.Mul(q)
	totalTurnover := entryTurnover.Add(exitTurnover)

	// "min ₹20 or 0.05%": ₹20 is a floor, not a cap — a trade pays the
	// larger of the flat minimum and the percentage rate, per order.
	minBrokerage := decimal.NewFromInt(20)
	pct := decimal.NewFromFloat(0.0005)
	entryBrokerage := decimal.Max(minBrokerage, entryTurnover.Mul(pct))
	exitBrokerage := decimal.Max(minBrokerage, exitTurnover.Mul(pct))
	brokerage := entryBrokerage.Add(exitBrokerage)

	stt := exitTurnover.Mul(decimal.NewFromFloat(0.000625))
	exchange := totalTurnover.Mul(decimal.NewFromFloat(0.00053))
	gst := brokerage.Add(exchange).Mul(decimal.NewFromFloat(0.18))
	sebi := totalTurnover.Mul(decimal.NewFromFloat(0.000001))
	stamp := entryTurnover.Mul(decimal.NewFromFloat(0.00003))

	return domain.FeeBreakdown{
		Brokerage: brokerage.Round(2).InexactFloat64(),
		STT:       stt.Round(2).InexactFloat64(),
		Exchange:  exchange.Round(2).InexactFloat64(),
		GST:       gst.Round(2).InexactFloat64(),
		SEBI:      sebi.Round(2).InexactFloat64(),
		Stamp:     stamp.Round(2).InexactFloat64(),
	}
}
