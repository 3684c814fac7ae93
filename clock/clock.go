// Package clock provides IST wall-clock time and the market-hours /
// expiry-day predicates every other package reasons about. A Clock is
// injected rather than called as a global, so tests can fake "now" —
// the same dependency-injection-over-singleton pattern the corpus uses
// for its exchange/Trader boundary.
package clock

import (
	"fmt"
	"time"

	"github.com/indexoptions/kernel/domain"
)

// IST is the single time zone of record; every timestamp that escapes
// the process is expressed in it.
var IST = mustLoadIST()

func mustLoadIST() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+30*60)
	}
	return loc
}

// Clock abstracts "now" so components never call time.Now() directly.
type Clock interface {
	Now() time.Time
}

// Real is the production clock, always returning IST wall time.
type Real struct{}

func (Real) Now() time.Time { return time.Now().In(IST) }

// Fixed is a test clock pinned to one instant.
type Fixed struct{ At time.Time }

func (f Fixed) Now() time.Time { return f.At.In(IST) }

var marketOpen = hm{9, 15}
var marketClose = hm{15, 30}
var eodExitAt = hm{15, 29}

type hm struct{ H, M int }

func (t hm) minutes() int { return t.H*60 + t.M }

// IsTradingDay reports whether d is a weekday (Mon-Fri). Exchange
// holiday calendars are an external data feed, not reimplemented here.
func IsTradingDay(d time.Time) bool {
	wd := d.In(IST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsMarketHours reports whether t falls in the 09:15-15:30 IST window
// on a trading day.
func IsMarketHours(t time.Time) bool {
	t = t.In(IST)
	if !IsTradingDay(t) {
		return false
	}
	mins := t.Hour()*60 + t.Minute()
	return mins >= marketOpen.minutes() && mins <= marketClose.minutes()
}

// ShouldForceEODExit reports whether t is at or past 15:29 IST — the
// one-minute margin before close. The same cutoff applies to every
// underlying; config.Config.EODExitOverride is not consulted.
func ShouldForceEODExit(t time.Time) bool {
	t = t.In(IST)
	mins := t.Hour()*60 + t.Minute()
	return mins >= eodExitAt.minutes()
}

// expiryWeekday maps underlying -> the weekday its weekly contract
// expires on.
func expiryWeekday(u domain.Underlying) (time.Weekday, error) {
	switch u {
	case domain.NIFTY:
		return time.Tuesday, nil
	case domain.BANKNIFTY:
		return time.Wednesday, nil
	case domain.SENSEX:
		return time.Thursday, nil
	default:
		return 0, fmt.Errorf("clock: unknown underlying %q", u)
	}
}

// CurrentWeeklyExpiry returns the next occurrence of underlying's expiry
// weekday on or after "today" (dates compared at day granularity, IST).
func CurrentWeeklyExpiry(u domain.Underlying, today time.Time) (time.Time, error) {
	wd, err := expiryWeekday(u)
	if err != nil {
		return time.Time{}, err
	}
	today = today.In(IST)
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, IST)
	delta := (int(wd) - int(day.Weekday()) + 7) % 7
	return day.AddDate(0, 0, delta), nil
}
