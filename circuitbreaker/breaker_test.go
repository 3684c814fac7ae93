package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexoptions/kernel/domain"
)

func TestNewBreakerStartsClosed(t *testing.T) {
	b := New()
	assert.False(t, b.IsOpen())
	assert.Equal(t, domain.CircuitClosed, b.State())
}

func TestTripOpensAndRecordsDetails(t *testing.T) {
	b := New()
	now := time.Date(2026, 7, 31, 9, 20, 0, 0, time.UTC)
	b.Trip(domain.TriggerDailyLoss, "daily loss limit breached", false, now)

	assert.True(t, b.IsOpen())
	assert.Equal(t, domain.CircuitOpen, b.State())
	trigger, reason, at := b.Info()
	assert.Equal(t, domain.TriggerDailyLoss, trigger)
	assert.Equal(t, "daily loss limit breached", reason)
	assert.Equal(t, now, at)
}

func TestTripIsIdempotentWhileAlreadyOpen(t *testing.T) {
	b := New()
	b.Trip(domain.TriggerDailyLoss, "first", false, time.Now())
	b.Trip(domain.TriggerVIXSpike, "second", false, time.Now())

	trigger, reason, _ := b.Info()
	assert.Equal(t, domain.TriggerDailyLoss, trigger)
	assert.Equal(t, "first", reason)
}

func TestOnTripCallbackFiresOnce(t *testing.T) {
	b := New()
	var gotTrigger domain.CircuitTrigger
	var gotReason string
	calls := 0
	b.OnTrip(func(trig domain.CircuitTrigger, reason string) {
		calls++
		gotTrigger = trig
		gotReason = reason
	})

	b.Trip(domain.TriggerManual, "operator requested", false, time.Now())
	b.Trip(domain.TriggerManual, "operator requested again", false, time.Now())

	assert.Equal(t, 1, calls)
	assert.Equal(t, domain.TriggerManual, gotTrigger)
	assert.Equal(t, "operator requested", gotReason)
}

func TestResetClearsStateEvenWhenSticky(t *testing.T) {
	b := New()
	b.Trip(domain.TriggerEmergencySquareOff, "operator close-all", true, time.Now())
	require.True(t, b.IsOpen())

	b.Reset()

	assert.False(t, b.IsOpen())
	trigger, reason, at := b.Info()
	assert.Empty(t, trigger)
	assert.Empty(t, reason)
	assert.True(t, at.IsZero())
}

func TestDailyResetSkipsWhenSticky(t *testing.T) {
	b := New()
	b.Trip(domain.TriggerEmergencySquareOff, "operator close-all", true, time.Now())

	b.DailyReset()

	assert.True(t, b.IsOpen(), "sticky trip must survive the daily auto-reset")
}

func TestDailyResetClearsNonStickyTrip(t *testing.T) {
	b := New()
	b.Trip(domain.TriggerDailyLoss, "daily loss limit breached", false, time.Now())

	b.DailyReset()

	assert.False(t, b.IsOpen())
}

func TestReTripAfterResetRecordsNewDetails(t *testing.T) {
	b := New()
	b.Trip(domain.TriggerDailyLoss, "first", false, time.Now())
	b.Reset()

	now := time.Now()
	b.Trip(domain.TriggerVIXSpike, "second", false, now)

	trigger, reason, at := b.Info()
	assert.Equal(t, domain.TriggerVIXSpike, trigger)
	assert.Equal(t, "second", reason)
	assert.Equal(t, now, at)
}
