package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowPushEvictsOldestBeyondCapacity(t *testing.T) {
	w := newWindow(3)
	now := time.Now()
	w.push(1, now)
	w.push(2, now)
	w.push(3, now)
	w.push(4, now)
	assert.Equal(t, []float64{2, 3, 4}, w.prices)
}

func TestIndicatorsEmptyWindowReturnsZeroValue(t *testing.T) {
	w := newWindow(10)
	assert.Equal(t, 50.0, rsi(nil, 14))
	ind := w.indicators()
	assert.Equal(t, 0.0, ind.Return1m)
}

func TestIndicatorsReturn1mComputedFromLastTwoPrints(t *testing.T) {
	w := newWindow(10)
	now := time.Now()
	w.push(100, now)
	w.push(101, now.Add(time.Minute))
	ind := w.indicators()
	assert.InDelta(t, 0.01, ind.Return1m, 1e-9)
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	prices := []float64{100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110, 111, 112, 113, 114}
	assert.Equal(t, 100.0, rsi(prices, 14))
}

func TestRSIAllLossesIsZero(t *testing.T) {
	prices := []float64{114, 113, 112, 111, 110, 109, 108, 107, 106, 105, 104, 103, 102, 101, 100}
	assert.Equal(t, 0.0, rsi(prices, 14))
}

func TestRSIFlatSeriesIsFifty(t *testing.T) {
	prices := make([]float64, 15)
	for i := range prices {
		prices[i] = 100
	}
	assert.Equal(t, 50.0, rsi(prices, 14))
}

func TestBollingerBandsStraddleMean(t *testing.T) {
	prices := []float64{100, 102, 98, 101, 99, 103, 97, 100, 102, 98, 101, 99, 103, 97, 100, 101, 99, 100, 102, 98}
	mid, up, low := bollinger(prices, 20, 2)
	assert.Greater(t, up, mid)
	assert.Less(t, low, mid)
	assert.InDelta(t, up-mid, mid-low, 1e-9)
}

func TestSMAWindowShorterThanPeriodUsesAvailableData(t *testing.T) {
	assert.Equal(t, 100.0, sma([]float64{100}, 20))
	assert.Equal(t, 101.0, sma([]float64{100, 102}, 20))
}

func TestATRUsesAbsoluteMoves(t *testing.T) {
	prices := []float64{100, 95, 105, 95, 105}
	got := atr(prices, 14)
	assert.Greater(t, got, 0.0)
}

func TestVWAPOfIsSimpleAverage(t *testing.T) {
	assert.Equal(t, 100.5, vwapOf([]float64{100, 101}))
}

func TestZScoreZeroStdDevIsZero(t *testing.T) {
	assert.Equal(t, 0.0, zscore([]float64{100, 100, 100}, 100))
}
