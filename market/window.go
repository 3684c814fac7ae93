package market

import (
	"math"
	"time"

	"github.com/indexoptions/kernel/domain"
)

// window is a fixed-capacity rolling buffer of spot prints, used to
// derive the technical indicators (RSI, Bollinger, ATR, VWAP) the
// enrichment step publishes alongside each refreshed snapshot.
type window struct {
	cap    int
	prices []float64
	at     []time.Time
}

func newWindow(capacity int) *window {
	return &window{cap: capacity, prices: make([]float64, 0, capacity), at: make([]time.Time, 0, capacity)}
}

func (w *window) push(price float64, at time.Time) {
	w.prices = append(w.prices, price)
	w.at = append(w.at, at)
	if len(w.prices) > w.cap {
		w.prices = w.prices[1:]
		w.at = w.at[1:]
	}
}

func (w *window) indicators() domain.Indicators {
	n := len(w.prices)
	if n == 0 {
		return domain.Indicators{}
	}
	ind := domain.Indicators{}
	if n >= 2 {
		prev := w.prices[n-2]
		if prev != 0 {
			ind.Return1m = (w.prices[n-1] - prev) / prev
		}
	}
	ind.RSI14 = rsi(w.prices, 14)
	mid, up, low := bollinger(w.prices, 20, 2)
	ind.BollingerMid, ind.BollingerUp, ind.BollingerLow = mid, up, low
	ind.ATR14 = atr(w.prices, 14)
	vwap := vwapOf(w.prices)
	ind.VWAP = vwap
	ind.VWAPZScore = zscore(w.prices, vwap)
	return ind
}

func rsi(prices []float64, period int) float64 {
	if len(prices) < 2 {
		return 50
	}
	n := period
	if n > len(prices)-1 {
		n = len(prices) - 1
	}
	var gain, loss float64
	for i := len(prices) - n; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if gain+loss == 0 {
		return 50
	}
	if loss == 0 {
		return 100
	}
	rs := (gain / float64(n)) / (loss / float64(n))
	return 100 - (100 / (1 + rs))
}

func sma(prices []float64, period int) float64 {
	n := period
	if n > len(prices) {
		n = len(prices)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for _, p := range prices[len(prices)-n:] {
		sum += p
	}
	return sum / float64(n)
}

func stddev(prices []float64, period int, mean float64) float64 {
	n := period
	if n > len(prices) {
		n = len(prices)
	}
	if n == 0 {
		return 0
	}
	var sumSq float64
	for _, p := range prices[len(prices)-n:] {
		d := p - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n))
}

func bollinger(prices []float64, period int, k float64) (mid, up, low float64) {
	mid = sma(prices, period)
	sd := stddev(prices, period, mid)
	return mid, mid + k*sd, mid - k*sd
}

func atr(prices []float64, period int) float64 {
	if len(prices) < 2 {
		return 0
	}
	n := period
	if n > len(prices)-1 {
		n = len(prices) - 1
	}
	var sum float64
	for i := len(prices) - n; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / float64(n)
}

func vwapOf(prices []float64) float64 {
	return sma(prices, len(prices))
}

func zscore(prices []float64, vwap float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	sd := stddev(prices, len(prices), vwap)
	if sd == 0 {
		return 0
	}
	return (prices[len(prices)-1] - vwap) / sd
}
