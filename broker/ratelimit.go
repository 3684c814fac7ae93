package broker

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter enforcing the broker's REST/order
// rate limits (e.g. 10 req/s, 5 orders/s).
type RateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	last     time.Time
}

// NewRateLimiter builds a limiter allowing ratePerSecond sustained
// requests with a burst capacity of burst.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		tokens:   float64(burst),
		capacity: float64(burst),
		rate:     ratePerSecond,
		last:     time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		d := r.tryAcquire()
		if d <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
}

func (r *RateLimiter) tryAcquire() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.last).Seconds()
	r.last = now
	r.tokens += elapsed * r.rate
	if r.tokens > r.capacity {
		r.tokens = r.capacity
	}
	if r.tokens >= 1 {
		r.tokens--
		return 0
	}
	deficit := 1 - r.tokens
	return time.Duration(deficit / r.rate * float64(time.Second))
}
