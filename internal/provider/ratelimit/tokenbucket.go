package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket refills at rate tokens per second up to capacity.
type TokenBucket struct {
	rate     float64
	capacity float64

	mu          sync.Mutex
	tokens      float64
	last        time.Time
	pausedUntil time.Time
}

// NewTokenBucket starts full so the first burst goes through immediately.
func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		tokens:   float64(burst),
		last:     time.Now(),
	}
}

// PerMinute builds a bucket from a requests-per-minute budget.
func PerMinute(rpm, burst int) *TokenBucket {
	return NewTokenBucket(float64(rpm)/60.0, burst)
}

// Wait blocks until one token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		if now.Before(tb.pausedUntil) {
			d := tb.pausedUntil.Sub(now)
			tb.mu.Unlock()
			if err := sleep(ctx, d); err != nil {
				return err
			}
			continue
		}
		if elapsed := now.Sub(tb.last).Seconds(); elapsed > 0 {
			tb.tokens += elapsed * tb.rate
			if tb.tokens > tb.capacity {
				tb.tokens = tb.capacity
			}
			tb.last = now
		}
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		deficit := 1 - tb.tokens
		tb.mu.Unlock()

		d := time.Duration(deficit / tb.rate * float64(time.Second))
		if d <= 0 {
			d = time.Millisecond
		}
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
}

// Pause blocks every caller for d and drains the bucket.
func (tb *TokenBucket) Pause(d time.Duration) {
	if d <= 0 {
		return
	}
	tb.mu.Lock()
	until := time.Now().Add(d)
	if until.After(tb.pausedUntil) {
		tb.pausedUntil = until
	}
	tb.tokens = 0
	tb.last = until
	tb.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
