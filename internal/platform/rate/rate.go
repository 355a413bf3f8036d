// Package rate provides a token bucket limiter used to pace outbound
// requests against enumeration APIs and probe targets.
package rate

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket. Tokens refill continuously at a fixed rate
// up to the burst capacity. Wait blocks, Allow does not.
type Limiter struct {
	mu     sync.Mutex
	rate   float64 // tokens per second
	burst  int     // bucket capacity
	tokens float64
	last   time.Time
}

// New creates a limiter that refills rate tokens per second with the
// given burst capacity. Non-positive arguments are clamped to 1.
//
// Example:
//   limiter := rate.New(2, 1) // 2 req/s, no burst
func New(rate float64, burst int) *Limiter {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		rate:   rate,
		burst:  burst,
		tokens: float64(burst), // bucket starts full
		last:   time.Now(),
	}
}

// Every creates a limiter that allows one operation per interval.
// Convenience for sources that document a minimum delay between calls.
func Every(interval time.Duration, burst int) *Limiter {
	if interval <= 0 {
		return New(1, burst)
	}
	return New(float64(time.Second)/float64(interval), burst)
}

// Wait blocks until a token is available or the context is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}

		wait := l.waitDuration()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			// re-check on next iteration
		}
	}
}

// Allow consumes a token if one is available and reports whether the
// operation may proceed immediately.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill(time.Now())

	if l.tokens >= 1 {
		l.tokens--
		return true
	}

	return false
}

// SetRate changes the refill rate. Useful when a source answers with
// rate limit headers and the caller wants to slow down.
func (l *Limiter) SetRate(rate float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rate <= 0 {
		rate = 1
	}

	l.refill(time.Now())
	l.rate = rate
}

// SetBurst changes the bucket capacity, capping stored tokens to it.
func (l *Limiter) SetBurst(burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = 1
	}

	l.refill(time.Now())
	l.burst = burst

	if l.tokens > float64(burst) {
		l.tokens = float64(burst)
	}
}

// Tokens returns the current number of available tokens.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill(time.Now())
	return l.tokens
}

// Rate returns the refill rate in tokens per second.
func (l *Limiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rate
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.burst
}

// Reset refills the bucket to capacity.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tokens = float64(l.burst)
	l.last = time.Now()
}

// refill adds tokens for the elapsed time. Caller must hold l.mu.
func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.last).Seconds()

	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}

	l.last = now
}

// waitDuration estimates the time until the next token is available.
func (l *Limiter) waitDuration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill(time.Now())

	if l.tokens >= 1 {
		return 0
	}

	missing := 1.0 - l.tokens
	seconds := missing / l.rate

	return time.Duration(seconds * float64(time.Second))
}
