package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/testutil"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		rate       float64
		burst      int
		wantRate   float64
		wantBurst  int
		wantTokens float64
	}{
		{
			name:       "valid rate and burst",
			rate:       10.0,
			burst:      5,
			wantRate:   10.0,
			wantBurst:  5,
			wantTokens: 5.0,
		},
		{
			name:       "zero rate defaults to 1",
			rate:       0,
			burst:      5,
			wantRate:   1.0,
			wantBurst:  5,
			wantTokens: 5.0,
		},
		{
			name:       "negative rate defaults to 1",
			rate:       -5.0,
			burst:      5,
			wantRate:   1.0,
			wantBurst:  5,
			wantTokens: 5.0,
		},
		{
			name:       "zero burst defaults to 1",
			rate:       10.0,
			burst:      0,
			wantRate:   10.0,
			wantBurst:  1,
			wantTokens: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.rate, tt.burst)

			testutil.AssertEqual(t, limiter.Rate(), tt.wantRate, "rate should match")
			testutil.AssertEqual(t, limiter.Burst(), tt.wantBurst, "burst should match")
			testutil.AssertEqual(t, limiter.Tokens(), tt.wantTokens, "tokens should start at burst capacity")
		})
	}
}

func TestEvery(t *testing.T) {
	t.Run("interval maps to rate", func(t *testing.T) {
		limiter := Every(100*time.Millisecond, 1)
		testutil.AssertEqual(t, limiter.Rate(), 10.0, "100ms interval should be 10 tokens/s")
	})

	t.Run("non-positive interval defaults to 1/s", func(t *testing.T) {
		limiter := Every(0, 1)
		testutil.AssertEqual(t, limiter.Rate(), 1.0, "zero interval should default to 1 token/s")
	})
}

func TestLimiter_Allow(t *testing.T) {
	t.Run("allows operations within burst", func(t *testing.T) {
		limiter := New(10, 5)

		for i := 0; i < 5; i++ {
			allowed := limiter.Allow()
			testutil.AssertTrue(t, allowed, "should allow operation within burst")
		}

		allowed := limiter.Allow()
		testutil.AssertTrue(t, !allowed, "should deny operation when bucket empty")
	})

	t.Run("refills tokens over time", func(t *testing.T) {
		limiter := New(10, 1) // 10 tokens/second, burst of 1

		allowed := limiter.Allow()
		testutil.AssertTrue(t, allowed, "should allow first operation")

		allowed = limiter.Allow()
		testutil.AssertTrue(t, !allowed, "should deny when bucket empty")

		// 100ms = 1 token at 10/s
		time.Sleep(100 * time.Millisecond)

		allowed = limiter.Allow()
		testutil.AssertTrue(t, allowed, "should allow after token refill")
	})
}

func TestLimiter_Wait(t *testing.T) {
	t.Run("waits for available token", func(t *testing.T) {
		limiter := New(10, 1)

		allowed := limiter.Allow()
		testutil.AssertTrue(t, allowed, "should allow first operation")

		ctx := context.Background()
		start := time.Now()
		err := limiter.Wait(ctx)
		elapsed := time.Since(start)

		testutil.AssertNoError(t, err, "wait should succeed")
		testutil.AssertTrue(t, elapsed >= 90*time.Millisecond, "should wait for token refill")
		testutil.AssertTrue(t, elapsed < 200*time.Millisecond, "should not wait too long")
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		limiter := New(1, 1)

		limiter.Allow()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := limiter.Wait(ctx)
		testutil.AssertTrue(t, err != nil, "wait should return error on context cancellation")
		testutil.AssertEqual(t, err, context.DeadlineExceeded, "error should be DeadlineExceeded")
	})

	t.Run("immediate success when token available", func(t *testing.T) {
		limiter := New(10, 5)

		ctx := context.Background()
		start := time.Now()
		err := limiter.Wait(ctx)
		elapsed := time.Since(start)

		testutil.AssertNoError(t, err, "wait should succeed immediately")
		testutil.AssertTrue(t, elapsed < 10*time.Millisecond, "should not wait when token available")
	})
}

func TestLimiter_SetRate(t *testing.T) {
	limiter := New(10, 5)

	limiter.SetRate(20)
	testutil.AssertEqual(t, limiter.Rate(), 20.0, "rate should be updated")

	limiter.SetRate(0)
	testutil.AssertEqual(t, limiter.Rate(), 1.0, "zero rate should default to 1")
}

func TestLimiter_SetBurst_CapsTokens(t *testing.T) {
	limiter := New(10, 10)
	testutil.AssertEqual(t, limiter.Tokens(), 10.0, "should start with 10 tokens")

	limiter.SetBurst(5)
	testutil.AssertEqual(t, limiter.Tokens(), 5.0, "tokens should be capped at new burst size")
}

func TestLimiter_Reset(t *testing.T) {
	limiter := New(10, 5)

	limiter.Allow()
	limiter.Allow()
	tokens := limiter.Tokens()
	testutil.AssertTrue(t, tokens >= 2.9 && tokens <= 3.1, "should have ~3 tokens after consuming 2")

	limiter.Reset()
	testutil.AssertEqual(t, limiter.Tokens(), 5.0, "should reset to full capacity")
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	limiter := New(100, 50)
	var wg sync.WaitGroup
	allowed := 0
	denied := 0
	var mu sync.Mutex

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			} else {
				mu.Lock()
				denied++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	testutil.AssertEqual(t, allowed, 50, "should allow burst number of operations")
	testutil.AssertEqual(t, denied, 50, "should deny operations beyond burst")
}

func BenchmarkLimiter_Allow(b *testing.B) {
	limiter := New(1000000, 1000000) // High limits to avoid blocking

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow()
	}
}

func BenchmarkLimiter_ConcurrentAllow(b *testing.B) {
	limiter := New(1000000, 1000000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			limiter.Allow()
		}
	})
}
