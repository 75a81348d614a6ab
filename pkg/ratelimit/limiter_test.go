package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/leadflow/pkg/ratelimit"
)

type backend struct {
	name string
	new  func(t *testing.T, clock clockwork.Clock) ratelimit.Limiter
}

func backends() []backend {
	return []backend{
		{
			name: "memory",
			new: func(t *testing.T, clock clockwork.Clock) ratelimit.Limiter {
				t.Helper()
				return ratelimit.NewMemoryLimiter(clock)
			},
		},
		{
			name: "redis",
			new: func(t *testing.T, clock clockwork.Clock) ratelimit.Limiter {
				t.Helper()
				srv := miniredis.RunT(t)
				client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
				t.Cleanup(func() { _ = client.Close() })
				return ratelimit.NewRedisLimiter(client, "test:ratelimit", clock)
			},
		},
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "sms:lead:abc:daily", ratelimit.Key("sms", "abc", ratelimit.Daily))
	assert.Equal(t, "followup:lead:abc:weekly", ratelimit.Key("followup", "abc", ratelimit.Weekly))
}

func TestLimiter_FixedWindow(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
			limiter := b.new(t, clock)
			rule := ratelimit.Rule{Max: 3, Window: 86400000 * time.Millisecond}
			key := ratelimit.Key("sms", "lead-1", ratelimit.Daily)

			for i := 1; i <= 3; i++ {
				res, err := limiter.Allow(ctx, key, rule)
				require.NoError(t, err)
				assert.True(t, res.Allowed, "call %d should be allowed", i)
				assert.Equal(t, i, res.Count)
				clock.Advance(time.Hour)
			}

			res, err := limiter.Allow(ctx, key, rule)
			require.NoError(t, err)
			assert.False(t, res.Allowed)
			assert.Greater(t, res.RetryAfter, time.Duration(0))
			assert.Equal(t, 21*time.Hour, res.RetryAfter)

			clock.Advance(21 * time.Hour)
			res, err = limiter.Allow(ctx, key, rule)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, 1, res.Count)
		})
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			clock := clockwork.NewFakeClock()
			limiter := b.new(t, clock)
			rule := ratelimit.Rule{Max: 1, Window: time.Hour}

			res, err := limiter.Allow(ctx, "sms:lead:a:daily", rule)
			require.NoError(t, err)
			assert.True(t, res.Allowed)

			res, err = limiter.Allow(ctx, "sms:lead:a:daily", rule)
			require.NoError(t, err)
			assert.False(t, res.Allowed)

			res, err = limiter.Allow(ctx, "sms:lead:b:daily", rule)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
		})
	}
}

func TestLimiter_FirstRequestAlwaysAllowed(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			limiter := b.new(t, clockwork.NewFakeClock())
			res, err := limiter.Allow(context.Background(), "k", ratelimit.Rule{Max: 0, Window: time.Minute})
			require.NoError(t, err)
			assert.True(t, res.Allowed)
		})
	}
}

func TestLimiter_ConcurrentCallersNeverExceedMax(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			limiter := b.new(t, clockwork.NewFakeClock())
			rule := ratelimit.Rule{Max: 5, Window: time.Hour}

			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				allowed int
			)
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := limiter.Allow(ctx, "burst", rule)
					if err != nil || !res.Allowed {
						return
					}
					mu.Lock()
					allowed++
					mu.Unlock()
				}()
			}
			wg.Wait()
			assert.Equal(t, 5, allowed)
		})
	}
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	limiter := ratelimit.NewMemoryLimiter(clock)
	rule := ratelimit.Rule{Max: 1, Window: time.Hour}

	_, err := limiter.Allow(ctx, "old", rule)
	require.NoError(t, err)
	clock.Advance(23 * time.Hour)
	_, err = limiter.Allow(ctx, "recent", rule)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, limiter.Sweep())
	assert.Equal(t, 1, limiter.Len())
}

func TestMemoryLimiter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ratelimit.NewMemoryLimiter(nil).Allow(ctx, "k", ratelimit.Rule{Max: 1, Window: time.Minute})
	require.ErrorIs(t, err, context.Canceled)
}
