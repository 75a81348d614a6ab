package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// allowScript mirrors decide() so that the read-modify-write happens atomically on the server.
// The caller supplies the clock so that window arithmetic never depends on server time.
var allowScript = redis.NewScript(`
local state = redis.call('HMGET', KEYS[1], 'count', 'start')
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

if state[1] == false or state[2] == false then
	redis.call('HSET', KEYS[1], 'count', 1, 'start', now)
	redis.call('PEXPIRE', KEYS[1], window)
	return {1, 1, 0}
end

local count = tonumber(state[1])
local start = tonumber(state[2])
local elapsed = now - start
if elapsed >= window or elapsed < 0 then
	redis.call('HSET', KEYS[1], 'count', 1, 'start', now)
	redis.call('PEXPIRE', KEYS[1], window)
	return {1, 1, 0}
end

if count < max then
	count = redis.call('HINCRBY', KEYS[1], 'count', 1)
	return {1, count, 0}
end

return {0, count, window - elapsed}
`)

// RedisLimiter keeps windows in Redis hashes and relies on passive key expiry instead of a sweep.
type RedisLimiter struct {
	client redis.Scripter
	prefix string
	clock  clockwork.Clock
}

func NewRedisLimiter(client redis.Scripter, prefix string, clock clockwork.Clock) *RedisLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if prefix == "" {
		prefix = "leadflow:ratelimit"
	}
	return &RedisLimiter{client: client, prefix: prefix, clock: clock}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, rule Rule) (Result, error) {
	now := l.clock.Now().UnixMilli()
	raw, err := allowScript.Run(ctx, l.client,
		[]string{fmt.Sprintf("%s:%s", l.prefix, key)},
		now, rule.Window.Milliseconds(), rule.Max,
	).Int64Slice()
	if err != nil {
		return Result{}, errors.Wrap(err, "ratelimit: run allow script")
	}
	if len(raw) != 3 {
		return Result{}, errors.Errorf("ratelimit: unexpected script reply %v", raw)
	}
	return Result{
		Allowed:    raw[0] == 1,
		Count:      int(raw[1]),
		RetryAfter: time.Duration(raw[2]) * time.Millisecond,
	}, nil
}
