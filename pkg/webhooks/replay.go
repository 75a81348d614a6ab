package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const DefaultReplayTTL = 10 * time.Minute

// replayKey prefers the sender's delivery id and falls back to a digest of path and body.
func replayKey(r *http.Request, body []byte) string {
	if id := r.Header.Get(IDHeader); id != "" {
		return "id:" + id
	}
	sum := sha256.Sum256(append([]byte(r.URL.Path+"\n"), body...))
	return "body:" + hex.EncodeToString(sum[:])
}

type MemoryReplayProtector struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	ttl   time.Duration
	clock clockwork.Clock
}

func NewMemoryReplayProtector(ttl time.Duration, clock clockwork.Clock) *MemoryReplayProtector {
	if ttl <= 0 {
		ttl = DefaultReplayTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryReplayProtector{
		seen:  make(map[string]time.Time),
		ttl:   ttl,
		clock: clock,
	}
}

func (p *MemoryReplayProtector) Check(_ context.Context, r *http.Request, body []byte) error {
	key := replayKey(r, body)
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	for k, exp := range p.seen {
		if !now.Before(exp) {
			delete(p.seen, k)
		}
	}
	if exp, ok := p.seen[key]; ok && now.Before(exp) {
		return ErrReplayDetected
	}
	p.seen[key] = now.Add(p.ttl)
	return nil
}

// RedisReplayProtector shares the seen set across instances via SET NX with a TTL.
type RedisReplayProtector struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisReplayProtector(client redis.Cmdable, prefix string, ttl time.Duration) *RedisReplayProtector {
	if ttl <= 0 {
		ttl = DefaultReplayTTL
	}
	if prefix == "" {
		prefix = "leadflow:webhooks:seen"
	}
	return &RedisReplayProtector{client: client, prefix: prefix, ttl: ttl}
}

func (p *RedisReplayProtector) Check(ctx context.Context, r *http.Request, body []byte) error {
	ok, err := p.client.SetNX(ctx, p.prefix+":"+replayKey(r, body), 1, p.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrReplayDetected
	}
	return nil
}
