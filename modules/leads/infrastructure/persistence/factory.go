package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/pkg/composables"
)

const DefaultTTL = 30 * 24 * time.Hour

type Options struct {
	KeyPrefix string
	TTL       time.Duration
	Clock     clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.KeyPrefix == "" {
		o.KeyPrefix = DefaultKeyPrefix
	}
	if o.TTL == 0 {
		o.TTL = DefaultTTL
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// NewRedisClient accepts either a redis:// URL or a bare host:port address.
func NewRedisClient(url string, dialTimeout time.Duration) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("redis url is empty")
	}
	opts := &redis.Options{Addr: url}
	if strings.Contains(url, "://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		opts = parsed
	}
	if dialTimeout > 0 {
		opts.DialTimeout = dialTimeout
	}
	return redis.NewClient(opts), nil
}

// NewConversationRepository returns the Redis repository when client answers PING and the
// in-memory repository otherwise. The second value names the backend in use.
func NewConversationRepository(ctx context.Context, client redis.UniversalClient, opts Options) (conversation.Repository, string) {
	logger := composables.UseLogger(ctx)
	if client != nil {
		err := client.Ping(ctx).Err()
		if err == nil {
			logger.WithField("backend", "redis").Info("conversation store ready")
			return NewConversationRedisRepository(client, opts), "redis"
		}
		logger.WithError(err).Info("redis unreachable, using in-memory conversation store")
	}
	return NewInmemConversationRepository(opts), "memory"
}
