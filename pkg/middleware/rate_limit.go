package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/iota-uz/leadflow/pkg/httpapi"
)

const rateLimitPrefix = "leadflow:http-limit"

type RateLimitConfig struct {
	RequestsPerPeriod int
	Period            time.Duration
	Store             limiter.Store
	// KeyHeader, when set, identifies clients by this header instead of their IP.
	KeyHeader string
}

func NewMemoryStore() limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          rateLimitPrefix,
		CleanUpInterval: time.Minute,
	})
}

func NewRedisStore(redisURL string) (limiter.Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return sredis.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{
		Prefix:   rateLimitPrefix,
		MaxRetry: 3,
	})
}

// RateLimit throttles every route with a fixed per-client rate. Rejections carry the
// standard JSON error envelope.
func RateLimit(cfg RateLimitConfig) mux.MiddlewareFunc {
	period := cfg.Period
	if period <= 0 {
		period = time.Second
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	instance := limiter.New(store, limiter.Rate{
		Period: period,
		Limit:  int64(cfg.RequestsPerPeriod),
	}, limiter.WithTrustForwardHeader(true))

	options := []stdlibmw.Option{
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			retryAfter := retryAfterSeconds(w.Header().Get("X-RateLimit-Reset"), time.Now())
			if retryAfter != "" {
				w.Header().Set("Retry-After", retryAfter)
			}
			_ = httpapi.WriteError(w, http.StatusTooManyRequests, httpapi.CodeRateLimited, "too many requests", map[string]string{
				"retry_after": retryAfter,
			})
		}),
	}
	if cfg.KeyHeader != "" {
		options = append(options, stdlibmw.WithKeyGetter(func(r *http.Request) string {
			if v := r.Header.Get(cfg.KeyHeader); v != "" {
				return v
			}
			return instance.GetIPKey(r)
		}))
	}
	mw := stdlibmw.NewMiddleware(instance, options...)

	return func(next http.Handler) http.Handler {
		return mw.Handler(next)
	}
}

func retryAfterSeconds(reset string, now time.Time) string {
	ts, err := strconv.ParseInt(reset, 10, 64)
	if err != nil {
		return ""
	}
	secs := ts - now.Unix()
	if secs < 0 {
		secs = 0
	}
	return strconv.FormatInt(secs, 10)
}
