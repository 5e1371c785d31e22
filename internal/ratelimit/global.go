package ratelimit

import (
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/electromart/internal/common"
)

// NewStore wires a fixed window limiter store backed by Redis.
func NewStore(rdb *redis.Client) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "electromart:limiter"})
}

// Global returns a per-client fixed window limit of perMinute requests. A non-positive
// perMinute disables limiting.
func Global(store limiter.Store, perMinute int64) func(http.Handler) http.Handler {
	if store == nil || perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	instance := limiter.New(store, limiter.Rate{Period: time.Minute, Limit: perMinute})
	mw := stdlib.NewMiddleware(instance,
		stdlib.WithKeyGetter(common.ClientIP),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "rate limiter unavailable", nil)
		}),
	)
	return mw.Handler
}
