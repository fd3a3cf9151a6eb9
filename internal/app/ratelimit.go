// Package app wires cross-cutting dependencies shared by the command
// entrypoints.
package app

import (
	"fmt"
	"net/http"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewRateLimitMiddleware builds an IP rate limiter backed by Redis. The
// format follows limiter's "<count>-<period>" convention, e.g. "60-M".
func NewRateLimitMiddleware(rdb *redis.Client, format string) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(format)
	if err != nil {
		return nil, fmt.Errorf("app: parse rate %q: %w", format, err)
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "rl:aqualife"})
	if err != nil {
		return nil, fmt.Errorf("app: rate limit store: %w", err)
	}
	mw := mhttp.NewMiddleware(limiter.New(store, rate))
	return mw.Handler, nil
}
