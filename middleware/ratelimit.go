package middleware

import (
	"net/http"
	"time"

	"coscribe/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// RateLimit caps how many requests a single caller may make within the
// window, counting per authenticated user (falling back to remote address
// for unauthenticated paths). Counters live in Redis so the limit holds
// across replicas. A nil client disables limiting entirely.
func RateLimit(client *redis.Client, maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if client == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := UserID(r)
			if !ok {
				caller = r.RemoteAddr
			}
			key := "ratelimit:" + caller

			// INCR and EXPIRE in one pipeline; INCR itself is atomic, the
			// pipeline just keeps the expiry close to the increment.
			pipe := client.Pipeline()
			incr := pipe.Incr(r.Context(), key)
			pipe.Expire(r.Context(), key, window)
			if _, err := pipe.Exec(r.Context()); err != nil {
				// Redis being down should not take the API down with it.
				logger.Sugar.Errorf("Rate limit pipeline failed: %v", err)
				next.ServeHTTP(w, r)
				return
			}

			if incr.Val() > int64(maxRequests) {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
