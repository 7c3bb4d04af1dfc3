package serverutils

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP. Idle buckets expire.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	buckets *cache.Cache
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		buckets: cache.New(10*time.Minute, 5*time.Minute),
	}
}

func (r *RateLimiter) limiter(key string) *rate.Limiter {
	if v, ok := r.buckets.Get(key); ok {
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(r.limit, r.burst)
	if err := r.buckets.Add(key, l, cache.DefaultExpiration); err != nil {
		// Lost the race; use the stored bucket.
		if v, ok := r.buckets.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// Middleware answers 429 once a client exhausts its bucket. A non-positive
// rate disables limiting.
func (r *RateLimiter) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if r.limit <= 0 {
			return ctx.Next()
		}
		key := ctx.IP()
		l := r.limiter(key)
		if !l.Allow() {
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded, slow down")
		}
		r.buckets.SetDefault(key, l)
		return ctx.Next()
	}
}
