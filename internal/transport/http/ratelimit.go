package http

import (
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter caps inbound frames for one connection. A nil limiter, or
// one built with a non-positive limit, allows everything.
type rateLimiter struct {
	limiter *rate.Limiter
	now     func() time.Time
}

func newRateLimiter(perMinute int) *rateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &rateLimiter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		now:     time.Now,
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.AllowN(r.now(), 1)
}
