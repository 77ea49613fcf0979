package agent

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles submissions per user. The key is the user ID only,
// so rotating tab sessions does not bypass it.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*userLimiter
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute submissions per user with the given burst.
// A nil *RateLimiter allows everything.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*userLimiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		idleTTL:  10 * time.Minute,
	}
}

// Allow reports whether key may submit now.
func (r *RateLimiter) Allow(key string) bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	ul, ok := r.limiters[key]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[key] = ul
	}
	ul.lastSeen = now
	return ul.limiter.AllowN(now, 1)
}

// Evict drops limiters idle for longer than the idle TTL.
func (r *RateLimiter) Evict() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.idleTTL)
	removed := 0
	for key, ul := range r.limiters {
		if ul.lastSeen.Before(cutoff) {
			delete(r.limiters, key)
			removed++
		}
	}
	return removed
}
