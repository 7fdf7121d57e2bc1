package whatsapp

import (
	"sync"
	"time"
)

// RateLimiter enforces a minimum interval between accepted messages of one
// conversation. A zero interval disables it.
type RateLimiter struct {
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
	sweepAt  time.Time
}

// NewRateLimiter builds a limiter on the wall clock.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval, now: time.Now, lastSeen: make(map[string]time.Time)}
}

// Allow records an attempt for id and reports whether it may proceed.
func (r *RateLimiter) Allow(id string) bool {
	if r == nil || r.interval <= 0 {
		return true
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if now.After(r.sweepAt) {
		for k, ts := range r.lastSeen {
			if now.Sub(ts) >= r.interval {
				delete(r.lastSeen, k)
			}
		}
		r.sweepAt = now.Add(time.Minute)
	}
	if last, ok := r.lastSeen[id]; ok && now.Sub(last) < r.interval {
		return false
	}
	r.lastSeen[id] = now
	return true
}
