package http

import (
	"sync"
	"time"
)

// loginRateLimiter throttles admin password attempts per client address
// with a sliding window.
type loginRateLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
}

func newLoginRateLimiter(limit int, interval time.Duration) *loginRateLimiter {
	return &loginRateLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *loginRateLimiter) Allow(remote string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[remote]

	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[remote] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[remote] = fresh

	return true
}
