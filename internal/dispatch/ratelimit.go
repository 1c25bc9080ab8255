package dispatch

import (
	"sync"
	"time"
)

const idleBucketTTL = 10 * time.Minute

// RateLimiter is a per-key token bucket. Keys are "channel:user" so one
// noisy user cannot flood a chat with replies.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	max       float64
	rate      float64 // tokens per second
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	tokens   float64
	lastTime time.Time
}

// NewRateLimiter returns nil when ratePerMinute is not positive; a nil
// limiter allows everything.
func NewRateLimiter(maxBurst int, ratePerMinute float64) *RateLimiter {
	if ratePerMinute <= 0 {
		return nil
	}
	if maxBurst <= 0 {
		maxBurst = 1
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		max:     float64(maxBurst),
		rate:    ratePerMinute / 60.0,
		now:     time.Now,
	}
}

// Allow takes a token from key's bucket and reports whether one was
// available. It never blocks.
func (rl *RateLimiter) Allow(key string) bool {
	if rl == nil {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.max, lastTime: now}
		rl.buckets[key] = b
	}
	b.tokens += now.Sub(b.lastTime).Seconds() * rl.rate
	if b.tokens > rl.max {
		b.tokens = rl.max
	}
	b.lastTime = now

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true
	}
	return false
}

// sweep drops buckets idle long enough to have refilled. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < idleBucketTTL {
		return
	}
	rl.lastSweep = now
	for k, b := range rl.buckets {
		if now.Sub(b.lastTime) > idleBucketTTL {
			delete(rl.buckets, k)
		}
	}
}
