package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limit allows Max events per sliding Window.
type Limit struct {
	Window time.Duration
	Max    int
}

// RateLimiter implements sliding-window rate limiting per named bucket.
// Each bucket tracks timestamps of recent events within its window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	limit  Limit
	events []time.Time
}

// NewRateLimiter creates a limiter with one bucket per entry in limits.
// Entries with a non-positive Max or Window are unlimited.
func NewRateLimiter(limits map[string]Limit) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket, len(limits)),
		now:     time.Now,
	}
	for kind, l := range limits {
		if l.Max > 0 && l.Window > 0 {
			rl.buckets[kind] = &bucket{limit: l}
		}
	}
	return rl
}

// Allow records one event of kind, or returns ErrRateLimited. Unknown kinds
// are unlimited. A nil limiter allows everything.
func (rl *RateLimiter) Allow(kind string) error {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[kind]
	if !ok {
		return nil
	}

	now := rl.now()
	b.evict(now)
	if len(b.events) >= b.limit.Max {
		return ErrRateLimited
	}
	b.events = append(b.events, now)
	return nil
}

// evict removes events outside the sliding window.
func (b *bucket) evict(now time.Time) {
	cutoff := now.Add(-b.limit.Window)
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
