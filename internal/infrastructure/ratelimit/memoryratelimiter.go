package ratelimit

import (
	"context"
	"sync"
	"time"
)

// retention is the longest window; hits older than that never count.
const (
	retention     = time.Hour
	sweepInterval = time.Minute
)

// MemoryRateLimiter is the single-process variant used when Redis is off.
type MemoryRateLimiter struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		hits: make(map[string][]time.Time),
		now:  time.Now,
	}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, key string, limits Limits) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-retention)
	if now.Sub(l.lastSweep) >= sweepInterval {
		l.sweep(cutoff)
		l.lastSweep = now
	}
	hits := prune(l.hits[key], cutoff)

	allowed := true
	for _, w := range limits.windows() {
		if w.limit <= 0 {
			continue
		}
		if countSince(hits, now.Add(-w.duration)) >= w.limit {
			allowed = false
			break
		}
	}

	l.hits[key] = append(hits, now)
	return allowed, nil
}

func (l *MemoryRateLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.hits, key)
	l.mu.Unlock()
	return nil
}

// sweep forgets clients with no hit inside the retention window.
func (l *MemoryRateLimiter) sweep(cutoff time.Time) {
	for key, hits := range l.hits {
		if hits = prune(hits, cutoff); len(hits) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = hits
		}
	}
}

// prune drops hits at or before cutoff. hits is sorted.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

func countSince(hits []time.Time, cutoff time.Time) int {
	return len(prune(hits, cutoff))
}
