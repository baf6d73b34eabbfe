// Package ratelimit throttles calls to the development validation endpoint
// per client.
package ratelimit

import (
	"context"
	"time"
)

// Limits holds the allowed request counts per window. A zero disables that
// window.
type Limits struct {
	RequestsPerMinute int
	RequestsPerHour   int
}

func (l Limits) windows() []window {
	return []window{
		{time.Minute, l.RequestsPerMinute},
		{time.Hour, l.RequestsPerHour},
	}
}

// Enabled reports whether any window is limited.
func (l Limits) Enabled() bool {
	return l.RequestsPerMinute > 0 || l.RequestsPerHour > 0
}

type window struct {
	duration time.Duration
	limit    int
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limits Limits) (bool, error)
	Reset(ctx context.Context, key string) error
}
