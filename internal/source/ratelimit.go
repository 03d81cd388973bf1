package source

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between requests on one fetch channel.
// The first Acquire never blocks; each following Acquire blocks until the
// interval has elapsed since the previous one was admitted. One Limiter per
// source channel, not global.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	rl       *rate.Limiter
}

func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		rl:       rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Acquire blocks until a request slot is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	rl := l.rl
	l.mu.Unlock()
	return rl.Wait(ctx)
}

// Reset forgets the last request time; the next Acquire returns immediately.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.rl = rate.NewLimiter(rate.Every(l.interval), 1)
	l.mu.Unlock()
}

// Interval reports the configured minimum spacing.
func (l *Limiter) Interval() time.Duration { return l.interval }
