// Package ratelimit throttles actor spawning and tracks the arrival profile.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter caps how many actors a generator may spawn per second.
// A zero rate disables limiting.
type Limiter struct {
	limiter *rate.Limiter
	mu      sync.RWMutex
}

// NewLimiter allows perSecond spawns per second with a burst of one second's worth.
func NewLimiter(perSecond float64) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst(perSecond)),
	}
}

func burst(perSecond float64) int {
	if perSecond < 1 {
		return 1
	}
	return int(perSecond)
}

// Wait blocks until the next spawn is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.RLock()
	limiter := l.limiter
	limit := limiter.Limit()
	l.mu.RUnlock()

	if limit == 0 {
		return nil
	}
	return limiter.Wait(ctx)
}

// SetRate changes the limit; in-flight waits observe it on their next reservation.
func (l *Limiter) SetRate(perSecond float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiter.SetLimit(rate.Limit(perSecond))
	l.limiter.SetBurst(burst(perSecond))
}

// Rate returns the current limit in spawns per second.
func (l *Limiter) Rate() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return float64(l.limiter.Limit())
}
