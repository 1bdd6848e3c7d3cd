package generator

import (
	"math"
	"math/rand"
	"time"
)

// IntervalSource yields the delay before each spawn. ok is false once the
// source has nothing left to schedule.
type IntervalSource interface {
	Next() (d time.Duration, ok bool)
}

// Exponential draws inter-arrival delays with the given mean, so arrivals form
// a Poisson process. It is not safe for concurrent use; each generator owns one.
type Exponential struct {
	mean  time.Duration
	rng   *rand.Rand
	scale func() float64
}

// ExponentialOption configures an Exponential source.
type ExponentialOption func(*Exponential)

// WithRateMultiplier divides every delay by m(), so m() > 1 means more arrivals.
func WithRateMultiplier(m func() float64) ExponentialOption {
	return func(e *Exponential) { e.scale = m }
}

// NewExponential creates a source with the given mean delay. rng is typically
// seeded for reproducible runs.
func NewExponential(mean time.Duration, rng *rand.Rand, opts ...ExponentialOption) *Exponential {
	e := &Exponential{mean: mean, rng: rng}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Next returns -mean * ln(1 - u) for u uniform in [0, 1).
func (e *Exponential) Next() (time.Duration, bool) {
	if e.mean <= 0 {
		return 0, true
	}
	u := e.rng.Float64()
	d := -float64(e.mean) * math.Log(1-u)
	if e.scale != nil {
		if m := e.scale(); m > 0 {
			d /= m
		}
	}
	return time.Duration(d), true
}

// Replay turns ascending offsets from the run start into successive delays.
type Replay struct {
	offsets []time.Duration
	next    int
	last    time.Duration
}

// NewReplay creates a source replaying offsets, which must be ascending.
func NewReplay(offsets []time.Duration) *Replay {
	return &Replay{offsets: offsets}
}

func (r *Replay) Next() (time.Duration, bool) {
	if r.next >= len(r.offsets) {
		return 0, false
	}
	at := r.offsets[r.next]
	r.next++
	d := at - r.last
	r.last = at
	return d, true
}

// Len returns the number of scheduled arrivals.
func (r *Replay) Len() int {
	return len(r.offsets)
}
