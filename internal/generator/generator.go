// Package generator produces the rider and vehicle arrival streams.
package generator

import (
	"context"
	"time"

	"shuttle/internal/logging"
)

// Waiter throttles spawning; *ratelimit.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Unbounded is a Count that never ends the stream by itself.
const Unbounded = -1

// Generator spawns actors spaced by the delays of its interval source.
type Generator struct {
	Name      string
	Count     int // Unbounded leaves ending the stream to Until or the source
	Intervals IntervalSource
	Limiter   Waiter      // optional
	Until     func() bool // optional; checked before every delay and spawn
	Spawn     func(ctx context.Context) int
	Log       *logging.Logger
}

// Run sleeps, spawns, and repeats until Count actors are spawned, Until
// reports true, or the source runs dry. It returns the number spawned and
// ctx.Err() if it was cancelled first.
func (g *Generator) Run(ctx context.Context) (int, error) {
	log := g.Log
	if log == nil {
		log = logging.NopLogger()
	}
	log = log.With("generator", g.Name)

	spawned := 0
	for g.Count == Unbounded || spawned < g.Count {
		if g.done() {
			log.Debug("generator stopping", "reason", "until", "spawned", spawned)
			return spawned, nil
		}
		d, ok := g.Intervals.Next()
		if !ok {
			log.Debug("generator stopping", "reason", "schedule exhausted", "spawned", spawned)
			return spawned, nil
		}
		if err := g.sleep(ctx, d); err != nil {
			return spawned, err
		}
		if g.Limiter != nil {
			if err := g.Limiter.Wait(ctx); err != nil {
				return spawned, err
			}
		}
		if g.done() {
			return spawned, nil
		}
		g.Spawn(ctx)
		spawned++
	}
	log.Debug("generator stopping", "reason", "count reached", "spawned", spawned)
	return spawned, nil
}

func (g *Generator) done() bool {
	return g.Until != nil && g.Until()
}

// sleep waits for d. An Until condition is polled so an unbounded stream
// with long delays still stops promptly.
func (g *Generator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	var poll <-chan time.Time
	if g.Until != nil {
		ticker := time.NewTicker(untilPollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}
	for {
		select {
		case <-timer.C:
			return nil
		case <-poll:
			if g.Until() {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

const untilPollInterval = 50 * time.Millisecond
