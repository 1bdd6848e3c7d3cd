// Package collector aggregates stop events into a run summary.
package collector

import (
	"sync"
	"sync/atomic"
	"time"

	"shuttle/internal/core"
)

// DefaultBufferSize is the event channel capacity used by NewCollector.
const DefaultBufferSize = 1 << 16

// Collector aggregates events from the stop and produces a summary.
type Collector struct {
	events  []core.Event
	ch      chan core.Event
	done    chan struct{}
	mu      sync.Mutex
	dropped atomic.Int64

	clock     core.Clock
	startTime time.Time
	endTime   time.Time
}

// Option configures a Collector.
type Option func(*collectorOptions)

type collectorOptions struct {
	buffer int
	clock  core.Clock
}

// WithBufferSize sets the event channel capacity.
func WithBufferSize(n int) Option {
	return func(o *collectorOptions) { o.buffer = n }
}

// WithClock sets the clock used to time the run.
func WithClock(c core.Clock) Option {
	return func(o *collectorOptions) { o.clock = c }
}

// NewCollector creates a new Collector and starts its collection goroutine.
func NewCollector(opts ...Option) *Collector {
	o := collectorOptions{buffer: DefaultBufferSize, clock: core.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Collector{
		events:    make([]core.Event, 0),
		ch:        make(chan core.Event, o.buffer),
		done:      make(chan struct{}),
		clock:     o.clock,
		startTime: o.clock.Now(),
	}
	go c.collect()
	return c
}

func (c *Collector) collect() {
	for event := range c.ch {
		c.mu.Lock()
		c.events = append(c.events, event)
		c.mu.Unlock()
	}
	close(c.done)
}

// Report sends an event to the collector. It never blocks; events that do
// not fit in the buffer are counted and dropped.
func (c *Collector) Report(event core.Event) {
	select {
	case c.ch <- event:
	default:
		c.dropped.Add(1)
	}
}

// Close stops accepting events and waits for buffered ones to be stored.
func (c *Collector) Close() {
	c.endTime = c.clock.Now()
	close(c.ch)
	<-c.done
}

// Events returns a copy of collected events.
func (c *Collector) Events() []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]core.Event, len(c.events))
	copy(result, c.events)
	return result
}

// Dropped returns how many events were discarded because the buffer was full.
func (c *Collector) Dropped() int {
	return int(c.dropped.Load())
}

// Duration returns the run duration.
// If the collector is closed, returns the duration from start to end.
// If still running, returns the duration from start to now.
func (c *Collector) Duration() time.Duration {
	if !c.endTime.IsZero() {
		return c.endTime.Sub(c.startTime)
	}
	return c.clock.Since(c.startTime)
}

// Compute summarizes the collected events.
func (c *Collector) Compute() *Summary {
	s := Compute(c.Events(), c.Duration())
	s.DroppedEvents = c.Dropped()
	return s
}
