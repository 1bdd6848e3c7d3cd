package collector

import (
	"sync"
	"testing"
	"time"

	"shuttle/internal/core"
)

func TestCollector_CollectsEvents(t *testing.T) {
	c := NewCollector()
	c.Report(core.Event{Kind: core.RiderArrived, ActorID: 1, Waiting: 1})
	c.Report(core.Event{Kind: core.RiderArrived, ActorID: 2, Waiting: 2})
	c.Close()

	events := c.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if c.Dropped() != 0 {
		t.Errorf("expected no dropped events, got %d", c.Dropped())
	}
}

func TestCollector_ThreadSafety(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	numGoroutines := 100
	eventsPerGoroutine := 50

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				c.Report(core.Event{Kind: core.RiderArrived, ActorID: id})
			}
		}(i)
	}
	wg.Wait()
	c.Close()

	if got := len(c.Events()); got != numGoroutines*eventsPerGoroutine {
		t.Errorf("expected %d events, got %d", numGoroutines*eventsPerGoroutine, got)
	}
}

func TestCollector_CountsDroppedEvents(t *testing.T) {
	c := NewCollector(WithBufferSize(0))
	// With an unbuffered channel a send only succeeds when the collect
	// goroutine is ready, so some of these are expected to be dropped.
	for i := 0; i < 1000; i++ {
		c.Report(core.Event{Kind: core.RiderArrived, ActorID: i})
	}
	c.Close()

	if got := len(c.Events()) + c.Dropped(); got != 1000 {
		t.Errorf("stored plus dropped should be 1000, got %d", got)
	}
}

func TestCollector_DurationUsesClock(t *testing.T) {
	clock := core.NewFakeClock(time.Unix(0, 0))
	c := NewCollector(WithClock(clock))

	clock.Advance(3 * time.Second)
	if got := c.Duration(); got != 3*time.Second {
		t.Errorf("expected running duration 3s, got %v", got)
	}

	clock.Advance(2 * time.Second)
	c.Close()
	clock.Advance(time.Hour)
	if got := c.Duration(); got != 5*time.Second {
		t.Errorf("expected closed duration 5s, got %v", got)
	}
}

func TestCollector_Compute(t *testing.T) {
	clock := core.NewFakeClock(time.Unix(0, 0))
	c := NewCollector(WithClock(clock))
	t0 := clock.Now()
	c.Report(core.Event{Kind: core.RiderArrived, ActorID: 1, Waiting: 1, Timestamp: t0})
	c.Report(core.Event{Kind: core.VehicleArrived, ActorID: 1, Snapshot: 1, Batch: 1, Timestamp: t0.Add(time.Second)})
	c.Report(core.Event{Kind: core.RiderBoarded, ActorID: 1, VehicleID: 1, Timestamp: t0.Add(2 * time.Second)})
	c.Report(core.Event{Kind: core.VehicleDeparted, ActorID: 1, Batch: 1, Boarded: 1, Timestamp: t0.Add(3 * time.Second)})
	clock.Advance(4 * time.Second)
	c.Close()

	s := c.Compute()
	if s.Boarded != 1 || s.Vehicles != 1 {
		t.Errorf("expected 1 boarded by 1 vehicle, got %d by %d", s.Boarded, s.Vehicles)
	}
	if s.Duration != 4*time.Second {
		t.Errorf("expected 4s duration, got %v", s.Duration)
	}
	if s.WaitTime.Max != 2*time.Second {
		t.Errorf("expected 2s wait, got %v", s.WaitTime.Max)
	}
}
