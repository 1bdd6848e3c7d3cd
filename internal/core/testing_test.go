package core

import (
	"sync"
	"testing"
)

func TestRecorder_CountsByKind(t *testing.T) {
	r := &Recorder{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.Report(Event{Kind: RiderArrived, ActorID: id})
			r.Report(Event{Kind: RiderBoarded, ActorID: id})
		}(i)
	}
	wg.Wait()

	if got := r.Count(RiderArrived); got != 50 {
		t.Errorf("expected 50 arrivals, got %d", got)
	}
	if got := len(r.Events()); got != 100 {
		t.Errorf("expected 100 events, got %d", got)
	}
}

func TestNullReporter(t *testing.T) {
	// NullReporter should not panic when Report is called
	NullReporter.Report(Event{Kind: VehicleArrived})
}
