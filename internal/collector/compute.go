package collector

import (
	"time"

	"shuttle/internal/core"
)

// Compute derives a Summary from events. Pure function, no side effects.
// Spawned and Stranded depend on the run, not the events, and are left zero.
func Compute(events []core.Event, runDuration time.Duration) *Summary {
	s := &Summary{Duration: runDuration}

	arrivedAt := make(map[int]time.Time)
	visitStart := make(map[int]time.Time)
	var waits, visits []time.Duration
	var batches []int

	for _, e := range events {
		switch e.Kind {
		case core.RiderArrived:
			s.Arrived++
			arrivedAt[e.ActorID] = e.Timestamp
			if e.Waiting > s.MaxWaiting {
				s.MaxWaiting = e.Waiting
			}
		case core.RiderBoarded:
			s.Boarded++
			if at, ok := arrivedAt[e.ActorID]; ok {
				waits = append(waits, e.Timestamp.Sub(at))
				delete(arrivedAt, e.ActorID)
			}
		case core.RiderWithdrew:
			s.Withdrawn++
			delete(arrivedAt, e.ActorID)
		case core.VehicleArrived:
			if e.Batch > 0 {
				visitStart[e.ActorID] = e.Timestamp
			}
		case core.VehicleDeparted:
			s.Vehicles++
			if e.Batch == 0 {
				s.EmptyDepartures++
				continue
			}
			batches = append(batches, e.Boarded)
			if at, ok := visitStart[e.ActorID]; ok {
				visits = append(visits, e.Timestamp.Sub(at))
				delete(visitStart, e.ActorID)
			}
		}
	}

	s.Batch = ComputeBatchMetrics(batches)
	s.WaitTime = ComputeDurationMetrics(waits)
	s.VisitTime = ComputeDurationMetrics(visits)
	return s
}
