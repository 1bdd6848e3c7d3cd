// Package core defines the events and interfaces shared by the shuttle packages.
package core

import "time"

// Kind identifies a state transition at the stop.
type Kind string

const (
	RiderArrived    Kind = "rider_arrived"
	RiderBoarded    Kind = "rider_boarded"
	RiderWithdrew   Kind = "rider_withdrew"
	VehicleArrived  Kind = "vehicle_arrived"
	VehicleDeparted Kind = "vehicle_departed"
)

// Event is a single observation of a transition at the stop.
type Event struct {
	Kind      Kind
	ActorID   int // rider or vehicle, depending on Kind
	VehicleID int // set on RiderBoarded
	Timestamp time.Time
	Waiting   int // waiting count right after the transition
	Snapshot  int // VehicleArrived: waiting count the batch was computed from
	Batch     int // VehicleArrived and VehicleDeparted
	Boarded   int // VehicleDeparted
}

// Reporter receives events from the stop. Implementations must be safe for
// concurrent use and must not block for long.
type Reporter interface {
	Report(Event)
}

// NullReporter discards all events.
var NullReporter Reporter = nullReporter{}

type nullReporter struct{}

func (nullReporter) Report(Event) {}
