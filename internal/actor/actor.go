// Package actor defines the rider and vehicle actors and the spawner that runs them.
package actor

import (
	"context"
	"sync/atomic"

	"shuttle/internal/stop"
)

// Sequence hands out process-unique sequential IDs starting at 1.
// It is safe for concurrent use.
type Sequence struct {
	next atomic.Int64
}

// Next returns the next ID.
func (s *Sequence) Next() int {
	return int(s.next.Add(1))
}

// Issued returns how many IDs have been handed out.
func (s *Sequence) Issued() int {
	return int(s.next.Load())
}

// RiderStop is the part of the stop a rider talks to.
type RiderStop interface {
	Arrive(riderID int)
	BoardAttempt(ctx context.Context, riderID int) error
}

// VehicleStop is the part of the stop a vehicle talks to.
type VehicleStop interface {
	Visit(ctx context.Context, vehicleID int, opts ...stop.VisitOption) (int, error)
}

// Stop is everything the spawner needs from the stop.
type Stop interface {
	RiderStop
	VehicleStop
}

// Rider arrives at the stop and waits to board.
type Rider struct {
	ID   int
	stop RiderStop
}

// NewRider creates a rider with the next ID from seq.
func NewRider(seq *Sequence, s RiderStop) *Rider {
	return &Rider{ID: seq.Next(), stop: s}
}

// Run arrives and then blocks until the rider boards or ctx is cancelled.
func (r *Rider) Run(ctx context.Context) error {
	r.stop.Arrive(r.ID)
	return r.stop.BoardAttempt(ctx, r.ID)
}

// Vehicle makes one visit to the stop.
type Vehicle struct {
	ID    int
	stop  VehicleStop
	dwell Dwell
}

// NewVehicle creates a vehicle with the next ID from seq. A nil dwell means no dwell.
func NewVehicle(seq *Sequence, s VehicleStop, dwell Dwell) *Vehicle {
	if dwell == nil {
		dwell = FixedDwell(0)
	}
	return &Vehicle{ID: seq.Next(), stop: s, dwell: dwell}
}

// Run visits the stop once and returns how many riders boarded.
func (v *Vehicle) Run(ctx context.Context) (int, error) {
	return v.stop.Visit(ctx, v.ID, stop.WithDwell(v.dwell()))
}
