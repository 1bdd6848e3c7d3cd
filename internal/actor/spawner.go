package actor

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sourcegraph/conc"

	"shuttle/internal/logging"
	"shuttle/internal/stop"
)

// Spawner starts one goroutine per actor, assigns IDs and joins them.
// A panic in an actor (an invariant violation at the stop) resurfaces on Wait.
type Spawner struct {
	stop  Stop
	log   *logging.Logger
	dwell Dwell

	riderIDs   Sequence
	vehicleIDs Sequence
	riders     conc.WaitGroup
	vehicles   conc.WaitGroup

	active      atomic.Int32
	interrupted atomic.Int32
	boarded     atomic.Int64 // sum of vehicle results
}

// SpawnerOption configures a Spawner.
type SpawnerOption func(*Spawner)

// WithDwell sets the dwell every spawned vehicle uses.
func WithDwell(d Dwell) SpawnerOption {
	return func(s *Spawner) { s.dwell = d }
}

// WithLogger sets the logger for actor failures.
func WithLogger(l *logging.Logger) SpawnerOption {
	return func(s *Spawner) { s.log = l }
}

func NewSpawner(s Stop, opts ...SpawnerOption) *Spawner {
	sp := &Spawner{
		stop:  s,
		log:   logging.NopLogger(),
		dwell: FixedDwell(0),
	}
	for _, opt := range opts {
		opt(sp)
	}
	return sp
}

// SpawnRider starts a rider and returns its ID.
func (s *Spawner) SpawnRider(ctx context.Context) int {
	r := NewRider(&s.riderIDs, s.stop)
	s.active.Add(1)
	s.riders.Go(func() {
		defer s.active.Add(-1)
		if err := r.Run(ctx); err != nil {
			s.fail(stop.RiderName(r.ID), err)
		}
	})
	return r.ID
}

// SpawnVehicle starts a vehicle and returns its ID.
func (s *Spawner) SpawnVehicle(ctx context.Context) int {
	v := NewVehicle(&s.vehicleIDs, s.stop, s.dwell)
	s.active.Add(1)
	s.vehicles.Go(func() {
		defer s.active.Add(-1)
		n, err := v.Run(ctx)
		s.boarded.Add(int64(n))
		if err != nil {
			s.fail(stop.VehicleName(v.ID), err)
		}
	})
	return v.ID
}

func (s *Spawner) fail(actor string, err error) {
	if errors.Is(err, stop.ErrInterrupted) {
		s.interrupted.Add(1)
		return
	}
	s.log.Error("actor failed", "actor", actor, "error", err)
}

// WaitVehicles blocks until every spawned vehicle has departed.
func (s *Spawner) WaitVehicles() {
	s.vehicles.Wait()
}

// WaitRiders blocks until every spawned rider has boarded or given up.
func (s *Spawner) WaitRiders() {
	s.riders.Wait()
}

// Wait blocks until every spawned actor has finished.
func (s *Spawner) Wait() {
	s.vehicles.Wait()
	s.riders.Wait()
}

// Active returns the number of actors still running.
func (s *Spawner) Active() int {
	return int(s.active.Load())
}

// Spawned returns how many riders and vehicles have been started.
func (s *Spawner) Spawned() (riders, vehicles int) {
	return s.riderIDs.Issued(), s.vehicleIDs.Issued()
}

// Interrupted returns how many actors ended by cancellation.
func (s *Spawner) Interrupted() int {
	return int(s.interrupted.Load())
}

// Boarded returns the riders boarded by vehicles that have finished.
func (s *Spawner) Boarded() int {
	return int(s.boarded.Load())
}
