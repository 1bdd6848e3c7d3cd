package stop

import (
	"context"
	"fmt"
	"time"

	"shuttle/internal/core"
	"shuttle/internal/logging"
)

// Phase is the state of the visit in progress.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSnapshotTaken
	PhasePermitsIssued
	PhaseAllBoarded
	PhaseAbandoned // cancelled before every permit was acknowledged
	PhaseCommitted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSnapshotTaken:
		return "snapshot_taken"
	case PhasePermitsIssued:
		return "permits_issued"
	case PhaseAllBoarded:
		return "all_boarded"
	case PhaseAbandoned:
		return "abandoned"
	case PhaseCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// visit is the state shared between one vehicle and its batch of riders.
// Fields below the channels are guarded by Coordinator.mu.
type visit struct {
	vehicleID int
	cutoff    uint64 // riders with a ticket below cutoff were present at the snapshot

	permits chan struct{}
	acks    chan int
	nudge   chan struct{} // a counted rider withdrew
	closed  chan struct{}

	issued   int // permits released and not reclaimed
	claimed  int
	eligible int // riders counted by the snapshot and still waiting
}

type visitOptions struct {
	dwell time.Duration
}

// VisitOption configures a single visit.
type VisitOption func(*visitOptions)

// WithDwell keeps the vehicle at the stop for d after releasing permits and
// before it may depart. The dwell holds no lock and is skipped for empty visits.
func WithDwell(d time.Duration) VisitOption {
	return func(o *visitOptions) { o.dwell = d }
}

// Visit runs one vehicle visit and returns how many riders boarded.
//
// Only one visit runs at a time. The batch is min(waiting, capacity) taken
// from a snapshot; an empty batch departs at once without releasing permits.
// On cancellation the vehicle reclaims unclaimed permits, still commits the
// riders that already boarded, and returns their count with an error
// wrapping ErrInterrupted.
func (c *Coordinator) Visit(ctx context.Context, vehicleID int, opts ...VisitOption) (int, error) {
	var o visitOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := c.token.Acquire(ctx, 1); err != nil {
		return 0, fmt.Errorf("vehicle %d: %w: %w", vehicleID, ErrInterrupted, err)
	}
	defer c.token.Release(1)

	log := c.log.With("actor", VehicleName(vehicleID))

	// Snapshot.
	c.mu.Lock()
	snapshot := c.waiting
	batch := min(snapshot, c.capacity)
	var v *visit
	if batch > 0 {
		v = &visit{
			vehicleID: vehicleID,
			cutoff:    c.nextTicket,
			permits:   make(chan struct{}, batch),
			acks:      make(chan int, batch),
			nudge:     make(chan struct{}, 1),
			closed:    make(chan struct{}),
			issued:    batch,
			eligible:  snapshot,
		}
		c.current = v
		c.phase = PhaseSnapshotTaken
		close(c.opened)
		c.opened = make(chan struct{})
	}
	c.mu.Unlock()

	log.Info(MsgVehicleArrives, "snapshot", snapshot, "batch", batch)
	c.emit(core.Event{Kind: core.VehicleArrived, ActorID: vehicleID, Waiting: snapshot, Snapshot: snapshot, Batch: batch})

	if batch == 0 {
		log.Info(MsgVehicleDeparts, "boarded", 0, "waiting", snapshot)
		c.emit(core.Event{Kind: core.VehicleDeparted, ActorID: vehicleID, Waiting: snapshot})
		return 0, nil
	}

	// Release.
	for i := 0; i < batch; i++ {
		v.permits <- struct{}{}
	}
	c.setPhase(log, PhasePermitsIssued)

	// Barrier.
	boarded, err := c.await(ctx, v, o.dwell)
	if err != nil {
		c.setPhase(log, PhaseAbandoned)
	} else {
		c.setPhase(log, PhaseAllBoarded)
	}

	// Commit.
	c.mu.Lock()
	c.waiting -= boarded
	if c.waiting < 0 {
		c.mu.Unlock()
		panic(fmt.Sprintf("stop: waiting count negative after vehicle %d committed %d", vehicleID, boarded))
	}
	c.totalBoarded += boarded
	waiting := c.waiting
	c.current = nil
	c.phase = PhaseCommitted
	c.mu.Unlock()
	close(v.closed)

	if err != nil {
		log.Warn(MsgVisitCancelled, "boarded", boarded, "batch", batch, "error", err)
	}
	log.Info(MsgVehicleDeparts, "boarded", boarded, "waiting", waiting)
	c.emit(core.Event{Kind: core.VehicleDeparted, ActorID: vehicleID, Waiting: waiting, Batch: batch, Boarded: boarded})
	c.setPhase(log, PhaseIdle)

	if err != nil {
		return boarded, fmt.Errorf("vehicle %d: %w: %w", vehicleID, ErrInterrupted, err)
	}
	return boarded, nil
}

// await dwells, then collects one ack per outstanding permit. Permits whose
// riders withdrew are reclaimed so the barrier never waits on an absent rider.
func (c *Coordinator) await(ctx context.Context, v *visit, dwell time.Duration) (int, error) {
	if err := sleep(ctx, dwell); err != nil {
		return c.abandon(v, 0), err
	}

	boarded := 0
	for {
		c.mu.Lock()
		expected := v.issued
		c.mu.Unlock()
		if boarded >= expected {
			return boarded, nil
		}

		select {
		case <-v.acks:
			boarded++
		case <-v.nudge:
			c.reclaimSurplus(v)
		case <-ctx.Done():
			return c.abandon(v, boarded), ctx.Err()
		}
	}
}

// reclaimSurplus takes back permits that outnumber the riders still able to claim them.
func (c *Coordinator) reclaimSurplus(v *visit) {
	c.mu.Lock()
	surplus := v.issued - v.eligible
	c.mu.Unlock()

	reclaimed := 0
reclaim:
	for reclaimed < surplus {
		select {
		case <-v.permits:
			reclaimed++
		default:
			break reclaim
		}
	}

	if reclaimed > 0 {
		c.mu.Lock()
		v.issued -= reclaimed
		c.mu.Unlock()
	}
}

// abandon reclaims every unclaimed permit and waits for the acks of riders
// that already hold one. Those riders never block between claiming and
// acknowledging, so the wait is short.
func (c *Coordinator) abandon(v *visit, boarded int) int {
	reclaimed := 0
drain:
	for {
		select {
		case <-v.permits:
			reclaimed++
		default:
			break drain
		}
	}

	c.mu.Lock()
	v.issued -= reclaimed
	expected := v.issued
	c.mu.Unlock()

	for boarded < expected {
		<-v.acks
		boarded++
	}
	return boarded
}

func (c *Coordinator) setPhase(log *logging.Logger, p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	log.Debug(MsgVisitTransition, "phase", p.String())
}
