// Package stop implements the shared stop where riders wait and vehicles board them.
//
// A Coordinator runs one visit at a time. Each visit takes a snapshot of the
// waiting count, releases min(waiting, capacity) permits to the riders that
// were present at the snapshot, waits until every released permit has been
// acknowledged and only then commits the departure. The count lock is held
// only for O(1) bookkeeping, never across a channel wait, so riders keep
// arriving while a vehicle is loading.
package stop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"shuttle/internal/core"
	"shuttle/internal/logging"
)

// DefaultCapacity is the number of riders a vehicle boards per visit unless configured otherwise.
const DefaultCapacity = 50

// Log messages, one per transition. The trace verifier matches on these.
const (
	MsgRiderArrives    = "rider arrives"
	MsgRiderBoards     = "rider boards"
	MsgRiderWithdraws  = "rider withdraws"
	MsgVehicleArrives  = "vehicle arrives"
	MsgVehicleDeparts  = "vehicle departs"
	MsgVisitCancelled  = "visit cancelled"
	MsgVisitTransition = "visit transition"
)

var (
	// ErrInterrupted is returned when a blocked rider or vehicle is cancelled.
	ErrInterrupted = errors.New("interrupted")
	// ErrNotWaiting is returned by BoardAttempt for a rider with no pending arrival.
	ErrNotWaiting = errors.New("rider is not waiting")
	// ErrInvalidCapacity is returned by New for a capacity below one.
	ErrInvalidCapacity = errors.New("capacity must be at least 1")
)

// Coordinator owns the waiting count and serializes vehicle visits.
type Coordinator struct {
	capacity int
	token    *semaphore.Weighted // single-visit exclusion

	reporter core.Reporter
	log      *logging.Logger
	clock    core.Clock

	mu           sync.Mutex
	waiting      int
	maxWaiting   int
	totalBoarded int
	nextTicket   uint64
	riders       map[int]*waiter // riders still waiting, by ID
	current      *visit          // nil between visits
	opened       chan struct{}   // closed and replaced whenever a visit opens
	phase        Phase
}

// waiter is a rider between Arrive and boarding or withdrawal.
type waiter struct {
	ticket   uint64 // arrival order
	boarding bool   // a BoardAttempt is in progress
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithReporter sends every transition to r.
func WithReporter(r core.Reporter) Option {
	return func(c *Coordinator) { c.reporter = r }
}

// WithLogger writes one log record per transition.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithClock sets the clock used to timestamp events.
func WithClock(clock core.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// New creates a Coordinator boarding at most capacity riders per visit.
func New(capacity int, opts ...Option) (*Coordinator, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	c := &Coordinator{
		capacity: capacity,
		token:    semaphore.NewWeighted(1),
		reporter: core.NullReporter,
		log:      logging.NopLogger(),
		clock:    core.RealClock{},
		riders:   make(map[int]*waiter),
		opened:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Capacity returns the per-visit boarding limit.
func (c *Coordinator) Capacity() int {
	return c.capacity
}

// Arrive registers a rider at the stop. It never waits on a visit in progress.
func (c *Coordinator) Arrive(riderID int) {
	c.mu.Lock()
	if _, dup := c.riders[riderID]; dup {
		c.mu.Unlock()
		panic(fmt.Sprintf("stop: rider %d arrived twice", riderID))
	}
	c.riders[riderID] = &waiter{ticket: c.nextTicket}
	c.nextTicket++
	c.waiting++
	if c.waiting > c.maxWaiting {
		c.maxWaiting = c.waiting
	}
	waiting := c.waiting
	c.mu.Unlock()

	c.log.Info(MsgRiderArrives, "actor", RiderName(riderID), "waiting", waiting)
	c.emit(core.Event{Kind: core.RiderArrived, ActorID: riderID, Waiting: waiting})
}

// BoardAttempt blocks until the rider is granted a permit by a visit whose
// snapshot included it, then acknowledges boarding. If ctx is cancelled first
// the rider withdraws from the stop and an error wrapping ErrInterrupted is
// returned; no acknowledgement is sent in that case.
func (c *Coordinator) BoardAttempt(ctx context.Context, riderID int) error {
	c.mu.Lock()
	w, ok := c.riders[riderID]
	if !ok || w.boarding {
		c.mu.Unlock()
		return fmt.Errorf("rider %d: %w", riderID, ErrNotWaiting)
	}
	w.boarding = true
	ticket := w.ticket
	c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		c.withdraw(riderID, ticket)
		return fmt.Errorf("rider %d: %w: %w", riderID, ErrInterrupted, err)
	}

	for {
		c.mu.Lock()
		v, opened := c.current, c.opened
		c.mu.Unlock()

		if v == nil || ticket >= v.cutoff {
			// Nothing open for this rider; wait for the next visit.
			select {
			case <-opened:
				continue
			case <-ctx.Done():
				c.withdraw(riderID, ticket)
				return fmt.Errorf("rider %d: %w: %w", riderID, ErrInterrupted, ctx.Err())
			}
		}

		select {
		case <-v.permits:
			c.board(v, riderID)
			return nil
		case <-v.closed:
			// Batch filled without us; try the next visit.
		case <-ctx.Done():
			c.withdraw(riderID, ticket)
			return fmt.Errorf("rider %d: %w: %w", riderID, ErrInterrupted, ctx.Err())
		}
	}
}

func (c *Coordinator) board(v *visit, riderID int) {
	c.mu.Lock()
	v.claimed++
	if v.claimed > v.issued {
		c.mu.Unlock()
		panic(fmt.Sprintf("stop: vehicle %d: %d permits claimed, %d issued", v.vehicleID, v.claimed, v.issued))
	}
	delete(c.riders, riderID)
	c.mu.Unlock()

	c.log.Info(MsgRiderBoards, "actor", RiderName(riderID), "vehicle", v.vehicleID)
	c.emit(core.Event{Kind: core.RiderBoarded, ActorID: riderID, VehicleID: v.vehicleID})
	v.acks <- riderID
}

// withdraw removes a cancelled rider from the waiting count. If the open visit
// counted the rider in its snapshot, the vehicle is nudged to reclaim a permit
// nobody is left to claim.
func (c *Coordinator) withdraw(riderID int, ticket uint64) {
	c.mu.Lock()
	delete(c.riders, riderID)
	c.waiting--
	if c.waiting < 0 {
		c.mu.Unlock()
		panic(fmt.Sprintf("stop: waiting count negative after rider %d withdrew", riderID))
	}
	waiting := c.waiting
	v := c.current
	if v != nil && ticket < v.cutoff {
		v.eligible--
	} else {
		v = nil
	}
	c.mu.Unlock()

	if v != nil {
		select {
		case v.nudge <- struct{}{}:
		default:
		}
	}
	c.log.Info(MsgRiderWithdraws, "actor", RiderName(riderID), "waiting", waiting)
	c.emit(core.Event{Kind: core.RiderWithdrew, ActorID: riderID, Waiting: waiting})
}

// TotalBoarded returns the number of riders committed by completed visits.
func (c *Coordinator) TotalBoarded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBoarded
}

// MaxWaiting returns the highest waiting count observed.
func (c *Coordinator) MaxWaiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxWaiting
}

// Waiting returns the current waiting count.
func (c *Coordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting
}

// Phase returns the state of the visit in progress, or PhaseIdle.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Coordinator) emit(e core.Event) {
	e.Timestamp = c.clock.Now()
	c.reporter.Report(e)
}

// RiderName is the actor identity used in log records.
func RiderName(id int) string { return fmt.Sprintf("rider-%d", id) }

// VehicleName is the actor identity used in log records.
func VehicleName(id int) string { return fmt.Sprintf("vehicle-%d", id) }

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
