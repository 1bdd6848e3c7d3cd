// Package sim wires the stop, the actors and the arrival generators into one
// simulation run and reports its summary.
package sim

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"shuttle/internal/actor"
	"shuttle/internal/collector"
	"shuttle/internal/config"
	"shuttle/internal/core"
	"shuttle/internal/data"
	"shuttle/internal/generator"
	"shuttle/internal/logging"
	"shuttle/internal/progress"
	"shuttle/internal/ratelimit"
	"shuttle/internal/stop"
)

// Options carries the collaborators of a run. The zero value is usable.
type Options struct {
	Logger   *logging.Logger // run_id is added to every record
	Clock    core.Clock
	RunID    string         // generated (UUIDv7) when empty
	Schedule *data.Schedule // replaces the exponential stream of each kind it lists
	Progress io.Writer      // status line destination; nil disables it
}

// Result is the outcome of a run.
type Result struct {
	RunID      string
	Summary    *collector.Summary
	Thresholds *collector.ThresholdResults
}

// Passed reports whether every configured threshold held.
func (r *Result) Passed() bool {
	return r.Thresholds == nil || r.Thresholds.Passed
}

// Run simulates one configuration to completion. Riders still waiting when
// the last fixed-mode vehicle has left are withdrawn and counted as
// stranded. If ctx is cancelled the partial result is returned together
// with the cancellation error.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = core.RealClock{}
	}
	if opts.RunID == "" {
		opts.RunID = newRunID()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	log := opts.Logger.With("run_id", opts.RunID)

	coll := collector.NewCollector(collector.WithClock(opts.Clock))
	coord, err := stop.New(cfg.Capacity,
		stop.WithReporter(coll),
		stop.WithLogger(log),
		stop.WithClock(opts.Clock),
	)
	if err != nil {
		coll.Close()
		return nil, fmt.Errorf("creating stop: %w", err)
	}

	riderRng, vehicleRng, dwellRng := streams(cfg.Seed)
	base, jitter := cfg.Dwell()
	spawner := actor.NewSpawner(coord,
		actor.WithDwell(actor.RandomDwell(base, jitter, dwellRng)),
		actor.WithLogger(log),
	)

	// Riders get their own context so stranded riders can be withdrawn
	// without interrupting vehicles.
	riderCtx, cancelRiders := context.WithCancel(ctx)
	defer cancelRiders()

	riders := riderGenerator(riderCtx, cfg, opts, riderRng, spawner, log)
	vehicles := vehicleGenerator(ctx, cfg, opts, vehicleRng, spawner, log)
	totalRiders := riders.Count
	if cfg.Dynamic() {
		vehicles.Count = generator.Unbounded
		vehicles.Until = func() bool { return coord.TotalBoarded() >= totalRiders }
	}

	log.Info("simulation starting",
		"riders", totalRiders,
		"vehicles", cfg.Vehicles,
		"dynamic", cfg.Dynamic(),
		"capacity", cfg.Capacity,
		"mean_rider_interval_ms", cfg.MeanRiderIntervalMS,
		"mean_vehicle_interval_ms", cfg.MeanVehicleIntervalMS,
	)

	var prog *progress.Progress
	if opts.Progress != nil {
		prog = progress.NewProgress(func() progress.Status {
			r, v := spawner.Spawned()
			return progress.Status{Riders: r, Boarded: coord.TotalBoarded(), Waiting: coord.Waiting(), Vehicles: v}
		}, false)
		prog.SetOutput(opts.Progress)
		prog.SetClock(opts.Clock)
		prog.Start()
	}
	watchDone := make(chan struct{})
	watchStopped := make(chan struct{})
	go func() {
		defer close(watchStopped)
		select {
		case <-ctx.Done():
			if prog != nil {
				prog.Printf("Interrupted, shutting down...")
			}
		case <-watchDone:
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := riders.Run(gctx)
		return err
	})
	g.Go(func() error {
		_, err := vehicles.Run(gctx)
		return err
	})
	runErr := g.Wait()

	spawner.WaitVehicles()
	cancelRiders()
	spawner.WaitRiders()
	close(watchDone)
	<-watchStopped
	if prog != nil {
		prog.Stop()
	}
	coll.Close()
	if runErr == nil {
		runErr = ctx.Err()
	}

	spawned, _ := spawner.Spawned()
	summary := coll.Compute()
	summary.RunID = opts.RunID
	summary.Spawned = spawned
	summary.Boarded = coord.TotalBoarded()
	summary.MaxWaiting = coord.MaxWaiting()
	summary.Stranded = spawned - summary.Boarded

	result := &Result{
		RunID:      opts.RunID,
		Summary:    summary,
		Thresholds: cfg.Thresholds.Check(summary),
	}

	log.Info("simulation complete",
		"vehicles", summary.Vehicles,
		"spawned", summary.Spawned,
		"boarded", summary.Boarded,
		"stranded", summary.Stranded,
		"max_waiting", summary.MaxWaiting,
		"interrupted", spawner.Interrupted(),
	)
	if summary.DroppedEvents > 0 {
		log.Warn("events dropped", "count", summary.DroppedEvents)
	}

	if runErr != nil {
		return result, fmt.Errorf("simulation interrupted: %w", runErr)
	}
	return result, nil
}

// riderGenerator spawns riders bound to ctx.
func riderGenerator(ctx context.Context, cfg *config.Config, opts Options, rng *rand.Rand, sp *actor.Spawner, log *logging.Logger) *generator.Generator {
	g := &generator.Generator{
		Name:    "riders",
		Count:   cfg.Riders,
		Limiter: limiter(cfg),
		Spawn:   func(context.Context) int { return sp.SpawnRider(ctx) },
		Log:     log,
	}
	if opts.Schedule != nil && opts.Schedule.Count(data.KindRider) > 0 {
		replay := generator.NewReplay(opts.Schedule.Offsets(data.KindRider))
		g.Count = replay.Len()
		g.Intervals = replay
		return g
	}

	var expOpts []generator.ExponentialOption
	if cfg.Profile != nil && len(cfg.Profile.Phases) > 0 {
		pm := ratelimit.NewPhaseManagerWithClock(cfg.Profile.Phases, opts.Clock)
		expOpts = append(expOpts, generator.WithRateMultiplier(pm.Multiplier))
	}
	g.Intervals = generator.NewExponential(cfg.MeanRiderInterval(), rng, expOpts...)
	return g
}

func vehicleGenerator(ctx context.Context, cfg *config.Config, opts Options, rng *rand.Rand, sp *actor.Spawner, log *logging.Logger) *generator.Generator {
	g := &generator.Generator{
		Name:    "vehicles",
		Count:   cfg.Vehicles,
		Limiter: limiter(cfg),
		Spawn:   func(context.Context) int { return sp.SpawnVehicle(ctx) },
		Log:     log,
	}
	if opts.Schedule != nil && opts.Schedule.Count(data.KindVehicle) > 0 {
		replay := generator.NewReplay(opts.Schedule.Offsets(data.KindVehicle))
		g.Count = replay.Len()
		g.Intervals = replay
		return g
	}
	g.Intervals = generator.NewExponential(cfg.MeanVehicleInterval(), rng)
	return g
}

// limiter returns nil, not a nil *Limiter, when no cap is configured.
func limiter(cfg *config.Config) generator.Waiter {
	if cfg.MaxSpawnRate <= 0 {
		return nil
	}
	return ratelimit.NewLimiter(cfg.MaxSpawnRate)
}

// streams returns independent random sources for rider arrivals, vehicle
// arrivals and dwell jitter. A seed makes all three reproducible.
func streams(seed *int64) (riders, vehicles, dwell *rand.Rand) {
	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}
	return rand.New(rand.NewSource(s)), rand.New(rand.NewSource(s + 1)), rand.New(rand.NewSource(s + 2))
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
