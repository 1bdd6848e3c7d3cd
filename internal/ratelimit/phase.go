package ratelimit

import (
	"time"

	"shuttle/internal/config"
	"shuttle/internal/core"
)

// PhaseManager maps elapsed run time to the arrival rate multiplier of the
// active profile phase. Outside the profile the multiplier is 1.
type PhaseManager struct {
	phases    []config.Phase
	startTime time.Time
	clock     core.Clock
}

// NewPhaseManager creates a PhaseManager with a real clock.
func NewPhaseManager(phases []config.Phase) *PhaseManager {
	return NewPhaseManagerWithClock(phases, core.RealClock{})
}

// NewPhaseManagerWithClock creates a PhaseManager with a custom clock (for testing).
func NewPhaseManagerWithClock(phases []config.Phase, clock core.Clock) *PhaseManager {
	return &PhaseManager{
		phases:    phases,
		startTime: clock.Now(),
		clock:     clock,
	}
}

func (pm *PhaseManager) Elapsed() time.Duration {
	return pm.clock.Since(pm.startTime)
}

func (pm *PhaseManager) CurrentPhaseIndex() int {
	elapsed := pm.Elapsed()
	var cumulative time.Duration
	for i, p := range pm.phases {
		cumulative += p.Duration
		if elapsed < cumulative {
			return i
		}
	}
	return len(pm.phases)
}

func (pm *PhaseManager) CurrentPhase() *config.Phase {
	idx := pm.CurrentPhaseIndex()
	if idx >= len(pm.phases) {
		return nil
	}
	return &pm.phases[idx]
}

func (pm *PhaseManager) IsComplete() bool {
	return pm.CurrentPhaseIndex() >= len(pm.phases)
}

// Multiplier returns the factor applied to the base arrival rate right now.
func (pm *PhaseManager) Multiplier() float64 {
	idx := pm.CurrentPhaseIndex()
	if idx >= len(pm.phases) {
		return 1
	}
	phase := pm.phases[idx]
	if !phase.IsRamp() {
		return phase.RateMultiplier
	}

	var phaseStart time.Duration
	for i := 0; i < idx; i++ {
		phaseStart += pm.phases[i].Duration
	}
	progress := float64(pm.Elapsed()-phaseStart) / float64(phase.Duration)
	if progress > 1 {
		progress = 1
	}
	return phase.StartMultiplier + (phase.EndMultiplier-phase.StartMultiplier)*progress
}
