package ratelimit

import (
	"math"
	"testing"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/core"
)

func TestPhaseManager_NoPhases(t *testing.T) {
	pm := NewPhaseManager(nil)
	if !pm.IsComplete() {
		t.Error("empty profile should be complete")
	}
	if pm.Multiplier() != 1 {
		t.Errorf("expected multiplier 1, got %v", pm.Multiplier())
	}
	if pm.CurrentPhase() != nil {
		t.Error("expected no current phase")
	}
}

func TestPhaseManager_FixedPhase(t *testing.T) {
	clock := core.NewFakeClock(time.Unix(0, 0))
	pm := NewPhaseManagerWithClock([]config.Phase{
		{Name: "rush", Duration: time.Minute, RateMultiplier: 3},
	}, clock)

	if got := pm.Multiplier(); got != 3 {
		t.Errorf("expected 3, got %v", got)
	}
	phase := pm.CurrentPhase()
	if phase == nil || phase.Name != "rush" {
		t.Errorf("expected phase 'rush', got %v", phase)
	}

	clock.Advance(time.Minute)
	if !pm.IsComplete() {
		t.Error("expected profile to be complete")
	}
	if got := pm.Multiplier(); got != 1 {
		t.Errorf("expected 1 after the profile, got %v", got)
	}
}

func TestPhaseManager_Ramp(t *testing.T) {
	clock := core.NewFakeClock(time.Unix(0, 0))
	pm := NewPhaseManagerWithClock([]config.Phase{
		{Name: "ramp", Duration: 100 * time.Second, StartMultiplier: 1, EndMultiplier: 5},
	}, clock)

	tests := []struct {
		at   time.Duration
		want float64
	}{
		{0, 1},
		{25 * time.Second, 2},
		{50 * time.Second, 3},
		{99 * time.Second, 4.96},
	}
	for _, tt := range tests {
		clock.Set(time.Unix(0, 0).Add(tt.at))
		if got := pm.Multiplier(); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("at %v: expected %v, got %v", tt.at, tt.want, got)
		}
	}
}

func TestPhaseManager_MultiplePhases(t *testing.T) {
	clock := core.NewFakeClock(time.Unix(0, 0))
	pm := NewPhaseManagerWithClock([]config.Phase{
		{Name: "quiet", Duration: 10 * time.Second, RateMultiplier: 0.5},
		{Name: "rush", Duration: 10 * time.Second, RateMultiplier: 4},
	}, clock)

	if pm.CurrentPhaseIndex() != 0 || pm.Multiplier() != 0.5 {
		t.Errorf("expected quiet phase, got index %d multiplier %v", pm.CurrentPhaseIndex(), pm.Multiplier())
	}

	clock.Advance(10 * time.Second)
	if pm.CurrentPhaseIndex() != 1 || pm.Multiplier() != 4 {
		t.Errorf("expected rush phase, got index %d multiplier %v", pm.CurrentPhaseIndex(), pm.Multiplier())
	}

	clock.Advance(10 * time.Second)
	if pm.CurrentPhaseIndex() != 2 {
		t.Errorf("expected phase index 2 (complete), got %d", pm.CurrentPhaseIndex())
	}
}

func TestPhaseManager_Elapsed(t *testing.T) {
	clock := core.NewFakeClock(time.Unix(0, 0))
	pm := NewPhaseManagerWithClock(nil, clock)
	clock.Advance(1500 * time.Millisecond)
	if pm.Elapsed() != 1500*time.Millisecond {
		t.Errorf("expected 1.5s elapsed, got %v", pm.Elapsed())
	}
}
