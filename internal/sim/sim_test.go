package sim

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuttle/internal/collector"
	"shuttle/internal/config"
	"shuttle/internal/data"
	"shuttle/internal/logging"
	"shuttle/internal/trace"
)

func fastConfig() *config.Config {
	cfg := config.Default()
	seed := int64(42)
	cfg.Seed = &seed
	cfg.MeanRiderIntervalMS = 1
	cfg.MeanVehicleIntervalMS = 5
	cfg.DwellMS = 0
	return cfg
}

func TestRun_DynamicModeBoardsEveryRider(t *testing.T) {
	cfg := fastConfig()
	cfg.Riders = 100
	cfg.Vehicles = 0
	cfg.Capacity = 50

	res, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)

	s := res.Summary
	assert.Equal(t, 100, s.Spawned)
	assert.Equal(t, 100, s.Boarded)
	assert.Equal(t, 0, s.Stranded)
	assert.Equal(t, 100, s.Arrived)
	assert.GreaterOrEqual(t, s.Vehicles, 2, "capacity 50 needs at least two visits")
	assert.LessOrEqual(t, s.Batch.Max, 50)
	assert.True(t, res.Passed())
}

func TestRun_FixedModeReportsStranded(t *testing.T) {
	cfg := fastConfig()
	cfg.Capacity = 3
	cfg.Thresholds = &collector.Thresholds{Stranded: &collector.CountThreshold{Max: 0}}

	var entries []data.Entry
	for i := 0; i < 10; i++ {
		entries = append(entries, data.Entry{At: 0, Kind: data.KindRider})
	}
	entries = append(entries, data.Entry{At: 100 * time.Millisecond, Kind: data.KindVehicle})

	res, err := Run(context.Background(), cfg, Options{Schedule: data.NewSchedule("test", entries)})
	require.NoError(t, err, "stranding is reported, not an error")

	s := res.Summary
	assert.Equal(t, 10, s.Spawned)
	assert.Equal(t, 3, s.Boarded)
	assert.Equal(t, 7, s.Stranded)
	assert.Equal(t, 7, s.Withdrawn)
	assert.Equal(t, 10, s.MaxWaiting)
	assert.Equal(t, 1, s.Vehicles)
	assert.False(t, res.Passed())
	require.Len(t, res.Thresholds.Violations(), 1)
	assert.Equal(t, "stranded.max", res.Thresholds.Violations()[0].Name)
}

func TestRun_LogVerifiesClean(t *testing.T) {
	cfg := fastConfig()
	cfg.Riders = 60
	cfg.Vehicles = 0
	cfg.Capacity = 7
	cfg.DwellMS = 1
	cfg.DwellJitterMS = 2

	var buf bytes.Buffer
	log := logging.NewLogger(&buf, logging.Options{Format: logging.FormatJSON, Level: logging.LevelDebug})
	res, err := Run(context.Background(), cfg, Options{Logger: log, RunID: "test-run"})
	require.NoError(t, err)
	require.Equal(t, 60, res.Summary.Boarded)

	out := buf.String()
	assert.Contains(t, out, `"run_id":"test-run"`)
	assert.Contains(t, out, `"msg":"simulation complete"`)

	report, err := trace.Verify(strings.NewReader(out), trace.Options{Capacity: cfg.Capacity})
	require.NoError(t, err)
	assert.True(t, report.OK(), "violations: %v", report.Violations)
	assert.Equal(t, 60, report.Boardings)
}

func TestRun_Cancelled(t *testing.T) {
	cfg := fastConfig()
	cfg.Riders = 5
	cfg.Vehicles = 2
	cfg.MeanVehicleIntervalMS = float64(time.Hour / time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := Run(ctx, cfg, Options{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.NotNil(t, res)
	assert.Equal(t, 0, res.Summary.Boarded)
	assert.Equal(t, res.Summary.Spawned, res.Summary.Stranded)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := fastConfig()
	cfg.Capacity = 0

	_, err := Run(context.Background(), cfg, Options{})
	require.ErrorIs(t, err, config.ErrInvalid)
}

func TestRun_ZeroRiders(t *testing.T) {
	cfg := fastConfig()
	cfg.Riders = 0
	cfg.Vehicles = 0

	res, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Summary.Vehicles, "dynamic mode with no riders needs no vehicle")
}

func TestRun_ProgressLine(t *testing.T) {
	cfg := fastConfig()
	cfg.Riders = 3
	cfg.Vehicles = 0

	var buf bytes.Buffer
	_, err := Run(context.Background(), cfg, Options{Progress: &buf})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(buf.String(), "\r\033[K"), "progress line should be cleared at the end")
}

func TestRun_CancelledAnnouncesOnProgress(t *testing.T) {
	cfg := fastConfig()
	cfg.Riders = 2
	cfg.Vehicles = 1
	cfg.MeanVehicleIntervalMS = float64(time.Hour / time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	_, err := Run(ctx, cfg, Options{Progress: &buf})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, buf.String(), "Interrupted, shutting down...")
}

func TestNewRunID_IsUUIDv7(t *testing.T) {
	id, err := uuid.Parse(newRunID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestStreams_SeededAreReproducible(t *testing.T) {
	seed := int64(9)
	r1, v1, d1 := streams(&seed)
	r2, v2, d2 := streams(&seed)
	assert.Equal(t, r1.Int63(), r2.Int63())
	assert.Equal(t, v1.Int63(), v2.Int63())
	assert.Equal(t, d1.Int63(), d2.Int63())

	r3, v3, _ := streams(&seed)
	assert.NotEqual(t, r3.Int63(), v3.Int63(), "streams should be independent")
}
