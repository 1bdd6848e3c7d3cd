package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"shuttle/internal/collector"
	"shuttle/internal/config"
	"shuttle/internal/data"
	"shuttle/internal/logging"
	"shuttle/internal/sim"
)

// flagKeys maps each run flag to its configuration key.
var flagKeys = map[string]string{
	"riders":                   "riders",
	"vehicles":                 "vehicles",
	"mean-rider-interval-ms":   "mean_rider_interval_ms",
	"mean-vehicle-interval-ms": "mean_vehicle_interval_ms",
	"capacity":                 "capacity",
	"seed":                     "seed",
	"dwell-ms":                 "dwell_ms",
	"dwell-jitter-ms":          "dwell_jitter_ms",
	"max-spawn-rate":           "max_spawn_rate",
	"schedule":                 "schedule",
	"output":                   "output",
	"log-format":               "log.format",
	"log-level":                "log.level",
	"log-file":                 "log.file",
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Long: `Run spawns riders and vehicles with exponential inter-arrival times (or
from a replay schedule) and prints a summary when every actor has finished.

Flags and SHUTTLE_* environment variables override the config file.
With --vehicles 0 vehicles keep coming until every rider has boarded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, v)
		},
	}

	d := config.Default()
	f := cmd.Flags()
	f.StringP("config", "c", "", "path to YAML config file")
	f.Int("riders", d.Riders, "number of riders to spawn")
	f.Int("vehicles", d.Vehicles, "number of vehicles to spawn (0 = until every rider boards)")
	f.Float64("mean-rider-interval-ms", d.MeanRiderIntervalMS, "mean time between rider arrivals")
	f.Float64("mean-vehicle-interval-ms", d.MeanVehicleIntervalMS, "mean time between vehicle arrivals")
	f.Int("capacity", d.Capacity, "riders a vehicle boards per visit")
	f.Int64("seed", 0, "random seed for reproducible runs")
	f.Int("dwell-ms", d.DwellMS, "time a vehicle stays while riders board")
	f.Int("dwell-jitter-ms", d.DwellJitterMS, "random extra dwell, uniform in [0, jitter)")
	f.Float64("max-spawn-rate", d.MaxSpawnRate, "max actors spawned per second per generator (0 = unlimited)")
	f.String("schedule", "", "replay arrivals from a CSV or JSON schedule")
	f.String("output", d.Output, "summary format: text, json")
	f.String("log-format", d.Log.Format, "log format: text, json")
	f.String("log-level", d.Log.Level, "log level: DEBUG, INFO, WARN, ERROR")
	f.String("log-file", "", "append the log to this file instead of stdout")
	f.BoolP("quiet", "q", false, "suppress the progress line")

	for flag, key := range flagKeys {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}

func runSimulation(cmd *cobra.Command, v *viper.Viper) error {
	configPath, _ := cmd.Flags().GetString("config")
	quiet, _ := cmd.Flags().GetBool("quiet")

	cfg, err := loadConfig(configPath, v)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var schedule *data.Schedule
	if cfg.Schedule != "" {
		dir := ""
		if configPath != "" {
			dir = filepath.Dir(configPath)
		}
		if schedule, err = data.LoadSchedule(cfg.Schedule, dir); err != nil {
			return err
		}
	}

	log, err := logging.OpenLogger(cfg.Log.File, logging.Options{Format: cfg.Log.Format, Level: cfg.Log.Level})
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := sim.Options{Logger: log, Schedule: schedule}
	if !quiet {
		opts.Progress = cmd.ErrOrStderr()
	}

	res, err := sim.Run(ctx, cfg, opts)
	interrupted := err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil
	if err != nil && !interrupted {
		return err
	}

	out := cmd.OutOrStdout()
	if cfg.Output == config.OutputJSON {
		if err := collector.FormatJSON(out, res.Summary, res.Thresholds); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	} else {
		collector.FormatText(out, res.Summary, res.Thresholds)
	}

	if interrupted {
		return nil
	}
	if !res.Passed() {
		var msg error
		if cfg.Output == config.OutputText {
			msg = errors.New("Threshold check failed!")
		}
		return &exitError{code: ExitThresholdFailed, err: msg}
	}
	return nil
}

// loadConfig layers defaults, the optional file, then explicitly set flags
// and environment variables.
func loadConfig(path string, v *viper.Viper) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}

	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setFloat := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	setInt("riders", &cfg.Riders)
	setInt("vehicles", &cfg.Vehicles)
	setInt("capacity", &cfg.Capacity)
	setInt("dwell_ms", &cfg.DwellMS)
	setInt("dwell_jitter_ms", &cfg.DwellJitterMS)
	setString("schedule", &cfg.Schedule)
	setString("output", &cfg.Output)
	setString("log.format", &cfg.Log.Format)
	setString("log.level", &cfg.Log.Level)
	setString("log.file", &cfg.Log.File)
	setFloat("mean_rider_interval_ms", &cfg.MeanRiderIntervalMS)
	setFloat("mean_vehicle_interval_ms", &cfg.MeanVehicleIntervalMS)
	setFloat("max_spawn_rate", &cfg.MaxSpawnRate)
	if v.IsSet("seed") {
		seed := v.GetInt64("seed")
		cfg.Seed = &seed
	}
	return cfg, nil
}
