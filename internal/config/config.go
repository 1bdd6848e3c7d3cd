// Package config handles YAML configuration parsing and validation.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"shuttle/internal/collector"
	"shuttle/internal/logging"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Output formats for the run summary.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Config is the root configuration structure.
type Config struct {
	Riders                int     `yaml:"riders"`
	Vehicles              int     `yaml:"vehicles"` // 0 runs vehicles until every rider has boarded
	MeanRiderIntervalMS   float64 `yaml:"mean_rider_interval_ms"`
	MeanVehicleIntervalMS float64 `yaml:"mean_vehicle_interval_ms"`
	Capacity              int     `yaml:"capacity"`
	Seed                  *int64  `yaml:"seed,omitempty"`
	DwellMS               int     `yaml:"dwell_ms"`
	DwellJitterMS         int     `yaml:"dwell_jitter_ms"`
	MaxSpawnRate          float64 `yaml:"max_spawn_rate"`
	Schedule              string  `yaml:"schedule,omitempty"`
	Output                string  `yaml:"output"`

	Profile    *Profile              `yaml:"profile,omitempty"`
	Thresholds *collector.Thresholds `yaml:"thresholds,omitempty"`
	Log        LogConfig             `yaml:"log"`
}

// LogConfig controls the transition log.
type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
	File   string `yaml:"file,omitempty"` // empty logs to stdout
}

// Profile scales the rider arrival rate over time.
type Profile struct {
	Phases []Phase `yaml:"phases"`
}

// TotalDuration returns the sum of all phase durations.
func (p *Profile) TotalDuration() time.Duration {
	var total time.Duration
	for _, ph := range p.Phases {
		total += ph.Duration
	}
	return total
}

// Phase represents a single phase in the arrival profile. A phase either
// holds RateMultiplier for its whole duration or ramps linearly from
// StartMultiplier to EndMultiplier.
type Phase struct {
	Name            string        `yaml:"name"`
	Duration        time.Duration `yaml:"duration"`
	RateMultiplier  float64       `yaml:"rate_multiplier"`
	StartMultiplier float64       `yaml:"start_multiplier"`
	EndMultiplier   float64       `yaml:"end_multiplier"`
}

// IsRamp reports whether the phase interpolates between two multipliers.
func (p Phase) IsRamp() bool {
	return p.RateMultiplier == 0
}

// Default returns the configuration used when no file or flag says otherwise.
func Default() *Config {
	return &Config{
		Riders:                100,
		Vehicles:              3,
		MeanRiderIntervalMS:   30000,
		MeanVehicleIntervalMS: 1200000,
		Capacity:              50,
		DwellMS:               2000,
		Output:                OutputText,
		Log: LogConfig{
			Format: logging.FormatText,
			Level:  logging.LevelInfo,
		},
	}
}

// Dynamic reports whether vehicles keep coming until every rider has boarded.
func (c *Config) Dynamic() bool {
	return c.Vehicles == 0
}

// Dwell returns the base dwell and its jitter.
func (c *Config) Dwell() (base, jitter time.Duration) {
	return time.Duration(c.DwellMS) * time.Millisecond, time.Duration(c.DwellJitterMS) * time.Millisecond
}

// LoadConfig reads a YAML configuration file. Keys absent from the file keep
// their Default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Riders < 0 {
		bad("riders must not be negative, got %d", c.Riders)
	}
	if c.Vehicles < 0 {
		bad("vehicles must not be negative, got %d", c.Vehicles)
	}
	if c.Capacity < 1 {
		bad("capacity must be at least 1, got %d", c.Capacity)
	}
	if !validInterval(c.MeanRiderIntervalMS) {
		bad("mean_rider_interval_ms must be a non-negative number, got %g", c.MeanRiderIntervalMS)
	}
	if !validInterval(c.MeanVehicleIntervalMS) {
		bad("mean_vehicle_interval_ms must be a non-negative number, got %g", c.MeanVehicleIntervalMS)
	}
	if c.DwellMS < 0 || c.DwellJitterMS < 0 {
		bad("dwell_ms and dwell_jitter_ms must not be negative")
	}
	if c.MaxSpawnRate < 0 {
		bad("max_spawn_rate must not be negative, got %g", c.MaxSpawnRate)
	}
	if c.Output != OutputText && c.Output != OutputJSON {
		bad("output must be %q or %q, got %q", OutputText, OutputJSON, c.Output)
	}
	if c.Log.Format != logging.FormatText && c.Log.Format != logging.FormatJSON {
		bad("log.format must be %q or %q, got %q", logging.FormatText, logging.FormatJSON, c.Log.Format)
	}
	if !slices.Contains(logging.ValidLevels(), strings.ToUpper(c.Log.Level)) {
		bad("log.level must be one of %v, got %q", logging.ValidLevels(), c.Log.Level)
	}
	if c.Profile != nil {
		for i, p := range c.Profile.Phases {
			if p.Duration <= 0 {
				bad("profile phase %d (%s): duration must be positive", i, p.Name)
			}
			if p.RateMultiplier < 0 {
				bad("profile phase %d (%s): rate_multiplier must not be negative", i, p.Name)
			}
			if p.IsRamp() && (p.StartMultiplier <= 0 || p.EndMultiplier <= 0) {
				bad("profile phase %d (%s): needs rate_multiplier or positive start_multiplier and end_multiplier", i, p.Name)
			}
		}
	}
	if t := c.Thresholds; t != nil && t.Stranded != nil && t.Stranded.Max < 0 {
		bad("thresholds.stranded.max must not be negative")
	}

	return errors.Join(errs...)
}

// MeanRiderInterval returns the mean time between rider arrivals.
func (c *Config) MeanRiderInterval() time.Duration {
	return millis(c.MeanRiderIntervalMS)
}

// MeanVehicleInterval returns the mean time between vehicle arrivals.
func (c *Config) MeanVehicleInterval() time.Duration {
	return millis(c.MeanVehicleIntervalMS)
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

func validInterval(ms float64) bool {
	return ms >= 0 && !math.IsNaN(ms) && !math.IsInf(ms, 0)
}
