package collector

import (
	"fmt"
	"strconv"
	"time"
)

// Thresholds defines pass/fail criteria for a run.
type Thresholds struct {
	WaitTime *DurationThresholds `yaml:"wait_time"`
	Stranded *CountThreshold     `yaml:"stranded"`
}

// DurationThresholds defines wait time limits. A zero limit is not checked.
type DurationThresholds struct {
	Avg time.Duration `yaml:"avg"`
	P50 time.Duration `yaml:"p50"`
	P90 time.Duration `yaml:"p90"`
	P95 time.Duration `yaml:"p95"`
	P99 time.Duration `yaml:"p99"`
}

// CountThreshold caps a count. Max is inclusive.
type CountThreshold struct {
	Max int `yaml:"max"`
}

// ThresholdResult represents the outcome of a single threshold check.
type ThresholdResult struct {
	Name      string `json:"name"`
	Passed    bool   `json:"passed"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
}

// ThresholdResults contains all threshold check results.
type ThresholdResults struct {
	Passed  bool              `json:"passed"`
	Results []ThresholdResult `json:"results"`
}

// Check evaluates all thresholds against a summary.
func (t *Thresholds) Check(s *Summary) *ThresholdResults {
	if t == nil {
		return &ThresholdResults{Passed: true, Results: nil}
	}

	results := &ThresholdResults{
		Passed:  true,
		Results: make([]ThresholdResult, 0),
	}

	if t.WaitTime != nil {
		results.checkDurationThresholds(t.WaitTime, &s.WaitTime)
	}
	if t.Stranded != nil {
		results.checkStranded(t.Stranded, s.Stranded)
	}

	return results
}

func (r *ThresholdResults) checkDurationThresholds(thresholds *DurationThresholds, actual *DurationMetrics) {
	checks := []struct {
		name      string
		threshold time.Duration
		actual    time.Duration
	}{
		{"wait_time.avg", thresholds.Avg, actual.Avg},
		{"wait_time.p50", thresholds.P50, actual.P50},
		{"wait_time.p90", thresholds.P90, actual.P90},
		{"wait_time.p95", thresholds.P95, actual.P95},
		{"wait_time.p99", thresholds.P99, actual.P99},
	}

	for _, check := range checks {
		if check.threshold == 0 {
			continue
		}

		passed := check.actual < check.threshold
		if !passed {
			r.Passed = false
		}

		r.Results = append(r.Results, ThresholdResult{
			Name:      check.name,
			Passed:    passed,
			Threshold: "< " + FormatDuration(check.threshold),
			Actual:    FormatDuration(check.actual),
		})
	}
}

func (r *ThresholdResults) checkStranded(threshold *CountThreshold, actual int) {
	passed := actual <= threshold.Max
	if !passed {
		r.Passed = false
	}
	r.Results = append(r.Results, ThresholdResult{
		Name:      "stranded.max",
		Passed:    passed,
		Threshold: "<= " + strconv.Itoa(threshold.Max),
		Actual:    strconv.Itoa(actual),
	})
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

// Violations returns only the failed threshold results.
func (r *ThresholdResults) Violations() []ThresholdResult {
	violations := make([]ThresholdResult, 0)
	for _, result := range r.Results {
		if !result.Passed {
			violations = append(violations, result)
		}
	}
	return violations
}
