package collector

import (
	"sort"
	"time"
)

// Summary is the outcome of one simulation run.
type Summary struct {
	RunID    string        `json:"runId,omitempty"`
	Duration time.Duration `json:"duration"`

	Vehicles        int `json:"vehicles"`
	EmptyDepartures int `json:"emptyDepartures"`
	Spawned         int `json:"spawned"`
	Arrived         int `json:"arrived"`
	Boarded         int `json:"boarded"`
	Withdrawn       int `json:"withdrawn"`
	Stranded        int `json:"stranded"`
	MaxWaiting      int `json:"maxWaiting"`

	Batch     BatchMetrics    `json:"batch"`
	WaitTime  DurationMetrics `json:"waitTime"`
	VisitTime DurationMetrics `json:"visitTime"`

	// DroppedEvents counts events the collector could not buffer. When it is
	// non-zero the event-derived figures are lower bounds.
	DroppedEvents int `json:"droppedEvents,omitempty"`
}

// BatchMetrics describes how many riders non-empty visits boarded.
type BatchMetrics struct {
	Min int     `json:"min"`
	Max int     `json:"max"`
	Avg float64 `json:"avg"`
	P50 int     `json:"p50"`
	P95 int     `json:"p95"`
}

// DurationMetrics contains latency statistics.
type DurationMetrics struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
	Avg time.Duration `json:"avg"`
	P50 time.Duration `json:"p50"`
	P90 time.Duration `json:"p90"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// ComputePercentile calculates the percentile value from a sorted slice of durations.
// The percentile p should be between 0 and 1 (e.g., 0.95 for p95).
// The slice must be sorted in ascending order.
func ComputePercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	// nearest rank
	return sorted[int(float64(len(sorted)-1)*p)]
}

// ComputeDurationMetrics calculates all duration statistics from a slice of durations.
func ComputeDurationMetrics(durations []time.Duration) DurationMetrics {
	if len(durations) == 0 {
		return DurationMetrics{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	return DurationMetrics{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: total / time.Duration(len(sorted)),
		P50: ComputePercentile(sorted, 0.50),
		P90: ComputePercentile(sorted, 0.90),
		P95: ComputePercentile(sorted, 0.95),
		P99: ComputePercentile(sorted, 0.99),
	}
}

// ComputeBatchMetrics summarizes batch sizes. Empty input yields zero values.
func ComputeBatchMetrics(sizes []int) BatchMetrics {
	if len(sizes) == 0 {
		return BatchMetrics{}
	}
	sorted := make([]int, len(sizes))
	copy(sorted, sizes)
	sort.Ints(sorted)

	total := 0
	for _, n := range sorted {
		total += n
	}
	return BatchMetrics{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: float64(total) / float64(len(sorted)),
		P50: sorted[int(float64(len(sorted)-1)*0.50)],
		P95: sorted[int(float64(len(sorted)-1)*0.95)],
	}
}
