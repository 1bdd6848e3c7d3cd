package collector

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	jsoniter "github.com/json-iterator/go"
)

// FormatText writes the summary in human-readable form. Styling is applied
// only when w is a terminal.
func FormatText(w io.Writer, s *Summary, thresholds *ThresholdResults) {
	r := lipgloss.NewRenderer(w)
	title := r.NewStyle().Bold(true)
	section := r.NewStyle().Underline(true)
	pass := r.NewStyle().Foreground(lipgloss.Color("2"))
	fail := r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, title.Render("Shuttle - Simulation Results"))
	if s.RunID != "" {
		fmt.Fprintf(w, "Run:              %s\n", s.RunID)
	}
	fmt.Fprintf(w, "Duration:         %v\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Vehicles:         %s (%s empty)\n", formatNumber(s.Vehicles), formatNumber(s.EmptyDepartures))
	fmt.Fprintf(w, "Riders spawned:   %s\n", formatNumber(s.Spawned))
	fmt.Fprintf(w, "Riders boarded:   %s\n", formatNumber(s.Boarded))
	fmt.Fprintf(w, "Riders stranded:  %s\n", formatNumber(s.Stranded))
	fmt.Fprintf(w, "Max waiting:      %s\n", formatNumber(s.MaxWaiting))
	if s.DroppedEvents > 0 {
		fmt.Fprintf(w, "Dropped events:   %s\n", fail.Render(formatNumber(s.DroppedEvents)))
	}

	if s.Vehicles > s.EmptyDepartures {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, section.Render("Batch Size:"))
		fmt.Fprintf(w, "  Min: %d  Avg: %.1f  P50: %d  P95: %d  Max: %d\n",
			s.Batch.Min, s.Batch.Avg, s.Batch.P50, s.Batch.P95, s.Batch.Max)
	}

	if s.Boarded > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, section.Render("Wait Times:"))
		writeDurations(w, s.WaitTime)
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, section.Render("Visit Times:"))
		writeDurations(w, s.VisitTime)
	}

	if thresholds != nil && len(thresholds.Results) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, section.Render("Thresholds:"))
		for _, result := range thresholds.Results {
			symbol := pass.Render("✓")
			if !result.Passed {
				symbol = fail.Render("✗")
			}
			fmt.Fprintf(w, "  %s %s %s (actual: %s)\n",
				symbol, result.Name, result.Threshold, result.Actual)
		}
	}
}

func writeDurations(w io.Writer, d DurationMetrics) {
	fmt.Fprintf(w, "  Min:    %s\n", FormatDuration(d.Min))
	fmt.Fprintf(w, "  Avg:    %s\n", FormatDuration(d.Avg))
	fmt.Fprintf(w, "  P50:    %s\n", FormatDuration(d.P50))
	fmt.Fprintf(w, "  P90:    %s\n", FormatDuration(d.P90))
	fmt.Fprintf(w, "  P95:    %s\n", FormatDuration(d.P95))
	fmt.Fprintf(w, "  P99:    %s\n", FormatDuration(d.P99))
	fmt.Fprintf(w, "  Max:    %s\n", FormatDuration(d.Max))
}

// FormatJSON writes the summary in JSON format.
func FormatJSON(w io.Writer, s *Summary, thresholds *ThresholdResults) error {
	output := struct {
		RunID           string              `json:"runId,omitempty"`
		Duration        string              `json:"duration"`
		Vehicles        int                 `json:"vehicles"`
		EmptyDepartures int                 `json:"emptyDepartures"`
		Spawned         int                 `json:"spawned"`
		Arrived         int                 `json:"arrived"`
		Boarded         int                 `json:"boarded"`
		Withdrawn       int                 `json:"withdrawn"`
		Stranded        int                 `json:"stranded"`
		MaxWaiting      int                 `json:"maxWaiting"`
		DroppedEvents   int                 `json:"droppedEvents,omitempty"`
		Batch           BatchMetrics        `json:"batch"`
		WaitTime        jsonDurationMetrics `json:"waitTime"`
		VisitTime       jsonDurationMetrics `json:"visitTime"`
		Thresholds      *ThresholdResults   `json:"thresholds,omitempty"`
	}{
		RunID:           s.RunID,
		Duration:        s.Duration.Round(time.Millisecond).String(),
		Vehicles:        s.Vehicles,
		EmptyDepartures: s.EmptyDepartures,
		Spawned:         s.Spawned,
		Arrived:         s.Arrived,
		Boarded:         s.Boarded,
		Withdrawn:       s.Withdrawn,
		Stranded:        s.Stranded,
		MaxWaiting:      s.MaxWaiting,
		DroppedEvents:   s.DroppedEvents,
		Batch:           s.Batch,
		WaitTime:        toJSONDurationMetrics(s.WaitTime),
		VisitTime:       toJSONDurationMetrics(s.VisitTime),
		Thresholds:      thresholds,
	}

	encoder := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

type jsonDurationMetrics struct {
	Min string `json:"min"`
	Max string `json:"max"`
	Avg string `json:"avg"`
	P50 string `json:"p50"`
	P90 string `json:"p90"`
	P95 string `json:"p95"`
	P99 string `json:"p99"`
}

func toJSONDurationMetrics(d DurationMetrics) jsonDurationMetrics {
	return jsonDurationMetrics{
		Min: FormatDuration(d.Min),
		Max: FormatDuration(d.Max),
		Avg: FormatDuration(d.Avg),
		P50: FormatDuration(d.P50),
		P90: FormatDuration(d.P90),
		P95: FormatDuration(d.P95),
		P99: FormatDuration(d.P99),
	}
}

func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, n/1000%1000, n%1000)
}
