// Package data loads replay schedules of rider and vehicle arrivals.
package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Kind names the actor an entry spawns.
type Kind string

const (
	KindRider   Kind = "rider"
	KindVehicle Kind = "vehicle"
)

// ErrInvalidSchedule is wrapped by every schedule parsing error.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Entry is one scheduled arrival, at an offset from the run start.
type Entry struct {
	At   time.Duration
	Kind Kind
}

// Schedule is a loaded replay file with entries sorted by offset.
type Schedule struct {
	name    string
	entries []Entry
}

// NewSchedule sorts entries by offset. Entries at equal offsets keep their order.
func NewSchedule(name string, entries []Entry) *Schedule {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })
	return &Schedule{name: name, entries: sorted}
}

// Name returns the schedule name.
func (s *Schedule) Name() string {
	return s.name
}

// Len returns the number of entries.
func (s *Schedule) Len() int {
	return len(s.entries)
}

// Offsets returns the arrival offsets of one kind, ascending.
func (s *Schedule) Offsets(kind Kind) []time.Duration {
	var out []time.Duration
	for _, e := range s.entries {
		if e.Kind == kind {
			out = append(out, e.At)
		}
	}
	return out
}

// Count returns how many entries of kind the schedule holds.
func (s *Schedule) Count(kind Kind) int {
	n := 0
	for _, e := range s.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// LoadSchedule loads a schedule file (CSV or JSON). Relative paths are
// resolved against configDir. Every row needs an at_ms offset and a kind.
func LoadSchedule(path, configDir string) (*Schedule, error) {
	if !filepath.IsAbs(path) && configDir != "" {
		path = filepath.Join(configDir, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var rows []map[string]any
	var err error

	switch ext {
	case ".csv":
		rows, err = loadCSV(path)
	case ".json":
		rows, err = loadJSON(path)
	default:
		return nil, fmt.Errorf("unsupported file format %q (use .csv or .json)", ext)
	}

	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: schedule %s is empty", ErrInvalidSchedule, path)
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		e, err := parseEntry(row)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %w", ErrInvalidSchedule, path, i+1, err)
		}
		entries = append(entries, e)
	}

	return NewSchedule(filepath.Base(path), entries), nil
}

func parseEntry(row map[string]any) (Entry, error) {
	var e Entry

	switch v := row["at_ms"].(type) {
	case float64:
		e.At = time.Duration(v * float64(time.Millisecond))
	case string:
		ms, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return e, fmt.Errorf("at_ms %q is not a number", v)
		}
		e.At = time.Duration(ms * float64(time.Millisecond))
	case nil:
		return e, errors.New("missing at_ms")
	default:
		return e, fmt.Errorf("at_ms has unsupported type %T", v)
	}
	if e.At < 0 {
		return e, fmt.Errorf("at_ms must not be negative")
	}

	kind, _ := row["kind"].(string)
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindRider:
		e.Kind = KindRider
	case KindVehicle:
		e.Kind = KindVehicle
	default:
		return e, fmt.Errorf("kind must be %q or %q, got %q", KindRider, KindVehicle, kind)
	}
	return e, nil
}

// loadCSV loads a CSV file. First row is headers, subsequent rows are data.
func loadCSV(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("CSV must have header row and at least one data row")
	}

	headers := records[0]
	rows := make([]map[string]any, 0, len(records)-1)

	for _, record := range records[1:] {
		row := make(map[string]any, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[strings.TrimSpace(header)] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// loadJSON loads a JSON file. Must be an array of objects.
func loadJSON(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("JSON must be an array of objects: %w", err)
	}

	return rows, nil
}
