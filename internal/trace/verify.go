// Package trace re-reads a JSON transition log and checks the boarding
// protocol's ordering invariants after the fact.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"shuttle/internal/stop"
)

// ErrMalformed is returned for a log line that is not a JSON object.
var ErrMalformed = errors.New("malformed log line")

const maxLineSize = 1 << 20

// Violation is one broken invariant, located by its 1-based line number.
type Violation struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("line %d: %s", v.Line, v.Message)
}

// Report summarizes a verified log.
type Report struct {
	Lines      int         `json:"lines"`
	Arrivals   int         `json:"arrivals"`
	Boardings  int         `json:"boardings"`
	Visits     int         `json:"visits"`
	Empty      int         `json:"emptyVisits"`
	Violations []Violation `json:"violations"`
}

// OK reports whether no invariant was violated.
func (r *Report) OK() bool {
	return len(r.Violations) == 0
}

// Options configures Verify.
type Options struct {
	// Capacity bounds every batch when positive.
	Capacity int
}

type openVisit struct {
	vehicle int
	line    int
	batch   int
	boarded int
}

type verifier struct {
	opts    Options
	report  *Report
	open    *openVisit
	arrived map[int]bool
	boarded map[int]int // rider -> vehicle
}

// Verify reads JSON log lines from r. Lines whose message is not a stop
// transition are skipped. A line that is not JSON aborts with ErrMalformed.
func Verify(r io.Reader, opts Options) (*Report, error) {
	v := &verifier{
		opts:    opts,
		report:  &Report{Violations: []Violation{}},
		arrived: make(map[int]bool),
		boarded: make(map[int]int),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if !gjson.Valid(text) || !gjson.Parse(text).IsObject() {
			return v.report, fmt.Errorf("%w: line %d", ErrMalformed, line)
		}
		v.report.Lines++
		v.check(line, gjson.Parse(text))
	}
	if err := scanner.Err(); err != nil {
		return v.report, fmt.Errorf("reading log: %w", err)
	}

	if v.open != nil {
		v.violate(line, "vehicle %d arrived at line %d and never departed", v.open.vehicle, v.open.line)
	}
	return v.report, nil
}

func (v *verifier) violate(line int, format string, args ...any) {
	v.report.Violations = append(v.report.Violations, Violation{Line: line, Message: fmt.Sprintf(format, args...)})
}

func (v *verifier) check(line int, rec gjson.Result) {
	if w := rec.Get("waiting"); w.Exists() && w.Int() < 0 {
		v.violate(line, "negative waiting count %d", w.Int())
	}

	switch rec.Get("msg").String() {
	case stop.MsgRiderArrives:
		v.riderArrives(line, rec)
	case stop.MsgRiderBoards:
		v.riderBoards(line, rec)
	case stop.MsgVehicleArrives:
		v.vehicleArrives(line, rec)
	case stop.MsgVehicleDeparts:
		v.vehicleDeparts(line, rec)
	}
}

func (v *verifier) riderArrives(line int, rec gjson.Result) {
	id, ok := v.actorID(line, rec, "rider-")
	if !ok {
		return
	}
	v.report.Arrivals++
	if v.arrived[id] {
		v.violate(line, "rider %d arrived twice", id)
	}
	v.arrived[id] = true
}

func (v *verifier) riderBoards(line int, rec gjson.Result) {
	id, ok := v.actorID(line, rec, "rider-")
	if !ok {
		return
	}
	v.report.Boardings++
	vehicle := int(rec.Get("vehicle").Int())

	if !v.arrived[id] {
		v.violate(line, "rider %d boarded without arriving", id)
	}
	if prev, twice := v.boarded[id]; twice {
		v.violate(line, "rider %d boarded twice (vehicles %d and %d)", id, prev, vehicle)
	}
	v.boarded[id] = vehicle

	if v.open == nil || v.open.vehicle != vehicle {
		v.violate(line, "rider %d boarded vehicle %d outside its visit", id, vehicle)
		return
	}
	v.open.boarded++
	if v.open.boarded > v.open.batch {
		v.violate(line, "vehicle %d boarded %d riders with a batch of %d", vehicle, v.open.boarded, v.open.batch)
	}
}

func (v *verifier) vehicleArrives(line int, rec gjson.Result) {
	id, ok := v.actorID(line, rec, "vehicle-")
	if !ok {
		return
	}
	v.report.Visits++
	snapshot := int(rec.Get("snapshot").Int())
	batch := int(rec.Get("batch").Int())

	if v.open != nil {
		v.violate(line, "vehicle %d arrived while vehicle %d (line %d) was still loading", id, v.open.vehicle, v.open.line)
	}
	if batch > snapshot {
		v.violate(line, "vehicle %d batch %d exceeds snapshot %d", id, batch, snapshot)
	}
	if v.opts.Capacity > 0 && batch > v.opts.Capacity {
		v.violate(line, "vehicle %d batch %d exceeds capacity %d", id, batch, v.opts.Capacity)
	}
	if batch == 0 {
		v.report.Empty++
	}
	v.open = &openVisit{vehicle: id, line: line, batch: batch}
}

func (v *verifier) vehicleDeparts(line int, rec gjson.Result) {
	id, ok := v.actorID(line, rec, "vehicle-")
	if !ok {
		return
	}
	boarded := int(rec.Get("boarded").Int())

	if v.open == nil || v.open.vehicle != id {
		v.violate(line, "vehicle %d departed without an open visit", id)
		v.open = nil
		return
	}
	if boarded != v.open.boarded {
		v.violate(line, "vehicle %d reports %d boarded, log shows %d", id, boarded, v.open.boarded)
	}
	if boarded > v.open.batch {
		v.violate(line, "vehicle %d boarded %d with a batch of %d", id, boarded, v.open.batch)
	}
	v.open = nil
}

func (v *verifier) actorID(line int, rec gjson.Result, prefix string) (int, bool) {
	actor := rec.Get("actor").String()
	rest, ok := strings.CutPrefix(actor, prefix)
	if ok {
		if id, err := strconv.Atoi(rest); err == nil {
			return id, true
		}
	}
	v.violate(line, "unexpected actor %q for %q", actor, rec.Get("msg").String())
	return 0, false
}
