// Package progress prints a once-per-second status line while a run is going.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"shuttle/internal/core"
)

// DefaultInterval is how often the status line is refreshed.
const DefaultInterval = time.Second

// Status is what the line shows.
type Status struct {
	Riders   int // spawned so far
	Boarded  int
	Waiting  int
	Vehicles int // spawned so far
}

// StatusFunc samples the running simulation. It must be safe to call from
// another goroutine.
type StatusFunc func() Status

type Progress struct {
	startTime time.Time
	status    StatusFunc
	clock     core.Clock
	interval  time.Duration
	ticker    *time.Ticker
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopped   atomic.Bool
	quiet     bool
	output    io.Writer
	mu        sync.Mutex
}

func NewProgress(status StatusFunc, quiet bool) *Progress {
	return &Progress{
		status:   status,
		clock:    core.RealClock{},
		interval: DefaultInterval,
		quiet:    quiet,
		output:   os.Stderr,
	}
}

func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = w
}

// SetInterval changes the refresh period. Call before Start.
func (p *Progress) SetInterval(d time.Duration) {
	p.interval = d
}

// SetClock changes the clock used for the elapsed time. Call before Start.
func (p *Progress) SetClock(c core.Clock) {
	p.clock = c
}

func (p *Progress) Start() {
	if p.quiet {
		return
	}
	p.startTime = p.clock.Now()
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.ticker = time.NewTicker(p.interval)
	go p.run()
}

func (p *Progress) run() {
	defer close(p.doneCh)
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.ticker.C:
			p.printProgress()
		}
	}
}

// Line renders the status line for s at the given elapsed time.
func Line(elapsed time.Duration, s Status) string {
	elapsed = elapsed.Round(time.Second)
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60
	return fmt.Sprintf("[%02d:%02d] Riders: %d | Boarded: %d | Waiting: %d | Vehicles: %d",
		mins, secs, s.Riders, s.Boarded, s.Waiting, s.Vehicles)
}

func (p *Progress) printProgress() {
	line := Line(p.clock.Since(p.startTime), p.status())
	p.mu.Lock()
	fmt.Fprintf(p.output, "\r\033[K%s", line)
	p.mu.Unlock()
}

// Stop ends the refresh loop and clears the line. It is safe to call twice.
func (p *Progress) Stop() {
	if p.quiet || p.stopped.Swap(true) {
		return
	}
	if p.ticker != nil {
		p.ticker.Stop()
	}
	if p.stopCh != nil {
		close(p.stopCh)
		<-p.doneCh
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\r\033[K")
	p.mu.Unlock()
}

func (p *Progress) Printf(format string, args ...any) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\r\033[K"+format+"\n", args...)
	p.mu.Unlock()
}
