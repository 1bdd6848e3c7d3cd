// Package logging provides the structured trace log of a simulation run.
// It wraps log/slog so that every record carries the elapsed run time and
// the identity of the actor that caused it.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"shuttle/internal/core"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ElapsedKey is the attribute holding seconds since the run started.
const ElapsedKey = "t"

// Options configures a Logger.
type Options struct {
	Format string     // "text" (default) or "json"
	Level  string     // defaults to INFO
	Clock  core.Clock // defaults to core.RealClock
	Start  time.Time  // run start; defaults to Clock.Now()
}

// Logger writes one record per state transition. It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	clock  core.Clock
	start  time.Time
	attrs  []slog.Attr

	mu   sync.Mutex // protects file
	file *os.File
}

// NewLogger creates a Logger writing to w.
func NewLogger(w io.Writer, opts Options) *Logger {
	if opts.Clock == nil {
		opts.Clock = core.RealClock{}
	}
	if opts.Start.IsZero() {
		opts.Start = opts.Clock.Now()
	}

	hopts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, FormatJSON) {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}

	return &Logger{
		logger: slog.New(handler),
		clock:  opts.Clock,
		start:  opts.Start,
	}
}

// OpenLogger creates a Logger appending to the file at path.
// An empty path logs to stdout.
func OpenLogger(path string, opts Options) (*Logger, error) {
	if path == "" {
		return NewLogger(os.Stdout, opts), nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l := NewLogger(file, opts)
	l.file = file
	return l, nil
}

// NopLogger returns a Logger that discards all output.
func NopLogger() *Logger {
	return NewLogger(io.Discard, Options{Level: LevelError})
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}

// With returns a child Logger that adds the given key-value pairs to every record.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	attrs := make([]slog.Attr, 0, len(l.attrs)+len(args)/2)
	attrs = append(attrs, l.attrs...)
	for i := 0; i < len(args)-1; i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return &Logger{
		logger: l.logger,
		clock:  l.clock,
		start:  l.start,
		attrs:  attrs,
		file:   l.file,
	}
}

// Elapsed returns the time since the run started.
func (l *Logger) Elapsed() time.Duration {
	return l.clock.Since(l.start)
}

func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	elapsed := math.Round(l.Elapsed().Seconds()*1000) / 1000
	all := make([]any, 0, 2+len(l.attrs)*2+len(args))
	all = append(all, ElapsedKey, elapsed)
	for _, attr := range l.attrs {
		all = append(all, attr.Key, attr.Value.Any())
	}
	all = append(all, args...)
	l.logger.Log(ctx, level, msg, all...)
}

// Close syncs and closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync log file: %w", err)
		}
		if err := l.file.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		l.file = nil
	}
	return nil
}
