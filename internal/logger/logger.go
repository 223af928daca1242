// Package logger provides process-wide logging for Stash.
// Messages go through log/slog. Debug output is only emitted in verbose
// mode; Setup can additionally mirror every record as JSON into a file.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

var (
	mu      sync.RWMutex
	verbose bool
	level   = new(slog.LevelVar)
	output  io.Writer = os.Stderr
	file    io.Writer
	current = newLogger(os.Stderr, nil)
)

func newLogger(w, jsonFile io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	text := slog.NewTextHandler(w, opts)
	if jsonFile == nil {
		return slog.New(text)
	}
	return slog.New(slogmulti.Fanout(text, slog.NewJSONHandler(jsonFile, opts)))
}

func rebuild() {
	current = newLogger(output, file)
}

// ParseLevel maps a config level name to a slog level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup sets the minimum level and, when logFile is non-empty, fans records
// out to a JSON file next to the text output. The returned func closes the file.
func Setup(levelName, logFile string) (func() error, error) {
	mu.Lock()
	defer mu.Unlock()

	if !verbose {
		level.Set(ParseLevel(levelName))
	}
	if logFile == "" {
		file = nil
		rebuild()
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		rebuild()
		return func() error { return nil }, fmt.Errorf("open log file: %w", err)
	}
	file = f
	rebuild()
	return func() error {
		mu.Lock()
		file = nil
		rebuild()
		mu.Unlock()
		return f.Close()
	}, nil
}

// SetVerbose enables or disables debug output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	if v {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the writer for text logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// L returns the current structured logger.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func logf(lvl slog.Level, format string, args ...any) {
	l := L()
	if !l.Enabled(context.Background(), lvl) {
		return
	}
	l.Log(context.Background(), lvl, fmt.Sprintf(format, args...))
}

// Debug logs a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf(slog.LevelDebug, format, args...)
}

// Section logs a section header if verbose mode is enabled.
func Section(name string) {
	L().Debug("=== " + name + " ===")
}

// Info logs an informational message.
func Info(format string, args ...any) {
	logf(slog.LevelInfo, format, args...)
}

// Warn logs a warning.
func Warn(format string, args ...any) {
	logf(slog.LevelWarn, format, args...)
}

// Error logs an error.
func Error(format string, args ...any) {
	logf(slog.LevelError, format, args...)
}
