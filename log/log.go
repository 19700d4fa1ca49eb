// Package log is a small leveled logger over log/slog. Output goes to
// stderr by default; the console redirects it to a file so it does not
// mix with the TUI.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level constants matching slog levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var (
	level  atomic.Int64
	mu     sync.RWMutex
	logger *slog.Logger
)

func init() {
	level.Store(int64(LevelInfo))
	SetOutput(os.Stderr)
}

// SetOutput directs log records to w.
func SetOutput(w io.Writer) {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug, // filtering happens in this package
	})
	mu.Lock()
	logger = slog.New(h)
	mu.Unlock()
}

// SetLevel sets the global log level.
func SetLevel(l slog.Level) {
	level.Store(int64(l))
}

// GetLevel returns the current log level.
func GetLevel() slog.Level {
	return slog.Level(level.Load())
}

// ParseLevel maps "debug", "info", "warn" and "error" to a level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Debug logs a debug message if the level allows it.
func Debug(format string, args ...any) {
	emit(LevelDebug, format, args)
}

// Info logs an info message if the level allows it.
func Info(format string, args ...any) {
	emit(LevelInfo, format, args)
}

// Warn logs a warning message if the level allows it.
func Warn(format string, args ...any) {
	emit(LevelWarn, format, args)
}

// Error logs an error message (always emitted).
func Error(format string, args ...any) {
	emit(LevelError, format, args)
}

func emit(l slog.Level, format string, args []any) {
	if l < LevelError && l < GetLevel() {
		return
	}
	mu.RLock()
	lg := logger
	mu.RUnlock()
	lg.Log(context.Background(), l, fmt.Sprintf(format, args...))
}
