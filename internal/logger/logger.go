// Package logger is the process-wide structured logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	level slog.LevelVar
	mu    sync.RWMutex
	base  = newLogger(os.Stderr, "text")
)

func newLogger(w io.Writer, format string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: &level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Configure swaps the output and handler format ("text" or "json").
func Configure(w io.Writer, format string) {
	mu.Lock()
	base = newLogger(w, format)
	mu.Unlock()
}

func SetOutput(w io.Writer) { Configure(w, "text") }

// SetLevel accepts debug, info, warn or error. Anything else means info.
func SetLevel(s string) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

func Level() slog.Level { return level.Level() }

func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Debugf(format string, v ...any) { L().Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { L().Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { L().Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { L().Error(fmt.Sprintf(format, v...)) }
