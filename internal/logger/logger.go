// Package logger sets up the process-wide structured logger.
// Level and format come from PETGEOM_LOG_LEVEL and PETGEOM_LOG_FORMAT.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
)

// Setup initialises the default logger writing to stderr
func Setup() *slog.Logger {
	return SetupWriter(os.Stderr)
}

// SetupWriter initialises the default logger writing to w
func SetupWriter(w io.Writer) *slog.Logger {
	lvl := ParseLevel(os.Getenv("PETGEOM_LOG_LEVEL"))

	var h slog.Handler
	if strings.ToLower(os.Getenv("PETGEOM_LOG_FORMAT")) == "json" {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	} else {
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	}

	mu.Lock()
	defaultLogger = slog.New(h)
	mu.Unlock()
	return defaultLogger
}

// ParseLevel maps debug/warn/error to a level; anything else is info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// L returns the default logger, setting it up on first use
func L() *slog.Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		return Setup()
	}
	return l
}

// Component returns the default logger tagged with a component name
func Component(name string) *slog.Logger {
	return L().With("component", name)
}
