// Package log sets up the process-wide zerolog logger: RFC3339
// timestamps and a human-readable console writer for local runs.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup installs the RFC3339 time format and a ConsoleWriter over w
// (os.Stderr in production; a buffer in tests) and returns the
// resulting logger at the given level.
func Setup(w io.Writer, level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

// New is Setup(os.Stderr, level), the entrypoint cmd/momentumcore uses.
func New(level zerolog.Level) zerolog.Logger {
	return Setup(os.Stderr, level)
}

// ParseLevel wraps zerolog.ParseLevel, defaulting to InfoLevel on an
// empty or unrecognized string rather than erroring — a log-level flag
// typo should not stop the engine from starting.
func ParseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
