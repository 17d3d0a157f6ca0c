package main

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"airspace-sim/internal/logging"
)

// runID returns RUN_ID or a fresh random identifier.
func runID() string {
	if id := os.Getenv("RUN_ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// tickInterval lets TICK_INTERVAL override the flag value.
func tickInterval(flag time.Duration) (time.Duration, error) {
	env := os.Getenv("TICK_INTERVAL")
	if env == "" {
		return flag, nil
	}
	return time.ParseDuration(env)
}

// appLogger builds the application logger. A non-empty path selects a
// rotating JSON file; otherwise quiet discards output, which keeps the
// terminal free for the TUI.
func appLogger(path string, quiet bool) (*slog.Logger, io.Closer) {
	if path != "" {
		return logging.NewFile(logging.FileOptions{Path: path, Level: appLogLevel, MaxBackups: 3, Compress: true})
	}
	if quiet {
		return logging.NewWriter(io.Discard, appLogLevel), nopCloser{}
	}
	return logging.NewWriter(os.Stderr, appLogLevel), nopCloser{}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
