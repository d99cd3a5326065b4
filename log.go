package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

func getLogFilePath() (string, error) {
	path, err := gap.NewScope(gap.User, "reminder").LogPath("reminder.log")
	if err != nil {
		return "", fmt.Errorf("could not find log path: %w", err)
	}
	return path, nil
}

// setupLog sends logs to a file, since the TUI owns the terminal. Logging
// is off unless REMINDER_DEBUG is set.
func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)

	if os.Getenv("REMINDER_DEBUG") == "" {
		return func() error { return nil }, nil
	}

	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}
	log.SetOutput(f)
	log.SetLevel(log.DebugLevel)
	log.SetReportTimestamp(true)
	return f.Close, nil
}
