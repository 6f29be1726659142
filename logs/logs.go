// Package logs configures the process wide structured logger and hands out
// loggers tagged with the subsystem that writes to them.
package logs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Subsystem tags attached to every record.
const (
	SubsystemGraphics  = "graphics"
	SubsystemResources = "resources"
	SubsystemUtilities = "utilities"
)

// Setup installs a text handler writing to w as the default logger. Verbose
// forces debug level; otherwise the level depends on the build.
func Setup(w io.Writer, verbose bool) {
	level := defaultLevel
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// Open returns the destination for logs. An empty path means stderr, which is
// never closed by the returned closer.
func Open(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stderr}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// Graphics returns the logger for rendering and windowing messages.
func Graphics() *slog.Logger {
	return slog.Default().With("subsystem", SubsystemGraphics)
}

// Resources returns the logger for creation and destruction of GPU objects.
func Resources() *slog.Logger {
	return slog.Default().With("subsystem", SubsystemResources)
}

// Utilities returns the logger for configuration and other helpers.
func Utilities() *slog.Logger {
	return slog.Default().With("subsystem", SubsystemUtilities)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
