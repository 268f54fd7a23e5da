// Package log sets up the slog default logger used by the command line.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
	logFile     io.Closer
)

// Setup installs a text handler on stderr, or on logPath when it is not
// empty. Only the first call has an effect.
func Setup(logPath string, debug bool) error {
	var err error
	initOnce.Do(func() {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}

		out := io.Writer(os.Stderr)
		if logPath != "" {
			f, ferr := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
			if ferr != nil {
				err = fmt.Errorf("open log file: %w", ferr)
			} else {
				out = f
				logFile = f
			}
		}

		handler := slog.NewTextHandler(out, &slog.HandlerOptions{
			Level:     level,
			AddSource: debug,
		})
		slog.SetDefault(slog.New(handler))
		initialized.Store(true)
	})
	return err
}

// Initialized reports whether Setup has run.
func Initialized() bool {
	return initialized.Load()
}

// Close closes the log file opened by Setup, if any.
func Close() error {
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}

// RecoverPanic logs a panic in the named goroutine and runs cleanup. It must
// be deferred directly.
func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		if Initialized() {
			slog.Error(fmt.Sprintf("Panic in %s", name),
				"panic", r,
				"stack", string(debug.Stack()))
		} else {
			fmt.Fprintf(os.Stderr, "panic in %s: %v\n%s", name, r, debug.Stack())
		}
		if cleanup != nil {
			cleanup()
		}
	}
}
