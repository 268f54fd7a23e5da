// Package logging builds the charmbracelet/log logger used for analysis
// traces. Level, prefix and file output come from STACKSCOPE_* variables.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

const (
	envLevel  = "STACKSCOPE_LOG_LEVEL"
	envPrefix = "STACKSCOPE_LOG_PREFIX"
	envToFile = "STACKSCOPE_LOG_TO_FILE"
)

// LoggerCloser is a logger together with the file it may write to.
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the log file, if there is one.
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// Level maps a STACKSCOPE_LOG_LEVEL value to a log level. Unknown values
// mean info.
func Level(s string) log.Level {
	switch s {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	}
	return log.InfoLevel
}

// NewLoggerWithWriter creates a logger writing to w.
func NewLoggerWithWriter(w io.Writer) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Level:           Level(os.Getenv(envLevel)),
	})

	prefix := os.Getenv(envPrefix)
	if prefix == "" {
		prefix = "stackscope "
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != os.Stderr {
		closer = c
	}
	return &LoggerCloser{Logger: lg.WithPrefix(prefix), closer: closer}
}

// NewLogger creates a logger on stderr, or on stackscope-<time>-debug.log
// in the working directory when STACKSCOPE_LOG_TO_FILE=1.
func NewLogger() *LoggerCloser {
	output := io.Writer(os.Stderr)
	if os.Getenv(envToFile) == "1" {
		name := fmt.Sprintf("stackscope-%s-debug.log", time.Now().Format("20060102-150405"))
		// stderr if the file cannot be created
		if f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644); err == nil {
			output = f
		}
	}
	return NewLoggerWithWriter(output)
}

// IsDebug reports whether STACKSCOPE_LOG_LEVEL asks for debug output.
func IsDebug() bool {
	return os.Getenv(envLevel) == "debug"
}
