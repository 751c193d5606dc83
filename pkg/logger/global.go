package logger

import (
	"os"
	"sync/atomic"

	charm "github.com/charmbracelet/log"
)

var defaultLogger atomic.Value

func init() {
	defaultLogger.Store(NewKopiLogger(charm.Default()))
}

// Default returns the process-wide logger.
func Default() *KopiLogger {
	return defaultLogger.Load().(*KopiLogger)
}

// SetDefault replaces the process-wide logger. Nil is ignored.
func SetDefault(logger *KopiLogger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}

// New creates a logger writing to stderr.
func New() *KopiLogger {
	return NewKopiLogger(charm.New(os.Stderr))
}

// Trace logs through the default logger at TraceLevel.
func Trace(msg interface{}, keyvals ...interface{}) {
	Default().Trace(msg, keyvals...)
}

// Tracef logs a formatted trace message through the default logger.
func Tracef(format string, args ...interface{}) {
	Default().Tracef(format, args...)
}

// Debug logs through the default logger.
func Debug(msg interface{}, keyvals ...interface{}) {
	Default().Debug(msg, keyvals...)
}

// Info logs through the default logger.
func Info(msg interface{}, keyvals ...interface{}) {
	Default().Info(msg, keyvals...)
}

// Warn logs through the default logger.
func Warn(msg interface{}, keyvals ...interface{}) {
	Default().Warn(msg, keyvals...)
}

// Error logs through the default logger.
func Error(msg interface{}, keyvals ...interface{}) {
	Default().Error(msg, keyvals...)
}
