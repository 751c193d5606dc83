package logger

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	charm "github.com/charmbracelet/log"
)

// TraceLevel sits one step below charm's DebugLevel.
const TraceLevel charm.Level = charm.DebugLevel - 1

// Re-exported charm levels so callers do not import charm directly.
const (
	DebugLevel = charm.DebugLevel
	InfoLevel  = charm.InfoLevel
	WarnLevel  = charm.WarnLevel
	ErrorLevel = charm.ErrorLevel
	// OffLevel is above every level the application emits.
	OffLevel = charm.FatalLevel + 1
)

// ErrInvalidLogLevel is returned by ParseLogLevel for unknown names.
var ErrInvalidLogLevel = errors.New("invalid log level")

// LogLevel is the configured level name.
type LogLevel string

const (
	LogLevelOff     LogLevel = "Off"
	LogLevelTrace   LogLevel = "Trace"
	LogLevelDebug   LogLevel = "Debug"
	LogLevelInfo    LogLevel = "Info"
	LogLevelWarning LogLevel = "Warning"
)

// ParseLogLevel validates a level name from flags, env or config. Empty means Info.
func ParseLogLevel(logLevel string) (LogLevel, error) {
	if logLevel == "" {
		return LogLevelInfo, nil
	}

	for _, candidate := range []LogLevel{LogLevelOff, LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarning} {
		if strings.EqualFold(logLevel, string(candidate)) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: '%s'. Supported log levels are Trace, Debug, Info, Warning, Off", ErrInvalidLogLevel, logLevel)
}

// CharmLevel maps a LogLevel to the charm level that implements it.
func (l LogLevel) CharmLevel() charm.Level {
	switch l {
	case LogLevelOff:
		return OffLevel
	case LogLevelTrace:
		return TraceLevel
	case LogLevelDebug:
		return DebugLevel
	case LogLevelWarning:
		return WarnLevel
	default:
		return InfoLevel
	}
}

// KopiLogger wraps a charm logger and adds the trace level.
type KopiLogger struct {
	*charm.Logger
}

// NewKopiLogger wraps an existing charm logger.
func NewKopiLogger(l *charm.Logger) *KopiLogger {
	l.SetStyles(kopiLogStyles())
	return &KopiLogger{Logger: l}
}

// Trace logs at TraceLevel.
func (l *KopiLogger) Trace(msg interface{}, keyvals ...interface{}) {
	l.Log(TraceLevel, msg, keyvals...)
}

// Tracef logs a formatted message at TraceLevel.
func (l *KopiLogger) Tracef(format string, args ...interface{}) {
	l.Log(TraceLevel, fmt.Sprintf(format, args...))
}

// GetLevelString returns the lowercase level name, including "trace" and "off".
func (l *KopiLogger) GetLevelString() string {
	switch level := l.GetLevel(); {
	case level <= TraceLevel:
		return "trace"
	case level >= OffLevel:
		return "off"
	default:
		return level.String()
	}
}

// Configure applies a level name and output in one step.
func (l *KopiLogger) Configure(level LogLevel, w io.Writer) {
	if w != nil {
		l.SetOutput(w)
	}
	l.SetLevel(level.CharmLevel())
}

func kopiLogStyles() *charm.Styles {
	styles := charm.DefaultStyles()
	styles.Levels[TraceLevel] = lipgloss.NewStyle().
		SetString("TRCE").
		Bold(true).
		MaxWidth(4).
		Foreground(lipgloss.Color("61"))
	styles.Keys["error"] = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	styles.Values["error"] = lipgloss.NewStyle().Bold(true)
	styles.Keys["scope"] = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	styles.Keys["backend"] = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	return styles
}
