// Package logging provides the structured logger used across atomik.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	charm "github.com/charmbracelet/log"
)

// Level represents the severity level of a log message.
type Level int

const (
	// LevelDebug is for detailed debugging information.
	LevelDebug Level = iota
	// LevelInfo is for general informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) charm() charm.Level {
	switch l {
	case LevelDebug:
		return charm.DebugLevel
	case LevelWarn:
		return charm.WarnLevel
	case LevelError:
		return charm.ErrorLevel
	default:
		return charm.InfoLevel
	}
}

// ParseLevel parses a string into a Level. Unknown values give LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Config configures a Logger.
type Config struct {
	// Level is the minimum log level to output.
	Level Level
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Prefix is prepended to all log messages.
	Prefix string
	// Timestamps adds a timestamp to every line.
	Timestamps bool
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Output:     os.Stderr,
		Prefix:     "atomik",
		Timestamps: true,
	}
}

// Logger is a leveled logger with persistent key/value fields.
// Messages are printf-style format strings.
type Logger struct {
	l *charm.Logger
}

// New creates a logger from cfg.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	l := charm.NewWithOptions(cfg.Output, charm.Options{
		Level:           cfg.Level.charm(),
		Prefix:          cfg.Prefix,
		ReportTimestamp: cfg.Timestamps,
		TimeFormat:      "2006-01-02T15:04:05.000",
	})
	return &Logger{l: l}
}

// Nop returns a logger that discards all output.
func Nop() *Logger {
	return New(Config{Level: LevelError, Output: io.Discard})
}

// WithField returns a new logger with the given field added.
func (lg *Logger) WithField(key string, value any) *Logger {
	return &Logger{l: lg.l.With(key, value)}
}

// WithFields returns a new logger with the given fields added.
func (lg *Logger) WithFields(fields map[string]any) *Logger {
	kv := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &Logger{l: lg.l.With(kv...)}
}

// WithComponent returns a new logger with the component field set.
func (lg *Logger) WithComponent(component string) *Logger {
	return lg.WithField("component", component)
}

// SetLevel sets the minimum log level.
func (lg *Logger) SetLevel(level Level) {
	lg.l.SetLevel(level.charm())
}

// Debug logs a debug message.
func (lg *Logger) Debug(msg string, args ...any) {
	lg.l.Debug(format(msg, args))
}

// Info logs an info message.
func (lg *Logger) Info(msg string, args ...any) {
	lg.l.Info(format(msg, args))
}

// Warn logs a warning message.
func (lg *Logger) Warn(msg string, args ...any) {
	lg.l.Warn(format(msg, args))
}

// Error logs an error message.
func (lg *Logger) Error(msg string, args ...any) {
	lg.l.Error(format(msg, args))
}

func format(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
