// Package logging provides the leveled, field-structured logger used across
// the application. Numerical packages do not log; they return errors.
package logging

import (
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"slices"
	"strings"
)

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
)

// Level represents log levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(s string) (Level, error) {
	for l := DebugLevel; l <= ErrorLevel; l++ {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// Fields represents structured logging fields
type Fields map[string]any

// Logger is the logging interface components depend on.
type Logger interface {
	Debug(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Warn(msg string, fields ...Fields)
	Error(err error, msg string, fields ...Fields)

	// WithFields returns a logger with preset fields
	WithFields(fields Fields) Logger

	SetLevel(level Level)
}

// DefaultLogger writes debug and info to one stream and warnings and errors
// to another, coloring the latter on terminals.
type DefaultLogger struct {
	stdoutLogger *log.Logger
	stderrLogger *log.Logger
	level        *Level
	fields       Fields
	useColors    bool
}

// NewDefaultLogger logs to stdout and stderr.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{
		stdoutLogger: log.New(os.Stdout, "", log.LstdFlags),
		stderrLogger: log.New(os.Stderr, "", log.LstdFlags),
		level:        levelPtr(InfoLevel),
		fields:       make(Fields),
		useColors:    isTerminal(os.Stderr),
	}
}

// NewWriterLogger sends every level to w without colors. Used when the
// terminal belongs to the UI.
func NewWriterLogger(w io.Writer) *DefaultLogger {
	l := log.New(w, "", log.LstdFlags|log.Lmicroseconds)
	return &DefaultLogger{
		stdoutLogger: l,
		stderrLogger: l,
		level:        levelPtr(InfoLevel),
		fields:       make(Fields),
	}
}

func levelPtr(l Level) *Level { return &l }

func isTerminal(f *os.File) bool {
	if fileInfo, _ := f.Stat(); fileInfo != nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func (d *DefaultLogger) formatMessage(level Level, err error, msg string, fields ...Fields) string {
	allFields := make(Fields, len(d.fields))
	maps.Copy(allFields, d.fields)
	for _, f := range fields {
		maps.Copy(allFields, f)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	if err != nil {
		fmt.Fprintf(&b, ": %v", err)
	}
	// sorted keys keep lines diffable
	for _, k := range slices.Sorted(maps.Keys(allFields)) {
		fmt.Fprintf(&b, " %s=%v", k, allFields[k])
	}
	logMsg := b.String()

	if d.useColors {
		switch level {
		case WarnLevel:
			logMsg = colorYellow + logMsg + colorReset
		case ErrorLevel:
			logMsg = colorRed + logMsg + colorReset
		}
	}
	return logMsg
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields ...Fields) {
	if level < *d.level {
		return
	}
	formatted := d.formatMessage(level, err, msg, fields...)
	if level >= WarnLevel {
		d.stderrLogger.Println(formatted)
		return
	}
	d.stdoutLogger.Println(formatted)
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.log(DebugLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.log(InfoLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.log(WarnLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields...)
}

// WithFields returns a child logger. Children share the parent's level.
func (d *DefaultLogger) WithFields(fields Fields) Logger {
	newFields := make(Fields, len(d.fields)+len(fields))
	maps.Copy(newFields, d.fields)
	maps.Copy(newFields, fields)

	return &DefaultLogger{
		stdoutLogger: d.stdoutLogger,
		stderrLogger: d.stderrLogger,
		level:        d.level,
		fields:       newFields,
		useColors:    d.useColors,
	}
}

func (d *DefaultLogger) SetLevel(level Level) {
	*d.level = level
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...Fields)        {}
func (NoOpLogger) Info(string, ...Fields)         {}
func (NoOpLogger) Warn(string, ...Fields)         {}
func (NoOpLogger) Error(error, string, ...Fields) {}
func (n NoOpLogger) WithFields(Fields) Logger     { return n }
func (NoOpLogger) SetLevel(Level)                 {}

var globalLogger Logger = NewDefaultLogger()

// SetGlobalLogger replaces the logger returned by Global. nil disables logging.
func SetGlobalLogger(logger Logger) {
	if logger == nil {
		globalLogger = NoOpLogger{}
		return
	}
	globalLogger = logger
}

// Global returns the process-wide logger.
func Global() Logger {
	return globalLogger
}
