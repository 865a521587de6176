package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Logger defines a minimal, printf-style logging contract.
//
// Components depend on this interface instead of a concrete logger so tests
// can swap in Nop() without touching global state.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func parseLevel(raw string) Level {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

var (
	baseOnce sync.Once
	baseOut  *log.Logger
	baseLvl  Level
)

func base() (*log.Logger, Level) {
	baseOnce.Do(func() {
		baseOut = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
		baseLvl = parseLevel(os.Getenv("HYPERFOCUS_LOG_LEVEL"))
	})
	return baseOut, baseLvl
}

type componentLogger struct {
	out       *log.Logger
	level     Level
	component string
}

// NewComponentLogger creates a logger scoped to a component. Output goes to
// stderr; the minimum level is taken from HYPERFOCUS_LOG_LEVEL.
func NewComponentLogger(component string) Logger {
	out, lvl := base()
	return &componentLogger{out: out, level: lvl, component: component}
}

// NewWriterLogger creates a component logger writing to w at the given
// level. Used by tests and by the server when log output is redirected.
func NewWriterLogger(w io.Writer, level Level, component string) Logger {
	return &componentLogger{
		out:       log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		level:     level,
		component: component,
	}
}

func (l *componentLogger) emit(level Level, tag, format string, args ...any) {
	if level < l.level {
		return
	}
	l.out.Printf("[%s] [%s] %s", tag, l.component, fmt.Sprintf(format, args...))
}

func (l *componentLogger) Debug(format string, args ...any) {
	l.emit(LevelDebug, "DEBUG", format, args...)
}

func (l *componentLogger) Info(format string, args ...any) {
	l.emit(LevelInfo, "INFO", format, args...)
}

func (l *componentLogger) Warn(format string, args ...any) {
	l.emit(LevelWarn, "WARN", format, args...)
}

func (l *componentLogger) Error(format string, args ...any) {
	l.emit(LevelError, "ERROR", format, args...)
}
