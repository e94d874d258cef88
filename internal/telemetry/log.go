// Package telemetry provides the small leveled-logging wrapper used across
// the coordinator. It deliberately stays on top of the standard log.Logger
// rather than pulling in a structured-logging library: every call site here
// just needs level gating and a consistent prefix.
package telemetry

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

// Level is a logging verbosity threshold.
type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// Logger wraps a standard library *log.Logger with a level gate. Zero value
// is usable and logs at LevelInfo to os.Stderr.
type Logger struct {
	std   *log.Logger
	level atomic.Int32
}

// New creates a Logger with the given prefix, writing to os.Stderr.
func New(prefix string) *Logger {
	l := &Logger{std: log.New(os.Stderr, prefix, log.LstdFlags|log.Lmicroseconds)}
	l.level.Store(int32(LevelInfo))
	return l
}

// SetLevel changes the verbosity threshold.
func (l *Logger) SetLevel(lvl Level) {
	l.level.Store(int32(lvl))
}

func (l *Logger) enabled(lvl Level) bool {
	return lvl <= Level(l.level.Load())
}

func (l *Logger) logf(lvl Level, format string, args ...any) {
	if l == nil || l.std == nil {
		return
	}
	if !l.enabled(lvl) {
		return
	}
	l.std.Printf("[%s] "+format, append([]any{lvl.String()}, args...)...)
}

func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }

// Default is the process-wide logger used by packages that don't have one
// injected (mirrors the teacher's bare log.Printf call sites).
var Default = New("chronon ")
