// Package logging wraps the standard logger with the bracketed level
// prefixes used across the adapters and a minimum-level filter.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level is a log severity.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

// ParseLevel accepts DEBUG, INFO, WARN/WARNING and ERROR, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is a leveled front for *log.Logger.
type Logger struct {
	min atomic.Int32
	out *log.Logger
}

// New creates a logger writing to w.
func New(w io.Writer, min Level) *Logger {
	l := &Logger{out: log.New(w, "", log.LstdFlags)}
	l.min.Store(int32(min))
	return l
}

var std = New(os.Stderr, LevelInfo)

// SetLevel changes the minimum level of the process logger.
func SetLevel(l Level) { std.min.Store(int32(l)) }

// SetOutput redirects the process logger.
func SetOutput(w io.Writer) { std.out.SetOutput(w) }

func (l *Logger) logf(level Level, format string, args ...any) {
	if level < Level(l.min.Load()) {
		return
	}
	l.out.Printf("["+level.String()+"] "+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

// Package-level shortcuts on the process logger.
func Debugf(format string, args ...any) { std.Debugf(format, args...) }
func Infof(format string, args ...any)  { std.Infof(format, args...) }
func Warnf(format string, args ...any)  { std.Warnf(format, args...) }
func Errorf(format string, args ...any) { std.Errorf(format, args...) }
