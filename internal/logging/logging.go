// Package logging is a thin leveled wrapper over the standard library's log
// package. No repo in the example pack imports a structured logging
// library, so this stays on stdlib log rather than reaching for one,
// matching the teacher's own plain-Printf-style diagnostics.
package logging

import (
	"log"
	"os"
)

type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger prefixes every line with a component tag and filters by level.
type Logger struct {
	component string
	level     Level
	out       *log.Logger
}

func New(component string, level Level) *Logger {
	return &Logger{
		component: component,
		level:     level,
		out:       log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) log(level Level, format string, args []interface{}) {
	if l == nil || level < l.level {
		return
	}
	prefix := "[" + level.String() + "] " + l.component + ": "
	l.out.Printf(prefix+format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, format, args) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(LevelInfo, format, args) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(LevelWarn, format, args) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, format, args) }

// With returns a child Logger tagging lines with a narrower component name,
// e.g. log.With("dispatcher") inside a package that otherwise logs as
// its parent component.
func (l *Logger) With(component string) *Logger {
	return &Logger{component: l.component + "." + component, level: l.level, out: l.out}
}
