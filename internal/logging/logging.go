// Package logging wraps the standard library's log.Logger with the
// severity-prefixed style intra-sh-icap's server.go uses directly
// (log.Print/log.Println at call sites, no structured fields) — no
// structured-logging library (logrus/zap/zerolog) appears anywhere across
// the retrieved reference pack, so this daemon's ambient logging stays on
// stdlib log rather than introducing an unseen dependency. See DESIGN.md.
package logging

import (
	"io"
	"log"
	"os"
)

// Level orders the severities this package recognizes.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

func (l Level) prefix() string {
	switch l {
	case LevelDebug:
		return "DEBUG "
	case LevelError:
		return "ERROR "
	default:
		return "INFO "
	}
}

// Logger is a severity-filtered wrapper over *log.Logger: every line
// carries the level and the category, the way the original syslog-style
// logger tagged every line with its category.
type Logger struct {
	std      *log.Logger
	minLevel Level
	category string
}

// New builds a Logger writing to w (os.Stderr if w is nil), tagging every
// line with category (the configured log_category) and suppressing
// anything below minLevel.
func New(w io.Writer, category string, minLevel Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		std:      log.New(w, "", log.LstdFlags),
		minLevel: minLevel,
		category: category,
	}
}

// Debugf logs at LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) { l.logf(LevelDebug, format, args...) }

// Infof logs at LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) { l.logf(LevelInfo, format, args...) }

// Errorf logs at LevelError.
func (l *Logger) Errorf(format string, args ...interface{}) { l.logf(LevelError, format, args...) }

func (l *Logger) logf(level Level, format string, args ...interface{}) {
	if level < l.minLevel {
		return
	}
	l.std.Printf("%s[%s] "+format, append([]interface{}{level.prefix(), l.category}, args...)...)
}

// StdLogger returns a *log.Logger adapter at LevelInfo, for handing to
// callers (like worker.Config.Logger) that only know about the standard
// library's Logger type.
func (l *Logger) StdLogger() *log.Logger {
	return log.New(loggerWriter{l}, "", 0)
}

type loggerWriter struct{ l *Logger }

func (w loggerWriter) Write(p []byte) (int, error) {
	w.l.Infof("%s", trimNewline(p))
	return len(p), nil
}

func trimNewline(p []byte) string {
	for len(p) > 0 && (p[len(p)-1] == '\n' || p[len(p)-1] == '\r') {
		p = p[:len(p)-1]
	}
	return string(p)
}
