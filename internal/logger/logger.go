// Package logger is the leveled logging facade used across wslink.
//
// It keeps the printf-style call sites (Infof, Warnf, ...) on top of a
// zerolog backend so components can attach structured fields when they need
// them.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

var (
	mu   sync.RWMutex
	base = newLogger(os.Stderr, zerolog.InfoLevel)
)

// Logger is a component-scoped logger.
type Logger struct {
	zl zerolog.Logger
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		w = zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Setup replaces the process-wide backend.
func Setup(w io.Writer, level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	base = newLogger(w, level)
}

// SetLevel changes the minimum level of the process-wide backend.
func SetLevel(level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	base = base.Level(level)
}

// ParseLevel converts a string level into zerolog.Level with a safe default.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// With returns a logger tagged with a component name.
func With(component string) Logger {
	return Logger{zl: current().With().Str("component", component).Logger()}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return Logger{zl: zerolog.Nop()}
}

// New wraps an existing zerolog logger.
func New(zl zerolog.Logger) Logger {
	return Logger{zl: zl}
}

// Str returns a copy of l with an extra string field.
func (l Logger) Str(key, value string) Logger {
	return Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// Int64 returns a copy of l with an extra integer field.
func (l Logger) Int64(key string, value int64) Logger {
	return Logger{zl: l.zl.With().Int64(key, value).Logger()}
}

// Zerolog exposes the backend for callers that want event builders.
func (l Logger) Zerolog() *zerolog.Logger { return &l.zl }

func (l Logger) Debugf(format string, args ...any) { l.zl.Debug().Msg(fmt.Sprintf(format, args...)) }
func (l Logger) Infof(format string, args ...any)  { l.zl.Info().Msg(fmt.Sprintf(format, args...)) }
func (l Logger) Warnf(format string, args ...any)  { l.zl.Warn().Msg(fmt.Sprintf(format, args...)) }
func (l Logger) Errorf(format string, args ...any) { l.zl.Error().Msg(fmt.Sprintf(format, args...)) }

// Package-level helpers log through the process-wide backend.

func Debugf(format string, args ...any) { With("wslink").Debugf(format, args...) }
func Infof(format string, args ...any)  { With("wslink").Infof(format, args...) }
func Warnf(format string, args ...any)  { With("wslink").Warnf(format, args...) }
func Errorf(format string, args ...any) { With("wslink").Errorf(format, args...) }
