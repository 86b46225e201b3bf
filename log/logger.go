package log

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/kataras/golog"
)

// LogLevel is a logging severity. Messages below the configured level are
// dropped; LogLevelNone drops everything.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelNone
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "NONE"}

func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("UNKNOWN(%d)", l)
}

// ParseLevel maps a configuration string such as "debug" or "WARN" to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	case "none", "off", "disable":
		return LogLevelNone, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is the leveled, printf-style logger used across the service.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (*NoOpLogger) Debug(string, ...any) {}
func (*NoOpLogger) Info(string, ...any)  {}
func (*NoOpLogger) Warn(string, ...any)  {}
func (*NoOpLogger) Error(string, ...any) {}

type holder struct{ Logger }

var defaultLogger atomic.Pointer[holder]

func init() {
	defaultLogger.Store(&holder{NewGologLogger(golog.Default)})
}

// SetDefaultLogger replaces the package-level logger.
func SetDefaultLogger(logger Logger) {
	defaultLogger.Store(&holder{logger})
}

// GetDefaultLogger returns the package-level logger.
func GetDefaultLogger() Logger {
	return defaultLogger.Load().Logger
}

// SetLogLevel adjusts the package-level logger when it supports levels,
// otherwise it replaces it with a golog logger at that level.
func SetLogLevel(level LogLevel) {
	if l, ok := GetDefaultLogger().(interface{ SetLevel(LogLevel) }); ok {
		l.SetLevel(level)
		return
	}
	gl := NewGologLogger(golog.Default)
	gl.SetLevel(level)
	SetDefaultLogger(gl)
}

func Debug(format string, v ...any) { GetDefaultLogger().Debug(format, v...) }
func Info(format string, v ...any)  { GetDefaultLogger().Info(format, v...) }
func Warn(format string, v ...any)  { GetDefaultLogger().Warn(format, v...) }
func Error(format string, v ...any) { GetDefaultLogger().Error(format, v...) }

// named prefixes messages with a component name and resolves the
// package-level logger on every call, so later SetDefaultLogger and
// SetLogLevel calls apply.
type named struct{ prefix string }

// Named returns a Logger that tags messages with component, for example
// "[http] GET /health 200".
func Named(component string) Logger {
	return named{prefix: "[" + component + "] "}
}

func (n named) Debug(format string, v ...any) { GetDefaultLogger().Debug(n.prefix+format, v...) }
func (n named) Info(format string, v ...any)  { GetDefaultLogger().Info(n.prefix+format, v...) }
func (n named) Warn(format string, v ...any)  { GetDefaultLogger().Warn(n.prefix+format, v...) }
func (n named) Error(format string, v ...any) { GetDefaultLogger().Error(n.prefix+format, v...) }
