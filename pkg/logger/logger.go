package logger

import (
	"io"
	"os"

	"github.com/op/go-logging"
)

const module = "lottery"

var format = logging.MustStringFormatter(
	`%{time:2006/01/02 15:04:05.000} %{level:.4s} %{shortfile} %{message}`,
)

type Logger interface {
	Debugf(msg string, a ...any)
	Infof(msg string, a ...any)
	Warnf(msg string, a ...any)
	Errorf(msg string, a ...any)
}

type defaultLogger struct {
	inner *logging.Logger
}

// NewLogger writes to stderr. Unknown levels fall back to INFO.
func NewLogger(level string) *defaultLogger {
	return NewLoggerWithWriter(os.Stderr, level)
}

func NewLoggerWithWriter(w io.Writer, level string) *defaultLogger {
	backend := logging.NewBackendFormatter(logging.NewLogBackend(w, "", 0), format)
	leveled := logging.AddModuleLevel(backend)

	lvl, err := logging.LogLevel(level)
	if err != nil {
		lvl = logging.INFO
	}
	leveled.SetLevel(lvl, module)

	inner := logging.MustGetLogger(module)
	inner.SetBackend(leveled)
	inner.ExtraCalldepth = 1

	return &defaultLogger{inner: inner}
}

func (l *defaultLogger) Debugf(msg string, a ...any) {
	l.inner.Debugf(msg, a...)
}

func (l *defaultLogger) Infof(msg string, a ...any) {
	l.inner.Infof(msg, a...)
}

func (l *defaultLogger) Warnf(msg string, a ...any) {
	l.inner.Warningf(msg, a...)
}

func (l *defaultLogger) Errorf(msg string, a ...any) {
	l.inner.Errorf(msg, a...)
}

type nopLogger struct{}

// NewNopLogger discards everything. Tests use it to keep output clean.
func NewNopLogger() Logger {
	return nopLogger{}
}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
