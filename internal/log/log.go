// Package log provides the structured logger used by the geozone engine
// and the planner server. It wraps log/slog and rotates log files with
// lumberjack.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*slog.Logger
	LogFile string
	Start   time.Time
}

// New returns a Logger writing JSON records at the given level. If dir is
// empty, records go to stderr; otherwise they go to a rotating file in dir.
func New(level string, dir string) *Logger {
	var w io.Writer = os.Stderr
	logFile := ""
	if dir != "" {
		lj := &lumberjack.Logger{
			Filename:   filepath.Join(dir, "geozone.slog"),
			MaxSize:    32, // MB
			MaxBackups: 2,
			MaxAge:     14,
		}
		if level == "debug" {
			lj.MaxSize = 256
		}
		w = lj
		logFile = lj.Filename
	}

	return NewWithWriter(w, ParseLevel(level), logFile)
}

// NewWithWriter returns a Logger writing JSON records to w. It is mostly
// useful for tests that want to inspect the output.
func NewWithWriter(w io.Writer, lvl slog.Level, logFile string) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	l := &Logger{
		Logger:  slog.New(h),
		LogFile: logFile,
		Start:   time.Now(),
	}

	l.Logger.Info("Hello logging", slog.Time("start", l.Start),
		slog.String("GOARCH", runtime.GOARCH),
		slog.String("GOOS", runtime.GOOS))

	return l
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Start: time.Now()}
}

func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "%s: invalid log level, using info\n", level)
		return slog.LevelInfo
	}
}

// The logging methods below allow a nil *Logger; debug and info messages
// are then discarded while warnings and errors still go to the default
// slog logger.

func (l *Logger) Debug(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelDebug) {
		l.Logger.Debug(msg, args...)
	}
}

func (l *Logger) Debugf(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelDebug) {
		l.Logger.Debug(fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Info(msg string, args ...any) {
	if l != nil {
		l.Logger.Info(msg, args...)
	}
}

func (l *Logger) Infof(msg string, args ...any) {
	if l != nil {
		l.Logger.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Warn(msg string, args ...any) {
	if l == nil {
		slog.Warn(msg, args...)
	} else {
		l.Logger.Warn(msg, args...)
	}
}

func (l *Logger) Warnf(msg string, args ...any) {
	l.Warn(fmt.Sprintf(msg, args...))
}

func (l *Logger) Error(msg string, args ...any) {
	if l == nil {
		slog.Error(msg, args...)
	} else {
		l.Logger.Error(msg, args...)
	}
}

func (l *Logger) Errorf(msg string, args ...any) {
	l.Error(fmt.Sprintf(msg, args...))
}

func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		Logger:  l.Logger.With(args...),
		LogFile: l.LogFile,
		Start:   l.Start,
	}
}
