// Package logger provides a simple logging interface backed by logrus.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the logging interface
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	WithField(key string, value interface{}) Logger
}

// Options controls where and how log lines are written.
type Options struct {
	Level  string
	Format string // "text" or "json"
	File   string // optional rotated log file
}

type logger struct {
	entry *logrus.Entry
}

// New creates a logger configured from LOG_LEVEL, LOG_FORMAT and LOG_FILE.
func New() Logger {
	return NewWithOptions(Options{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
		File:   os.Getenv("LOG_FILE"),
	})
}

// NewWithOptions creates a logger from explicit options.
func NewWithOptions(opts Options) Logger {
	base := logrus.New()
	base.SetLevel(ParseLevel(opts.Level))

	if strings.EqualFold(opts.Format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stdout
	if opts.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		})
	}
	base.SetOutput(out)

	return &logger{entry: logrus.NewEntry(base)}
}

// NewWithWriter creates a logger writing to w, mostly for tests.
func NewWithWriter(w io.Writer, level string) Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(ParseLevel(level))
	base.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return &logger{entry: logrus.NewEntry(base)}
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return NewWithWriter(io.Discard, "error")
}

// ParseLevel converts a string log level to a logrus level, defaulting to info.
func ParseLevel(levelStr string) logrus.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// IsKnownLevel reports whether levelStr names a supported level.
func IsKnownLevel(levelStr string) bool {
	switch strings.ToLower(levelStr) {
	case "debug", "info", "warn", "warning", "error", "":
		return true
	}
	return false
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{entry: l.entry.WithField(key, value)}
}

func (l *logger) Debug(v ...interface{})                 { l.entry.Debug(v...) }
func (l *logger) Debugf(format string, v ...interface{}) { l.entry.Debugf(format, v...) }
func (l *logger) Info(v ...interface{})                  { l.entry.Info(v...) }
func (l *logger) Infof(format string, v ...interface{})  { l.entry.Infof(format, v...) }
func (l *logger) Warn(v ...interface{})                  { l.entry.Warn(v...) }
func (l *logger) Warnf(format string, v ...interface{})  { l.entry.Warnf(format, v...) }
func (l *logger) Error(v ...interface{})                 { l.entry.Error(v...) }
func (l *logger) Errorf(format string, v ...interface{}) { l.entry.Errorf(format, v...) }
func (l *logger) Fatal(v ...interface{})                 { l.entry.Fatal(v...) }
func (l *logger) Fatalf(format string, v ...interface{}) { l.entry.Fatalf(format, v...) }
