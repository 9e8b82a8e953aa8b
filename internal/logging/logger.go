// Package logging provides structured logging for PostNexus.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// global logger instance
	global *logrus.Logger
	once   sync.Once
)

// Init initializes the global logger with the given output and minimum level.
// Level is one of "debug", "info", "warn", "error"; unknown values fall back
// to info.
func Init(out io.Writer, level string) {
	once.Do(func() {
		l := logrus.New()
		l.SetOutput(out)
		l.SetFormatter(&logrus.JSONFormatter{})
		l.SetLevel(parseLevel(level))
		global = l
	})
}

// Get returns the global logger instance.
func Get() *logrus.Logger {
	if global == nil {
		Init(os.Stdout, "info")
	}
	return global
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
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

// Fields is an alias so callers do not need to import logrus directly.
type Fields = logrus.Fields

// Convenience functions using the global logger

func Debug(message string, fields ...Fields) {
	entry(fields...).Debug(message)
}

func Info(message string, fields ...Fields) {
	entry(fields...).Info(message)
}

func Warn(message string, fields ...Fields) {
	entry(fields...).Warn(message)
}

func Error(message string, err error, fields ...Fields) {
	e := entry(fields...)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(message)
}

// entry merges the optional field maps into a single logrus entry.
func entry(fields ...Fields) *logrus.Entry {
	merged := Fields{}
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	return Get().WithFields(merged)
}
