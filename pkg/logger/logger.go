// Package logger provides structured logging for the parking layer.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LoggingConfig controls the logger output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Logger wraps a logrus entry so call sites can chain structured fields.
type Logger struct {
	*logrus.Entry
}

// New creates a logger from the provided configuration.
func New(cfg LoggingConfig) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	l.SetOutput(resolveOutput(cfg.Output))

	return &Logger{Entry: logrus.NewEntry(l)}
}

// NewDefault creates an info-level JSON logger tagged with a component name.
func NewDefault(component string) *Logger {
	log := New(LoggingConfig{})
	return log.WithComponent(component)
}

// WithComponent returns a logger carrying a component field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", component)}
}

func resolveOutput(output string) io.Writer {
	switch strings.ToLower(strings.TrimSpace(output)) {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		return os.Stdout
	}
}
