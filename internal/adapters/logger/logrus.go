package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the logger adapter configuration.
type Config struct {
	Level      string // debug, info, warn, error (defaults to info)
	OutputFile string // Optional log file path; empty means stderr only
	MaxSizeMB  int    // Rotate the file after this many megabytes
	MaxBackups int    // Number of rotated files to keep
	MaxAgeDays int    // Days to keep rotated files
	Compress   bool   // Compress rotated files
}

// LogrusLogger implements the ports.Logger interface on top of logrus, with
// optional size-based rotation of the file output via lumberjack.
type LogrusLogger struct {
	l *logrus.Logger
}

// New creates a logger from the given config. Unknown levels fall back to info.
func New(cfg Config) *LogrusLogger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	l.SetLevel(parseLevel(cfg.Level))

	var out io.Writer = os.Stderr
	if cfg.OutputFile != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		rotated := &lumberjack.Logger{
			Filename:   cfg.OutputFile,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(os.Stderr, rotated)
	}
	l.SetOutput(out)

	return &LogrusLogger{l: l}
}

func parseLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func (g *LogrusLogger) entry(fields ...map[string]interface{}) *logrus.Entry {
	if len(fields) > 0 && fields[0] != nil {
		return g.l.WithFields(logrus.Fields(fields[0]))
	}
	return logrus.NewEntry(g.l)
}

// Debug logs a message at Debug level.
func (g *LogrusLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	g.entry(fields...).Debug(msg)
}

// Info logs a message at Info level.
func (g *LogrusLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	g.entry(fields...).Info(msg)
}

// Warn logs a message at Warning level.
func (g *LogrusLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	g.entry(fields...).Warn(msg)
}

// Error logs an error with a message at Error level.
func (g *LogrusLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	e := g.entry(fields...)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}
