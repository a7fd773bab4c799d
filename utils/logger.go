package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// Logger provides leveled, printf-style logging throughout the application.
// Records go through slog, colored by tint on terminals or as JSON lines.
type Logger struct {
	slog *slog.Logger
}

// LoggerOptions configures NewLoggerWithOptions. Zero values give colored
// text at info level on stdout.
type LoggerOptions struct {
	Writer io.Writer
	Level  string
	Format string
}

// NewLogger creates a Logger writing colored text to stdout.
func NewLogger() *Logger {
	return NewLoggerWithOptions(LoggerOptions{})
}

// NewLoggerWithOptions creates a Logger with the given writer, level and format
// ("text" or "json").
func NewLoggerWithOptions(opts LoggerOptions) *Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	level := ParseLevel(opts.Level)

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: "2006-01-02 15:04:05",
		})
	}
	return &Logger{slog: slog.New(handler)}
}

// NopLogger discards everything. Handy in tests.
func NopLogger() *Logger {
	return NewLoggerWithOptions(LoggerOptions{Writer: io.Discard})
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a Logger that attaches the given key/value pairs to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// Slog exposes the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

func (l *Logger) Info(format string, args ...any) {
	l.log(slog.LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(slog.LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}

func (l *Logger) log(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !l.slog.Enabled(ctx, level) {
		return
	}
	l.slog.Log(ctx, level, fmt.Sprintf(format, args...))
}
