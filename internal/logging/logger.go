// Package logging is subtasker's structured logger. Logs always go to stderr so
// previews, tables and prompts on stdout stay readable and pipeable.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel is a LOG_LEVEL value.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Format is a LOG_FORMAT value. Text suits the CLI; JSON suits `serve` when its
// output is collected by another process.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var slogLevels = map[LogLevel]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

var defaultLogger *slog.Logger

func init() {
	Setup(os.Stderr, LevelFromEnv(), FormatFromEnv())
}

// LevelFromEnv reads LOG_LEVEL, defaulting to info.
func LevelFromEnv() LogLevel {
	level := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if level == "" {
		return LevelInfo
	}
	return LogLevel(level)
}

// FormatFromEnv reads LOG_FORMAT. Anything but "json" means text.
func FormatFromEnv() Format {
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}

// Setup replaces the default logger. Unknown levels log at info.
func Setup(w io.Writer, level LogLevel, format Format) {
	slogLevel, ok := slogLevels[level]
	if !ok {
		slogLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: slogLevel}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// SetupLogger is Setup with text output.
func SetupLogger(w io.Writer, level LogLevel) {
	Setup(w, level, FormatText)
}

func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }
func Info(msg string, args ...any)  { defaultLogger.Info(msg, args...) }
func Warn(msg string, args ...any)  { defaultLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

// With returns a logger whose every line carries args. A creation run uses it
// to stamp its run id, project and mode.
func With(args ...any) *slog.Logger {
	return defaultLogger.With(args...)
}

// MaskSensitive shows the first four characters of a credential, enough to
// tell two tokens apart in a debug log.
func MaskSensitive(value string) string {
	switch {
	case value == "":
		return "<not set>"
	case len(value) <= 4:
		return "<set>"
	default:
		return value[:4] + "...***"
	}
}
