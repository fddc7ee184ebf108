package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	testCases := []struct {
		name      string
		level     LogLevel
		shouldLog map[slog.Level]bool
	}{
		{
			name:  "Debug logs everything",
			level: LevelDebug,
			shouldLog: map[slog.Level]bool{
				slog.LevelDebug: true,
				slog.LevelInfo:  true,
				slog.LevelWarn:  true,
				slog.LevelError: true,
			},
		},
		{
			name:  "Warn drops debug and info",
			level: LevelWarn,
			shouldLog: map[slog.Level]bool{
				slog.LevelDebug: false,
				slog.LevelInfo:  false,
				slog.LevelWarn:  true,
				slog.LevelError: true,
			},
		},
		{
			name:  "Invalid level defaults to Info",
			level: LogLevel("invalid"),
			shouldLog: map[slog.Level]bool{
				slog.LevelDebug: false,
				slog.LevelInfo:  true,
				slog.LevelWarn:  true,
				slog.LevelError: true,
			},
		},
	}

	logFuncs := map[slog.Level]func(string, ...any){
		slog.LevelDebug: Debug,
		slog.LevelInfo:  Info,
		slog.LevelWarn:  Warn,
		slog.LevelError: Error,
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetupLogger(&buf, tc.level)

			for level, logFunc := range logFuncs {
				buf.Reset()
				logFunc("test message", "key", "value")
				didLog := strings.Contains(buf.String(), "test message")
				assert.Equal(t, tc.shouldLog[level], didLog, "level %s", level)
			}
		})
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, LevelInfo, LevelFromEnv())

	t.Setenv("LOG_LEVEL", "DEBUG")
	assert.Equal(t, LevelDebug, LevelFromEnv())
}

func TestWithCarriesAttributes(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	var buf bytes.Buffer
	SetupLogger(&buf, LevelInfo)

	With("run_id", "abc123").Info("subtask created", "key", "KAN-3")

	output := buf.String()
	assert.Contains(t, output, "run_id=abc123")
	assert.Contains(t, output, "key=KAN-3")
}

func TestJSONFormat(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	var buf bytes.Buffer
	Setup(&buf, LevelInfo, FormatJSON)
	Info("api listening", "addr", "127.0.0.1:8765")

	assert.Contains(t, buf.String(), `"msg":"api listening"`)
	assert.Contains(t, buf.String(), `"addr":"127.0.0.1:8765"`)
}

func TestFormatFromEnv(t *testing.T) {
	t.Setenv("LOG_FORMAT", "")
	assert.Equal(t, FormatText, FormatFromEnv())

	t.Setenv("LOG_FORMAT", "JSON")
	assert.Equal(t, FormatJSON, FormatFromEnv())
}

func TestMaskSensitive(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty string", input: "", expected: "<not set>"},
		{name: "Short string", input: "abc", expected: "<set>"},
		{name: "Exactly 4 characters", input: "abcd", expected: "<set>"},
		{name: "Token-like string", input: "2Dn5j8fk39Dkf0s", expected: "2Dn5...***"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MaskSensitive(tc.input))
		})
	}
}
