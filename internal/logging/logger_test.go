package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "nil config", config: nil},
		{name: "debug level", config: &Config{Level: LevelDebug, Output: &bytes.Buffer{}}},
		{name: "error level", config: &Config{Level: LevelError, Output: &bytes.Buffer{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Fatal("NewLogger() returned nil")
			}
		})
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	cases := map[int]LogLevel{
		0: LevelError,
		1: LevelWarn,
		2: LevelInfo,
		3: LevelDebug,
		9: LevelDebug,
	}
	for v, want := range cases {
		if got := LevelFromVerbosity(v); got != want {
			t.Errorf("LevelFromVerbosity(%d) = %v, want %v", v, got, want)
		}
	}
}

func TestLoggerWithChannel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	chLogger := logger.WithChannel(7)
	chLogger.Info("frame delivered")

	output := buf.String()
	if !strings.Contains(output, "channel=7") {
		t.Errorf("expected channel=7 in output, got: %s", output)
	}

	buf.Reset()
	srcLogger := chLogger.WithSource("tcp")
	srcLogger.Warn("reconnecting")

	output = buf.String()
	if !strings.Contains(output, "channel=7") || !strings.Contains(output, "source=tcp") {
		t.Errorf("expected both channel=7 and source=tcp in output, got: %s", output)
	}
}

func TestLoggerLevelGating(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected debug message to be suppressed at Warn level, got: %s", buf.String())
	}

	logger.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("expected warn message to appear, got: %s", buf.String())
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))

	Debug("debug message", "key", "value")
	if !strings.Contains(buf.String(), "debug message") || !strings.Contains(buf.String(), "key=value") {
		t.Errorf("expected debug message with key=value, got: %s", buf.String())
	}

	buf.Reset()
	Info("info message")
	if !strings.Contains(buf.String(), "info message") {
		t.Errorf("expected info message, got: %s", buf.String())
	}

	buf.Reset()
	Warn("warning message")
	if !strings.Contains(buf.String(), "warning message") {
		t.Errorf("expected warning message, got: %s", buf.String())
	}

	buf.Reset()
	Error("error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Errorf("expected error message, got: %s", buf.String())
	}
}
