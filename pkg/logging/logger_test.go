package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// restoreGlobalLevel resets the process-wide level Setup changes.
func restoreGlobalLevel(t *testing.T) {
	t.Helper()
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("default level = %s, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("default output should be JSON")
	}
	if cfg.Output == nil {
		t.Error("default output should not be nil")
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		level LogLevel
		emit  func(zerolog.Logger, string)
	}{
		{LevelDebug, func(l zerolog.Logger, m string) { l.Debug().Msg(m) }},
		{LevelInfo, func(l zerolog.Logger, m string) { l.Info().Msg(m) }},
		{LevelWarn, func(l zerolog.Logger, m string) { l.Warn().Msg(m) }},
		{LevelError, func(l zerolog.Logger, m string) { l.Error().Msg(m) }},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			restoreGlobalLevel(t)
			buf := &bytes.Buffer{}

			logger := Setup(Config{Level: tt.level, Output: buf})
			tt.emit(logger, "listed ec2.instances")

			if !strings.Contains(buf.String(), "listed ec2.instances") {
				t.Errorf("output %q does not contain message", buf.String())
			}
		})
	}
}

func TestSetup_Pretty(t *testing.T) {
	restoreGlobalLevel(t)
	buf := &bytes.Buffer{}

	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})
	logger.Info().Str("kind", "s3.buckets").Msg("fetch complete")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("pretty output looks like JSON: %q", out)
	}
	if !strings.Contains(out, "fetch complete") {
		t.Errorf("output %q does not contain message", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	restoreGlobalLevel(t)
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("fetcher")
	logger.Info().Msg("fetch started")

	out := buf.String()
	if !strings.Contains(out, `"component":"fetcher"`) {
		t.Errorf("output %q missing component field", out)
	}
	if !strings.Contains(out, "fetch started") {
		t.Errorf("output %q missing message", out)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	restoreGlobalLevel(t)
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("test")
	logger.Debug().Msg("worker started")
	logger.Info().Msg("kind listed")
	logger.Warn().Msg("still throttled")
	logger.Error().Msg("item dropped")

	out := buf.String()
	for _, filtered := range []string{"worker started", "kind listed"} {
		if strings.Contains(out, filtered) {
			t.Errorf("%q should be filtered at warn level", filtered)
		}
	}
	for _, kept := range []string{"still throttled", "item dropped"} {
		if !strings.Contains(out, kept) {
			t.Errorf("%q should be logged at warn level", kept)
		}
	}
}
