package logging

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}

	if cfg.Pretty != false {
		t.Error("Expected default pretty to be false")
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		level    LogLevel
		testMsg  string
		contains string
	}{
		{
			name:     "info_level",
			level:    LevelInfo,
			testMsg:  "scraping project",
			contains: "scraping project",
		},
		{
			name:     "debug_level",
			level:    LevelDebug,
			testMsg:  "cursor advanced",
			contains: "cursor advanced",
		},
		{
			name:     "warn_level",
			level:    LevelWarn,
			testMsg:  "validation failed",
			contains: "validation failed",
		},
		{
			name:     "error_level",
			level:    LevelError,
			testMsg:  "retries exhausted",
			contains: "retries exhausted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Pretty: false, Output: buf})

			switch tt.level {
			case LevelDebug:
				logger.Debug().Msg(tt.testMsg)
			case LevelInfo:
				logger.Info().Msg(tt.testMsg)
			case LevelWarn:
				logger.Warn().Msg(tt.testMsg)
			case LevelError:
				logger.Error().Msg(tt.testMsg)
			}

			output := buf.String()
			if !strings.Contains(output, tt.contains) {
				t.Errorf("Expected output to contain %q, got %q", tt.contains, output)
			}
		})
	}
}

// captureStderr redirects os.Stderr for the duration of fn and returns
// everything written to it.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w
	defer func() { os.Stderr = orig }()

	fn()

	w.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSetup_NilOutputDefaultsToStderr(t *testing.T) {
	tests := []struct {
		name   string
		pretty bool
	}{
		{"json", false},
		{"pretty", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureStderr(t, func() {
				logger := Setup(Config{Level: LevelInfo, Pretty: tt.pretty})
				logger.Error().Msg("retries exhausted")
				componentLogger := NewLogger("scraper")
				componentLogger.Warn().Msg("validation failed")
			})

			if !strings.Contains(out, "retries exhausted") {
				t.Errorf("Returned logger output lost with nil Output, got %q", out)
			}
			if !strings.Contains(out, "validation failed") {
				t.Errorf("Component logger output lost with nil Output, got %q", out)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLogger_ComponentField(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelDebug, Pretty: false, Output: buf})

	logger := NewLogger("scraper")
	logger.Info().Msg("run started")

	if !strings.Contains(buf.String(), `"component":"scraper"`) {
		t.Errorf("Expected component field in output, got %q", buf.String())
	}
}
