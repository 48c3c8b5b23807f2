package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestHandler_Level verifies records below the minimum level are dropped.
func TestHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelWarn))

	log.Info("hidden")
	log.Warn("shown", "n", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered")
	}

	if !strings.Contains(out, "[WRN] shown n=1") {
		t.Errorf("unexpected output: %q", out)
	}
}

// TestHandler_WithAttrs verifies carried attributes appear on every record.
func TestHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, nil)).With("request", "abc").WithGroup("batch")

	log.Debug("checked", "valid", true)

	out := buf.String()
	if !strings.Contains(out, "request=abc") || !strings.Contains(out, "batch.valid=true") {
		t.Errorf("unexpected output: %q", out)
	}
}

// TestParseLevel verifies level names.
func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
