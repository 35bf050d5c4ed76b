package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetup_WritesReadableConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf, zerolog.InfoLevel)
	logger.Info().Str("symbol", "AAPL").Msg("scan started")

	out := buf.String()
	if !strings.Contains(out, "scan started") {
		t.Fatalf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "AAPL") {
		t.Fatalf("expected field in output, got %q", out)
	}
}

func TestSetup_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf, zerolog.WarnLevel)
	logger.Info().Msg("should be filtered")
	logger.Warn().Msg("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Fatalf("info message should have been filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("expected warn message in output, got %q", out)
	}
}

func TestParseLevel_DefaultsToInfoOnUnrecognized(t *testing.T) {
	if got := ParseLevel(""); got != zerolog.InfoLevel {
		t.Errorf("ParseLevel(\"\") = %v, want InfoLevel", got)
	}
	if got := ParseLevel("not-a-level"); got != zerolog.InfoLevel {
		t.Errorf("ParseLevel(garbage) = %v, want InfoLevel", got)
	}
	if got := ParseLevel("debug"); got != zerolog.DebugLevel {
		t.Errorf("ParseLevel(debug) = %v, want DebugLevel", got)
	}
}
