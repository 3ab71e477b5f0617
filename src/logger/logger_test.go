package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("WARNING", "RangeFetcher", &buf)

	l.Debug("hidden %d", 1)
	l.Info("hidden %d", 2)
	l.Warning("day %s degraded", "2025-03-10")
	l.Error("store down")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug/info to be dropped, got %q", out)
	}
	if !strings.Contains(out, "[RangeFetcher] WARNING: day 2025-03-10 degraded") {
		t.Fatalf("missing warning line in %q", out)
	}
	if !strings.Contains(out, "[RangeFetcher] ERROR: store down") {
		t.Fatalf("missing error line in %q", out)
	}
}

func TestNamedSharesLevelAndWriter(t *testing.T) {
	var buf bytes.Buffer
	root := NewLoggerWithWriter("debug", "app", &buf)
	child := root.Named("SQLiteStore")

	child.Debug("opened %s", "readings.db")

	if !strings.Contains(buf.String(), "[SQLiteStore] DEBUG: opened readings.db") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"DEBUG": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarning,
		"Error": LevelError,
		"bogus": LevelInfo,
		"":      LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
