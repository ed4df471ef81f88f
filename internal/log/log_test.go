package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestLevelsAndFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})

	SetLevel(LevelWarn)
	Info("hidden")
	Warn("shown", "path", "events[0].title", "msg", "too short")
	Error("failed", errors.New("boom"), "file", "cal.json")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `[WARN] shown path=events[0].title msg="too short"`) {
		t.Errorf("warn line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR] failed err=boom file=cal.json") {
		t.Errorf("error line = %q", lines[1])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" Warn ":  LevelWarn,
		"warning": LevelWarn,
		"ERROR":   LevelError,
		"":        LevelInfo,
		"loud":    LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
