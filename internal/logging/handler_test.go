package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestBuffersUntilStreamSet(t *testing.T) {
	h := New()
	logger := slog.New(h)

	logger.Debug("early debug")
	logger.Info("early info")

	var buf bytes.Buffer
	h.SetLevel(slog.LevelInfo)
	h.SetStream(&buf)

	if buf.Len() != 0 {
		t.Fatalf("output before flush = %q, want empty", buf.String())
	}

	if err := h.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "early debug") {
		t.Fatalf("debug record survived flush at info level: %q", out)
	}
	if !strings.Contains(out, "early info") {
		t.Fatalf("info record missing after flush: %q", out)
	}
}

func TestFlushIsIdempotent(t *testing.T) {
	h := New()
	slog.New(h).Info("once")

	var buf bytes.Buffer
	h.SetStream(&buf)
	h.Flush()
	h.Flush()

	if n := strings.Count(buf.String(), "once"); n != 1 {
		t.Fatalf("record written %d times, want 1", n)
	}
}

func TestLevelAppliesAfterConfiguration(t *testing.T) {
	h := New()
	var buf bytes.Buffer
	h.SetStream(&buf)
	h.SetLevel(slog.LevelWarn)

	logger := slog.New(h)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "warning: shown") {
		t.Fatalf("warn record missing prefix: %q", out)
	}
}

func TestGroupsAndAttrsShareState(t *testing.T) {
	h := New()
	logger := slog.New(h.WithGroup("fishbowl")).With("run", "abc")

	var buf bytes.Buffer
	h.SetStream(&buf)

	logger.Info("stage built", "stage", "build", slog.Group("ctr", "id", "x1"))

	out := buf.String()
	for _, want := range []string{"fishbowl.run=abc", "fishbowl.stage=build", "fishbowl.ctr.id=x1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestPrettyFormatter(t *testing.T) {
	f := NewPrettyFormatter(false)

	line := string(f.Format(Record{
		Time:    "2026-01-01T00:00:00Z",
		Level:   slog.LevelError,
		Message: "build failed",
		Attrs:   []slog.Attr{slog.Any("error", errors.New("exit code 2")), slog.String("arch", "x86-64")},
	}))

	want := `error: build failed error="exit code 2" arch=x86-64` + "\n"
	if line != want {
		t.Fatalf("line = %q, want %q", line, want)
	}

	f.SetVerbose(true)
	line = string(f.Format(Record{Time: "2026-01-01T00:00:00Z", Level: slog.LevelInfo, Message: "ok"}))
	if line != "2026-01-01T00:00:00Z ok\n" {
		t.Fatalf("verbose line = %q", line)
	}
}

func TestJSONFormatter(t *testing.T) {
	out := NewJSONFormatter().Format(Record{
		Time:    "2026-01-01T00:00:00Z",
		Level:   slog.LevelWarn,
		Message: "slow",
		Attrs:   []slog.Attr{slog.Int("depth", 12)},
	})

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["msg"] != "slow" || got["level"] != "WARN" {
		t.Fatalf("record = %v", got)
	}
	if got["depth"] != float64(12) {
		t.Fatalf("depth = %v, want 12", got["depth"])
	}
}
