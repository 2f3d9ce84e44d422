package logging

import (
	"strings"
	"testing"
	"time"
)

func TestDeployLogger(t *testing.T) {
	var got []string
	l := NewDeployLogger("dep-1", func(id, line string) {
		if id != "dep-1" {
			t.Errorf("id = %q", id)
		}
		got = append(got, line)
	})
	l.now = func() time.Time { return time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC) }

	l.Log("step: %s", "Building portfolio")
	l.Log("done")

	lines := l.Lines()
	if len(lines) != 2 || lines[0] != "[15:04:05] step: Building portfolio" {
		t.Fatalf("lines = %q", lines)
	}
	if strings.Join(got, "|") != strings.Join(lines, "|") {
		t.Errorf("hook saw %q, logger kept %q", got, lines)
	}

	lines[0] = "mutated"
	if l.Lines()[0] == "mutated" {
		t.Error("Lines must return a copy")
	}
}

func TestNew(t *testing.T) {
	for _, dev := range []bool{true, false} {
		logger, err := New(dev)
		if err != nil {
			t.Fatalf("New(%v): %v", dev, err)
		}
		_ = logger.Sync()
	}
}
