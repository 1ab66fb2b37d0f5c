package clistatus

import (
	"bytes"
	"strings"
	"testing"

	"github.com/keyrx/keyrx/mapping"
	"github.com/keyrx/keyrx/processor"
)

func TestRenderIdleSnapshot(t *testing.T) {
	line := Render(processor.StateSnapshot{DeviceID: "dev0"})
	if !strings.Contains(line, "dev0: idle") {
		t.Fatalf("expected an idle line, got %q", line)
	}
}

func TestRenderIncludesEachActiveCategory(t *testing.T) {
	snap := processor.StateSnapshot{
		DeviceID:  "dev0",
		Modifiers: []mapping.ModifierId{5},
		Locks:     []mapping.LockId{2},
		Layers:    []mapping.LayerId{1, 3},
	}
	line := Render(snap)
	for _, want := range []string{"mod[5]", "lock[2]", "layer[1,3]"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line missing %q: %q", want, line)
		}
	}
}

func TestVisibleWidthIgnoresEscapes(t *testing.T) {
	line := Render(processor.StateSnapshot{
		DeviceID:  "dev0",
		Modifiers: []mapping.ModifierId{1},
	})
	plain := stripAnsi(line)
	if VisibleWidth(line) != len(plain) {
		t.Fatalf("VisibleWidth(%q) = %d, want %d", line, VisibleWidth(line), len(plain))
	}
}

func stripAnsi(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func TestClearEmptyWhenNoPreviousWidth(t *testing.T) {
	if Clear(0) != "\r" {
		t.Fatalf("expected a bare carriage return, got %q", Clear(0))
	}
}

func TestFprintReturnsNewWidth(t *testing.T) {
	var buf bytes.Buffer
	snap := processor.StateSnapshot{DeviceID: "dev0"}
	width := Fprint(&buf, snap, 0)
	if width != VisibleWidth(Render(snap)) {
		t.Fatalf("unexpected width: %d", width)
	}
	if buf.Len() == 0 {
		t.Fatal("expected output to be written")
	}
}
