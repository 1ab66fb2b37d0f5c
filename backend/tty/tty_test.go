//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris || zos

package tty

import (
	"bytes"
	"testing"

	"github.com/keyrx/keyrx/keycode"
)

func TestOpenRequiresRealTerminal(t *testing.T) {
	src, err := Open("/dev/tty")
	if err != nil {
		t.Skip("no controlling terminal available:", err)
	}
	defer src.Close()
}

func TestSinkInjectWritesLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf)
	if err := sink.Inject(keycode.New(keycode.A, keycode.Press, 1000)); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	got := buf.String()
	want := "Press(A,@1000)\r\n"
	if got != want {
		t.Fatalf("unexpected line: %q, want %q", got, want)
	}
}

func TestByteToKeyCoversLettersAndDigits(t *testing.T) {
	for b := byte('a'); b <= 'z'; b++ {
		if _, ok := byteToKey[b]; !ok {
			t.Fatalf("byte %q has no KeyCode mapping", b)
		}
	}
	for b := byte('0'); b <= '9'; b++ {
		if _, ok := byteToKey[b]; !ok {
			t.Fatalf("byte %q has no KeyCode mapping", b)
		}
	}
}
