//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris || zos

// Package tty is the debug platform backend: it reads raw keystrokes
// from a real terminal (no evdev/uinput access required) so a mapping
// can be exercised on a development machine without root, and echoes
// injected output events back to the terminal instead of a kernel
// device.
package tty

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/keyrx/keyrx/errs"
	"github.com/keyrx/keyrx/keycode"
)

// byteToKey maps a raw, lowercase ASCII byte read in raw mode to the
// KeyCode a real keyboard would have produced for it. Only the keys
// reachable from a bare terminal are covered; anything else is
// reported as unrecognized and dropped rather than guessed at.
var byteToKey = map[byte]keycode.KeyCode{
	'a': keycode.A, 'b': keycode.B, 'c': keycode.C, 'd': keycode.D, 'e': keycode.E,
	'f': keycode.F, 'g': keycode.G, 'h': keycode.H, 'i': keycode.I, 'j': keycode.J,
	'k': keycode.K, 'l': keycode.L, 'm': keycode.M, 'n': keycode.N, 'o': keycode.O,
	'p': keycode.P, 'q': keycode.Q, 'r': keycode.R, 's': keycode.S, 't': keycode.T,
	'u': keycode.U, 'v': keycode.V, 'w': keycode.W, 'x': keycode.X, 'y': keycode.Y,
	'z': keycode.Z,
	'0': keycode.Digit0, '1': keycode.Digit1, '2': keycode.Digit2, '3': keycode.Digit3,
	'4': keycode.Digit4, '5': keycode.Digit5, '6': keycode.Digit6, '7': keycode.Digit7,
	'8': keycode.Digit8, '9': keycode.Digit9,
	'\t': keycode.Tab, '\r': keycode.Enter, '\n': keycode.Enter, 0x7f: keycode.Backspace,
	' ': keycode.Space, 0x1b: keycode.Escape,
}

// Source is a platform.Source that reads a real terminal in raw mode
// and synthesizes a Press immediately followed by a Release for each
// recognized byte, since a plain tty has no native key-up event to
// observe — this backend is for exercising a mapping interactively,
// not for faithfully reproducing hold duration.
type Source struct {
	f       *os.File
	saved   *term.State
	fd      int
	events  chan keycode.Event
	errCh   chan error
	done    chan struct{}
	grabbed bool
}

// Open puts dev (typically "/dev/tty") into raw mode and starts
// reading from it on a background goroutine, mirroring the
// open-then-MakeRaw sequence the teacher's own tty backend uses.
func Open(dev string) (*Source, error) {
	f, err := os.OpenFile(dev, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("tty: opening %s: %w", dev, err)
	}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		f.Close()
		return nil, errors.New("tty: not a terminal")
	}
	saved, err := term.MakeRaw(fd)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("tty: MakeRaw: %w", err)
	}
	s := &Source{
		f:      f,
		saved:  saved,
		fd:     fd,
		events: make(chan keycode.Event, 64),
		errCh:  make(chan error, 1),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *Source) readLoop() {
	r := bufio.NewReader(s.f)
	var seq uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			select {
			case s.errCh <- err:
			default:
			}
			return
		}
		key, ok := byteToKey[b]
		if !ok {
			continue
		}
		seq++
		tsUs := seq * 1000
		select {
		case s.events <- keycode.New(key, keycode.Press, tsUs):
		case <-s.done:
			return
		}
		select {
		case s.events <- keycode.New(key, keycode.Release, tsUs+500):
		case <-s.done:
			return
		}
	}
}

// NextEvent implements platform.Source.
func (s *Source) NextEvent(ctx context.Context) (keycode.Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.errCh:
		return keycode.Event{}, errs.ErrEndOfStream
	case <-s.done:
		return keycode.Event{}, errs.ErrEndOfStream
	case <-ctx.Done():
		return keycode.Event{}, ctx.Err()
	}
}

// Grab implements platform.Source as a no-op: a raw terminal has no
// concept of exclusive device ownership to hand over.
func (s *Source) Grab() error {
	if s.grabbed {
		return errs.ErrAlreadyGrabbed
	}
	s.grabbed = true
	return nil
}

// Release implements platform.Source.
func (s *Source) Release() error {
	if !s.grabbed {
		return errs.ErrGrabNotHeld
	}
	s.grabbed = false
	return nil
}

// Close restores the terminal's original mode and stops the reader.
// Safe to call more than once.
func (s *Source) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	_ = s.f.SetReadDeadline(time.Now())
	if err := term.Restore(s.fd, s.saved); err != nil {
		return err
	}
	return s.f.Close()
}

// Sink is a platform.Sink that writes a human-readable line per
// injected event to w instead of a kernel device — the debug
// counterpart to backend/linux's UinputSink.
type Sink struct {
	w io.Writer
}

// NewSink wraps w (typically os.Stderr, kept separate from the raw
// terminal's stdin/stdout) as a debug Sink.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Inject implements platform.Sink.
func (s *Sink) Inject(ev keycode.Event) error {
	_, err := fmt.Fprintf(s.w, "%s\r\n", ev)
	return err
}
