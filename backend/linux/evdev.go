//go:build linux

package linux

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/keyrx/keyrx/errs"
	"github.com/keyrx/keyrx/keycode"
)

const (
	evKey = 0x01

	evSizeof = 24 // struct input_event: 2x8 time + 2x2 + 4 value, padded to 24 on amd64

	evKeyValueRelease   = 0
	evKeyValuePress     = 1
	evKeyValueAutoRepeat = 2
)

// Device identifies one open evdev node by its path and the vendor and
// product the kernel reports through EVIOCGID, matching mapping.DeviceMatch's
// (vendor, product, serial?) identity rule closely enough for routing
// — serial is not available from EVIOCGID and is left empty.
type Device struct {
	Path    string
	Vendor  uint16
	Product uint16
}

type inputID struct {
	Bustype, Vendor, Product, Version uint16
}

// OpenDevice opens the evdev node at path, queries its identity via
// EVIOCGID, and returns an EvdevSource ready to read from it.
func OpenDevice(path string) (*EvdevSource, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("linux: opening %s: %w", path, err)
	}
	var id inputID
	if err := ioctlAny(f.Fd(), ior(0x45, 0x02, id), &id); err != nil {
		f.Close()
		return nil, fmt.Errorf("linux: EVIOCGID on %s: %w", path, err)
	}
	return &EvdevSource{
		f:      f,
		device: Device{Path: path, Vendor: id.Vendor, Product: id.Product},
		events: make(chan keycode.Event, 64),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}, nil
}

// EvdevSource is a platform.Source reading struct input_event records
// from one /dev/input/eventN node. Reading happens on a dedicated
// goroutine (os.File.Read blocks indefinitely with no input), feeding
// a buffered channel NextEvent selects on — the same producer/consumer
// shape as platform.FIFOSource, just fed by the kernel instead of a
// test.
type EvdevSource struct {
	f       *os.File
	device  Device
	events  chan keycode.Event
	errs    chan error
	done    chan struct{}
	started bool
	grabbed bool
}

// Start launches the background reader goroutine. It is separate from
// OpenDevice so a caller can inspect Device() (for routing against
// mapping.DeviceMatch) before committing to read.
func (s *EvdevSource) Start() {
	if s.started {
		return
	}
	s.started = true
	go s.readLoop()
}

// Device returns the identity queried at open time.
func (s *EvdevSource) Device() Device {
	return s.device
}

func (s *EvdevSource) readLoop() {
	buf := make([]byte, evSizeof)
	for {
		n, err := s.f.Read(buf)
		if err != nil {
			select {
			case s.errs <- err:
			default:
			}
			return
		}
		if n < evSizeof {
			continue
		}
		typ := binary.LittleEndian.Uint16(buf[16:18])
		if typ != evKey {
			continue
		}
		code := binary.LittleEndian.Uint16(buf[18:20])
		value := int32(binary.LittleEndian.Uint32(buf[20:24]))
		if value == evKeyValueAutoRepeat {
			continue // auto-repeat is filtered here, per spec.md section 6
		}
		key, ok := linuxKeyToCode[code]
		if !ok {
			continue
		}
		kind := keycode.Release
		if value == evKeyValuePress {
			kind = keycode.Press
		}
		sec := binary.LittleEndian.Uint64(buf[0:8])
		usec := binary.LittleEndian.Uint64(buf[8:16])
		tsUs := sec*1_000_000 + usec
		select {
		case s.events <- keycode.New(key, kind, tsUs):
		case <-s.done:
			return
		}
	}
}

// NextEvent implements platform.Source.
func (s *EvdevSource) NextEvent(ctx context.Context) (keycode.Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.errs:
		return keycode.Event{}, errs.ErrEndOfStream
	case <-s.done:
		return keycode.Event{}, errs.ErrEndOfStream
	case <-ctx.Done():
		return keycode.Event{}, ctx.Err()
	}
}

// Grab implements platform.Source via EVIOCGRAB, which gives this
// process exclusive delivery of the device's events (the desktop
// session stops seeing them) until Release.
func (s *EvdevSource) Grab() error {
	if s.grabbed {
		return errs.ErrAlreadyGrabbed
	}
	if err := ioctlInt(s.f.Fd(), iow(0x45, 0x90, int(0)), 1); err != nil {
		return fmt.Errorf("linux: EVIOCGRAB(1): %w", err)
	}
	s.grabbed = true
	return nil
}

// Release implements platform.Source.
func (s *EvdevSource) Release() error {
	if !s.grabbed {
		return errs.ErrGrabNotHeld
	}
	if err := ioctlInt(s.f.Fd(), iow(0x45, 0x90, int(0)), 0); err != nil {
		return fmt.Errorf("linux: EVIOCGRAB(0): %w", err)
	}
	s.grabbed = false
	return nil
}

// Close implements platform.Source. Safe to call more than once.
func (s *EvdevSource) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	return s.f.Close()
}
