//go:build linux

package linux

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/keyrx/keyrx/errs"
	"github.com/keyrx/keyrx/keycode"
)

const (
	uiSetEvbit  = 0x40045564
	uiSetKeybit = 0x40045565
	uiDevCreate = 0x5501
	uiDevDestroy = 0x5502
	uiDevSetup  = 0x405c5503

	evSyn  = 0x00
	synReport = 0
)

type uinputSetup struct {
	Bustype, Vendor, Product, Version uint16
	Name                              [80]byte
	FFEffects                         uint32
}

// UinputSink is a platform.Sink that replays Events through a
// synthetic /dev/uinput keyboard: the same device other applications
// (including the desktop's own input stack) read from, so an injected
// Event is indistinguishable from one a physical keyboard produced.
type UinputSink struct {
	f *os.File
}

// NewUinputSink creates and enables a virtual keyboard device named
// name, registering every scancode codeToLinuxKey knows about.
func NewUinputSink(name string) (*UinputSink, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|os.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("linux: opening /dev/uinput: %w", err)
	}

	if err := ioctlInt(f.Fd(), uiSetEvbit, uintptr(evKey)); err != nil {
		f.Close()
		return nil, fmt.Errorf("linux: UI_SET_EVBIT(EV_KEY): %w", err)
	}
	for _, code := range codeToLinuxKey {
		if err := ioctlInt(f.Fd(), uiSetKeybit, uintptr(code)); err != nil {
			f.Close()
			return nil, fmt.Errorf("linux: UI_SET_KEYBIT(%d): %w", code, err)
		}
	}

	var setup uinputSetup
	setup.Bustype = 0x03 // BUS_USB
	setup.Vendor = 0x1
	setup.Product = 0x1
	setup.Version = 1
	copy(setup.Name[:], name)
	if err := ioctlAny(f.Fd(), uiDevSetup, &setup); err != nil {
		f.Close()
		return nil, fmt.Errorf("linux: UI_DEV_SETUP: %w", err)
	}
	if err := ioctlInt(f.Fd(), uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("linux: UI_DEV_CREATE: %w", err)
	}

	return &UinputSink{f: f}, nil
}

func (s *UinputSink) writeRaw(typ, code uint16, value int32) error {
	buf := make([]byte, evSizeof)
	// buf[0:16] (the timeval) is left zero: the kernel stamps input
	// events with its own receive time, so a synthetic value here
	// would be discarded.
	binary.LittleEndian.PutUint16(buf[16:18], typ)
	binary.LittleEndian.PutUint16(buf[18:20], code)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(value))
	_, err := s.f.Write(buf)
	return err
}

// Inject implements platform.Sink by writing the key event followed by
// a SYN_REPORT, the pair the kernel requires to commit one logical
// input frame.
func (s *UinputSink) Inject(ev keycode.Event) error {
	code, ok := codeToLinuxKey[ev.Key]
	if !ok {
		return fmt.Errorf("%w: no Linux scancode for %s", errs.ErrInjectionFailed, ev.Key)
	}
	value := int32(evKeyValueRelease)
	if ev.Kind == keycode.Press {
		value = evKeyValuePress
	}
	if err := s.writeRaw(evKey, code, value); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInjectionFailed, err)
	}
	if err := s.writeRaw(evSyn, synReport, 0); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInjectionFailed, err)
	}
	return nil
}

// Close destroys the virtual device and releases the /dev/uinput
// handle. Safe to call more than once.
func (s *UinputSink) Close() error {
	if s.f == nil {
		return nil
	}
	ioctlInt(s.f.Fd(), uiDevDestroy, 0)
	err := s.f.Close()
	s.f = nil
	return err
}
