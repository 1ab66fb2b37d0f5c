// Package platform defines the contracts an input source and an
// output sink must satisfy to drive a processor.Processor, plus
// synthetic in-memory implementations used by tests and the
// simulator. Real backends (backend/linux, backend/tty) implement the
// same interfaces against the operating system.
package platform

import (
	"context"

	"github.com/keyrx/keyrx/errs"
	"github.com/keyrx/keyrx/keycode"
	"github.com/keyrx/keyrx/mapping"
)

// DeviceDescriptor identifies one physical input device as a backend
// reports it, independent of how that backend represents a device
// internally (an evdev node's EVIOCGID reply, a uinput setup struct,
// ...). ID is a backend-specific opaque string (a device path, for
// instance) used only for logging and StateSnapshot labeling.
type DeviceDescriptor struct {
	ID      string
	Vendor  uint16
	Product uint16
	Serial  string
}

// Matches reports whether m identifies d, per spec.md section 3's
// (vendor, product, serial?) device identity rule.
func (d DeviceDescriptor) Matches(m mapping.DeviceMatch) bool {
	return m.Matches(d.Vendor, d.Product, d.Serial)
}

// Source produces a device's key events in timestamp order. At most
// one Grab may be held at a time; a second Grab call before Release
// fails with errs.ErrAlreadyGrabbed.
type Source interface {
	// NextEvent blocks until an event is available, ctx is canceled, or
	// the stream ends (errs.ErrEndOfStream).
	NextEvent(ctx context.Context) (keycode.Event, error)

	// Grab takes exclusive ownership of the physical device, so its
	// native key events stop reaching any other listener (the desktop
	// session, in particular). Backends that cannot express this
	// (the tty debug backend) implement it as a no-op.
	Grab() error

	// Release gives the device back. Calling it without a held Grab
	// returns errs.ErrGrabNotHeld.
	Release() error

	// Close releases any resources NextEvent depends on; subsequent
	// calls to NextEvent return errs.ErrEndOfStream.
	Close() error
}

// Sink accepts the Events a Processor emits and injects them into
// whatever consumes synthetic input on the target platform (the
// kernel's uinput layer, a debug log, a simulator's assertion buffer).
type Sink interface {
	Inject(keycode.Event) error
}

// FIFOSource is a synthetic Source backed by an in-memory queue,
// grounded on the channel-based PollEvent/PostEvent pair real
// terminal drivers use: PostEvent never blocks the producer, silently
// dropping an event if the queue is already full, matching the
// "processing never blocks on a slow consumer" rule this package's
// real backends must also honor.
type FIFOSource struct {
	ch      chan keycode.Event
	done    chan struct{}
	grabbed bool
	closed  bool
}

// NewFIFOSource returns a FIFOSource whose internal queue holds up to
// capacity pending events.
func NewFIFOSource(capacity int) *FIFOSource {
	if capacity <= 0 {
		capacity = 64
	}
	return &FIFOSource{
		ch:   make(chan keycode.Event, capacity),
		done: make(chan struct{}),
	}
}

// Push enqueues ev for a future NextEvent call. It returns false
// (dropping ev) if the queue is full.
func (f *FIFOSource) Push(ev keycode.Event) bool {
	select {
	case f.ch <- ev:
		return true
	default:
		return false
	}
}

// NextEvent implements Source.
func (f *FIFOSource) NextEvent(ctx context.Context) (keycode.Event, error) {
	select {
	case ev, ok := <-f.ch:
		if !ok {
			return keycode.Event{}, errs.ErrEndOfStream
		}
		return ev, nil
	case <-f.done:
		return keycode.Event{}, errs.ErrEndOfStream
	case <-ctx.Done():
		return keycode.Event{}, ctx.Err()
	}
}

// Grab implements Source.
func (f *FIFOSource) Grab() error {
	if f.grabbed {
		return errs.ErrAlreadyGrabbed
	}
	f.grabbed = true
	return nil
}

// Release implements Source.
func (f *FIFOSource) Release() error {
	if !f.grabbed {
		return errs.ErrGrabNotHeld
	}
	f.grabbed = false
	return nil
}

// Close implements Source. It is safe to call more than once.
func (f *FIFOSource) Close() error {
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

// RecordingSink is a synthetic Sink that appends every injected Event
// to an in-memory slice, used by tests and the simulator to assert on
// exactly what a Processor produced.
type RecordingSink struct {
	Events []keycode.Event
}

// Inject implements Sink.
func (r *RecordingSink) Inject(ev keycode.Event) error {
	r.Events = append(r.Events, ev)
	return nil
}
