// Package processor is the per-device orchestrator (spec.md component
// C8): it drives the tap-hold DFA, resolves the lookup table, and
// dispatches the resolved Mapping against one DeviceState, writing
// output events into a caller-supplied Buffer. It never performs I/O;
// anomalies are reported through an injected observability.Sink, never
// by blocking or panicking.
package processor

import (
	"github.com/keyrx/keyrx/devstate"
	"github.com/keyrx/keyrx/errs"
	"github.com/keyrx/keyrx/keycode"
	"github.com/keyrx/keyrx/lookup"
	"github.com/keyrx/keyrx/mapping"
	"github.com/keyrx/keyrx/observability"
	"github.com/keyrx/keyrx/taphold"
)

// Processor owns the runtime state for exactly one logical device: its
// modifier/lock/layer state, its tap-hold pending table, and the
// lookup table compiled for it. It is not safe for concurrent use; the
// platform layer runs one Processor goroutine per device (spec.md
// section 5).
type Processor struct {
	deviceID string
	state    *devstate.DeviceState
	table    *lookup.Table
	dfa      *taphold.DFA
	sink     observability.Sink
}

// New returns a Processor for deviceID, dispatching against table. A
// nil sink is replaced with observability.NopSink.
func New(deviceID string, table *lookup.Table, sink observability.Sink) *Processor {
	if sink == nil {
		sink = observability.NopSink{}
	}
	return &Processor{
		deviceID: deviceID,
		state:    devstate.New(),
		table:    table,
		dfa:      taphold.New(),
		sink:     sink,
	}
}

// Process is the hot path: exactly one input Event in, zero or more
// output Events appended to out. The ordering is fixed by spec.md
// section 4.6:
//
//  1. Tick the tap-hold DFA at ev's own timestamp, so a timer that
//     expires at or before this instant is observed before anything
//     else about ev is decided.
//  2. If ev's key is already tracked by the DFA, it owns the event
//     completely (tap/hold resolution); lookup never runs for it.
//  3. Otherwise, a Press of any other key may confirm a Permissive
//     pending hold early.
//  4. Resolve the key against the lookup table and dispatch.
//
// A miss at step 4 is passthrough, not an error.
func (p *Processor) Process(ev keycode.Event, out *keycode.Buffer) error {
	p.dfa.Tick(ev.TimestampUs, p.state)

	if p.dfa.Tracked(ev.Key) {
		p.dfa.HandleTrackedEvent(ev, p.state, out)
		return nil
	}

	if ev.Kind == keycode.Press {
		p.dfa.ConfirmForeignPress(ev.Key, p.state)
	}

	m, ok := p.table.Find(ev.Key, p.state)
	if !ok {
		if !p.push(out, ev) {
			return errs.ErrInvariantViolation
		}
		p.emit(ev, observability.LevelDebug, observability.KindPassthrough, "")
		return nil
	}
	return p.dispatch(m, ev, out)
}

// Tick drives only the tap-hold DFA's timers; it never touches the
// lookup table. The platform layer calls it from its deadline
// scheduler between input events so a pending hold is promoted even
// when the device falls silent (spec.md section 4.5). out is accepted
// for symmetry with Process's signature; Tick itself never emits a
// hold promotion as an output event.
func (p *Processor) Tick(nowUs uint64, out *keycode.Buffer) {
	_ = out
	p.dfa.Tick(nowUs, p.state)
}

// dispatch applies the resolved Mapping m for input event ev, writing
// any emissions to out and mutating DeviceState as the mapping kind
// requires.
func (p *Processor) dispatch(m mapping.Mapping, ev keycode.Event, out *keycode.Buffer) error {
	switch v := m.(type) {
	case mapping.Simple:
		p.push(out, keycode.New(v.To, ev.Kind, ev.TimestampUs))

	case mapping.ModifierMapping:
		if ev.Kind == keycode.Press {
			if !p.state.SetModifier(v.ID) {
				p.emit(ev, observability.LevelError, observability.KindModifierIgnored, "reserved or invalid modifier id")
			}
		} else {
			p.state.ClearModifier(v.ID)
		}

	case mapping.LockMapping:
		if ev.Kind == keycode.Press {
			if p.state.ToggleLock(v.ID) {
				p.emit(ev, observability.LevelDebug, observability.KindLockToggled, "")
			}
		}
		// Release is a deliberate no-op (spec.md section 4.3).

	case mapping.ModifiedOutput:
		if ev.Kind == keycode.Press {
			for _, mod := range v.Mods {
				p.push(out, keycode.New(mod, keycode.Press, ev.TimestampUs))
			}
			p.push(out, keycode.New(v.To, keycode.Press, ev.TimestampUs))
		} else {
			p.push(out, keycode.New(v.To, keycode.Release, ev.TimestampUs))
			for i := len(v.Mods) - 1; i >= 0; i-- {
				p.push(out, keycode.New(v.Mods[i], keycode.Release, ev.TimestampUs))
			}
		}

	case mapping.Conditional:
		// lookup.Find already resolves Conditional chains down to a
		// concrete leaf mapping; this branch only matters for a Table
		// assembled by hand (e.g. a test) that skips Build's normal
		// resolution path.
		if p.state.Evaluate(v.Condition) {
			return p.dispatch(v.Then, ev, out)
		}
		if v.Else != nil {
			return p.dispatch(v.Else, ev, out)
		}

	case mapping.TapHold:
		if ev.Kind == keycode.Press {
			if !p.dfa.Register(ev.Key, v, ev.TimestampUs) {
				p.push(out, keycode.New(v.Tap, keycode.Press, ev.TimestampUs))
				p.emit(ev, observability.LevelWarn, observability.KindCapacityExceeded, "pending table full, demoted to tap")
				return errs.ErrCapacityExceeded
			}
		} else {
			// A Release for a TapHold key that the DFA isn't tracking
			// means the Press was demoted at capacity (or this is an
			// orphan release with no matching press); mirror the
			// demoted tap so press/release stay balanced downstream.
			p.push(out, keycode.New(v.Tap, keycode.Release, ev.TimestampUs))
			p.emit(ev, observability.LevelWarn, observability.KindTapHoldDemoted, "release for untracked tap-hold key")
		}

	case mapping.LayerMapping:
		if ev.Kind == keycode.Press {
			if !p.state.PushLayer(v.ID) {
				p.emit(ev, observability.LevelWarn, observability.KindInvariantViolation, "layer stack full or invalid id")
			}
		} else {
			if !p.state.PopLayer(v.ID) {
				p.emit(ev, observability.LevelWarn, observability.KindLayerPopMismatch, "release did not match layer stack top")
			}
		}
	}
	return nil
}

// push writes e to out, reporting an invariant violation if the
// 8-slot buffer is already full. That can only happen if a mapping
// chain produces more than keycode.MaxOutputEvents emissions for a
// single input event, which the compiler rejects for modified_output
// (at most keycode.MaxOutputEvents-1 modifiers).
func (p *Processor) push(out *keycode.Buffer, e keycode.Event) bool {
	if out.Push(e) {
		return true
	}
	p.emit(e, observability.LevelError, observability.KindInvariantViolation, "output buffer exhausted")
	return false
}

func (p *Processor) emit(ev keycode.Event, level observability.Level, kind observability.Kind, detail string) {
	p.sink.Emit(observability.Record{
		TimestampUs: ev.TimestampUs,
		Level:       level,
		Kind:        kind,
		DeviceID:    p.deviceID,
		Key:         ev.Key,
		Detail:      detail,
	})
}

// StateSnapshot is a diagnostic-only dump of a Processor's live state,
// used by the simulator and the CLI's status line. It is never
// consulted by Process itself.
type StateSnapshot struct {
	DeviceID  string
	Layers    []mapping.LayerId
	Modifiers []mapping.ModifierId
	Locks     []mapping.LockId
	Pending   int
}

// Snapshot returns the current diagnostic state. The returned slices
// are copies; mutating them has no effect on the Processor.
func (p *Processor) Snapshot() StateSnapshot {
	layers := append([]mapping.LayerId(nil), p.state.Layers()...)
	return StateSnapshot{
		DeviceID:  p.deviceID,
		Layers:    layers,
		Modifiers: p.state.ActiveModifiers(),
		Locks:     p.state.ActiveLocks(),
		Pending:   p.dfa.Len(),
	}
}
