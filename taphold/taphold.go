// Package taphold implements the per-pending-key DFA that drives timed
// dual-function keys: Idle -> Pending -> (Idle | HoldActive) -> Idle.
// It consumes time only through Tick; it never reads a clock itself.
package taphold

import (
	"github.com/keyrx/keyrx/devstate"
	"github.com/keyrx/keyrx/keycode"
	"github.com/keyrx/keyrx/mapping"
)

// MaxPending bounds the number of simultaneously-pending tap-hold
// keys (spec.md section 3 and 4.5).
const MaxPending = 32

type entryState uint8

const (
	statePending entryState = iota
	stateHoldActive
)

type entry struct {
	key         keycode.KeyCode
	tap         keycode.KeyCode
	hold        mapping.ModifierId
	thresholdUs uint64
	policy      mapping.TapHoldPolicy
	pressedAt   uint64
	state       entryState
}

// DFA owns the pending-key table for one device. It is not safe for
// concurrent use, matching the single-threaded-per-device model in
// spec.md section 5.
type DFA struct {
	entries []*entry
	index   map[keycode.KeyCode]int
}

// New returns an empty DFA.
func New() *DFA {
	return &DFA{index: make(map[keycode.KeyCode]int, MaxPending)}
}

// Len reports how many keys are currently pending or hold-active.
func (d *DFA) Len() int {
	return len(d.entries)
}

// Tracked reports whether key has a live pending or hold-active entry.
func (d *DFA) Tracked(key keycode.KeyCode) bool {
	_, ok := d.index[key]
	return ok
}

// Register begins tracking key as a newly pressed tap-hold candidate.
// It returns false when the pending table is already at MaxPending; the
// caller (the event processor) must then demote the press to a plain
// Simple(tap) emission and log the demotion via the observability sink,
// per spec.md section 4.5.
func (d *DFA) Register(key keycode.KeyCode, th mapping.TapHold, now uint64) bool {
	if len(d.entries) >= MaxPending {
		return false
	}
	e := &entry{
		key:         key,
		tap:         th.Tap,
		hold:        th.HoldMod,
		thresholdUs: uint64(th.ThresholdMs) * 1000,
		policy:      th.Policy,
		pressedAt:   now,
		state:       statePending,
	}
	d.index[key] = len(d.entries)
	d.entries = append(d.entries, e)
	return true
}

// Tick promotes every Pending entry whose threshold has elapsed by now
// to HoldActive, setting its hold modifier on state. Tick must be
// called with the timestamp of every inbound event (and may be called
// independently by the outer loop's deadline scheduler) before that
// event is otherwise processed, so that a timer expiring at exactly
// the event's timestamp is observed first (spec.md section 4.5
// ordering guarantee).
func (d *DFA) Tick(now uint64, state *devstate.DeviceState) {
	for _, e := range d.entries {
		if e.state == statePending && now >= e.pressedAt+e.thresholdUs {
			e.state = stateHoldActive
			state.SetModifier(e.hold)
		}
	}
}

// HandleTrackedEvent processes ev for a key that Tracked reports true
// for. It is the Pending/HoldActive side of the DFA's own key: taps,
// hold confirmations observed via Release, and hold releases. Emitted
// events are written to out; the caller supplies an 8-slot buffer
// (keycode.MaxOutputEvents) per spec.md invariant 4.
func (d *DFA) HandleTrackedEvent(ev keycode.Event, state *devstate.DeviceState, out *keycode.Buffer) {
	idx, ok := d.index[ev.Key]
	if !ok {
		return
	}
	e := d.entries[idx]

	switch e.state {
	case statePending:
		if ev.Kind != keycode.Release {
			// A second Press of the same key while pending cannot
			// occur (auto-repeat is coalesced upstream); ignore
			// defensively rather than double-register.
			return
		}
		if ev.TimestampUs-e.pressedAt < e.thresholdUs {
			out.Push(keycode.New(e.tap, keycode.Press, ev.TimestampUs))
			out.Push(keycode.New(e.tap, keycode.Release, ev.TimestampUs))
		} else {
			// Tick always runs before this call with the same
			// timestamp, so this branch is reachable only when a
			// caller drives HandleTrackedEvent without first calling
			// Tick; handled defensively to match the DFA's own
			// transition table exactly.
			state.ClearModifier(e.hold)
		}
		d.remove(idx)
	case stateHoldActive:
		if ev.Kind == keycode.Release {
			state.ClearModifier(e.hold)
			d.remove(idx)
		}
	}
}

// ConfirmForeignPress implements the Permissive policy's early-commit
// rule: on any Press of a different key while this key is Pending, the
// hold is confirmed immediately (hold modifier set, entry promoted to
// HoldActive) so the foreign key's own lookup observes the modifier.
// Timeout-policy entries are left untouched: per spec.md, the foreign
// key dispatches immediately with the hold modifier still unset, which
// is already what happens if this function does nothing to them.
func (d *DFA) ConfirmForeignPress(foreignKey keycode.KeyCode, state *devstate.DeviceState) {
	for _, e := range d.entries {
		if e.key == foreignKey || e.state != statePending {
			continue
		}
		if e.policy == mapping.Permissive {
			e.state = stateHoldActive
			state.SetModifier(e.hold)
		}
	}
}

func (d *DFA) remove(idx int) {
	removed := d.entries[idx]
	last := len(d.entries) - 1
	d.entries[idx] = d.entries[last]
	d.entries = d.entries[:last]
	delete(d.index, removed.key)
	if idx != last {
		d.index[d.entries[idx].key] = idx
	}
}
