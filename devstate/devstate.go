// Package devstate implements the per-device 255-bit modifier and lock
// vectors, the bounded layer stack, and the pure Condition evaluator.
// Every operation except the ActiveModifiers/ActiveLocks diagnostic
// accessors is constant time and allocation-free; this package
// performs no I/O of any kind, hot path or otherwise.
package devstate

import "github.com/keyrx/keyrx/mapping"

// MaxLayers bounds the layer stack, matching spec.md section 3.
const MaxLayers = 16

// vectorWords holds 256 usable bits (255 plus the always-zero
// reserved bit) as a fixed-size byte array, exactly as design note in
// spec.md section 9 prescribes: two 256-bit words stored as fixed-size
// byte arrays, set/clear/test as branch-free bit ops.
const vectorWords = 32

type bitVector [vectorWords]byte

func (v *bitVector) set(id uint8) {
	v[id>>3] |= 1 << (id & 7)
}

func (v *bitVector) clear(id uint8) {
	v[id>>3] &^= 1 << (id & 7)
}

func (v *bitVector) toggle(id uint8) {
	v[id>>3] ^= 1 << (id & 7)
}

func (v *bitVector) test(id uint8) bool {
	return v[id>>3]&(1<<(id&7)) != 0
}

// DeviceState is the mutable state one Event Processor owns for one
// logical device: modifiers, locks, and the layer stack. It is never
// shared across devices (spec.md section 3 and 5).
type DeviceState struct {
	modifiers bitVector
	locks     bitVector
	layers    []mapping.LayerId
}

// New returns a DeviceState with every bit clear and an empty layer stack.
func New() *DeviceState {
	return &DeviceState{layers: make([]mapping.LayerId, 0, MaxLayers)}
}

// SetModifier sets bit id. It reports false (and leaves state
// unchanged) when id is the reserved bit 255; callers log that case
// via the observability sink, since this package performs no I/O.
func (s *DeviceState) SetModifier(id mapping.ModifierId) bool {
	if !mapping.ValidID(uint8(id)) {
		return false
	}
	s.modifiers.set(uint8(id))
	return true
}

// ClearModifier clears bit id. Clearing an already-clear bit is a
// harmless no-op, matching spec.md section 4.3.
func (s *DeviceState) ClearModifier(id mapping.ModifierId) bool {
	if !mapping.ValidID(uint8(id)) {
		return false
	}
	s.modifiers.clear(uint8(id))
	return true
}

// IsModifier reports whether bit id is set.
func (s *DeviceState) IsModifier(id mapping.ModifierId) bool {
	if !mapping.ValidID(uint8(id)) {
		return false
	}
	return s.modifiers.test(uint8(id))
}

// ToggleLock flips bit id. Reject 255 the same way SetModifier does.
func (s *DeviceState) ToggleLock(id mapping.LockId) bool {
	if !mapping.ValidID(uint8(id)) {
		return false
	}
	s.locks.toggle(uint8(id))
	return true
}

// IsLock reports whether lock bit id is set.
func (s *DeviceState) IsLock(id mapping.LockId) bool {
	if !mapping.ValidID(uint8(id)) {
		return false
	}
	return s.locks.test(uint8(id))
}

// PushLayer pushes id onto the layer stack. It returns false (no-op)
// when id is invalid or the stack is already at MaxLayers.
func (s *DeviceState) PushLayer(id mapping.LayerId) bool {
	if !mapping.ValidID(uint8(id)) || len(s.layers) >= MaxLayers {
		return false
	}
	s.layers = append(s.layers, id)
	return true
}

// PopLayer pops id from the layer stack. Per spec.md section 4.3, this
// is only meaningful when id is the current stack top; any other call
// (a crossed-release sequence, or an empty stack) is a no-op and the
// caller should log it.
func (s *DeviceState) PopLayer(id mapping.LayerId) bool {
	n := len(s.layers)
	if n == 0 || s.layers[n-1] != id {
		return false
	}
	s.layers = s.layers[:n-1]
	return true
}

// InLayer reports whether id is anywhere on the layer stack.
func (s *DeviceState) InLayer(id mapping.LayerId) bool {
	for _, l := range s.layers {
		if l == id {
			return true
		}
	}
	return false
}

// Layers returns the live layer stack, bottom first. Callers must not
// mutate the returned slice.
func (s *DeviceState) Layers() []mapping.LayerId {
	return s.layers
}

// ActiveModifiers returns every currently-set modifier id in ascending
// order. Diagnostic-only: the hot path never calls this, since it
// allocates and scans the full vector.
func (s *DeviceState) ActiveModifiers() []mapping.ModifierId {
	return s.modifiers.active()
}

// ActiveLocks returns every currently-toggled lock id in ascending
// order. Diagnostic-only, for the same reason as ActiveModifiers.
func (s *DeviceState) ActiveLocks() []mapping.LockId {
	ids := s.locks.active()
	locks := make([]mapping.LockId, len(ids))
	for i, id := range ids {
		locks[i] = mapping.LockId(id)
	}
	return locks
}

func (v *bitVector) active() []mapping.ModifierId {
	var ids []mapping.ModifierId
	for i := 0; i < 256; i++ {
		if v.test(uint8(i)) {
			ids = append(ids, mapping.ModifierId(i))
		}
	}
	return ids
}

// Evaluate is a pure function of c and the receiver's current state.
// Recursion depth is bounded by the compiler (mapping.MaxConditionDepth)
// so no stack blowup is reachable from a compiled artifact.
func (s *DeviceState) Evaluate(c mapping.Condition) bool {
	switch v := c.(type) {
	case mapping.ModifierActive:
		return s.IsModifier(v.ID)
	case mapping.LockActive:
		return s.IsLock(v.ID)
	case mapping.LayerActive:
		return s.InLayer(v.ID)
	case mapping.AllActive:
		for _, child := range v.Conditions {
			if !s.Evaluate(child) {
				return false
			}
		}
		return true
	case mapping.AnyActive:
		for _, child := range v.Conditions {
			if s.Evaluate(child) {
				return true
			}
		}
		return false
	case mapping.NotActive:
		return !s.Evaluate(v.Condition)
	default:
		return false
	}
}
