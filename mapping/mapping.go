// Package mapping is the tagged-variant model of every mapping kind a
// compiled KeyRx profile can contain, plus the Condition tree mappings
// may be gated on, and the ConfigRoot tree a compiled profile forms.
package mapping

import "github.com/keyrx/keyrx/keycode"

// ModifierId and LockId each name a bit in a DeviceState vector. Value
// 255 is reserved and must never be set; constructors reject it and
// runtime code silently ignores it (logged at ERROR by the caller).
type (
	ModifierId uint8
	LockId     uint8
	LayerId    uint8
)

// ReservedID is the sentinel bit index that is never valid for a
// modifier, lock, or layer.
const ReservedID = 255

// ValidID reports whether id may be used as a ModifierId/LockId/LayerId.
func ValidID(id uint8) bool {
	return id != ReservedID
}

// MaxConditionDepth bounds Condition recursion so the compiler can
// reject pathological nesting before it ever reaches the evaluator.
const MaxConditionDepth = 16

// Condition is a recursive, pure predicate over DeviceState. Evaluation
// lives in the devstate package; this package only defines the shape.
type Condition interface {
	conditionNode()
}

// ModifierActive is true while the named modifier bit is set.
type ModifierActive struct{ ID ModifierId }

// LockActive is true while the named lock bit is set.
type LockActive struct{ ID LockId }

// LayerActive is true while the named layer is on the layer stack.
type LayerActive struct{ ID LayerId }

// AllActive is true when every child condition is true. Empty is true.
type AllActive struct{ Conditions []Condition }

// AnyActive is true when at least one child condition is true. Empty is false.
type AnyActive struct{ Conditions []Condition }

// NotActive negates its child.
type NotActive struct{ Condition Condition }

func (ModifierActive) conditionNode() {}
func (LockActive) conditionNode()     {}
func (LayerActive) conditionNode()    {}
func (AllActive) conditionNode()      {}
func (AnyActive) conditionNode()      {}
func (NotActive) conditionNode()      {}

// TapHoldPolicy selects how a pending tap-hold key resolves when a
// different key is pressed while it is still pending.
type TapHoldPolicy uint8

const (
	// Timeout never commits the hold early: a foreign key press is
	// dispatched immediately with the hold modifier still unset. This
	// is the default when the DSL leaves the policy unspecified,
	// since it never hides a commit inside an unrelated keypress.
	Timeout TapHoldPolicy = iota
	// Permissive commits the hold as soon as a foreign key is pressed,
	// then re-dispatches that key with the hold modifier active.
	Permissive
)

func (p TapHoldPolicy) String() string {
	if p == Permissive {
		return "Permissive"
	}
	return "Timeout"
}

// Mapping is the value side of the lookup table: what a key resolves
// to, given the device state active at lookup time.
type Mapping interface {
	mappingNode()
}

// Simple emits Press/Release of To whenever the input key is
// pressed/released.
type Simple struct{ To keycode.KeyCode }

// ModifierMapping sets ID on Press and clears it on Release. It never
// emits an output event itself.
type ModifierMapping struct{ ID ModifierId }

// LockMapping toggles ID on Press. Release is a deliberate no-op: this
// spec codifies that lock state changes only on press.
type LockMapping struct{ ID LockId }

// ModifiedOutput presses Mods in order, then To, on input Press; on
// input Release it emits the mirror image: Release(To) then
// Release(Mods) in reverse order.
type ModifiedOutput struct {
	Mods []keycode.KeyCode
	To   keycode.KeyCode
}

// Conditional evaluates Condition at lookup time and selects Then when
// true. Else may be nil, in which case a false evaluation falls
// through to the next candidate in the lookup list (or passthrough).
type Conditional struct {
	Condition Condition
	Then      Mapping
	Else      Mapping
}

// TapHold hands the key to the tap-hold DFA: a Press that releases
// before ThresholdMs elapses taps Tap; held past threshold it sets
// HoldMod for the duration of the hold.
type TapHold struct {
	Tap         keycode.KeyCode
	HoldMod     ModifierId
	ThresholdMs uint32
	Policy      TapHoldPolicy
}

// LayerMapping pushes ID onto the layer stack on Press and pops it on
// Release.
type LayerMapping struct{ ID LayerId }

func (Simple) mappingNode()          {}
func (ModifierMapping) mappingNode() {}
func (LockMapping) mappingNode()     {}
func (ModifiedOutput) mappingNode()  {}
func (Conditional) mappingNode()     {}
func (TapHold) mappingNode()         {}
func (LayerMapping) mappingNode()    {}

// Entry binds one source key to the mapping that handles it. A device
// may register multiple Entries for the same Key; at most one may be
// unconditional (see lookup.Build).
type Entry struct {
	Key     keycode.KeyCode
	Mapping Mapping
}

// LayerDef names a layer id for diagnostics and DSL round-tripping.
type LayerDef struct {
	ID   LayerId
	Name string
}

// DeviceMatch identifies a physical device across reboots by
// (vendor, product, serial?), as named in spec.md section 3. Serial is
// optional: a nil Serial matches any serial for the given vendor/product.
type DeviceMatch struct {
	Vendor  uint16
	Product uint16
	Serial  *string
}

// Matches reports whether d identifies the same physical device as m.
func (m DeviceMatch) Matches(vendor, product uint16, serial string) bool {
	if m.Vendor != vendor || m.Product != product {
		return false
	}
	if m.Serial == nil {
		return true
	}
	return *m.Serial == serial
}

// ConditionDepth returns the nesting depth of c (a leaf condition has
// depth 1). The compiler rejects trees deeper than MaxConditionDepth
// before they ever reach the evaluator.
func ConditionDepth(c Condition) int {
	switch v := c.(type) {
	case AllActive:
		return 1 + maxDepth(v.Conditions)
	case AnyActive:
		return 1 + maxDepth(v.Conditions)
	case NotActive:
		return 1 + ConditionDepth(v.Condition)
	default:
		return 1
	}
}

func maxDepth(cs []Condition) int {
	best := 0
	for _, c := range cs {
		if d := ConditionDepth(c); d > best {
			best = d
		}
	}
	return best
}

// GlobalDeviceID is the synthetic device that global mappings (those
// not scoped to any particular physical device) are attached to.
const GlobalDeviceID = "*"

// DeviceConfig is the mapping table, layer set, and identity pattern
// for one logical device (or the synthetic global device).
type DeviceConfig struct {
	ID       string
	Match    DeviceMatch
	Mappings []Entry
	Layers   []LayerDef
}

// ConfigRoot is the canonical, post-compile representation of an
// entire profile: the artifact codec serializes exactly this tree.
type ConfigRoot struct {
	Devices []DeviceConfig
}
