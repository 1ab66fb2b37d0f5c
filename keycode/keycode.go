// Package keycode defines the canonical key identifier set and the
// press/release event type that everything else in KeyRx is built on.
package keycode

import "fmt"

// KeyCode is a closed enumeration of recognized keys. Its total ordering
// is fixed at artifact version time (see the artifact package); adding
// new codes requires a version bump there.
type KeyCode uint16

// Invalid is the zero value and never appears in a well-formed artifact.
const Invalid KeyCode = 0

const (
	A KeyCode = iota + 1
	B
	C
	D
	E
	F
	G
	H
	I
	J
	K
	L
	M
	N
	O
	P
	Q
	R
	S
	T
	U
	V
	W
	X
	Y
	Z
)

const (
	Digit0 KeyCode = iota + 100
	Digit1
	Digit2
	Digit3
	Digit4
	Digit5
	Digit6
	Digit7
	Digit8
	Digit9
)

const (
	F1 KeyCode = iota + 200
	F2
	F3
	F4
	F5
	F6
	F7
	F8
	F9
	F10
	F11
	F12
	F13
	F14
	F15
	F16
	F17
	F18
	F19
	F20
	F21
	F22
	F23
	F24
)

const (
	Up KeyCode = iota + 300
	Down
	Left
	Right
	Home
	End
	PageUp
	PageDown
	Insert
	Delete
	Tab
	Backtab
	Enter
	Escape
	Backspace
	Space
	CapsLock
	ScrollLock
	NumLock
	PrintScreen
	Pause
	ContextMenu
)

const (
	Num0 KeyCode = iota + 400
	Num1
	Num2
	Num3
	Num4
	Num5
	Num6
	Num7
	Num8
	Num9
	NumDecimal
	NumDivide
	NumMultiply
	NumSubtract
	NumAdd
	NumEnter
	NumEqual
)

const (
	LShift KeyCode = iota + 500
	RShift
	LCtrl
	RCtrl
	LAlt
	RAlt
	LSuper
	RSuper
)

const (
	Grave KeyCode = iota + 600
	Minus
	Equal
	LBracket
	RBracket
	Backslash
	Semicolon
	Quote
	Comma
	Period
	Slash
	IntlBackslash
	IntlRo
	IntlYen
	Fn
	Mute
	VolumeUp
	VolumeDown
	MediaPlayPause
	MediaNext
	MediaPrev
)

var names = map[KeyCode]string{
	A: "A", B: "B", C: "C", D: "D", E: "E", F: "F", G: "G", H: "H", I: "I",
	J: "J", K: "K", L: "L", M: "M", N: "N", O: "O", P: "P", Q: "Q", R: "R",
	S: "S", T: "T", U: "U", V: "V", W: "W", X: "X", Y: "Y", Z: "Z",
	Digit0: "Digit0", Digit1: "Digit1", Digit2: "Digit2", Digit3: "Digit3",
	Digit4: "Digit4", Digit5: "Digit5", Digit6: "Digit6", Digit7: "Digit7",
	Digit8: "Digit8", Digit9: "Digit9",
	F1: "F1", F2: "F2", F3: "F3", F4: "F4", F5: "F5", F6: "F6", F7: "F7",
	F8: "F8", F9: "F9", F10: "F10", F11: "F11", F12: "F12", F13: "F13",
	F14: "F14", F15: "F15", F16: "F16", F17: "F17", F18: "F18", F19: "F19",
	F20: "F20", F21: "F21", F22: "F22", F23: "F23", F24: "F24",
	Up: "Up", Down: "Down", Left: "Left", Right: "Right", Home: "Home",
	End: "End", PageUp: "PageUp", PageDown: "PageDown", Insert: "Insert",
	Delete: "Delete", Tab: "Tab", Backtab: "Backtab", Enter: "Enter",
	Escape: "Escape", Backspace: "Backspace", Space: "Space",
	CapsLock: "CapsLock", ScrollLock: "ScrollLock", NumLock: "NumLock",
	PrintScreen: "PrintScreen", Pause: "Pause", ContextMenu: "ContextMenu",
	Num0: "Num0", Num1: "Num1", Num2: "Num2", Num3: "Num3", Num4: "Num4",
	Num5: "Num5", Num6: "Num6", Num7: "Num7", Num8: "Num8", Num9: "Num9",
	NumDecimal: "NumDecimal", NumDivide: "NumDivide", NumMultiply: "NumMultiply",
	NumSubtract: "NumSubtract", NumAdd: "NumAdd", NumEnter: "NumEnter",
	NumEqual: "NumEqual",
	LShift: "LShift", RShift: "RShift", LCtrl: "LCtrl", RCtrl: "RCtrl",
	LAlt: "LAlt", RAlt: "RAlt", LSuper: "LSuper", RSuper: "RSuper",
	Grave: "Grave", Minus: "Minus", Equal: "Equal", LBracket: "LBracket",
	RBracket: "RBracket", Backslash: "Backslash", Semicolon: "Semicolon",
	Quote: "Quote", Comma: "Comma", Period: "Period", Slash: "Slash",
	IntlBackslash: "IntlBackslash", IntlRo: "IntlRo", IntlYen: "IntlYen",
	Fn: "Fn", Mute: "Mute", VolumeUp: "VolumeUp", VolumeDown: "VolumeDown",
	MediaPlayPause: "MediaPlayPause", MediaNext: "MediaNext", MediaPrev: "MediaPrev",
}

var byName map[string]KeyCode

func init() {
	byName = make(map[string]KeyCode, len(names))
	for k, v := range names {
		byName[v] = k
	}
}

// String returns the canonical DSL-facing name for k, or a numeric
// placeholder if k is outside the closed enumeration.
func (k KeyCode) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("KeyCode(%d)", uint16(k))
}

// Lookup resolves a canonical name (as used by the DSL) to a KeyCode.
func Lookup(name string) (KeyCode, bool) {
	k, ok := byName[name]
	return k, ok
}

// Valid reports whether k is a member of the closed enumeration.
func (k KeyCode) Valid() bool {
	_, ok := names[k]
	return ok
}

// EventType distinguishes a key press from a key release. Auto-repeat
// events are coalesced into Press by the producer before they ever
// reach the core; the core never sees a third state.
type EventType uint8

const (
	Press EventType = iota
	Release
)

func (e EventType) String() string {
	switch e {
	case Press:
		return "Press"
	case Release:
		return "Release"
	default:
		return fmt.Sprintf("EventType(%d)", uint8(e))
	}
}

// Event is a single key press or release, timestamped in microseconds
// by the producer (OS backend or simulator virtual clock). The core
// never reads a wall clock; TimestampUs is the only notion of time it
// has. Timestamps are required monotone per source but may repeat a
// previous value.
type Event struct {
	Key         KeyCode
	Kind        EventType
	TimestampUs uint64
}

// New is a small convenience constructor, mirroring the producer-side
// construction pattern used throughout the platform backends.
func New(key KeyCode, kind EventType, tsUs uint64) Event {
	return Event{Key: key, Kind: kind, TimestampUs: tsUs}
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%s,@%d)", e.Kind, e.Key, e.TimestampUs)
}

// MaxOutputEvents is the worst-case number of output events a single
// input event can produce (a ModifiedOutput release with 7 modifiers
// plus the target), per spec.md invariant 4.
const MaxOutputEvents = 8

// Buffer is the fixed-capacity, allocation-free output buffer the
// event processor and tap-hold DFA write emissions into. Its capacity
// is exactly the worst case named by invariant 4, so Push can never
// need to grow a backing array.
type Buffer struct {
	events [MaxOutputEvents]Event
	n      int
}

// Push appends e, returning false if the buffer is already at
// MaxOutputEvents (which would indicate an invariant violation
// upstream; callers should treat a false return as errs.ErrInvariantViolation).
func (b *Buffer) Push(e Event) bool {
	if b.n >= MaxOutputEvents {
		return false
	}
	b.events[b.n] = e
	b.n++
	return true
}

// Events returns the events written so far, in order.
func (b *Buffer) Events() []Event {
	return b.events[:b.n]
}

// Len reports how many events have been written.
func (b *Buffer) Len() int {
	return b.n
}

// Reset empties the buffer for reuse, without releasing its backing array.
func (b *Buffer) Reset() {
	b.n = 0
}
