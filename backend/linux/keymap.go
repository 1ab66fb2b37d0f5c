//go:build linux

package linux

import "github.com/keyrx/keyrx/keycode"

// linuxKeyToCode and codeToLinuxKey are the two directions of the
// translation between evdev/uinput KEY_* scancodes
// (include/uapi/linux/input-event-codes.h) and keycode.KeyCode. Fn has
// no standard kernel scancode; KEY_FN (0x1d0) is a common vendor
// convention and is used here on a best-effort basis.
var codeToLinuxKey = map[keycode.KeyCode]uint16{
	keycode.A: 30, keycode.B: 48, keycode.C: 46, keycode.D: 32, keycode.E: 18,
	keycode.F: 33, keycode.G: 34, keycode.H: 35, keycode.I: 23, keycode.J: 36,
	keycode.K: 37, keycode.L: 38, keycode.M: 50, keycode.N: 49, keycode.O: 24,
	keycode.P: 25, keycode.Q: 16, keycode.R: 19, keycode.S: 31, keycode.T: 20,
	keycode.U: 22, keycode.V: 47, keycode.W: 17, keycode.X: 45, keycode.Y: 21,
	keycode.Z: 44,

	keycode.Digit0: 11, keycode.Digit1: 2, keycode.Digit2: 3, keycode.Digit3: 4,
	keycode.Digit4: 5, keycode.Digit5: 6, keycode.Digit6: 7, keycode.Digit7: 8,
	keycode.Digit8: 9, keycode.Digit9: 10,

	keycode.F1: 59, keycode.F2: 60, keycode.F3: 61, keycode.F4: 62, keycode.F5: 63,
	keycode.F6: 64, keycode.F7: 65, keycode.F8: 66, keycode.F9: 67, keycode.F10: 68,
	keycode.F11: 87, keycode.F12: 88, keycode.F13: 183, keycode.F14: 184,
	keycode.F15: 185, keycode.F16: 186, keycode.F17: 187, keycode.F18: 188,
	keycode.F19: 189, keycode.F20: 190, keycode.F21: 191, keycode.F22: 192,
	keycode.F23: 193, keycode.F24: 194,

	keycode.Up: 103, keycode.Down: 108, keycode.Left: 105, keycode.Right: 106,
	keycode.Home: 102, keycode.End: 107, keycode.PageUp: 104, keycode.PageDown: 109,
	keycode.Insert: 110, keycode.Delete: 111, keycode.Tab: 15,
	keycode.Enter: 28, keycode.Escape: 1, keycode.Backspace: 14, keycode.Space: 57,
	keycode.CapsLock: 58, keycode.ScrollLock: 70, keycode.NumLock: 69,
	keycode.PrintScreen: 99, keycode.Pause: 119, keycode.ContextMenu: 127,

	keycode.Num0: 82, keycode.Num1: 79, keycode.Num2: 80, keycode.Num3: 81,
	keycode.Num4: 75, keycode.Num5: 76, keycode.Num6: 77, keycode.Num7: 71,
	keycode.Num8: 72, keycode.Num9: 73, keycode.NumDecimal: 83, keycode.NumDivide: 98,
	keycode.NumMultiply: 55, keycode.NumSubtract: 74, keycode.NumAdd: 78,
	keycode.NumEnter: 96, keycode.NumEqual: 117,

	keycode.LShift: 42, keycode.RShift: 54, keycode.LCtrl: 29, keycode.RCtrl: 97,
	keycode.LAlt: 56, keycode.RAlt: 100, keycode.LSuper: 125, keycode.RSuper: 126,

	keycode.Grave: 41, keycode.Minus: 12, keycode.Equal: 13, keycode.LBracket: 26,
	keycode.RBracket: 27, keycode.Backslash: 43, keycode.Semicolon: 39,
	keycode.Quote: 40, keycode.Comma: 51, keycode.Period: 52, keycode.Slash: 53,
	keycode.IntlBackslash: 86, keycode.IntlRo: 89, keycode.IntlYen: 124,
	keycode.Fn: 464, keycode.Mute: 113, keycode.VolumeUp: 115, keycode.VolumeDown: 114,
	keycode.MediaPlayPause: 164, keycode.MediaNext: 163, keycode.MediaPrev: 165,
}

func init() {
	linuxKeyToCode = make(map[uint16]keycode.KeyCode, len(codeToLinuxKey))
	for k, v := range codeToLinuxKey {
		linuxKeyToCode[v] = k
	}
}

var linuxKeyToCode map[uint16]keycode.KeyCode
