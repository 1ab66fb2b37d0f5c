//go:build linux

package linux

import (
	"testing"

	"github.com/keyrx/keyrx/keycode"
)

func TestKeymapIsBijective(t *testing.T) {
	if len(linuxKeyToCode) != len(codeToLinuxKey) {
		t.Fatalf("lossy translation table: %d Linux codes map back to %d KeyCodes",
			len(codeToLinuxKey), len(linuxKeyToCode))
	}
	for key, code := range codeToLinuxKey {
		back, ok := linuxKeyToCode[code]
		if !ok {
			t.Fatalf("scancode %d (from %s) has no reverse entry", code, key)
		}
		if back != key {
			t.Fatalf("round trip broken: %s -> %d -> %s", key, code, back)
		}
	}
}

func TestKeymapCoversLetters(t *testing.T) {
	for k := keycode.A; k <= keycode.Z; k++ {
		if _, ok := codeToLinuxKey[k]; !ok {
			t.Fatalf("letter %s has no Linux scancode", k)
		}
	}
}
