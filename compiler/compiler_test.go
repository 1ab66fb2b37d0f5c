package compiler

import (
	"testing"

	"github.com/keyrx/keyrx/errs"
	"github.com/keyrx/keyrx/keycode"
	"github.com/keyrx/keyrx/mapping"
)

func TestCompileSimple(t *testing.T) {
	root, diags, warnings := Compile([]byte(`simple(A, B)`))
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(root.Devices) != 1 || len(root.Devices[0].Mappings) != 1 {
		t.Fatalf("unexpected root: %#v", root)
	}
	entry := root.Devices[0].Mappings[0]
	simple, ok := entry.Mapping.(mapping.Simple)
	if !ok || entry.Key != keycode.A || simple.To != keycode.B {
		t.Fatalf("unexpected entry: %#v", entry)
	}
}

func TestCompileUnknownKeyIsSemanticError(t *testing.T) {
	_, diags, _ := Compile([]byte(`simple(NOT_A_KEY, B)`))
	if len(diags) != 1 || diags[0].Kind != errs.ErrSemantic {
		t.Fatalf("expected one diagnostic, got %v", diags)
	}
}

func TestCompileDuplicateUnconditionalMapping(t *testing.T) {
	_, diags, _ := Compile([]byte(`
		simple(A, B)
		simple(A, C)
	`))
	if len(diags) != 1 {
		t.Fatalf("expected duplicate-mapping diagnostic, got %v", diags)
	}
	if diags[0].Kind != errs.ErrDuplicateMapping {
		t.Fatalf("expected ErrDuplicateMapping, got %v", diags[0].Kind)
	}
}

func TestCompileConditionalDoesNotCountAsUnconditionalDuplicate(t *testing.T) {
	_, diags, _ := Compile([]byte(`
		when(md(1)) {
			simple(A, B)
		}
		simple(A, C)
	`))
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

func TestCompileTapHoldThresholdTooSmall(t *testing.T) {
	_, diags, _ := Compile([]byte(`tap_hold(CapsLock, Escape, MD_00, 10)`))
	if len(diags) != 1 || diags[0].Kind != errs.ErrThresholdTooSmall {
		t.Fatalf("expected ErrThresholdTooSmall, got %v", diags)
	}
}

func TestCompileTapHoldThresholdTooLargeIsWarningNotError(t *testing.T) {
	root, diags, warnings := Compile([]byte(`tap_hold(CapsLock, Escape, MD_00, 5000)`))
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	th := root.Devices[0].Mappings[0].Mapping.(mapping.TapHold)
	if th.ThresholdMs != 5000 {
		t.Fatalf("threshold should still be accepted as-is: %#v", th)
	}
}

func TestCompileTapHoldPermissivePolicy(t *testing.T) {
	root, diags, _ := Compile([]byte(`tap_hold(CapsLock, Escape, MD_00, 200, permissive)`))
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	th := root.Devices[0].Mappings[0].Mapping.(mapping.TapHold)
	if th.Policy != mapping.Permissive {
		t.Fatalf("expected permissive policy, got %v", th.Policy)
	}
}

func TestCompileModifiedOutput(t *testing.T) {
	root, diags, _ := Compile([]byte(`modified_output(A, [LCtrl, LShift], Z)`))
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	mo := root.Devices[0].Mappings[0].Mapping.(mapping.ModifiedOutput)
	if mo.To != keycode.Z || len(mo.Mods) != 2 || mo.Mods[0] != keycode.LCtrl || mo.Mods[1] != keycode.LShift {
		t.Fatalf("unexpected modified_output: %#v", mo)
	}
}

func TestCompileConditionDepthLimit(t *testing.T) {
	cond := "md(1)"
	for i := 0; i < mapping.MaxConditionDepth; i++ {
		cond = "not(" + cond + ")"
	}
	src := "when(" + cond + ") {\n  simple(A, B)\n}"
	_, diags, _ := Compile([]byte(src))
	if len(diags) != 1 {
		t.Fatalf("expected condition-depth diagnostic, got %v", diags)
	}
}

func TestCompileWhenWrapsConditional(t *testing.T) {
	root, diags, _ := Compile([]byte(`
		when(md(3)) {
			simple(H, Left)
		}
	`))
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	cond := root.Devices[0].Mappings[0].Mapping.(mapping.Conditional)
	if _, ok := cond.Condition.(mapping.ModifierActive); !ok {
		t.Fatalf("expected ModifierActive guard, got %#v", cond.Condition)
	}
	if _, ok := cond.Then.(mapping.Simple); !ok {
		t.Fatalf("expected Simple inside the conditional, got %#v", cond.Then)
	}
}

func TestCompileDeviceBlock(t *testing.T) {
	root, diags, _ := Compile([]byte(`
		device_start("046d:c52b")
			simple(A, B)
		device_end()
		simple(C, D)
	`))
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(root.Devices) != 2 {
		t.Fatalf("expected global device plus one scoped device, got %d", len(root.Devices))
	}
	var scoped, global *mapping.DeviceConfig
	for i := range root.Devices {
		d := &root.Devices[i]
		if d.ID == mapping.GlobalDeviceID {
			global = d
		} else {
			scoped = d
		}
	}
	if scoped == nil || global == nil {
		t.Fatalf("expected both a global and a scoped device: %#v", root.Devices)
	}
	if scoped.Match.Vendor != 0x046d || scoped.Match.Product != 0xc52b {
		t.Fatalf("unexpected device match: %#v", scoped.Match)
	}
	if len(scoped.Mappings) != 1 || len(global.Mappings) != 1 {
		t.Fatalf("mappings not scoped correctly: scoped=%v global=%v", scoped.Mappings, global.Mappings)
	}
}

func TestCompileLayerBlockWithTrigger(t *testing.T) {
	root, diags, _ := Compile([]byte(`
		layer(CapsLock, 2) {
			simple(H, Left)
		}
	`))
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	dev := root.Devices[0]
	if len(dev.Layers) != 1 || dev.Layers[0].ID != 2 {
		t.Fatalf("expected layer 2 registered, got %#v", dev.Layers)
	}
	var sawTrigger, sawScoped bool
	for _, e := range dev.Mappings {
		if e.Key == keycode.CapsLock {
			if _, ok := e.Mapping.(mapping.LayerMapping); ok {
				sawTrigger = true
			}
		}
		if e.Key == keycode.H {
			if cond, ok := e.Mapping.(mapping.Conditional); ok {
				if la, ok := cond.Condition.(mapping.LayerActive); ok && la.ID == 2 {
					sawScoped = true
				}
			}
		}
	}
	if !sawTrigger || !sawScoped {
		t.Fatalf("expected both a layer trigger and a layer-scoped mapping: %#v", dev.Mappings)
	}
}

func TestCompileDiagnosticsCap(t *testing.T) {
	src := ""
	for i := 0; i < MaxDiagnostics+10; i++ {
		src += "simple(NOT_A_KEY, B)\n"
	}
	_, diags, _ := Compile([]byte(src))
	if len(diags) != MaxDiagnostics {
		t.Fatalf("expected diagnostics capped at %d, got %d", MaxDiagnostics, len(diags))
	}
}
