package processor

import (
	"testing"

	"github.com/keyrx/keyrx/keycode"
	"github.com/keyrx/keyrx/lookup"
	"github.com/keyrx/keyrx/mapping"
	"github.com/keyrx/keyrx/observability"
)

func build(t *testing.T, entries []mapping.Entry) *lookup.Table {
	t.Helper()
	tbl, err := lookup.Build(entries)
	if err != nil {
		t.Fatalf("lookup.Build: %v", err)
	}
	return tbl
}

func TestProcessPassthroughOnMiss(t *testing.T) {
	p := New("dev0", build(t, nil), nil)
	var out keycode.Buffer
	if err := p.Process(keycode.New(keycode.A, keycode.Press, 0), &out); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Len() != 1 || out.Events()[0].Key != keycode.A {
		t.Fatalf("expected passthrough of A, got %v", out.Events())
	}
}

func TestProcessSimple(t *testing.T) {
	tbl := build(t, []mapping.Entry{
		{Key: keycode.A, Mapping: mapping.Simple{To: keycode.B}},
	})
	p := New("dev0", tbl, nil)
	var out keycode.Buffer
	p.Process(keycode.New(keycode.A, keycode.Press, 0), &out)
	if got := out.Events(); len(got) != 1 || got[0].Key != keycode.B || got[0].Kind != keycode.Press {
		t.Fatalf("unexpected emission: %v", got)
	}
}

func TestProcessModifierMapping(t *testing.T) {
	tbl := build(t, []mapping.Entry{
		{Key: keycode.LShift, Mapping: mapping.ModifierMapping{ID: 3}},
		{Key: keycode.H, Mapping: mapping.Conditional{
			Condition: mapping.ModifierActive{ID: 3},
			Then:      mapping.Simple{To: keycode.Left},
		}},
		{Key: keycode.H, Mapping: mapping.Simple{To: keycode.H}},
	})
	p := New("dev0", tbl, nil)
	var out keycode.Buffer

	p.Process(keycode.New(keycode.LShift, keycode.Press, 0), &out)
	if out.Len() != 0 {
		t.Fatalf("ModifierMapping should never emit, got %v", out.Events())
	}

	p.Process(keycode.New(keycode.H, keycode.Press, 1), &out)
	if got := out.Events(); len(got) != 1 || got[0].Key != keycode.Left {
		t.Fatalf("expected conditional branch while modifier held, got %v", got)
	}

	out.Reset()
	p.Process(keycode.New(keycode.LShift, keycode.Release, 2), &out)
	p.Process(keycode.New(keycode.H, keycode.Press, 3), &out)
	if got := out.Events(); len(got) != 1 || got[0].Key != keycode.H {
		t.Fatalf("expected unconditional fallback after modifier release, got %v", got)
	}
}

func TestProcessLockMappingReleaseIsNoop(t *testing.T) {
	tbl := build(t, []mapping.Entry{
		{Key: keycode.CapsLock, Mapping: mapping.LockMapping{ID: 5}},
	})
	p := New("dev0", tbl, nil)
	var out keycode.Buffer
	p.Process(keycode.New(keycode.CapsLock, keycode.Press, 0), &out)
	p.Process(keycode.New(keycode.CapsLock, keycode.Release, 1), &out)
	if out.Len() != 0 {
		t.Fatalf("lock mapping never emits output, got %v", out.Events())
	}
	if !p.state.IsLock(5) {
		t.Fatal("lock should still be on: release must not toggle it back off")
	}
}

func TestProcessModifiedOutputOrdering(t *testing.T) {
	tbl := build(t, []mapping.Entry{
		{Key: keycode.A, Mapping: mapping.ModifiedOutput{
			Mods: []keycode.KeyCode{keycode.LCtrl, keycode.LShift},
			To:   keycode.Z,
		}},
	})
	p := New("dev0", tbl, nil)
	var out keycode.Buffer

	p.Process(keycode.New(keycode.A, keycode.Press, 0), &out)
	press := out.Events()
	wantPress := []keycode.Event{
		keycode.New(keycode.LCtrl, keycode.Press, 0),
		keycode.New(keycode.LShift, keycode.Press, 0),
		keycode.New(keycode.Z, keycode.Press, 0),
	}
	if len(press) != len(wantPress) {
		t.Fatalf("press emission length: got %v want %v", press, wantPress)
	}
	for i := range wantPress {
		if press[i] != wantPress[i] {
			t.Fatalf("press[%d] = %v, want %v", i, press[i], wantPress[i])
		}
	}

	out.Reset()
	p.Process(keycode.New(keycode.A, keycode.Release, 1), &out)
	release := out.Events()
	wantRelease := []keycode.Event{
		keycode.New(keycode.Z, keycode.Release, 1),
		keycode.New(keycode.LShift, keycode.Release, 1),
		keycode.New(keycode.LCtrl, keycode.Release, 1),
	}
	if len(release) != len(wantRelease) {
		t.Fatalf("release emission length: got %v want %v", release, wantRelease)
	}
	for i := range wantRelease {
		if release[i] != wantRelease[i] {
			t.Fatalf("release[%d] = %v, want %v", i, release[i], wantRelease[i])
		}
	}
}

func TestProcessLayerPushPop(t *testing.T) {
	tbl := build(t, []mapping.Entry{
		{Key: keycode.CapsLock, Mapping: mapping.LayerMapping{ID: 2}},
	})
	p := New("dev0", tbl, nil)
	var out keycode.Buffer
	p.Process(keycode.New(keycode.CapsLock, keycode.Press, 0), &out)
	if !p.state.InLayer(2) {
		t.Fatal("layer should be pushed")
	}
	p.Process(keycode.New(keycode.CapsLock, keycode.Release, 1), &out)
	if p.state.InLayer(2) {
		t.Fatal("layer should be popped")
	}
}

func TestProcessTapHoldTap(t *testing.T) {
	tbl := build(t, []mapping.Entry{
		{Key: keycode.CapsLock, Mapping: mapping.TapHold{
			Tap: keycode.Escape, HoldMod: 7, ThresholdMs: 200, Policy: mapping.Timeout,
		}},
	})
	p := New("dev0", tbl, nil)
	var out keycode.Buffer
	p.Process(keycode.New(keycode.CapsLock, keycode.Press, 0), &out)
	if out.Len() != 0 {
		t.Fatalf("press alone should not emit yet, got %v", out.Events())
	}
	p.Process(keycode.New(keycode.CapsLock, keycode.Release, 150000), &out)
	got := out.Events()
	if len(got) != 2 || got[0].Key != keycode.Escape || got[1].Key != keycode.Escape {
		t.Fatalf("expected Escape tap, got %v", got)
	}
}

func TestProcessTapHoldCapacityDemotion(t *testing.T) {
	entries := make([]mapping.Entry, 0, 33)
	for i := 0; i < 33; i++ {
		entries = append(entries, mapping.Entry{
			Key: keycode.KeyCode(1000 + i),
			Mapping: mapping.TapHold{
				Tap: keycode.Escape, HoldMod: 1, ThresholdMs: 200000, Policy: mapping.Timeout,
			},
		})
	}
	tbl := build(t, entries)
	sink := &observability.CollectingSink{}
	p := New("dev0", tbl, sink)
	var out keycode.Buffer

	for i := 0; i < 32; i++ {
		if err := p.Process(keycode.New(keycode.KeyCode(1000+i), keycode.Press, 0), &out); err != nil {
			t.Fatalf("registration %d should succeed, got %v", i, err)
		}
	}

	out.Reset()
	err := p.Process(keycode.New(keycode.KeyCode(1032), keycode.Press, 0), &out)
	if err == nil {
		t.Fatal("expected capacity exceeded error on the 33rd pending key")
	}
	if got := out.Events(); len(got) != 1 || got[0].Key != keycode.Escape {
		t.Fatalf("expected demoted tap emission, got %v", got)
	}

	foundDrop := false
	for _, r := range sink.Records {
		if r.Kind == observability.KindCapacityExceeded {
			foundDrop = true
		}
	}
	if !foundDrop {
		t.Fatal("expected a capacity-exceeded telemetry record")
	}
}

func TestProcessPermissiveEarlyCommit(t *testing.T) {
	tbl := build(t, []mapping.Entry{
		{Key: keycode.CapsLock, Mapping: mapping.TapHold{
			Tap: keycode.Escape, HoldMod: 9, ThresholdMs: 500000, Policy: mapping.Permissive,
		}},
		{Key: keycode.H, Mapping: mapping.Conditional{
			Condition: mapping.ModifierActive{ID: 9},
			Then:      mapping.Simple{To: keycode.Left},
		}},
		{Key: keycode.H, Mapping: mapping.Simple{To: keycode.H}},
	})
	p := New("dev0", tbl, nil)
	var out keycode.Buffer

	p.Process(keycode.New(keycode.CapsLock, keycode.Press, 0), &out)
	p.Process(keycode.New(keycode.H, keycode.Press, 1000), &out)

	got := out.Events()
	if len(got) != 1 || got[0].Key != keycode.Left {
		t.Fatalf("permissive policy should confirm hold before dispatching H, got %v", got)
	}
}

func TestTickDrivesTimeoutIndependentlyOfEvents(t *testing.T) {
	tbl := build(t, []mapping.Entry{
		{Key: keycode.CapsLock, Mapping: mapping.TapHold{
			Tap: keycode.Escape, HoldMod: 4, ThresholdMs: 100, Policy: mapping.Timeout,
		}},
	})
	p := New("dev0", tbl, nil)
	var out keycode.Buffer
	p.Process(keycode.New(keycode.CapsLock, keycode.Press, 0), &out)

	p.Tick(200000, &out)
	if !p.state.IsModifier(4) {
		t.Fatal("Tick alone should promote the pending hold once its threshold elapses")
	}
}
