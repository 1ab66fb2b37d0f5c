package lookup

import (
	"testing"

	"github.com/keyrx/keyrx/devstate"
	"github.com/keyrx/keyrx/keycode"
	"github.com/keyrx/keyrx/mapping"
)

func TestFindPassthroughOnMiss(t *testing.T) {
	tbl, err := Build(nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := devstate.New()
	if _, ok := tbl.Find(keycode.A, s); ok {
		t.Fatal("expected miss for unregistered key")
	}
}

func TestFindUnconditional(t *testing.T) {
	tbl, err := Build([]mapping.Entry{
		{Key: keycode.A, Mapping: mapping.Simple{To: keycode.B}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := devstate.New()
	m, ok := tbl.Find(keycode.A, s)
	if !ok {
		t.Fatal("expected a hit")
	}
	if simple, ok := m.(mapping.Simple); !ok || simple.To != keycode.B {
		t.Fatalf("unexpected mapping: %#v", m)
	}
}

func TestFindConditionalOrderingAndFallthrough(t *testing.T) {
	tbl, err := Build([]mapping.Entry{
		{Key: keycode.H, Mapping: mapping.Conditional{
			Condition: mapping.ModifierActive{ID: 0},
			Then:      mapping.Simple{To: keycode.Left},
		}},
		{Key: keycode.H, Mapping: mapping.Simple{To: keycode.H}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	s := devstate.New()
	m, ok := tbl.Find(keycode.H, s)
	if !ok {
		t.Fatal("expected unconditional fallback hit")
	}
	if simple := m.(mapping.Simple); simple.To != keycode.H {
		t.Fatalf("expected fallthrough to unconditional, got %#v", m)
	}

	s.SetModifier(0)
	m, ok = tbl.Find(keycode.H, s)
	if !ok {
		t.Fatal("expected conditional hit once modifier is set")
	}
	if simple := m.(mapping.Simple); simple.To != keycode.Left {
		t.Fatalf("expected conditional branch, got %#v", m)
	}
}

func TestBuildRejectsDuplicateUnconditional(t *testing.T) {
	_, err := Build([]mapping.Entry{
		{Key: keycode.A, Mapping: mapping.Simple{To: keycode.B}},
		{Key: keycode.A, Mapping: mapping.Simple{To: keycode.C}},
	})
	if err == nil {
		t.Fatal("expected duplicate-unconditional error")
	}
}

func TestResolveNestedElse(t *testing.T) {
	tbl, err := Build([]mapping.Entry{
		{Key: keycode.A, Mapping: mapping.Conditional{
			Condition: mapping.ModifierActive{ID: 1},
			Then: mapping.Conditional{
				Condition: mapping.ModifierActive{ID: 2},
				Then:      mapping.Simple{To: keycode.B},
				Else:      mapping.Simple{To: keycode.C},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := devstate.New()
	s.SetModifier(1)
	m, ok := tbl.Find(keycode.A, s)
	if !ok {
		t.Fatal("expected a hit")
	}
	if simple := m.(mapping.Simple); simple.To != keycode.C {
		t.Fatalf("expected nested else branch, got %#v", m)
	}
}
