package keycode

import "testing"

func TestStringKnown(t *testing.T) {
	if got := A.String(); got != "A" {
		t.Fatalf("A.String() = %q, want A", got)
	}
	if got := F12.String(); got != "F12" {
		t.Fatalf("F12.String() = %q, want F12", got)
	}
}

func TestStringUnknown(t *testing.T) {
	k := KeyCode(65000)
	if k.Valid() {
		t.Fatalf("expected %d to be invalid", k)
	}
	if got, want := k.String(), "KeyCode(65000)"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestLookupRoundTrip(t *testing.T) {
	for k, name := range names {
		got, ok := Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%q) not found", name)
		}
		if got != k {
			t.Fatalf("Lookup(%q) = %v, want %v", name, got, k)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := Lookup("NotAKey"); ok {
		t.Fatal("expected Lookup to fail for unknown name")
	}
}

func TestEventString(t *testing.T) {
	e := New(A, Press, 1234)
	if got, want := e.String(), "Press(A,@1234)"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
