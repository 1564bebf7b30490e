package optionals

import "testing"

func TestNoneIsNone(t *testing.T) {
	o := None[int]()
	if !o.IsNone() || o.IsSome() {
		t.Fatalf("expected None")
	}
	if v, ok := o.Get(); ok || v != 0 {
		t.Fatalf("expected zero value and false, got %v %v", v, ok)
	}
}

func TestSomeRoundTrips(t *testing.T) {
	o := Some(42)
	if !o.IsSome() || o.IsNone() {
		t.Fatalf("expected Some")
	}
	v, ok := o.Get()
	if !ok || v != 42 {
		t.Fatalf("expected 42, true, got %v %v", v, ok)
	}
}

func TestGetOrDefault(t *testing.T) {
	if got := None[string]().GetOrDefault("x"); got != "x" {
		t.Fatalf("expected default, got %q", got)
	}
	if got := Some("y").GetOrDefault("x"); got != "y" {
		t.Fatalf("expected held value, got %q", got)
	}
}
