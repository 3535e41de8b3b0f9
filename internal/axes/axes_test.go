package axes

import (
	"testing"

	"github.com/relabs-tech/flight_sensors/internal/sample"
)

func TestParseAndApply(t *testing.T) {
	m, err := Parse("y,x,-z")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	got := m.Apply(sample.Vec{101, 199, 301})
	want := sample.Vec{199, 101, -301}
	if got != want {
		t.Errorf("Apply = %v, want %v", got, want)
	}
}

func TestParseIdentity(t *testing.T) {
	m, err := Parse("x,y,z")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m != Identity() {
		t.Errorf("Parse(x,y,z) = %+v, want identity", m)
	}

	v := sample.Vec{1, 2, 3}
	if got := m.Apply(v); got != v {
		t.Errorf("identity Apply = %v, want %v", got, v)
	}
}

func TestParseAllSigns(t *testing.T) {
	m, err := Parse("-z, -y, -x")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := m.Apply(sample.Vec{1, 2, 3})
	want := sample.Vec{-3, -2, -1}
	if got != want {
		t.Errorf("Apply = %v, want %v", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	for _, spec := range []string{"", "x,y", "x,y,z,w", "x,x,z", "a,y,z", "x,y,-"} {
		if _, err := Parse(spec); err == nil {
			t.Errorf("Parse(%q): expected error", spec)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, spec := range []string{"x,y,z", "y,x,-z", "-z,-y,-x"} {
		m, err := Parse(spec)
		if err != nil {
			t.Fatalf("Parse(%q): %v", spec, err)
		}
		if m.String() != spec {
			t.Errorf("String() = %q, want %q", m.String(), spec)
		}
	}
}
