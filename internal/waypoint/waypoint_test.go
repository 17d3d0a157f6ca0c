package waypoint

import (
	"encoding/json"
	"testing"

	"airspace-sim/internal/geometry"
)

func TestNewDerivesKind(t *testing.T) {
	if k := New(geometry.V(1, 0.05, 1), 5).Kind; k != Ground {
		t.Fatalf("low waypoint kind = %v, want ground", k)
	}
	if k := New(geometry.V(1, 40, 1), 5).Kind; k != Air {
		t.Fatalf("high waypoint kind = %v, want air", k)
	}
}

func TestStringParseRoundTrip(t *testing.T) {
	tests := []Waypoint{
		NewWithKind(geometry.V(1.5, 40, -3.25), 12, Air),
		NewWithKind(geometry.V(0, 0, 0), 1e-6, CollisionEvasion),
		NewWithKind(geometry.V(-1234.5678, 0.1, 99999.125), 29.75, NoFlyEvasion),
		NewWithKind(geometry.V(0.1+0.2, 1.0/3.0, 2), 7, Ground),
	}
	for _, w := range tests {
		t.Run(w.String(), func(t *testing.T) {
			got, err := Parse(w.String())
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got != w {
				t.Fatalf("round trip = %+v, want %+v", got, w)
			}
		})
	}
}

func TestStringFormat(t *testing.T) {
	w := NewWithKind(geometry.V(1, 2.5, -3), 10, CollisionEvasion)
	if got, want := w.String(), "(1, 2.5, -3, 2, 10)"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{"", "(1, 2, 3)", "(a, 2, 3, 1, 1)", "(1, 2, 3, 9, 1)", "(1, 2, 3, 1, x)"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) expected error", s)
		}
	}
}

func TestPathRoundTrip(t *testing.T) {
	path := []Waypoint{
		New(geometry.V(0, 0, 0), 10),
		New(geometry.V(0, 60, 0), 10),
		New(geometry.V(300, 60, 400), 10),
		New(geometry.V(300, 0, 400), 10),
	}
	s := FormatPath(path)
	got, err := ParsePath(s)
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if len(got) != len(path) {
		t.Fatalf("len = %d, want %d", len(got), len(path))
	}
	for i := range path {
		if got[i] != path[i] {
			t.Fatalf("waypoint %d = %+v, want %+v", i, got[i], path[i])
		}
	}
	if l := PathLength(path); l != 60+500+60 {
		t.Fatalf("path length = %v", l)
	}
}

func TestJSONUsesTextForm(t *testing.T) {
	w := NewWithKind(geometry.V(1, 2, 3), 4, Air)
	b, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"(1, 2, 3, 1, 4)"` {
		t.Fatalf("json = %s", b)
	}
	var back Waypoint
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != w {
		t.Fatalf("json round trip = %+v", back)
	}
}

func TestPushToHeight(t *testing.T) {
	g := New(geometry.V(5, 0, 5), 3)
	if p := g.PushToHeight(50, true); p.Kind != Ground || p.Position.Y != 50 {
		t.Fatalf("keepKind push = %+v", p)
	}
	if p := g.PushToHeight(50, false); p.Kind != Air {
		t.Fatalf("push without keepKind = %+v", p)
	}
}
