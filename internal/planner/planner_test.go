package planner

import (
	"math"
	"testing"

	"airspace-sim/internal/geometry"
	"airspace-sim/internal/uav"
	"airspace-sim/internal/waypoint"
)

func newAgent(t *testing.T, id int, target geometry.Vec3) *uav.Agent {
	t.Helper()
	p := uav.Params{MaxSpeed: 20, Speed: 10, Diameter: 1, MaxFlightTime: 100, CruiseHeight: 60}
	a, err := uav.New(id, p, geometry.V(0, 0, 0), target)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestBuildRoute(t *testing.T) {
	route := BuildRoute(geometry.V(1, 0, 2), geometry.V(100, 0, 200), 12, 80)
	want := []struct {
		pos  geometry.Vec3
		kind waypoint.Kind
	}{
		{geometry.V(1, 0, 2), waypoint.Ground},
		{geometry.V(1, 80, 2), waypoint.Air},
		{geometry.V(100, 80, 200), waypoint.Air},
		{geometry.V(100, 0, 200), waypoint.Ground},
	}
	if len(route) != len(want) {
		t.Fatalf("route len = %d", len(route))
	}
	for i, w := range want {
		if route[i].Position != w.pos || route[i].Kind != w.kind || route[i].Speed != 12 {
			t.Errorf("waypoint %d = %v, want %v kind %s", i, route[i], w.pos, w.kind)
		}
	}
}

func TestReachable(t *testing.T) {
	start := geometry.V(0, 0, 0)
	if got := Reachable(start, geometry.V(0, 0, 400), 10, 100); got != geometry.V(0, 0, 400) {
		t.Errorf("in range target moved to %v", got)
	}
	got := Reachable(start, geometry.V(0, 0, 2000), 10, 100)
	if math.Abs(got.Z-500) > 1e-9 {
		t.Errorf("pulled target = %v, want z=500", got)
	}
	if got := Reachable(start, geometry.V(0, 0, 2000), 10, 0); got.Z != 2000 {
		t.Errorf("zero budget should not limit, got %v", got)
	}
}

func TestSubmitAndProcess(t *testing.T) {
	p := New(nil)
	a := newAgent(t, 1, geometry.V(0, 0, 300))
	b := newAgent(t, 2, geometry.V(0, 0, 5000))
	for _, ag := range []*uav.Agent{a, b} {
		if err := p.Submit(ag); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if ag.State() != uav.StateWaitingResponse {
			t.Fatalf("state = %s", ag.State())
		}
	}
	if err := p.Submit(a); err == nil {
		t.Fatal("double submit accepted")
	}
	if p.Pending() != 2 {
		t.Fatalf("pending = %d", p.Pending())
	}

	if n := p.Process(); n != 2 {
		t.Fatalf("approved %d, want 2", n)
	}
	if p.Pending() != 0 {
		t.Fatal("queue not drained")
	}
	if a.PathLen() != 4 || b.PathLen() != 4 {
		t.Fatalf("path lens %d %d", a.PathLen(), b.PathLen())
	}
	if got := b.Target(); math.Abs(got.Z-500) > 1e-9 {
		t.Fatalf("b target = %v, want pulled to 500", got)
	}
}

func TestForget(t *testing.T) {
	p := New(nil)
	a := newAgent(t, 1, geometry.V(0, 0, 300))
	b := newAgent(t, 2, geometry.V(0, 0, 300))
	_ = p.Submit(a)
	_ = p.Submit(b)
	p.Forget(1)
	if p.Pending() != 1 {
		t.Fatalf("pending = %d", p.Pending())
	}
	p.Process()
	if a.PathLen() != 0 || b.PathLen() != 4 {
		t.Fatalf("forgotten agent was answered: %d %d", a.PathLen(), b.PathLen())
	}
}
