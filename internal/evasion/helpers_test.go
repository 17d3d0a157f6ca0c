package evasion

import (
	"testing"

	"airspace-sim/internal/conflict"
	"airspace-sim/internal/geometry"
	"airspace-sim/internal/uav"
	"airspace-sim/internal/waypoint"
)

type registry map[int]*uav.Agent

func (r registry) Agent(id int) (*uav.Agent, bool) {
	a, ok := r[id]
	return a, ok
}

type captureRecorder struct {
	started []conflict.Event
	ended   []conflict.Event
	crashes []conflict.Event
}

func (c *captureRecorder) ConflictStarted(ev conflict.Event, _ float64) { c.started = append(c.started, ev) }
func (c *captureRecorder) ConflictEnded(ev conflict.Event, _ float64)   { c.ended = append(c.ended, ev) }
func (c *captureRecorder) Crash(ev conflict.Event, _ *uav.Agent, _ float64) {
	c.crashes = append(c.crashes, ev)
}

const cruise = 50.0

// airborne returns an agent in cruise flight from 'from' toward 'to',
// already past its first waypoint.
func airborne(t *testing.T, id int, from, to geometry.Vec3, speed float64) *uav.Agent {
	t.Helper()
	from, to = from.WithY(cruise), to.WithY(cruise)
	dir := to.Sub(from).Normalize()
	a, err := uav.New(id, uav.Params{MaxSpeed: 30, Speed: speed, Diameter: 2}, from, to)
	if err != nil {
		t.Fatalf("uav.New: %v", err)
	}
	if err := a.RequestFlight(); err != nil {
		t.Fatal(err)
	}
	path := []waypoint.Waypoint{
		waypoint.New(from.Sub(dir), speed),
		waypoint.New(from, speed),
		waypoint.New(to, speed),
	}
	if err := a.Approve(path); err != nil {
		t.Fatal(err)
	}
	a.Advance(0, 0.1, nil)
	a.Advance(0.1, 2/speed, nil)
	if a.PathIndex() != 1 || !a.FlyingSegment() {
		t.Fatalf("agent %d not cruising: index %d state %s", id, a.PathIndex(), a.State())
	}
	return a
}

// headOn places two agents gap units apart on a shared line, flying at
// each other.
func headOn(t *testing.T, gap, speed float64) (*uav.Agent, *uav.Agent, registry) {
	t.Helper()
	a := airborne(t, 1, geometry.V(0, 0, 0), geometry.V(0, 0, 1000), speed)
	b := airborne(t, 2, geometry.V(0, 0, gap+2), geometry.V(0, 0, -1000), speed)
	a.Tracker().Add(2, b.CrashRadius())
	b.Tracker().Add(1, a.CrashRadius())
	return a, b, registry{1: a, 2: b}
}
