package uav

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"airspace-sim/internal/geometry"
	"airspace-sim/internal/waypoint"
)

func testParams() Params {
	return Params{MaxSpeed: 20, Speed: 10, Diameter: 2, MaxFlightTime: 1800, CruiseHeight: 10}
}

func newTestAgent(t *testing.T, id int) *Agent {
	t.Helper()
	a, err := New(id, testParams(), geometry.V(0, 0, 0), geometry.V(0, 0, 100))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func route(speed float64) []waypoint.Waypoint {
	return []waypoint.Waypoint{
		waypoint.New(geometry.V(0, 0, 0), speed),
		waypoint.New(geometry.V(0, 10, 0), speed),
		waypoint.New(geometry.V(0, 10, 100), speed),
		waypoint.New(geometry.V(0, 0, 100), speed),
	}
}

// launch puts the agent into the air on route.
func launch(t *testing.T, a *Agent) {
	t.Helper()
	if err := a.RequestFlight(); err != nil {
		t.Fatalf("RequestFlight: %v", err)
	}
	a.MarkWaiting()
	if err := a.Approve(route(a.Speed())); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if a.Advance(0, 0.1, nil) {
		t.Fatal("flight ended on takeoff tick")
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		ok   bool
	}{
		{"valid", testParams(), true},
		{"zero speed", Params{Speed: 0, Diameter: 1}, false},
		{"too fast", Params{MaxSpeed: 5, Speed: 6, Diameter: 1}, false},
		{"no diameter", Params{Speed: 5}, false},
		{"no max speed", Params{Speed: 5, Diameter: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestFullFlight(t *testing.T) {
	a := newTestAgent(t, 1)
	launch(t, a)
	if a.State() != StateLiftoff {
		t.Fatalf("state after takeoff = %s, want liftoff", a.State())
	}

	seen := map[State]bool{}
	now := 0.0
	done := false
	for i := 0; i < 1000 && !done; i++ {
		now += 0.1
		done = a.Advance(now, 0.1, nil)
		seen[a.State()] = true
		if a.State() == StateTransit && a.PathIndex() >= a.PathLen()-1 {
			t.Fatalf("transit with index %d of %d", a.PathIndex(), a.PathLen())
		}
	}
	if !done {
		t.Fatal("flight never finished")
	}
	for _, s := range []State{StateLiftoff, StateTransit, StateLanding, StateGround} {
		if !seen[s] {
			t.Errorf("state %s never observed", s)
		}
	}
	if got := a.Position(); got.Dist(geometry.V(0, 0, 100)) > 1e-9 {
		t.Fatalf("final position %v", got)
	}
	// 120 units at 10 u/s.
	if math.Abs(now-12) > 0.2 {
		t.Fatalf("flight took %v s, want about 12", now)
	}

	rec := a.Finish(now)
	if !rec.Completed {
		t.Fatal("expected completed record")
	}
	if math.Abs(rec.Distance-120) > 1e-9 {
		t.Fatalf("distance = %v, want 120", rec.Distance)
	}
	if len(rec.Path) != 4 {
		t.Fatalf("path len = %d, want 4", len(rec.Path))
	}
}

func TestApproveRequiresRequest(t *testing.T) {
	a := newTestAgent(t, 1)
	if err := a.Approve(route(10)); err == nil {
		t.Fatal("approve on ground should fail")
	}
	_ = a.RequestFlight()
	if err := a.Approve(route(10)[:1]); err == nil {
		t.Fatal("approve with one waypoint should fail")
	}
}

func TestApproveCopiesPath(t *testing.T) {
	a := newTestAgent(t, 1)
	_ = a.RequestFlight()
	p := route(10)
	if err := a.Approve(p); err != nil {
		t.Fatal(err)
	}
	p[1].Speed = 99
	if got := a.Path()[1].Speed; got != 10 {
		t.Fatalf("agent path aliased caller slice, speed = %v", got)
	}
}

func TestInsertDetourGoesAhead(t *testing.T) {
	a := newTestAgent(t, 1)
	launch(t, a)
	for now := 0.1; a.PathIndex() < 1; now += 0.1 {
		a.Advance(now, 0.1, nil)
	}
	for i := 0; i < 10; i++ {
		a.Advance(1.2+float64(i)*0.1, 0.1, nil)
	}
	step := a.PathIndex()
	before := a.PathLen()
	here := a.Position()
	pts := a.DetourPoints(geometry.V(5, 10, 30), geometry.V(5, 10, 50))

	if !a.InsertDetour(pts) {
		t.Fatal("InsertDetour refused")
	}
	if a.PathLen() != before+3 {
		t.Fatalf("path len = %d, want %d", a.PathLen(), before+3)
	}
	if a.PathIndex() != step+1 {
		t.Fatalf("index = %d, want %d", a.PathIndex(), step+1)
	}
	cur, _ := a.CurrentWaypoint()
	if cur.Position != here || cur.Kind != waypoint.CollisionEvasion {
		t.Fatalf("current waypoint = %v, want evasion copy of %v", cur, here)
	}
	next, _ := a.NextWaypoint()
	if next.Position != geometry.V(5, 10, 30) {
		t.Fatalf("next = %v", next)
	}
	if got := a.Path()[step]; got.Position == here {
		t.Fatal("history before the current index was rewritten")
	}
}

func TestWaitHoldReleasesOnTimeout(t *testing.T) {
	a := newTestAgent(t, 1)
	launch(t, a)
	a.Tracker().Add(2, 1)
	a.EvasionID = 2
	a.WaitEvasion = true

	// The other agent sits next to us and never leaves.
	locate := func(id int) (geometry.Vec3, bool) {
		return a.Position().Add(geometry.V(1, 0, 0)), id == 2
	}

	start := a.Position()
	pathLen := a.PathLen()
	deadline := 0.1 + a.Speed() + WaitTimeoutPadding
	now := 0.0
	for i := 0; i < 1000 && a.WaitEvasion; i++ {
		now += 0.1
		a.Advance(now, 0.1, locate)
		if a.WaitEvasion && a.Position() != start {
			t.Fatalf("moved while holding at t=%v", now)
		}
	}
	if a.WaitEvasion {
		t.Fatal("hold never released")
	}
	if now < deadline-1e-9 || now > deadline+0.2 {
		t.Fatalf("released at %v, want shortly after %v", now, deadline)
	}
	if a.LastEvasionID != 2 {
		t.Fatalf("LastEvasionID = %d", a.LastEvasionID)
	}
	if math.Abs(a.HoldTime()-(now-0.1)) > 1e-9 {
		t.Fatalf("hold time = %v", a.HoldTime())
	}
	cur, _ := a.CurrentWaypoint()
	if cur.Kind != waypoint.CollisionEvasion {
		t.Fatalf("expected delay waypoint at current index, got %v", cur)
	}
	if cur.Position != start {
		t.Fatalf("delay waypoint %v is not the hold position %v", cur.Position, start)
	}
	if a.PathLen() != pathLen+1 {
		t.Fatalf("path length = %d, want %d", a.PathLen(), pathLen+1)
	}
}

func TestWaitHoldReleasesWhenOtherLeaves(t *testing.T) {
	a := newTestAgent(t, 1)
	launch(t, a)
	a.Tracker().Add(2, 1)
	a.EvasionID = 2
	a.WaitEvasion = true

	far := false
	locate := func(id int) (geometry.Vec3, bool) {
		if far {
			return geometry.V(1000, 0, 0), true
		}
		return a.Position(), true
	}
	a.Advance(0.2, 0.1, locate)
	if !a.WaitEvasion {
		t.Fatal("released while other was close")
	}
	far = true
	before := a.PathLen()
	a.Advance(0.3, 0.1, locate)
	if a.WaitEvasion {
		t.Fatal("still holding after other left")
	}
	if a.PathLen() != before+1 {
		t.Fatalf("path len = %d, want %d", a.PathLen(), before+1)
	}
}

func TestWaitDeadlineRearmsOnNewIdentity(t *testing.T) {
	a := newTestAgent(t, 1)
	launch(t, a)
	a.Tracker().Add(2, 1)
	a.Tracker().Add(3, 1)
	near := func(int) (geometry.Vec3, bool) { return a.Position(), true }

	a.EvasionID = 2
	a.WaitEvasion = true
	a.Advance(1, 0.1, near)
	first := a.WaitDeadline()

	a.EvasionID = 3
	a.Advance(4, 0.1, near)
	if a.WaitDeadline() <= first {
		t.Fatalf("deadline not re-armed: %v <= %v", a.WaitDeadline(), first)
	}
}

func TestFinishMidFlightTruncates(t *testing.T) {
	a := newTestAgent(t, 1)
	launch(t, a)
	now := 0.0
	for a.PathIndex() < 2 {
		now += 0.1
		a.Advance(now, 0.1, nil)
	}
	now += 0.5
	a.Advance(now, 0.5, nil)
	pos := a.Position()

	rec := a.Finish(now)
	if rec.Completed {
		t.Fatal("aborted flight marked completed")
	}
	if len(rec.Path) != 4 {
		t.Fatalf("path len = %d, want 4 (3 flown + true position)", len(rec.Path))
	}
	last := rec.Path[len(rec.Path)-1]
	if last.Position != pos {
		t.Fatalf("last waypoint = %v, want %v", last.Position, pos)
	}
	want := 110 + pos.Dist(geometry.V(0, 10, 100))
	if math.Abs(rec.Distance-want) > 1e-9 {
		t.Fatalf("distance = %v, want %v", rec.Distance, want)
	}
}

func TestCheckStationary(t *testing.T) {
	a := newTestAgent(t, 1)
	for i := 0; i < 3; i++ {
		if a.CheckStationary(3) {
			t.Fatalf("tripped early at check %d", i)
		}
	}
	if !a.CheckStationary(3) {
		t.Fatal("expected watchdog to trip")
	}
}

func TestSteeringOverride(t *testing.T) {
	a := newTestAgent(t, 1)
	launch(t, a)
	a.Steer(geometry.V(math.NaN(), 0, 0))
	if _, ok := a.Steering(); ok {
		t.Fatal("NaN steering target accepted")
	}
	a.Steer(geometry.V(10, 0, 0))
	a.Advance(0.2, 0.1, nil)
	if a.Position().X <= 0 {
		t.Fatalf("did not move toward aim: %v", a.Position())
	}
	a.SetSpeedMultiplier(2)
	if a.SpeedMultiplier() != 1 {
		t.Fatalf("multiplier = %v, want clamp to 1", a.SpeedMultiplier())
	}
	a.ClearManeuver()
	if _, ok := a.Steering(); ok {
		t.Fatal("ClearManeuver kept steering")
	}
}

func TestApproveWarnsOnTinySpeed(t *testing.T) {
	var buf bytes.Buffer
	a, err := New(1, testParams(), geometry.V(0, 0, 0), geometry.V(0, 0, 100),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.RequestFlight(); err != nil {
		t.Fatalf("RequestFlight: %v", err)
	}
	path := route(10)
	path[2].Speed = 1e-4
	if err := a.Approve(path); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "very small") != 1 || !strings.Contains(out, "index=2") {
		t.Fatalf("unexpected log output: %q", out)
	}
}

func TestSetSpeedRecomputesLimits(t *testing.T) {
	a := newTestAgent(t, 1)
	if err := a.SetSpeed(5); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	if a.Speed() != 5 || a.Limits().Awareness() != 50 || a.Limits().Imminent() != 5 {
		t.Fatalf("speed %v limits %v", a.Speed(), a.Limits())
	}
	if err := a.SetSpeed(25); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("above max speed: %v", err)
	}
	if a.Speed() != 5 {
		t.Fatalf("rejected speed applied: %v", a.Speed())
	}
}
