package uav

import (
	"errors"
	"fmt"
	"math"

	"airspace-sim/internal/conflict"
	"airspace-sim/internal/geometry"
	"airspace-sim/internal/waypoint"
)

// WaitTimeoutPadding is added to the commanded speed to form the wait hold
// timeout in seconds.
const WaitTimeoutPadding = 5.0

var (
	ErrBadState  = errors.New("uav: operation not allowed in current state")
	ErrShortPath = errors.New("uav: flight path needs at least two waypoints")
)

// RequestFlight marks the agent as asking the planner for a route.
func (a *Agent) RequestFlight() error {
	if a.state != StateGround && a.state != StateNone {
		return fmt.Errorf("%w: request flight in %s", ErrBadState, a.state)
	}
	a.state = StateSendingRequest
	a.approved = false
	return nil
}

// MarkWaiting is called by the planner once the request is queued.
func (a *Agent) MarkWaiting() {
	if a.state == StateSendingRequest {
		a.state = StateWaitingResponse
	}
}

// Approve hands the agent its route. The agent takes a private copy.
func (a *Agent) Approve(path []waypoint.Waypoint) error {
	if a.state != StateWaitingResponse && a.state != StateSendingRequest {
		return fmt.Errorf("%w: approve in %s", ErrBadState, a.state)
	}
	if len(path) < 2 {
		return ErrShortPath
	}
	for i, w := range path {
		if w.Speed < waypoint.MinSpeed {
			a.log.Warn("approved waypoint speed is very small", "index", i, "speed", w.Speed, "kind", w.Kind.String())
		}
	}
	a.path = make([]waypoint.Waypoint, len(path))
	copy(a.path, path)
	a.step = 0
	a.progress = 0
	a.approved = true
	a.state = StateWaitingResponse
	return nil
}

// Advance runs one tick of the flight state machine. It returns true when
// the flight has ended and the agent should be removed.
func (a *Agent) Advance(now, dt float64, locate Locator) bool {
	switch {
	case a.state == StateWaitingResponse:
		if !a.approved {
			return false
		}
		if a.params.Speed <= 0 {
			a.log.Error("cannot fly with non-positive speed", "speed", a.params.Speed)
			a.state = StateGround
			return true
		}
		a.flightStart = now
		a.pos = a.path[0].Position
		a.lastCheck = a.pos
		a.updatePhase()
		return false
	case a.state.Airborne():
	default:
		return false
	}

	if a.maneuver != nil && !a.maneuver.Step(a, now, dt) {
		a.log.Debug("maneuver finished", "maneuver", a.maneuver.Name())
		a.ClearManeuver()
	}
	if a.WaitEvasion && a.holdPosition(now, locate) {
		return false
	}
	a.move(dt)
	if a.step+1 >= len(a.path) {
		a.state = StateGround
		a.maneuver = nil
		a.ClearSteer()
		return true
	}
	a.updatePhase()
	return false
}

func (a *Agent) updatePhase() {
	cur, next := a.path[a.step], a.path[a.step+1]
	switch {
	case cur.Kind == waypoint.Ground && next.Position.Y > cur.Position.Y:
		a.state = StateLiftoff
	case next.Kind == waypoint.Ground:
		a.state = StateLanding
	default:
		a.state = StateTransit
	}
}

// holdPosition keeps the agent suspended while the agent it yields to is
// still close. It returns false once the hold has been released.
func (a *Agent) holdPosition(now float64, locate Locator) bool {
	if a.EvasionID != a.LastEvasionID {
		a.LastEvasionID = a.EvasionID
		a.waitDeadline = now + a.params.Speed + WaitTimeoutPadding
	}
	if !a.holding {
		a.holding = true
		a.holdStart = now
	}

	keep := false
	if a.tracker.Has(a.EvasionID) && locate != nil {
		if p, ok := locate(a.EvasionID); ok && p.Dist(a.pos) < a.limits.Awareness() {
			keep = true
		}
	}
	if now > a.waitDeadline {
		a.log.Debug("wait hold timed out", "other", a.EvasionID)
		keep = false
	}
	if keep {
		return true
	}

	elapsed := now - a.holdStart
	a.WaitEvasion = false
	a.holding = false
	a.holdTotal += elapsed
	a.AddDelayWaypoint()
	return false
}

// Holding reports whether the agent is currently suspended.
func (a *Agent) Holding() bool { return a.holding }

func (a *Agent) move(dt float64) {
	remaining := dt
	for remaining > 0 && a.step+1 < len(a.path) {
		next := a.path[a.step+1]
		speed := next.Speed * a.speedMult
		if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
			break
		}
		budget := speed * remaining
		d := a.pos.Dist(next.Position)
		if d <= budget {
			a.arrive(next)
			remaining -= d / speed
			continue
		}
		aim := next.Position
		if a.steering {
			aim = a.aim
		}
		a.moveToward(aim, budget)
		remaining = 0
	}
	a.updateProgress()
}

func (a *Agent) arrive(next waypoint.Waypoint) {
	if dir := next.Position.Sub(a.pos).Normalize(); !dir.IsZero() {
		a.heading = dir
	}
	a.pos = next.Position
	a.step++
}

func (a *Agent) moveToward(aim geometry.Vec3, budget float64) {
	delta := aim.Sub(a.pos)
	dist := delta.Len()
	if dist < 1e-9 {
		return
	}
	if budget > dist {
		budget = dist
	}
	dir := delta.Scale(1 / dist)
	p := a.pos.Add(dir.Scale(budget))
	if !p.IsFinite() {
		a.log.Warn("dropping non-finite position update", "aim", aim)
		return
	}
	a.pos = p
	a.heading = dir
}

func (a *Agent) updateProgress() {
	if a.step+1 >= len(a.path) {
		a.progress = 1
		return
	}
	start, end := a.path[a.step].Position, a.path[a.step+1].Position
	total := start.Dist(end)
	if total < 1e-9 {
		a.progress = 1
		return
	}
	a.progress = geometry.Clamp01(1 - a.pos.Dist(end)/total)
}

// InsertDetour splices points into the path ahead of the current index,
// preceded by a copy of the current position, and makes the agent fly
// from that copy.
func (a *Agent) InsertDetour(points []waypoint.Waypoint) bool {
	if !a.PathIndexValid() || a.step+1 >= len(a.path) {
		return false
	}
	here := waypoint.NewWithKind(a.pos, a.params.Speed, waypoint.CollisionEvasion)
	ins := make([]waypoint.Waypoint, 0, len(points)+1)
	ins = append(ins, here)
	ins = append(ins, points...)
	a.path = append(a.path[:a.step+1], append(ins, a.path[a.step+1:]...)...)
	a.step++
	a.updateProgress()
	return true
}

// DetourPoints builds evasion waypoints at the commanded speed.
func (a *Agent) DetourPoints(ps ...geometry.Vec3) []waypoint.Waypoint {
	out := make([]waypoint.Waypoint, len(ps))
	for i, p := range ps {
		out[i] = waypoint.NewWithKind(p, a.params.Speed, waypoint.CollisionEvasion)
	}
	return out
}

// AddDelayWaypoint records a released hold in the path: a waypoint at the
// hold position is placed after the current index and becomes the start of
// the remaining segment. The pause length is kept in HoldTime.
func (a *Agent) AddDelayWaypoint() {
	if !a.PathIndexValid() || a.step+1 >= len(a.path) {
		return
	}
	next := a.path[a.step+1]
	wp := waypoint.NewWithKind(a.pos, next.Speed, waypoint.CollisionEvasion)
	a.path = append(a.path[:a.step+1], append([]waypoint.Waypoint{wp}, a.path[a.step+1:]...)...)
	a.step++
	a.updateProgress()
}

// HoldTime returns the accumulated time spent in wait holds.
func (a *Agent) HoldTime() float64 { return a.holdTotal }

// FlightRecord summarises a finished or aborted flight.
type FlightRecord struct {
	ID        int                  `json:"id"`
	Start     float64              `json:"start"`
	End       float64              `json:"end"`
	Duration  float64              `json:"duration"`
	Distance  float64              `json:"distance"`
	HoldTime  float64              `json:"hold_time"`
	Completed bool                 `json:"completed"`
	Speed     float64              `json:"speed"`
	Diameter  float64              `json:"diameter"`
	Origin    geometry.Vec3        `json:"origin"`
	Target    geometry.Vec3        `json:"target"`
	MaxLevels [conflict.Levels]int `json:"max_levels"`
	Path      []waypoint.Waypoint  `json:"path"`
}

// Finish closes the flight. When the agent is removed mid-flight the
// unflown tail is replaced by its true last position.
func (a *Agent) Finish(now float64) FlightRecord {
	completed := a.state == StateGround && a.approved
	if a.approved && a.state != StateGround && a.PathIndexValid() {
		last := a.path[a.step].Kind
		a.path = append(a.path[:a.step+1], waypoint.NewWithKind(a.pos, a.params.Speed, last))
	}
	a.maneuver = nil
	a.ClearSteer()

	start := a.flightStart
	if !a.approved {
		start = now
	}
	return FlightRecord{
		ID:        a.id,
		Start:     start,
		End:       now,
		Duration:  now - start,
		Distance:  waypoint.PathLength(a.path),
		HoldTime:  a.holdTotal,
		Completed: completed,
		Speed:     a.params.Speed,
		Diameter:  a.params.Diameter,
		Origin:    a.origin,
		Target:    a.target,
		MaxLevels: a.tracker.MaxCounts(),
		Path:      a.Path(),
	}
}

// Snapshot is a read-only view of an agent.
type Snapshot struct {
	ID          int           `json:"id"`
	State       string        `json:"state"`
	Position    geometry.Vec3 `json:"position"`
	Heading     geometry.Vec3 `json:"heading"`
	Speed       float64       `json:"speed"`
	Diameter    float64       `json:"diameter"`
	Step        int           `json:"step"`
	PathLen     int           `json:"path_len"`
	Progress    float64       `json:"progress"`
	Level       int           `json:"level"`
	Tracked     int           `json:"tracked"`
	EvasionID   int           `json:"evasion_id"`
	Waiting     bool          `json:"waiting"`
	Maneuver    string        `json:"maneuver,omitempty"`
	SpeedFactor float64       `json:"speed_factor"`
}

// Snapshot captures the current agent view.
func (a *Agent) Snapshot() Snapshot {
	s := Snapshot{
		ID:          a.id,
		State:       a.state.String(),
		Position:    a.pos,
		Heading:     a.heading,
		Speed:       a.params.Speed,
		Diameter:    a.params.Diameter,
		Step:        a.step,
		PathLen:     len(a.path),
		Progress:    a.progress,
		Level:       a.tracker.HighestLevel(),
		Tracked:     a.tracker.Len(),
		EvasionID:   a.EvasionID,
		Waiting:     a.WaitEvasion,
		SpeedFactor: a.speedMult,
	}
	if a.maneuver != nil {
		s.Maneuver = a.maneuver.Name()
	}
	return s
}
