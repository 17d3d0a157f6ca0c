package evasion

import (
	"airspace-sim/internal/geometry"
	"airspace-sim/internal/uav"
)

// HorizontalPlane tuning.
const (
	hpEvasionSpeedFactor = 10.0
	hpRejoinDistance     = 20.0
	hpMinSpeed           = 0.2
	hpSpeedRate          = 0.5
	hpArrival            = 3.0
	hpExitAfter          = 7.0
	hpHeadOn             = -0.7
	hpFollowing          = 0.7
)

// HorizontalPlane is a reactive loop flown at the current altitude. It
// picks an escape point to one side of the other agent, then a rejoin point
// back toward the planned track, and scales speed down while the risk is
// high.
type HorizontalPlane struct {
	Registry Registry
}

func (HorizontalPlane) Name() string { return string(ReactionHorizontalPlane) }

func (h HorizontalPlane) Apply(now float64, self, other *uav.Agent) bool {
	if !self.FlyingSegment() {
		return false
	}
	next, _ := self.NextWaypoint()
	alt := self.Position().Y
	dir := horizontalOr(next.Position.WithY(alt).Sub(self.Position()), horizontalOr(self.Heading(), geometry.Forward))
	self.EvasionID = other.ID()
	self.SetManeuver(&horizontalPlane{
		reg:      h.Registry,
		other:    other.ID(),
		altitude: alt,
		dir:      dir,
		start:    now,
		lastDist: self.Position().Sub(other.Position()).Horizontal().Len(),
		mult:     1,
	})
	return true
}

type hpPhase int

const (
	hpPlanning hpPhase = iota
	hpToEvasion
	hpToRejoin
	hpReturning
)

type horizontalPlane struct {
	reg      Registry
	other    int
	altitude float64
	dir      geometry.Vec3
	start    float64
	lastDist float64

	phase     hpPhase
	emergency bool
	evasion   geometry.Vec3
	rejoin    geometry.Vec3
	risk      float64
	mult      float64
}

func (m *horizontalPlane) Name() string { return string(ReactionHorizontalPlane) }

func (m *horizontalPlane) projectedNext(a *uav.Agent) geometry.Vec3 {
	if next, ok := a.NextWaypoint(); ok {
		return next.Position.WithY(m.altitude)
	}
	return a.Position().Add(m.dir.Scale(10))
}

func (m *horizontalPlane) Step(a *uav.Agent, now, dt float64) bool {
	if !a.FlyingSegment() {
		return false
	}
	other, ok := m.reg.Agent(m.other)
	if !ok {
		return false
	}
	limits := a.Limits()
	pos, otherPos := a.Position(), other.Position()
	toOther := otherPos.Sub(pos).Horizontal()
	hdist := toOther.Len()

	if hdist < limits.Imminent() && !m.emergency && m.phase <= hpToEvasion {
		a.Logger().Debug("extreme proximity, replanning escape", "other", m.other)
		m.emergency = true
		m.phase = hpPlanning
	}

	receding := hdist > m.lastDist
	tooFar := hdist > limits.Awareness()*1.5 && receding
	timeUp := now-m.start > hpExitAfter && receding
	if (tooFar || timeUp) && m.phase == hpReturning {
		m.mult = geometry.Lerp(m.mult, 1, hpSpeedRate*dt*2)
		if m.mult > 0.95 {
			a.Logger().Debug("horizontal escape resolved", "other", m.other)
			return false
		}
	}

	switch {
	case m.phase == hpPlanning:
		m.plan(a, other, hdist)
		a.Steer(m.evasion)
		m.phase = hpToEvasion
	case m.phase == hpToEvasion && pos.Dist(m.evasion) < hpArrival:
		a.Steer(m.rejoin)
		m.phase = hpToRejoin
	case m.phase == hpToRejoin && pos.Dist(m.rejoin) < hpArrival:
		m.phase = hpReturning
	}
	if m.phase == hpReturning {
		a.Steer(m.projectedNext(a))
	}

	fresh := geometry.Clamp01(1 - hdist/(limits.Awareness()*0.8))
	m.risk = geometry.Lerp(m.risk, fresh, 0.2)
	target := geometry.Lerp(1, hpMinSpeed, m.risk)
	if m.emergency && m.phase <= hpToEvasion {
		target = hpMinSpeed
	}
	m.mult = geometry.Lerp(m.mult, target, hpSpeedRate*dt)
	a.SetSpeedMultiplier(m.mult)
	m.lastDist = hdist
	return true
}

// plan classifies the encounter and fixes the evasion and rejoin points.
func (m *horizontalPlane) plan(a, other *uav.Agent, hdist float64) {
	pos, otherPos := a.Position(), other.Position()
	speed, otherSpeed := a.Speed(), other.Speed()
	limits := a.Limits()

	otherDir := other.Heading()
	if next, ok := other.NextWaypoint(); ok {
		otherDir = next.Position.Sub(otherPos)
	}
	otherDir = horizontalOr(otherDir, geometry.Forward)
	toOther := horizontalOr(otherPos.Sub(pos), m.dir)
	my := m.dir

	rel := my.Scale(speed).Sub(otherDir.Scale(otherSpeed)).Horizontal()
	if rel.LenSq() > 0.001 {
		rel = rel.Normalize()
	}
	escape := rel.Neg()
	right := rightOf(toOther, my)
	left := right.Neg()
	// Side of our own track the other agent is on.
	ownRight := rightOf(my, my)
	awayFromOther := ownRight
	if ownRight.Dot(toOther) > 0 {
		awayFromOther = ownRight.Neg()
	}

	distRisk := geometry.Clamp01(1 - hdist/limits.Awareness())
	m.risk = geometry.Clamp01(distRisk * (0.5 + 0.5*max(0, my.Dot(rel))))
	evDist := hpEvasionSpeedFactor * speed

	var dir geometry.Vec3
	switch {
	case m.emergency:
		rightEsc := right.Add(escape.Scale(0.2)).Normalize()
		leftEsc := left.Add(escape.Scale(0.2)).Normalize()
		future := otherPos.Add(otherDir.Scale(otherSpeed * evDist / speed))
		if pos.Add(rightEsc.Scale(evDist)).Dist(future) > pos.Add(leftEsc.Scale(evDist)).Dist(future) {
			dir = rightEsc
		} else {
			dir = leftEsc
		}
	case my.Dot(otherDir) < hpHeadOn:
		dir = ownRight
	case my.Dot(otherDir) > hpFollowing && pos.Dist(otherPos) < limits.Reaction():
		dir = awayFromOther
	case toOther.Dot(rel) > 0:
		perp := escape.Sub(toOther.Scale(escape.Dot(toOther)))
		if perp.LenSq() < 0.001 {
			if otherDir.Dot(right) < otherDir.Dot(left) {
				dir = right
			} else {
				dir = left
			}
		} else {
			dir = perp.Normalize()
		}
	default:
		dir = awayFromOther
	}
	if dir.IsZero() || !dir.IsFinite() {
		a.Logger().Warn("degenerate escape direction, turning right")
		dir = ownRight
	}

	dist := evDist * (0.8 + 0.5*m.risk)
	if m.emergency {
		dist *= 1.5
	}
	m.evasion = pos.Add(dir.Scale(dist)).WithY(m.altitude)

	back := m.projectedNext(a).Sub(m.evasion).Horizontal()
	if back.LenSq() > 0.001 {
		m.rejoin = m.evasion.Add(back.Normalize().Scale(hpRejoinDistance * (1 + m.risk))).WithY(m.altitude)
	} else {
		m.rejoin = m.projectedNext(a)
	}
}
