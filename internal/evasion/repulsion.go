package evasion

import (
	"math"

	"airspace-sim/internal/conflict"
	"airspace-sim/internal/geometry"
	"airspace-sim/internal/uav"
)

// RepulsionParams shapes the rolling target of a repulsion maneuver.
type RepulsionParams struct {
	// Push scales the inverse-distance push away from each neighbour.
	Push float64
	// Behind scales the bias toward the space behind each neighbour.
	Behind float64
	// Lookahead places the rolling target Lookahead + LookaheadSpeed*speed
	// ahead of the agent. A negative total aims behind it.
	Lookahead      float64
	LookaheadSpeed float64
	// Bias is the largest lateral bias to the right.
	Bias float64
	// Level selects the own threshold bounding which neighbours count.
	Level int
}

var (
	EvasionRepulsionParams  = RepulsionParams{Push: 5, Behind: 10, Lookahead: 20, LookaheadSpeed: 1, Bias: 7, Level: conflict.LevelAwareness}
	ReactionRepulsionParams = RepulsionParams{Push: 20, Behind: 10, Lookahead: 20, LookaheadSpeed: 1, Bias: 7, Level: conflict.LevelReaction}
	backoffRepulsionParams  = RepulsionParams{Push: 20, LookaheadSpeed: -1, Level: conflict.LevelReaction}
)

// Repulsion starts a continuous repulsion maneuver, replacing any maneuver
// already running so repeated starts never stack.
type Repulsion struct {
	Registry      Registry
	Params        RepulsionParams
	YieldToEvader bool
}

func (Repulsion) Name() string { return "repulsion" }

func (r Repulsion) Apply(now float64, self, other *uav.Agent) bool {
	if r.YieldToEvader && other.EvasionID == self.ID() {
		return false
	}
	if !self.FlyingSegment() {
		return false
	}
	self.SetManeuver(&repulsion{reg: r.Registry, params: r.Params})
	return true
}

// repulsion re-aims the agent every tick at a rolling target pushed away
// from every tracked neighbour inside the configured threshold.
type repulsion struct {
	reg    Registry
	params RepulsionParams
}

func (m *repulsion) Name() string { return "repulsion" }

func (m *repulsion) Step(a *uav.Agent, now, dt float64) bool {
	log := a.Logger()
	next, ok := a.NextWaypoint()
	if !ok || a.PathIndex() == 0 || next.Position.Y < 1 {
		a.ClearSteer()
		return false
	}

	pos := a.Position()
	goal := next.Position
	if !goal.IsFinite() {
		log.Warn("non-finite next waypoint, using current position")
		goal = pos
	}
	fwd := goal.Sub(pos).Normalize()
	if fwd.IsZero() {
		fwd = a.Heading()
	}
	right := rightOf(fwd, a.Heading())

	lookahead := m.params.Lookahead + m.params.LookaheadSpeed*a.Speed()
	aim := pos.Add(fwd.Scale(lookahead))
	radius := a.Limits()[m.params.Level]
	contributed := false

	for _, inst := range a.Tracker().Instances() {
		other, ok := m.reg.Agent(inst.Other)
		if !ok {
			continue
		}
		otherPos := other.Position()
		dist := otherPos.Dist(pos)
		if dist >= radius {
			continue
		}
		otherNext, ok := other.NextWaypoint()
		if !ok {
			continue
		}
		behind := otherPos.Sub(otherNext.Position)
		if behind.LenSq() <= 0.001 {
			continue
		}
		behind = behind.Normalize()
		toOther := otherPos.Sub(pos)
		if toOther.LenSq() <= 0.001 {
			continue
		}

		fwdH := horizontalOr(fwd, geometry.Forward)
		toOtherH := toOther.Horizontal().Normalize()
		if toOtherH.IsZero() {
			continue
		}
		otherH := horizontalOr(behind.Neg(), geometry.Forward)

		bearing := geometry.SignedAngle(fwdH, toOtherH, geometry.Up)
		crossing := geometry.Angle(fwdH, otherH)
		bias := 0.0
		if bearing > 0 {
			bias = m.params.Bias * math.Sin(bearing*math.Pi/180)
		}
		if (crossing < 20 || crossing > 160) && math.Abs(bearing) < 90 {
			if bearing > 0 {
				bias = m.params.Bias * 0.8
			} else {
				bias = m.params.Bias * 0.5
			}
		}

		strength := m.params.Push / (max(0.1, dist) / 10)
		offsets := [...]geometry.Vec3{
			right.Scale(bias),
			behind.Scale(m.params.Behind),
			toOther.Normalize().Scale(-strength),
		}
		candidate := aim
		for _, off := range offsets {
			if !off.IsFinite() {
				log.Warn("dropping non-finite repulsion offset", "other", inst.Other)
				continue
			}
			candidate = candidate.Add(off)
		}
		if candidate.IsFinite() {
			aim = candidate
			contributed = true
		}
	}

	if !contributed {
		a.ClearSteer()
		return false
	}
	a.Steer(aim)
	return true
}

// rightOf returns the horizontal right-hand direction of fwd, falling back
// to the right of heading and finally +X.
func rightOf(fwd, heading geometry.Vec3) geometry.Vec3 {
	if r := geometry.Up.Cross(fwd).Normalize(); !r.IsZero() {
		return r
	}
	if r := geometry.Up.Cross(heading).Normalize(); !r.IsZero() {
		return r
	}
	return geometry.V(1, 0, 0)
}

func horizontalOr(v, fallback geometry.Vec3) geometry.Vec3 {
	if h := v.Horizontal().Normalize(); !h.IsZero() {
		return h
	}
	return fallback
}
