package evasion

import (
	"math"

	"airspace-sim/internal/geometry"
	"airspace-sim/internal/uav"
	"airspace-sim/internal/waypoint"
)

// Deflection tuning.
const (
	deflectSide          = 4.0
	deflectStraight      = 4.0
	deflectHorizon       = 60.0
	deflectPrecision     = 0.1
	deflectParallelAngle = 5.0
	deflectParallelRange = 35.0
)

// Deflection plans a one-off lateral detour: out to one side, forward past
// the predicted conflict point and back in toward the original track.
type Deflection struct {
	YieldToEvader bool
}

func (Deflection) Name() string { return string(EvasionDeflection) }

// turnAngle picks the detour angle for the approach angle between tracks.
func turnAngle(approach float64) float64 {
	switch {
	case approach > 45 && approach < 135:
		return 45
	case approach > 25 && approach < 155:
		return 55
	default:
		return 65
	}
}

func (d Deflection) Apply(now float64, self, other *uav.Agent) bool {
	log := self.Logger()
	cur, ok := self.CurrentWaypoint()
	next, okNext := self.NextWaypoint()
	otherNext, okOther := other.NextWaypoint()
	if !ok || !okNext || !okOther {
		return false
	}
	if cur.Kind == waypoint.Ground || next.Kind == waypoint.Ground {
		log.Debug("not deflecting during liftoff or landing")
		return false
	}

	p1, p2 := self.Position(), other.Position()
	d1 := next.Position.Sub(p1).Normalize()
	if d1.IsZero() {
		log.Warn("degenerate own heading, using last heading")
		d1 = self.Heading()
	}
	d2 := otherNext.Position.Sub(p2).Normalize()
	if d2.IsZero() {
		d2 = other.Heading()
	}
	s1, s2 := self.Speed(), other.Speed()

	tca := geometry.TimeToClosestApproach(p1, p2, d1, s1, d2, s2, deflectHorizon, deflectPrecision)
	q1, q2, parallel := geometry.ClosestPointsOnSkewLines(p1, d1, p2, d2)
	if parallel {
		// Parallel tracks have no crossing; use where the agents are
		// predicted to be at closest approach.
		q1 = p1.Add(d1.Scale(s1 * tca))
		q2 = p2.Add(d2.Scale(s2 * tca))
	}
	meet := q1.Add(q2).Scale(0.5)
	dist1, dist2 := meet.Dist(p1), meet.Dist(p2)
	t1, t2 := dist1/s1, dist2/s2

	if d.YieldToEvader && other.EvasionID == self.ID() {
		log.Debug("other agent already yields", "other", other.ID())
		return false
	}
	if s1-s2 < -1 {
		// The faster agent evades unless it is already on a detour.
		if oc, _ := other.CurrentWaypoint(); oc.Kind != waypoint.CollisionEvasion {
			return false
		}
	} else if t1 <= t2 && math.Abs(s1-s2) < 1 && t1-t2 < -1 {
		log.Debug("closer to the conflict point, keeping course", "t_self", t1, "t_other", t2)
		return false
	}

	approach := geometry.Angle(d1, d2)
	extra := 0.0
	if approach < deflectParallelAngle {
		extra = max(0, deflectParallelRange-(s1-s2)*2)
	}
	turn := turnAngle(approach)

	var left, right geometry.Vec3
	if d1.Cross(d2).Y > 0 {
		left, right = d1.RotateY(turn), d1.RotateY(-turn)
	} else {
		right, left = d1.RotateY(turn), d1.RotateY(-turn)
	}
	if dist1 < dist2 {
		left, right = right, left
	}

	straight := deflectStraight + tca
	pts := make([]geometry.Vec3, 3)
	pts[0] = p1.Add(right.Scale(s1 * deflectSide))
	pts[1] = pts[0].Add(d1.Scale(s1 * (straight + extra)))
	pts[2] = pts[1].Add(left.Scale(s1 * deflectSide))

	// Pull the exit back onto the original track when the return leg would
	// close in on the other agent's line.
	if approach > deflectParallelAngle && approach < 90 &&
		geometry.DistancePointToLine(pts[2], p2, d2) < geometry.DistancePointToLine(pts[1], p2, d2) {
		if q, _, parallel := geometry.ClosestPointsOnSkewLines(p1, d1, pts[1], d2); !parallel {
			pts[2] = q
		}
	}

	for _, p := range pts {
		if !p.IsFinite() {
			log.Warn("dropping non-finite detour", "other", other.ID())
			return false
		}
	}
	self.EvasionID = other.ID()
	return self.InsertDetour(self.DetourPoints(pts...))
}
