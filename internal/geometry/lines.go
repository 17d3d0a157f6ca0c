package geometry

import "math"

// DefaultParallelTolerance is the squared cross-product magnitude below
// which two directions are treated as parallel.
const DefaultParallelTolerance = 0.001

// ClosestPointsOnSkewLines returns the pair of points, one on each infinite
// line, that are nearest to each other. Lines are given as a point and a
// direction. When the system determinant is exactly zero the lines are
// parallel and zero points are returned.
func ClosestPointsOnSkewLines(p1, d1, p2, d2 Vec3) (q1, q2 Vec3, parallel bool) {
	a := d1.Dot(d1)
	b := d1.Dot(d2)
	e := d2.Dot(d2)
	det := a*e - b*b
	if det == 0 {
		return Vec3{}, Vec3{}, true
	}
	r := p1.Sub(p2)
	c := d1.Dot(r)
	f := d2.Dot(r)
	s := (b*f - c*e) / det
	t := (a*f - c*b) / det
	return p1.Add(d1.Scale(s)), p2.Add(d2.Scale(t)), false
}

// AreLinesParallel reports whether two directions are parallel within tol.
func AreLinesParallel(d1, d2 Vec3, tol float64) bool {
	c := d1.Normalize().Cross(d2.Normalize())
	return c.LenSq() < tol
}

// NearestPointOnLine projects p onto the line through linePoint along lineDir.
func NearestPointOnLine(p, linePoint, lineDir Vec3) Vec3 {
	dir := lineDir.Normalize()
	return linePoint.Add(dir.Scale(p.Sub(linePoint).Dot(dir)))
}

// DistancePointToLine is the length of the projection residual of p onto
// the line through linePoint along lineDir.
func DistancePointToLine(p, linePoint, lineDir Vec3) float64 {
	return p.Dist(NearestPointOnLine(p, linePoint, lineDir))
}

// positionAt returns where a point starting at p moving along dir at speed
// will be after t seconds. dir is normalized first.
func positionAt(p, dir Vec3, speed, t float64) Vec3 {
	return p.Add(dir.Normalize().Scale(speed * t))
}

// TimeToClosestApproach searches [0, maxT] for the time at which two points
// moving at constant velocity are closest. It bisects on the squared
// distance at the bracket ends and stops once successive bracket widths
// change by less than precision. If maxT does not bracket the true minimum
// the search converges on the boundary.
func TimeToClosestApproach(p1, p2, d1 Vec3, s1 float64, d2 Vec3, s2, maxT, precision float64) float64 {
	if maxT <= 0 {
		return 0
	}
	if precision <= 0 {
		precision = 1e-3
	}
	lo, hi := 0.0, maxT
	width := hi - lo
	last := width + 1000
	for math.Abs(last-width) > precision {
		mid := (lo + hi) / 2
		dLo := positionAt(p1, d1, s1, lo).Sub(positionAt(p2, d2, s2, lo)).LenSq()
		dHi := positionAt(p1, d1, s1, hi).Sub(positionAt(p2, d2, s2, hi)).LenSq()
		if dHi > dLo {
			hi = mid
		} else {
			lo = mid
		}
		last = width
		width = hi - lo
	}
	return (lo + hi) / 2
}

// Track is the straight-line view of an agent used for trajectory
// prediction: where it is, the waypoint it is heading to, and how fast.
type Track struct {
	Position Vec3
	Next     Vec3
	HasNext  bool
	Speed    float64
	Diameter float64
}

// TrajectoriesComeTooClose is the cheap pre-filter run before any evasion.
// It reports whether the two tracks violate (diamA+diamB)/2 + safetyBuffer
// now or at their predicted closest approach within lookahead seconds.
func TrajectoriesComeTooClose(a, b Track, safetyBuffer, lookahead float64) bool {
	if !a.HasNext || !b.HasNext {
		return false
	}
	dirA := a.Next.Sub(a.Position).Normalize()
	dirB := b.Next.Sub(b.Position).Normalize()
	minSafe := (a.Diameter+b.Diameter)/2 + safetyBuffer

	if _, _, parallel := ClosestPointsOnSkewLines(a.Position, dirA, b.Position, dirB); parallel {
		if a.Position.Dist(b.Position) < minSafe {
			return true
		}
		return DistancePointToLine(a.Position, b.Position, dirB) < minSafe
	}

	t := TimeToClosestApproach(a.Position, b.Position, dirA, a.Speed, dirB, b.Speed, lookahead, 0.1)
	if t < 0 || t > lookahead {
		return false
	}
	futureA := a.Position.Add(dirA.Scale(a.Speed * t))
	futureB := b.Position.Add(dirB.Scale(b.Speed * t))
	return futureA.Dist(futureB) < minSafe
}
