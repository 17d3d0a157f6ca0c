// Vector math used by the conflict and evasion packages.
package geometry

import "math"

// Vec3 is a position or direction in world space. Y points up.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Up is the world vertical axis.
var Up = Vec3{Y: 1}

// Forward is the heading assumed by agents that have not moved yet.
var Forward = Vec3{Z: 1}

func V(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Neg() Vec3 { return Vec3{-v.X, -v.Y, -v.Z} }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) LenSq() float64 { return v.Dot(v) }

func (v Vec3) Len() float64 { return math.Sqrt(v.LenSq()) }

// Dist returns the euclidean distance between v and o.
func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Len() }

// Normalize returns the unit vector of v. Vectors too short to normalize
// safely come back as the zero vector.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-5 || math.IsNaN(l) || math.IsInf(l, 0) {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Horizontal drops the vertical component.
func (v Vec3) Horizontal() Vec3 { return Vec3{X: v.X, Z: v.Z} }

// WithY returns v at altitude y.
func (v Vec3) WithY(y float64) Vec3 { return Vec3{X: v.X, Y: y, Z: v.Z} }

func (v Vec3) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

// IsFinite reports whether every component is a real number.
func (v Vec3) IsFinite() bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Lerp interpolates from v to o. t is not clamped, so negative values
// extrapolate behind v.
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return v.Add(o.Sub(v).Scale(t))
}

// RotateY rotates v about the vertical axis. Positive angles turn +Z toward
// +X, matching a left-handed Y-up frame.
func (v Vec3) RotateY(deg float64) Vec3 {
	r := deg * math.Pi / 180
	s, c := math.Sincos(r)
	return Vec3{
		X: v.X*c + v.Z*s,
		Y: v.Y,
		Z: -v.X*s + v.Z*c,
	}
}

// Angle returns the unsigned angle between a and b in degrees.
func Angle(a, b Vec3) float64 {
	den := math.Sqrt(a.LenSq() * b.LenSq())
	if den < 1e-15 {
		return 0
	}
	return math.Acos(Clamp(a.Dot(b)/den, -1, 1)) * 180 / math.Pi
}

// SignedAngle returns the angle from a to b in degrees, signed by the
// direction of rotation around axis.
func SignedAngle(a, b, axis Vec3) float64 {
	ang := Angle(a, b)
	if axis.Dot(a.Cross(b)) < 0 {
		return -ang
	}
	return ang
}

// Heading360 returns the compass heading from a to b in degrees [0, 360),
// measured clockwise from +Z.
func Heading360(a, b Vec3) float64 {
	d := b.Sub(a)
	deg := math.Atan2(d.X, d.Z) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}
