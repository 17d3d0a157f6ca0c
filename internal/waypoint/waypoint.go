// Package waypoint defines the typed, speed-tagged path nodes agents fly through.
package waypoint

import (
	"fmt"
	"strconv"
	"strings"

	"airspace-sim/internal/geometry"
)

// Kind classifies a waypoint. The integer values are part of the text format.
type Kind int

const (
	Ground Kind = iota
	Air
	CollisionEvasion
	NoFlyEvasion
)

// GroundEpsilon is the height at or below which a position counts as ground.
const GroundEpsilon = 0.1

// MinSpeed is the speed below which a waypoint is considered suspicious.
const MinSpeed = 0.001

var kindNames = [...]string{"ground", "air", "collision_evasion", "no_fly_evasion"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool { return k >= Ground && k <= NoFlyEvasion }

// Waypoint is a positioned node in a flight path together with the speed
// used to fly the segment that ends at it.
type Waypoint struct {
	Position geometry.Vec3
	Speed    float64
	Kind     Kind
}

// New builds a waypoint and derives Ground or Air from its height.
func New(pos geometry.Vec3, speed float64) Waypoint {
	k := Ground
	if pos.Y > GroundEpsilon {
		k = Air
	}
	return NewWithKind(pos, speed, k)
}

// NewWithKind builds a waypoint with an explicit kind.
func NewWithKind(pos geometry.Vec3, speed float64, k Kind) Waypoint {
	return Waypoint{Position: pos, Speed: speed, Kind: k}
}

func (w Waypoint) WithKind(k Kind) Waypoint {
	w.Kind = k
	return w
}

// PushToHeight moves the waypoint to height h. Unless keepKind is set, a
// waypoint lifted above ground becomes Air.
func (w Waypoint) PushToHeight(h float64, keepKind bool) Waypoint {
	w.Position.Y = h
	if h > GroundEpsilon && !keepKind {
		w.Kind = Air
	}
	return w
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// String renders the waypoint as "(x, y, z, kind, speed)".
func (w Waypoint) String() string {
	return "(" + formatFloat(w.Position.X) + ", " +
		formatFloat(w.Position.Y) + ", " +
		formatFloat(w.Position.Z) + ", " +
		strconv.Itoa(int(w.Kind)) + ", " +
		formatFloat(w.Speed) + ")"
}

// Parse is the inverse of String.
func Parse(s string) (Waypoint, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = s[1 : len(s)-1]
	}
	parts := strings.Split(s, ",")
	if len(parts) != 5 {
		return Waypoint{}, fmt.Errorf("parse waypoint %q: want 5 fields, got %d", s, len(parts))
	}
	var nums [3]float64
	for i := range nums {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return Waypoint{}, fmt.Errorf("parse waypoint coordinate %d: %w", i, err)
		}
		nums[i] = f
	}
	k, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return Waypoint{}, fmt.Errorf("parse waypoint kind: %w", err)
	}
	if !Kind(k).Valid() {
		return Waypoint{}, fmt.Errorf("parse waypoint kind: unknown kind %d", k)
	}
	speed, err := strconv.ParseFloat(strings.TrimSpace(parts[4]), 64)
	if err != nil {
		return Waypoint{}, fmt.Errorf("parse waypoint speed: %w", err)
	}
	return NewWithKind(geometry.V(nums[0], nums[1], nums[2]), speed, Kind(k)), nil
}

func (w Waypoint) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *Waypoint) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*w = p
	return nil
}

// FormatPath joins waypoints with "_".
func FormatPath(path []Waypoint) string {
	parts := make([]string, len(path))
	for i, w := range path {
		parts[i] = w.String()
	}
	return strings.Join(parts, "_")
}

// ParsePath is the inverse of FormatPath.
func ParsePath(s string) ([]Waypoint, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "_")
	out := make([]Waypoint, 0, len(parts))
	for i, p := range parts {
		w, err := Parse(p)
		if err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		out = append(out, w)
	}
	return out, nil
}

// PathLength sums the segment lengths of path.
func PathLength(path []Waypoint) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += path[i-1].Position.Dist(path[i].Position)
	}
	return total
}
