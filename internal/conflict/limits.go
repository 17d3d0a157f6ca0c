// Package conflict tracks, per agent, the severity of every nearby agent pair
// and raises transition events when a severity level starts or ends.
package conflict

import "math"

// Severity levels, from the widest zone to a physical crash.
const (
	LevelNone      = -1
	LevelAwareness = 0
	LevelReaction  = 1
	LevelImminent  = 2
	LevelCrash     = 3
)

// Levels is the number of severity levels.
const Levels = 4

var levelNames = [Levels]string{"awareness", "reaction", "imminent", "crash"}

// LevelName returns a printable name for a level.
func LevelName(level int) string {
	if level < 0 || level >= Levels {
		return "none"
	}
	return levelNames[level]
}

// Limits holds the four distance thresholds of an agent, indexed by level.
type Limits [Levels]float64

// NewLimits derives thresholds from commanded speed and airframe diameter.
// Negative or non-finite inputs are treated as zero so a limit is never NaN.
func NewLimits(speed, diameter float64) Limits {
	speed = sanitize(speed)
	diameter = sanitize(diameter)
	return Limits{
		speed * 10,
		speed * 4,
		speed * 1,
		diameter / 2,
	}
}

func sanitize(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

func (l Limits) Awareness() float64 { return l[LevelAwareness] }
func (l Limits) Reaction() float64  { return l[LevelReaction] }
func (l Limits) Imminent() float64  { return l[LevelImminent] }
func (l Limits) Crash() float64     { return l[LevelCrash] }
