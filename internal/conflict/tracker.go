package conflict

import (
	"cmp"
	"log/slog"
	"math"
	"slices"

	"airspace-sim/internal/geometry"
)

// DefaultVerticalCutoff is the vertical separation at or above which the
// three outer levels never fire.
const DefaultVerticalCutoff = 9.95

// Body is the view of an agent the tracker needs.
type Body interface {
	ID() int
	Position() geometry.Vec3
	Limits() Limits
}

// Lookup resolves an agent id to a live body. It returns false once the
// agent has been removed.
type Lookup func(id int) (Body, bool)

// Event describes one level transition for the pair (Self, Other).
type Event struct {
	Level         int
	Self          int
	Other         int
	Distance      float64
	CrashDistance float64
	Position      geometry.Vec3
}

// Listener receives level transitions. Implementations must not add or
// remove instances on the tracker that is calling them.
type Listener interface {
	ConflictStarted(Event)
	ConflictEnded(Event)
}

// Instance is the owner's record of one other agent.
type Instance struct {
	Other            int
	OtherCrashRadius float64
	LastDistance     float64
	LastDistanceSq   float64
	Active           [Levels]bool
	Level            int
}

// Tracker holds the conflict instances owned by a single agent.
type Tracker struct {
	owner     int
	cutoff    float64
	instances map[int]*Instance
	counts    [Levels]int
	maxCounts [Levels]int
	log       *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithVerticalCutoff overrides DefaultVerticalCutoff.
func WithVerticalCutoff(c float64) Option { return func(t *Tracker) { t.cutoff = c } }

// WithLogger sets the logger used for stale-reference diagnostics.
func WithLogger(l *slog.Logger) Option { return func(t *Tracker) { t.log = l } }

// NewTracker creates an empty tracker for owner.
func NewTracker(owner int, opts ...Option) *Tracker {
	t := &Tracker{
		owner:     owner,
		cutoff:    DefaultVerticalCutoff,
		instances: make(map[int]*Instance),
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Owner returns the id of the agent owning this tracker.
func (t *Tracker) Owner() int { return t.owner }

// Add starts tracking other. It returns false for the owner itself or an
// agent that is already tracked.
func (t *Tracker) Add(other int, otherCrashRadius float64) bool {
	if other == t.owner {
		return false
	}
	if _, ok := t.instances[other]; ok {
		return false
	}
	t.instances[other] = &Instance{
		Other:            other,
		OtherCrashRadius: otherCrashRadius,
		LastDistance:     math.Inf(1),
		LastDistanceSq:   math.Inf(1),
		Level:            LevelNone,
	}
	return true
}

// Remove stops tracking other. Levels still active are ended from the top
// so every start has a matching end.
func (t *Tracker) Remove(other int, l Listener) {
	inst, ok := t.instances[other]
	if !ok {
		return
	}
	delete(t.instances, other)
	if l == nil {
		return
	}
	for i := Levels - 1; i >= 0; i-- {
		if inst.Active[i] {
			l.ConflictEnded(Event{Level: i, Self: t.owner, Other: other, Distance: inst.LastDistance})
		}
	}
}

// Has reports whether other is tracked.
func (t *Tracker) Has(other int) bool {
	_, ok := t.instances[other]
	return ok
}

// Instance returns a copy of the record for other.
func (t *Tracker) Instance(other int) (Instance, bool) {
	inst, ok := t.instances[other]
	if !ok {
		return Instance{}, false
	}
	return *inst, true
}

// Instances returns copies of all records ordered by other id.
func (t *Tracker) Instances() []Instance {
	out := make([]Instance, 0, len(t.instances))
	for _, inst := range t.instances {
		out = append(out, *inst)
	}
	slices.SortFunc(out, func(a, b Instance) int { return cmp.Compare(a.Other, b.Other) })
	return out
}

// Len returns the number of tracked agents.
func (t *Tracker) Len() int { return len(t.instances) }

// Level returns the current level against other, or LevelNone.
func (t *Tracker) Level(other int) int {
	if inst, ok := t.instances[other]; ok {
		return inst.Level
	}
	return LevelNone
}

// HighestLevel returns the most severe level across all instances.
func (t *Tracker) HighestLevel() int {
	best := LevelNone
	for _, inst := range t.instances {
		best = max(best, inst.Level)
	}
	return best
}

// Counts returns, per level, how many instances were at or above that
// level during the last Update.
func (t *Tracker) Counts() [Levels]int { return t.counts }

// MaxCounts returns the running maximum of Counts.
func (t *Tracker) MaxCounts() [Levels]int { return t.maxCounts }

// ActiveTable counts the instances whose level flag is currently set.
func (t *Tracker) ActiveTable() [Levels]int {
	var table [Levels]int
	for _, inst := range t.instances {
		for i := range Levels {
			if inst.Active[i] {
				table[i]++
			}
		}
	}
	return table
}

// Update advances every instance by one tick. Escalation happens while the
// distance shrinks or holds; de-escalation while it grows. Instances whose
// other agent no longer exists are pruned.
func (t *Tracker) Update(self Body, lookup Lookup, l Listener) {
	limits := self.Limits()
	pos := self.Position()
	t.counts = [Levels]int{}

	ids := make([]int, 0, len(t.instances))
	for id := range t.instances {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var stale []int
	for _, id := range ids {
		inst, ok := t.instances[id]
		if !ok {
			continue
		}
		other, ok := lookup(id)
		if !ok {
			stale = append(stale, id)
			continue
		}
		otherPos := other.Position()
		distSq := pos.Sub(otherPos).LenSq()
		dist := math.Sqrt(distSq)
		if math.IsNaN(dist) {
			t.log.Warn("non-finite conflict distance", "self", t.owner, "other", id)
			continue
		}
		crashDist := limits.Crash() + inst.OtherCrashRadius
		vertical := math.Abs(pos.Y-otherPos.Y) < t.cutoff

		ev := Event{Self: t.owner, Other: id, Distance: dist, CrashDistance: crashDist, Position: pos}
		if dist <= inst.LastDistance {
			for i := range Levels {
				threshold := limits[i]
				if i == LevelCrash {
					threshold = crashDist
				} else if !vertical {
					continue
				}
				if dist <= threshold && inst.Level < i {
					inst.Level = i
					inst.Active[i] = true
					if l != nil {
						ev.Level = i
						l.ConflictStarted(ev)
					}
				}
			}
		} else {
			for i := Levels - 1; i >= 0; i-- {
				threshold := limits[i]
				if i == LevelCrash {
					threshold = crashDist
				}
				if dist > threshold && inst.Level >= i {
					wasActive := inst.Active[i]
					inst.Level = i - 1
					inst.Active[i] = false
					if l != nil && wasActive {
						ev.Level = i
						l.ConflictEnded(ev)
					}
				}
			}
		}

		for i := 0; i <= inst.Level; i++ {
			t.counts[i]++
		}
		inst.LastDistance = dist
		inst.LastDistanceSq = distSq
	}

	for i := range Levels {
		t.maxCounts[i] = max(t.maxCounts[i], t.counts[i])
	}
	for _, id := range stale {
		t.log.Debug("pruning conflict with removed agent", "self", t.owner, "other", id)
		t.Remove(id, nil)
	}
}
