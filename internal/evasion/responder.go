package evasion

import (
	"log/slog"

	"airspace-sim/internal/conflict"
	"airspace-sim/internal/geometry"
	"airspace-sim/internal/uav"
	"airspace-sim/internal/waypoint"
)

// Defaults for the trajectory gate in front of Awareness evasion.
const (
	DefaultSafetyBuffer = 5.0
	DefaultLookahead    = 10.0
)

// Recorder receives every conflict transition the responder sees.
type Recorder interface {
	ConflictStarted(ev conflict.Event, now float64)
	ConflictEnded(ev conflict.Event, now float64)
	Crash(ev conflict.Event, a *uav.Agent, now float64)
}

// Options configures a Responder.
type Options struct {
	Evasion  EvasionKind
	Reaction ReactionKind
	// Enabled turns Awareness evasion on. Reactions always run.
	Enabled bool
	// YieldToEvader skips evasion when the other agent already evades us.
	YieldToEvader bool
	SafetyBuffer  float64
	Lookahead     float64
	Logger        *slog.Logger
}

// Responder implements conflict.Listener for every agent of a simulation.
type Responder struct {
	reg   Registry
	rec   Recorder
	clock func() float64
	opts  Options
	evade Strategy
	react Strategy
	log   *slog.Logger
}

// NewResponder builds the configured strategies. Unknown kinds are
// rejected here so they can never surface mid-run.
func NewResponder(reg Registry, rec Recorder, clock func() float64, opts Options) (*Responder, error) {
	evade, err := ForEvasion(opts.Evasion, reg, opts.YieldToEvader)
	if err != nil {
		return nil, err
	}
	react, err := ForReaction(opts.Reaction, reg)
	if err != nil {
		return nil, err
	}
	if opts.SafetyBuffer == 0 {
		opts.SafetyBuffer = DefaultSafetyBuffer
	}
	if opts.Lookahead == 0 {
		opts.Lookahead = DefaultLookahead
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Responder{reg: reg, rec: rec, clock: clock, opts: opts, evade: evade, react: react, log: log}, nil
}

// ConflictStarted dispatches a level start to statistics and strategies.
func (r *Responder) ConflictStarted(ev conflict.Event) {
	self, ok := r.reg.Agent(ev.Self)
	if !ok || self.Kinematic {
		return
	}
	now := r.clock()
	if r.rec != nil {
		r.rec.ConflictStarted(ev, now)
	}
	if !self.PathIndexValid() {
		r.log.Warn("path index out of range, skipping conflict response",
			"uav", ev.Self, "index", self.PathIndex(), "len", self.PathLen())
		return
	}
	other, found := r.reg.Agent(ev.Other)

	switch ev.Level {
	case conflict.LevelCrash:
		if r.rec != nil {
			r.rec.Crash(ev, self, now)
		}
	case conflict.LevelReaction:
		if !found {
			return
		}
		if r.react.Apply(now, self, other) {
			r.log.Debug("reaction started", "uav", ev.Self, "other", ev.Other, "strategy", r.react.Name())
		}
	case conflict.LevelAwareness:
		if !r.opts.Enabled || !found {
			return
		}
		if cur, _ := self.CurrentWaypoint(); cur.Kind == waypoint.CollisionEvasion {
			return
		}
		if !geometry.TrajectoriesComeTooClose(self.Track(), other.Track(), r.opts.SafetyBuffer, r.opts.Lookahead) {
			r.log.Debug("trajectories stay apart, not evading", "uav", ev.Self, "other", ev.Other)
			return
		}
		if r.evade.Apply(now, self, other) {
			r.log.Debug("evasion started", "uav", ev.Self, "other", ev.Other, "strategy", r.evade.Name())
		}
	}
}

// ConflictEnded only records the transition.
func (r *Responder) ConflictEnded(ev conflict.Event) {
	self, ok := r.reg.Agent(ev.Self)
	if !ok || self.Kinematic || r.rec == nil {
		return
	}
	r.rec.ConflictEnded(ev, r.clock())
}
