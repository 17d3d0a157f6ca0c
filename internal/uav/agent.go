// Package uav models a single simulated aircraft: its kinematics, its flight
// plan and the state machine that flies it.
package uav

import (
	"errors"
	"fmt"
	"log/slog"

	"airspace-sim/internal/conflict"
	"airspace-sim/internal/geometry"
	"airspace-sim/internal/waypoint"
)

// NoAgent marks an unset agent reference.
const NoAgent = -1

// State is the flight state of an agent.
type State int

const (
	StateNone State = iota
	StateGround
	StateLiftoff
	StateTransit
	StateLanding
	StateWaitingResponse
	StateSendingRequest
)

var stateNames = [...]string{"none", "ground", "liftoff", "transit", "landing", "waiting_response", "sending_request"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Airborne reports whether the state is one of the flying phases.
func (s State) Airborne() bool {
	return s == StateLiftoff || s == StateTransit || s == StateLanding
}

// Params are the kinematic parameters of an agent.
type Params struct {
	MaxSpeed      float64 `json:"max_speed" yaml:"max_speed"`
	Speed         float64 `json:"speed" yaml:"speed"`
	Diameter      float64 `json:"diameter" yaml:"diameter"`
	MaxFlightTime float64 `json:"max_flight_time" yaml:"max_flight_time"`
	CruiseHeight  float64 `json:"cruise_height" yaml:"cruise_height"`
}

var ErrInvalidParams = errors.New("uav: invalid parameters")

// Validate rejects parameter sets an agent cannot fly with.
func (p Params) Validate() error {
	switch {
	case p.Speed <= 0:
		return fmt.Errorf("%w: speed %v must be positive", ErrInvalidParams, p.Speed)
	case p.MaxSpeed > 0 && p.Speed > p.MaxSpeed:
		return fmt.Errorf("%w: speed %v exceeds max speed %v", ErrInvalidParams, p.Speed, p.MaxSpeed)
	case p.Diameter <= 0:
		return fmt.Errorf("%w: diameter %v must be positive", ErrInvalidParams, p.Diameter)
	}
	return nil
}

// Maneuver is a continuous evasion routine advanced once per tick. Step
// returns false when the maneuver has finished.
type Maneuver interface {
	Name() string
	Step(a *Agent, now, dt float64) bool
}

// Locator resolves the position of another live agent.
type Locator func(id int) (geometry.Vec3, bool)

// Agent is one simulated aircraft. It is driven by a single goroutine, the
// simulator tick, and is not safe for concurrent use.
type Agent struct {
	id     int
	params Params
	limits conflict.Limits

	// Kinematic agents are moved but never react to conflicts.
	Kinematic bool

	pos     geometry.Vec3
	heading geometry.Vec3
	origin  geometry.Vec3
	target  geometry.Vec3

	path     []waypoint.Waypoint
	step     int
	progress float64
	state    State
	approved bool

	// EvasionID is the agent currently being evaded, LastEvasionID the one
	// the wait timeout was last armed for.
	EvasionID     int
	LastEvasionID int
	WaitEvasion   bool
	waitDeadline  float64
	holding       bool
	holdStart     float64
	holdTotal     float64

	steering  bool
	aim       geometry.Vec3
	speedMult float64
	maneuver  Maneuver

	tracker *conflict.Tracker

	spawnTime   float64
	flightStart float64

	stillCount int
	lastCheck  geometry.Vec3

	log *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent logger.
func WithLogger(l *slog.Logger) Option { return func(a *Agent) { a.log = l } }

// WithTrackerOptions passes options to the agent's conflict tracker.
func WithTrackerOptions(opts ...conflict.Option) Option {
	return func(a *Agent) { a.tracker = conflict.NewTracker(a.id, opts...) }
}

// WithSpawnTime records when the agent entered the simulation.
func WithSpawnTime(t float64) Option { return func(a *Agent) { a.spawnTime = t } }

// New creates a grounded agent at pos that wants to fly to target.
func New(id int, p Params, pos, target geometry.Vec3, opts ...Option) (*Agent, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		id:            id,
		params:        p,
		limits:        conflict.NewLimits(p.Speed, p.Diameter),
		pos:           pos,
		heading:       geometry.Forward,
		origin:        pos,
		target:        target,
		state:         StateGround,
		EvasionID:     NoAgent,
		LastEvasionID: NoAgent,
		speedMult:     1,
		lastCheck:     pos,
		log:           slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.tracker == nil {
		a.tracker = conflict.NewTracker(id)
	}
	a.log = a.log.With("uav", id)
	return a, nil
}

func (a *Agent) ID() int                      { return a.id }
func (a *Agent) Params() Params               { return a.params }
func (a *Agent) Speed() float64               { return a.params.Speed }
func (a *Agent) Diameter() float64            { return a.params.Diameter }
func (a *Agent) CrashRadius() float64         { return a.limits.Crash() }
func (a *Agent) Limits() conflict.Limits      { return a.limits }
func (a *Agent) Position() geometry.Vec3      { return a.pos }
func (a *Agent) Heading() geometry.Vec3       { return a.heading }
func (a *Agent) Origin() geometry.Vec3        { return a.origin }
func (a *Agent) Target() geometry.Vec3        { return a.target }
func (a *Agent) State() State                 { return a.state }
func (a *Agent) PathIndex() int               { return a.step }
func (a *Agent) Progress() float64            { return a.progress }
func (a *Agent) Tracker() *conflict.Tracker   { return a.tracker }
func (a *Agent) SpeedMultiplier() float64     { return a.speedMult }
func (a *Agent) Maneuver() Maneuver           { return a.maneuver }
func (a *Agent) WaitDeadline() float64        { return a.waitDeadline }
func (a *Agent) Logger() *slog.Logger         { return a.log }
func (a *Agent) SpawnTime() float64           { return a.spawnTime }

// Steering returns the override aim point, if any.
func (a *Agent) Steering() (geometry.Vec3, bool) { return a.aim, a.steering }

// SetSpeed changes the commanded speed and recomputes the thresholds.
// Callers owning a proximity registration must resize it to the new
// Awareness limit.
func (a *Agent) SetSpeed(speed float64) error {
	p := a.params
	p.Speed = speed
	if err := p.Validate(); err != nil {
		return err
	}
	a.params = p
	a.limits = conflict.NewLimits(speed, p.Diameter)
	return nil
}

// SetTarget moves the flight destination, e.g. when the planner pulls it
// within range.
func (a *Agent) SetTarget(t geometry.Vec3) { a.target = t }

// Path returns a copy of the waypoint list.
func (a *Agent) Path() []waypoint.Waypoint {
	out := make([]waypoint.Waypoint, len(a.path))
	copy(out, a.path)
	return out
}

// PathLen returns the number of waypoints.
func (a *Agent) PathLen() int { return len(a.path) }

// CurrentWaypoint returns the start of the segment being flown.
func (a *Agent) CurrentWaypoint() (waypoint.Waypoint, bool) {
	if a.step < 0 || a.step >= len(a.path) {
		return waypoint.Waypoint{}, false
	}
	return a.path[a.step], true
}

// NextWaypoint returns the end of the segment being flown.
func (a *Agent) NextWaypoint() (waypoint.Waypoint, bool) {
	if a.step < 0 || a.step+1 >= len(a.path) {
		return waypoint.Waypoint{}, false
	}
	return a.path[a.step+1], true
}

// PathIndexValid reports whether the current index points into the path.
func (a *Agent) PathIndexValid() bool {
	return a.step >= 0 && a.step < len(a.path)
}

// FlyingSegment reports whether the agent is airborne with a segment ahead.
func (a *Agent) FlyingSegment() bool {
	_, ok := a.NextWaypoint()
	return a.state.Airborne() && ok
}

// Track returns the straight-line prediction view of the agent.
func (a *Agent) Track() geometry.Track {
	next, ok := a.NextWaypoint()
	return geometry.Track{
		Position: a.pos,
		Next:     next.Position,
		HasNext:  ok,
		Speed:    a.params.Speed,
		Diameter: a.params.Diameter,
	}
}

// SetManeuver replaces the running maneuver.
func (a *Agent) SetManeuver(m Maneuver) { a.maneuver = m }

// ClearManeuver stops the running maneuver and releases its overrides.
func (a *Agent) ClearManeuver() {
	a.maneuver = nil
	a.ClearSteer()
	a.speedMult = 1
}

// Steer makes movement aim at p instead of the next waypoint. Non-finite
// targets are ignored.
func (a *Agent) Steer(p geometry.Vec3) {
	if !p.IsFinite() {
		a.log.Warn("ignoring non-finite steering target")
		return
	}
	a.aim = p
	a.steering = true
}

// ClearSteer returns movement to the next waypoint.
func (a *Agent) ClearSteer() {
	a.steering = false
	a.aim = geometry.Vec3{}
}

// SetSpeedMultiplier scales segment speeds. Values are clamped to [0, 1].
func (a *Agent) SetSpeedMultiplier(m float64) {
	if m != m {
		return
	}
	a.speedMult = geometry.Clamp(m, 0, 1)
}

// CheckStationary is the watchdog probe. It returns true once the agent has
// not moved for more than limit consecutive checks.
func (a *Agent) CheckStationary(limit int) bool {
	if a.pos == a.lastCheck {
		a.stillCount++
	} else {
		a.stillCount = 0
	}
	a.lastCheck = a.pos
	return a.stillCount > limit
}
