package scenario

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"airspace-sim/internal/geometry"
	"airspace-sim/internal/uav"
	"airspace-sim/internal/waypoint"
)

// ErrInvalid marks a scenario that cannot be flown.
var ErrInvalid = errors.New("scenario: invalid")

// Scenario is a set of scripted agents for a deterministic encounter.
type Scenario struct {
	Name        string  `yaml:"name,omitempty"`
	Description string  `yaml:"description,omitempty"`
	Agents      []Agent `yaml:"agents"`
}

// Agent is one scripted flight. With a path the agent flies it as given;
// otherwise the planner routes it from origin to target at cruise height.
// Waypoints use the textual "(x, y, z, kind, speed)" form.
type Agent struct {
	ID            int                 `yaml:"id"`
	Speed         float64             `yaml:"speed"`
	MaxSpeed      float64             `yaml:"max_speed,omitempty"`
	Diameter      float64             `yaml:"diameter"`
	MaxFlightTime float64             `yaml:"max_flight_time,omitempty"`
	CruiseHeight  float64             `yaml:"cruise_height,omitempty"`
	Origin        geometry.Vec3       `yaml:"origin,omitempty"`
	Target        geometry.Vec3       `yaml:"target,omitempty"`
	Path          []waypoint.Waypoint `yaml:"path,omitempty"`
}

// Params converts the agent settings. The maximum speed defaults to the
// commanded speed and flight time to one hour.
func (a Agent) Params() uav.Params {
	p := uav.Params{
		MaxSpeed:      a.MaxSpeed,
		Speed:         a.Speed,
		Diameter:      a.Diameter,
		MaxFlightTime: a.MaxFlightTime,
		CruiseHeight:  a.CruiseHeight,
	}
	if p.MaxSpeed == 0 {
		p.MaxSpeed = p.Speed
	}
	if p.MaxFlightTime == 0 {
		p.MaxFlightTime = 3600
	}
	return p
}

// Load reads a YAML scenario definition from disk.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects duplicate ids, bad parameters and one-point paths.
func (s *Scenario) Validate() error {
	if len(s.Agents) == 0 {
		return fmt.Errorf("%w: no agents", ErrInvalid)
	}
	seen := make(map[int]bool, len(s.Agents))
	for _, a := range s.Agents {
		if seen[a.ID] {
			return fmt.Errorf("%w: duplicate agent id %d", ErrInvalid, a.ID)
		}
		seen[a.ID] = true
		if err := a.Params().Validate(); err != nil {
			return fmt.Errorf("%w: agent %d: %v", ErrInvalid, a.ID, err)
		}
		if len(a.Path) == 1 {
			return fmt.Errorf("%w: agent %d: path needs at least two waypoints", ErrInvalid, a.ID)
		}
		if len(a.Path) == 0 && a.CruiseHeight <= 0 {
			return fmt.Errorf("%w: agent %d: planned flights need a cruise height", ErrInvalid, a.ID)
		}
	}
	return nil
}

// Adder accepts scripted agents, typically a *sim.Simulator.
type Adder interface {
	AddAgent(id int, p uav.Params, origin, target geometry.Vec3, path []waypoint.Waypoint) (*uav.Agent, error)
}

// Apply adds every agent of the scenario to dst in file order.
func (s *Scenario) Apply(dst Adder) error {
	for _, a := range s.Agents {
		origin, target := a.Origin, a.Target
		if len(a.Path) > 0 {
			origin = a.Path[0].Position
			target = a.Path[len(a.Path)-1].Position
		}
		if _, err := dst.AddAgent(a.ID, a.Params(), origin, target, a.Path); err != nil {
			return fmt.Errorf("scenario %q agent %d: %w", s.Name, a.ID, err)
		}
	}
	return nil
}
