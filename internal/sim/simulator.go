// Simulator orchestrating agents, conflict tracking and telemetry ticks
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/brunoga/deep"

	"airspace-sim/internal/config"
	"airspace-sim/internal/conflict"
	"airspace-sim/internal/density"
	"airspace-sim/internal/evasion"
	"airspace-sim/internal/geometry"
	"airspace-sim/internal/planner"
	"airspace-sim/internal/proximity"
	"airspace-sim/internal/stats"
	"airspace-sim/internal/telemetry"
	"airspace-sim/internal/uav"
	"airspace-sim/internal/waypoint"
)

// TelemetryWriter is an interface to support different output writers.
type TelemetryWriter interface {
	Write(telemetry.AgentRow) error
}

// Optional: Writers can also support batch mode
type batchWriter interface {
	WriteBatch([]telemetry.AgentRow) error
}

// ConflictWriter receives conflict transition rows.
type ConflictWriter interface {
	WriteConflict(telemetry.ConflictRow) error
}

// FlightWriter receives finished flight rows.
type FlightWriter interface {
	WriteFlight(telemetry.FlightRow) error
}

// ErrDuplicateAgent is returned by AddAgent for an id already in use.
var (
	ErrDuplicateAgent = errors.New("sim: duplicate agent id")
	ErrUnknownAgent   = errors.New("sim: unknown agent id")
)

// registry resolves agents by id without taking the simulator lock. It is
// only used from inside a tick.
type registry map[int]*uav.Agent

func (r registry) Agent(id int) (*uav.Agent, bool) {
	a, ok := r[id]
	return a, ok
}

type removal struct {
	id     int
	reason string
}

// Simulator owns the agents and advances them in fixed ticks.
type Simulator struct {
	mu sync.Mutex

	runID        string
	cfg          *config.SimulationConfig
	gen          *telemetry.Generator
	writer       TelemetryWriter
	log          *slog.Logger
	tickInterval time.Duration

	agents    registry
	order     []int
	handles   map[int]proximity.Handle
	index     *proximity.Index
	planner   *planner.Planner
	responder *evasion.Responder
	stats     *stats.Collector
	density   *density.Grid
	spawner   *Spawner
	events    *eventLog

	now           float64
	dt            float64
	// carry is simulated time requested but not yet covered by a whole
	// tick. Only the goroutine driving Run or RunFor touches it.
	carry         float64
	nextID        int
	nextCheck     float64
	nextTelemetry float64
	removals      []removal
	landed        int
	removedStuck  int
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the simulator logger.
func WithLogger(l *slog.Logger) Option { return func(s *Simulator) { s.log = l } }

// WithTickInterval sets the wall-clock interval used by Run.
func WithTickInterval(d time.Duration) Option { return func(s *Simulator) { s.tickInterval = d } }

// WithRand enables random spawning driven by r.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) { s.spawner = NewSpawner(s.cfg, r) }
}

// NewSimulator wires every collaborator from cfg. writer may be nil; when it
// also implements ConflictWriter or FlightWriter those rows are sent too.
func NewSimulator(runID string, cfg *config.SimulationConfig, writer TelemetryWriter, opts ...Option) (*Simulator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Simulator{
		runID:        runID,
		cfg:          cfg,
		gen:          telemetry.NewGenerator(runID),
		writer:       writer,
		log:          slog.Default(),
		tickInterval: time.Duration(cfg.TickSeconds * float64(time.Second)),
		agents:       make(registry),
		handles:      make(map[int]proximity.Handle),
		index:        proximity.New(proximity.WithCapacity(cfg.Capacity), proximity.WithWorkers(cfg.Workers)),
		events:       newEventLog(cfg.EventLogSize),
		dt:           cfg.TickSeconds,
	}
	for _, o := range opts {
		o(s)
	}
	s.planner = planner.New(s.log)

	var sopts []stats.Option
	sopts = append(sopts, stats.WithLogger(s.log))
	if cw, ok := writer.(ConflictWriter); ok {
		sopts = append(sopts, stats.WithConflictSink(cw))
	}
	if fw, ok := writer.(FlightWriter); ok {
		sopts = append(sopts, stats.WithFlightSink(fw))
	}
	collector, err := stats.New(s.gen, cfg.RecentFlights, sopts...)
	if err != nil {
		return nil, err
	}
	s.stats = collector

	grid, err := density.New(cfg.RangeMeters(), cfg.Density.GridCount, cfg.DensityHeights())
	if err != nil {
		return nil, fmt.Errorf("density grid: %w", err)
	}
	s.density = grid

	evKind, err := evasion.ParseEvasion(cfg.Evasion.Strategy)
	if err != nil {
		return nil, err
	}
	reKind, err := evasion.ParseReaction(cfg.Evasion.Reaction)
	if err != nil {
		return nil, err
	}
	s.responder, err = evasion.NewResponder(s.agents, &recorder{s}, s.clock, evasion.Options{
		Evasion:       evKind,
		Reaction:      reKind,
		Enabled:       cfg.Evasion.Enabled,
		YieldToEvader: cfg.Evasion.YieldToEvader,
		SafetyBuffer:  cfg.Evasion.SafetyBuffer,
		Lookahead:     cfg.Evasion.Lookahead,
		Logger:        s.log,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simulator) clock() float64 { return s.now }

// RunID returns the identifier stamped on every row.
func (s *Simulator) RunID() string { return s.runID }

// GetConfig returns a copy of the simulation configuration. The
// simulator keeps reading its own instance while it runs.
func (s *Simulator) GetConfig() *config.SimulationConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deep.MustCopy(s.cfg)
}

// Now returns the simulated time in seconds.
func (s *Simulator) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Stats exposes the statistics collector.
func (s *Simulator) Stats() *stats.Collector { return s.stats }

// Density exposes the visit count grid.
func (s *Simulator) Density() *density.Grid { return s.density }

// SetFlightsPerHour changes the random spawn rate. It has no effect unless
// the simulator was built WithRand.
func (s *Simulator) SetFlightsPerHour(fph float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spawner != nil {
		s.spawner.SetRate(fph, s.now)
	}
}

// SetAgentSpeed changes an agent's commanded speed and resizes its
// proximity sphere to the new Awareness limit.
func (s *Simulator) SetAgentSpeed(id int, speed float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	if err := a.SetSpeed(speed); err != nil {
		return err
	}
	if err := s.index.UpdateRadius(s.handles[id], a.Limits().Awareness()); err != nil {
		return err
	}
	s.log.Info("agent speed changed", "uav", id, "speed", speed, "awareness", a.Limits().Awareness())
	return nil
}

// AddAgent registers a scripted agent. When path is empty the agent asks
// the planner for a route; otherwise it flies path as given.
func (s *Simulator) AddAgent(id int, p uav.Params, origin, target geometry.Vec3, path []waypoint.Waypoint) (*uav.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAgentLocked(id, p, origin, target, path)
}

func (s *Simulator) addAgentLocked(id int, p uav.Params, origin, target geometry.Vec3, path []waypoint.Waypoint) (*uav.Agent, error) {
	if _, ok := s.agents[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateAgent, id)
	}
	a, err := uav.New(id, p, origin, target,
		uav.WithLogger(s.log.With("uav", id)),
		uav.WithSpawnTime(s.now),
		uav.WithTrackerOptions(conflict.WithVerticalCutoff(s.cfg.VerticalCutoff), conflict.WithLogger(s.log)),
	)
	if err != nil {
		return nil, err
	}
	h, err := s.index.Register(id, a.Limits().Awareness())
	if err != nil {
		return nil, err
	}
	if len(path) > 0 {
		if err := a.RequestFlight(); err != nil {
			_ = s.index.Unregister(h)
			return nil, err
		}
		if err := a.Approve(path); err != nil {
			_ = s.index.Unregister(h)
			return nil, err
		}
	} else if err := s.planner.Submit(a); err != nil {
		_ = s.index.Unregister(h)
		return nil, err
	}
	s.handles[id] = h
	s.agents[id] = a
	s.order = append(s.order, id)
	slices.Sort(s.order)
	if id >= s.nextID {
		s.nextID = id + 1
	}
	s.events.add(Event{Time: s.now, Kind: EventSpawn, Self: id, Other: uav.NoAgent, Level: conflict.LevelNone})
	return a, nil
}

// AgentCount returns the number of live agents.
func (s *Simulator) AgentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.agents)
}

// Snapshot returns the view of every live agent in id order.
func (s *Simulator) Snapshot() []uav.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uav.Snapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.agents[id].Snapshot())
	}
	return out
}

// InstanceView is a tracked neighbour of an agent.
type InstanceView struct {
	Other    int                   `json:"other"`
	Level    int                   `json:"level"`
	Distance float64               `json:"distance"`
	Active   [conflict.Levels]bool `json:"active"`
}

// AgentDetail is the admin view of one agent.
type AgentDetail struct {
	uav.Snapshot
	Path      []string             `json:"path"`
	Conflicts []InstanceView       `json:"conflicts"`
	Levels    [conflict.Levels]int `json:"levels"`
}

// Agent returns the detailed view of a live agent.
func (s *Simulator) Agent(id int) (AgentDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return AgentDetail{}, false
	}
	d := AgentDetail{
		Snapshot: a.Snapshot(),
		Levels:   a.Tracker().Counts(),
	}
	for _, inst := range a.Tracker().Instances() {
		v := InstanceView{Other: inst.Other, Level: inst.Level, Active: inst.Active}
		if !math.IsInf(inst.LastDistance, 0) {
			v.Distance = inst.LastDistance
		}
		d.Conflicts = append(d.Conflicts, v)
	}
	for _, w := range a.Path() {
		d.Path = append(d.Path, w.String())
	}
	return d, true
}

// ConflictView is one active agent pair at its current level.
type ConflictView struct {
	Self     int     `json:"self"`
	Other    int     `json:"other"`
	Level    int     `json:"level"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// Conflicts lists every tracked pair with an active level.
func (s *Simulator) Conflicts() []ConflictView {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ConflictView
	for _, id := range s.order {
		for _, inst := range s.agents[id].Tracker().Instances() {
			if inst.Level == conflict.LevelNone {
				continue
			}
			out = append(out, ConflictView{
				Self:     id,
				Other:    inst.Other,
				Level:    inst.Level,
				Name:     conflict.LevelName(inst.Level),
				Distance: inst.LastDistance,
			})
		}
	}
	return out
}

// Summary reports run totals.
type Summary struct {
	RunID   string        `json:"run_id"`
	Time    float64       `json:"sim_time"`
	Agents  int           `json:"agents"`
	Pending int           `json:"pending"`
	Landed  int           `json:"landed"`
	Stuck   int           `json:"watchdog_removed"`
	Stats   stats.Summary `json:"stats"`
}

// Summary returns the current run totals.
func (s *Simulator) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		RunID:   s.runID,
		Time:    s.now,
		Agents:  len(s.agents),
		Pending: s.planner.Pending(),
		Landed:  s.landed,
		Stuck:   s.removedStuck,
		Stats:   s.stats.Summary(),
	}
}

// Reset removes every agent and clears statistics, density and events.
// Simulated time keeps running.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		s.stageRemoval(id, EventReset)
	}
	s.applyRemovals()
	s.stats.Reset()
	s.density.Reset()
	s.events.reset()
	s.landed = 0
	s.removedStuck = 0
}
