// YAML config loader with CUE validation integration
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"airspace-sim/internal/evasion"
)

// Spawn modes.
const (
	SpawnBalanced      = "balanced"
	SpawnSmallerCenter = "smaller_center"
)

// ErrInvalid wraps every semantic validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Spawn controls where and how often agents appear.
type Spawn struct {
	Mode string `yaml:"mode"`
	// RangeKm2 is the square spawn area centred on the origin.
	RangeKm2 float64 `yaml:"range_km2"`
	// CollisionRangeKm2 is the inner area used by smaller_center runs.
	CollisionRangeKm2 float64 `yaml:"collision_range_km2"`
	FlightsPerHour    float64 `yaml:"flights_per_hour"`
	Seed              int64   `yaml:"seed"`
}

// FlightLevels defines the cruise heights agents pick from.
type FlightLevels struct {
	Min         float64 `yaml:"min"`
	Max         float64 `yaml:"max"`
	LevelHeight float64 `yaml:"level_height"`
	// Single forces every agent onto SingleHeight.
	Single       bool    `yaml:"single"`
	SingleHeight float64 `yaml:"single_height"`
	// ByHeading assigns the level from the flight's compass sector.
	ByHeading bool `yaml:"by_heading"`
}

// Evasion selects the conflict response strategies.
type Evasion struct {
	Enabled       bool    `yaml:"enabled"`
	Strategy      string  `yaml:"strategy"`
	Reaction      string  `yaml:"reaction"`
	YieldToEvader bool    `yaml:"yield_to_evader"`
	SafetyBuffer  float64 `yaml:"safety_buffer"`
	Lookahead     float64 `yaml:"lookahead"`
}

// Density configures the visit count grid.
type Density struct {
	GridCount int       `yaml:"grid_count"`
	Heights   []float64 `yaml:"heights"`
}

// Sweep configures the batch density sweep.
type Sweep struct {
	StartDensity float64 `yaml:"start_density"`
	EndDensity   float64 `yaml:"end_density"`
	Step         float64 `yaml:"step"`
	Minutes      float64 `yaml:"minutes"`
	Checkpoint   string  `yaml:"checkpoint"`
	Results      string  `yaml:"results"`
	Summary      string  `yaml:"summary"`
}

// SimulationConfig is the root configuration.
type SimulationConfig struct {
	// TickSeconds is the simulated time advanced per tick.
	TickSeconds float64 `yaml:"tick_seconds"`
	// TimeScale multiplies simulated time against wall time in real-time runs.
	TimeScale         float64      `yaml:"time_scale"`
	TelemetrySeconds  float64      `yaml:"telemetry_seconds"`
	Capacity          int          `yaml:"capacity"`
	Workers           int          `yaml:"workers"`
	WatchdogLimit     int          `yaml:"watchdog_limit"`
	EventLogSize      int          `yaml:"event_log_size"`
	RecentFlights     int          `yaml:"recent_flights"`
	VerticalCutoff    float64      `yaml:"vertical_cutoff"`
	Spawn             Spawn        `yaml:"spawn"`
	FlightLevels      FlightLevels `yaml:"flight_levels"`
	Evasion           Evasion      `yaml:"evasion"`
	Density           Density      `yaml:"density"`
	Sweep             Sweep        `yaml:"sweep"`
}

// Default returns a configuration with every default applied.
func Default() *SimulationConfig {
	cfg := &SimulationConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values.
func (c *SimulationConfig) ApplyDefaults() {
	setDefault(&c.TickSeconds, 0.1)
	setDefault(&c.TimeScale, 1)
	setDefault(&c.TelemetrySeconds, 1)
	setDefault(&c.VerticalCutoff, 9.95)
	if c.Capacity == 0 {
		c.Capacity = 1024
	}
	if c.WatchdogLimit == 0 {
		c.WatchdogLimit = 60
	}
	if c.EventLogSize == 0 {
		c.EventLogSize = 1000
	}
	if c.RecentFlights == 0 {
		c.RecentFlights = 256
	}
	if c.Spawn.Mode == "" {
		c.Spawn.Mode = SpawnBalanced
	}
	setDefault(&c.Spawn.RangeKm2, 4)
	setDefault(&c.FlightLevels.Min, 40)
	setDefault(&c.FlightLevels.Max, 120)
	setDefault(&c.FlightLevels.LevelHeight, 10)
	setDefault(&c.FlightLevels.SingleHeight, 130)
	if c.Evasion.Strategy == "" {
		c.Evasion.Strategy = string(evasion.EvasionNone)
	}
	if c.Evasion.Reaction == "" {
		c.Evasion.Reaction = string(evasion.ReactionNone)
	}
	if c.Density.GridCount == 0 {
		c.Density.GridCount = 20
	}
	setDefault(&c.Sweep.Step, 1)
	setDefault(&c.Sweep.Minutes, 60)
}

func setDefault(f *float64, v float64) {
	if *f == 0 {
		*f = v
	}
}

// Validate checks enums and ranges that the schema cannot express.
func (c *SimulationConfig) Validate() error {
	if _, err := evasion.ParseEvasion(c.Evasion.Strategy); err != nil {
		return fmt.Errorf("evasion.strategy: %w", err)
	}
	if _, err := evasion.ParseReaction(c.Evasion.Reaction); err != nil {
		return fmt.Errorf("evasion.reaction: %w", err)
	}
	switch c.Spawn.Mode {
	case SpawnBalanced, SpawnSmallerCenter:
	default:
		return fmt.Errorf("%w: spawn.mode %q", ErrInvalid, c.Spawn.Mode)
	}
	if c.TickSeconds <= 0 || c.TimeScale <= 0 {
		return fmt.Errorf("%w: tick_seconds and time_scale must be positive", ErrInvalid)
	}
	if c.Spawn.RangeKm2 <= 0 {
		return fmt.Errorf("%w: spawn.range_km2 must be positive", ErrInvalid)
	}
	if c.Spawn.Mode == SpawnSmallerCenter && (c.Spawn.CollisionRangeKm2 <= 0 || c.Spawn.CollisionRangeKm2 > c.Spawn.RangeKm2) {
		return fmt.Errorf("%w: spawn.collision_range_km2 must be in (0, range_km2]", ErrInvalid)
	}
	if c.FlightLevels.Max < c.FlightLevels.Min || c.FlightLevels.LevelHeight <= 0 {
		return fmt.Errorf("%w: flight_levels", ErrInvalid)
	}
	if c.Sweep.EndDensity < c.Sweep.StartDensity || c.Sweep.Step <= 0 {
		return fmt.Errorf("%w: sweep density range", ErrInvalid)
	}
	for i := 1; i < len(c.Density.Heights); i++ {
		if c.Density.Heights[i] < c.Density.Heights[i-1] {
			return fmt.Errorf("%w: density.heights must be ascending", ErrInvalid)
		}
	}
	return nil
}

// Heights returns the cruise heights agents pick from.
func (c *SimulationConfig) Heights() []float64 {
	fl := c.FlightLevels
	if fl.Single {
		return []float64{fl.SingleHeight}
	}
	n := int((fl.Max-fl.Min)/fl.LevelHeight) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = fl.Min + float64(i)*fl.LevelHeight
	}
	return out
}

// DensityHeights returns the layer bounds of the density grid.
func (c *SimulationConfig) DensityHeights() []float64 {
	if len(c.Density.Heights) > 0 {
		return c.Density.Heights
	}
	return c.Heights()
}

// RangeMeters is the side of the square spawn area.
func (c *SimulationConfig) RangeMeters() float64 {
	return math.Sqrt(c.Spawn.RangeKm2) * 1000
}

// CollisionRangeKm2 is the area statistics refer to. Balanced runs use
// the whole spawn area.
func (c *SimulationConfig) CollisionRangeKm2() float64 {
	if c.Spawn.Mode != SpawnSmallerCenter {
		return c.Spawn.RangeKm2
	}
	return c.Spawn.CollisionRangeKm2
}

// Load loads YAML config, validates it against a CUE schema and applies
// defaults. An empty schema path skips the schema step.
func Load(configPath, cueSchemaPath string) (*SimulationConfig, error) {
	if cueSchemaPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg SimulationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal YAML config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides selected values from the environment.
func (c *SimulationConfig) ApplyEnv() error {
	if v := os.Getenv("SPAWN_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SPAWN_SEED: %w", err)
		}
		c.Spawn.Seed = seed
	}
	if v := os.Getenv("EVASION_STRATEGY"); v != "" {
		c.Evasion.Strategy = v
	}
	if v := os.Getenv("REACTION_STRATEGY"); v != "" {
		c.Evasion.Reaction = v
	}
	return c.Validate()
}
