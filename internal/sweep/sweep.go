// Package sweep runs the simulation once per traffic density and collects
// the conflict counts of each run.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/brunoga/deep"

	"airspace-sim/internal/config"
	"airspace-sim/internal/conflict"
	"airspace-sim/internal/sim"
	"airspace-sim/internal/telemetry"
)

// Sink receives each sweep row as soon as its density has finished.
type Sink interface {
	WriteSweep(telemetry.SweepRow) error
}

// Driver runs a density sweep.
type Driver struct {
	runID string
	cfg   *config.SimulationConfig
	log   *slog.Logger
	sinks []Sink
	now   func() time.Time
	// onStep is called after each density, mainly for tests.
	onStep func(i int, row telemetry.SweepRow)
}

// Option configures a Driver.
type Option func(*Driver)

func WithLogger(l *slog.Logger) Option { return func(d *Driver) { d.log = l } }
func WithSink(s Sink) Option           { return func(d *Driver) { d.sinks = append(d.sinks, s) } }

// New creates a driver for cfg.
func New(runID string, cfg *config.SimulationConfig, opts ...Option) *Driver {
	d := &Driver{runID: runID, cfg: cfg, log: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

// RunID reports the run identifier, which is the checkpoint's after a
// resumed Run.
func (d *Driver) RunID() string { return d.runID }

// Densities lists the flight densities (flights per hour per km²) of the
// sweep, start and end inclusive.
func Densities(s config.Sweep) []float64 {
	if s.Step <= 0 || s.EndDensity < s.StartDensity {
		return nil
	}
	n := int(math.Floor((s.EndDensity-s.StartDensity)/s.Step+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = s.StartDensity + float64(i)*s.Step
	}
	return out
}

// fingerprint identifies the settings a checkpoint is valid for.
func (d *Driver) fingerprint() string {
	c := d.cfg
	return fmt.Sprintf("%s|%g|%g|%s|%s|%t|%v|%g|%g|%g|%g|%d",
		c.Spawn.Mode, c.Spawn.RangeKm2, c.CollisionRangeKm2(),
		c.Evasion.Strategy, c.Evasion.Reaction, c.Evasion.Enabled, c.Heights(),
		c.Sweep.StartDensity, c.Sweep.EndDensity, c.Sweep.Step, c.Sweep.Minutes, c.Spawn.Seed)
}

func (d *Driver) resume() (*Progress, error) {
	fresh := &Progress{RunID: d.runID, Fingerprint: d.fingerprint()}
	if d.cfg.Sweep.Checkpoint == "" {
		return fresh, nil
	}
	p, err := LoadCheckpoint(d.cfg.Sweep.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if p == nil {
		return fresh, nil
	}
	if p.Fingerprint != fresh.Fingerprint {
		return nil, fmt.Errorf("%w: %s", ErrCheckpointMismatch, d.cfg.Sweep.Checkpoint)
	}
	d.log.Info("resuming sweep", "run_id", p.RunID, "done", p.Done)
	d.runID = p.RunID
	return p, nil
}

// Run sweeps every density that has not been completed yet and returns all
// rows, including those restored from the checkpoint.
func (d *Driver) Run(ctx context.Context) ([]telemetry.SweepRow, error) {
	progress, err := d.resume()
	if err != nil {
		return nil, err
	}
	densities := Densities(d.cfg.Sweep)
	for i := progress.Done; i < len(densities); i++ {
		start := time.Now()
		row, err := d.runDensity(ctx, i, densities[i])
		if err != nil {
			return progress.Rows, err
		}
		for _, s := range d.sinks {
			if err := s.WriteSweep(row); err != nil {
				d.log.Warn("sweep sink failed", "density", row.Density, "err", err)
			}
		}
		progress.Rows = append(progress.Rows, row)
		progress.Done = i + 1
		if d.cfg.Sweep.Checkpoint != "" {
			if err := SaveCheckpoint(d.cfg.Sweep.Checkpoint, progress); err != nil {
				return progress.Rows, fmt.Errorf("save checkpoint: %w", err)
			}
		}
		d.log.Info("density finished",
			"density", row.Density, "flights", row.FlightCount,
			"awareness", row.Awareness, "reactions", row.Reactions,
			"imminent", row.Imminent, "crashes", row.Crashes,
			"elapsed", time.Since(start))
		if d.onStep != nil {
			d.onStep(i, row)
		}
	}
	return progress.Rows, nil
}

// runDensity runs one fresh simulation seeded by the sweep seed and the
// density index, so a resumed sweep yields the same rows.
func (d *Driver) runDensity(ctx context.Context, i int, density float64) (telemetry.SweepRow, error) {
	cfg := deep.MustCopy(d.cfg)
	cfg.Spawn.FlightsPerHour = density * cfg.CollisionRangeKm2()

	rng := rand.New(rand.NewSource(cfg.Spawn.Seed + int64(i)))
	s, err := sim.NewSimulator(d.runID, cfg, nil, sim.WithLogger(d.log), sim.WithRand(rng))
	if err != nil {
		return telemetry.SweepRow{}, err
	}
	if err := s.RunFor(ctx, cfg.Sweep.Minutes*60); err != nil {
		return telemetry.SweepRow{}, err
	}

	sum := s.Summary()
	starts := sum.Stats.Starts
	level := cfg.FlightLevels.LevelHeight
	if cfg.FlightLevels.Single {
		level = cfg.FlightLevels.SingleHeight
	}
	return telemetry.SweepRow{
		RunID:          d.runID,
		Mode:           cfg.Spawn.Mode,
		Range:          cfg.Spawn.RangeKm2,
		CollisionRange: cfg.CollisionRangeKm2(),
		Evasion:        cfg.Evasion.Strategy,
		Reaction:       cfg.Evasion.Reaction,
		FlightLevel:    level,
		Minutes:        cfg.Sweep.Minutes,
		Density:        density,
		FlightCount:    sum.Stats.Flights + sum.Agents,
		Awareness:      starts[conflict.LevelAwareness],
		Reactions:      starts[conflict.LevelReaction],
		Imminent:       starts[conflict.LevelImminent],
		// Both agents of a pair report the crash.
		Crashes:   starts[conflict.LevelCrash] / 2,
		Timestamp: d.now().UTC(),
	}, nil
}
