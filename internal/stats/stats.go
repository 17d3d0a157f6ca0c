// Package stats aggregates conflict and flight statistics for a run.
package stats

import (
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"airspace-sim/internal/conflict"
	"airspace-sim/internal/telemetry"
	"airspace-sim/internal/uav"
)

// DefaultRecentFlights bounds the recently finished flight cache.
const DefaultRecentFlights = 256

// ConflictSink receives conflict rows.
type ConflictSink interface {
	WriteConflict(row telemetry.ConflictRow) error
}

// FlightSink receives finished flight rows.
type FlightSink interface {
	WriteFlight(row telemetry.FlightRow) error
}

// Summary is a point-in-time copy of the collector counters.
type Summary struct {
	Starts        [conflict.Levels]int `json:"starts"`
	Ends          [conflict.Levels]int `json:"ends"`
	Crashes       int                  `json:"crashes"`
	Flights       int                  `json:"flights"`
	Completed     int                  `json:"completed"`
	TotalDistance float64              `json:"total_distance"`
	TotalDuration float64              `json:"total_duration"`
	TotalHold     float64              `json:"total_hold"`
}

// Collector implements evasion.Recorder and keeps run totals.
type Collector struct {
	mu        sync.Mutex
	gen       *telemetry.Generator
	conflicts ConflictSink
	flights   FlightSink
	sum       Summary
	recent    *lru.Cache[int, uav.FlightRecord]
	log       *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

func WithConflictSink(s ConflictSink) Option { return func(c *Collector) { c.conflicts = s } }
func WithFlightSink(s FlightSink) Option     { return func(c *Collector) { c.flights = s } }
func WithLogger(l *slog.Logger) Option       { return func(c *Collector) { c.log = l } }

// New creates a collector remembering the last recent finished flights.
func New(gen *telemetry.Generator, recent int, opts ...Option) (*Collector, error) {
	if recent <= 0 {
		recent = DefaultRecentFlights
	}
	cache, err := lru.New[int, uav.FlightRecord](recent)
	if err != nil {
		return nil, err
	}
	c := &Collector{gen: gen, recent: cache, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Collector) writeConflict(row telemetry.ConflictRow) {
	if c.conflicts == nil {
		return
	}
	if err := c.conflicts.WriteConflict(row); err != nil {
		c.log.Warn("conflict write failed", "err", err)
	}
}

// ConflictStarted counts a level start.
func (c *Collector) ConflictStarted(ev conflict.Event, now float64) {
	c.mu.Lock()
	c.sum.Starts[ev.Level]++
	c.mu.Unlock()
	c.writeConflict(c.gen.ConflictRow(telemetry.EventStart, ev, now))
}

// ConflictEnded counts a level end.
func (c *Collector) ConflictEnded(ev conflict.Event, now float64) {
	c.mu.Lock()
	c.sum.Ends[ev.Level]++
	c.mu.Unlock()
	c.writeConflict(c.gen.ConflictRow(telemetry.EventEnd, ev, now))
}

// Crash records a crash row with the agent's flight context.
func (c *Collector) Crash(ev conflict.Event, a *uav.Agent, now float64) {
	c.mu.Lock()
	c.sum.Crashes++
	c.mu.Unlock()
	c.log.Info("crash", "uav", ev.Self, "other", ev.Other, "distance", ev.Distance)
	c.writeConflict(c.gen.CrashRow(ev, a, now))
}

// FlightFinished records a finished or aborted flight.
func (c *Collector) FlightFinished(rec uav.FlightRecord) {
	c.mu.Lock()
	c.sum.Flights++
	if rec.Completed {
		c.sum.Completed++
	}
	c.sum.TotalDistance += rec.Distance
	c.sum.TotalDuration += rec.Duration
	c.sum.TotalHold += rec.HoldTime
	c.recent.Add(rec.ID, rec)
	c.mu.Unlock()

	if c.flights != nil {
		if err := c.flights.WriteFlight(c.gen.FlightRow(rec)); err != nil {
			c.log.Warn("flight write failed", "uav", rec.ID, "err", err)
		}
	}
}

// Flight returns a recently finished flight.
func (c *Collector) Flight(id int) (uav.FlightRecord, bool) {
	return c.recent.Get(id)
}

// RecentFlights returns the cached flights, oldest first.
func (c *Collector) RecentFlights() []uav.FlightRecord {
	return c.recent.Values()
}

// Summary returns a copy of the counters.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sum
}

// Reset clears counters and the flight cache.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.sum = Summary{}
	c.mu.Unlock()
	c.recent.Purge()
}
