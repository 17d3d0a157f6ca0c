package telemetry

import (
	"strconv"
	"time"

	"airspace-sim/internal/conflict"
	"airspace-sim/internal/geometry"
	"airspace-sim/internal/uav"
	"airspace-sim/internal/waypoint"
)

// Generator turns simulation state into rows stamped for one run.
type Generator struct {
	RunID string
	// Epoch is the wall clock time of simulated second zero.
	Epoch time.Time
}

// NewGenerator creates a row generator for a run starting now.
func NewGenerator(runID string) *Generator {
	return &Generator{RunID: runID, Epoch: time.Now().UTC()}
}

// Stamp converts simulated seconds into a row timestamp.
func (g *Generator) Stamp(simTime float64) time.Time {
	return g.Epoch.Add(time.Duration(simTime * float64(time.Second)))
}

// AgentRow builds the per-tick sample for an agent snapshot.
func (g *Generator) AgentRow(s uav.Snapshot, simTime float64) AgentRow {
	return AgentRow{
		RunID:     g.RunID,
		AgentID:   strconv.Itoa(s.ID),
		State:     s.State,
		X:         s.Position.X,
		Y:         s.Position.Y,
		Z:         s.Position.Z,
		Heading:   headingDegrees(s.Heading),
		Speed:     s.Speed * s.SpeedFactor,
		Level:     s.Level,
		Step:      s.Step,
		EvasionID: s.EvasionID,
		Waiting:   s.Waiting,
		SimTime:   simTime,
		Timestamp: g.Stamp(simTime),
	}
}

// ConflictRow builds a start, end or crash row from a tracker event.
func (g *Generator) ConflictRow(kind string, ev conflict.Event, simTime float64) ConflictRow {
	return ConflictRow{
		RunID:         g.RunID,
		Event:         kind,
		Level:         ev.Level,
		Self:          ev.Self,
		Other:         ev.Other,
		Distance:      ev.Distance,
		CrashDistance: ev.CrashDistance,
		X:             ev.Position.X,
		Y:             ev.Position.Y,
		Z:             ev.Position.Z,
		SimTime:       simTime,
		Timestamp:     g.Stamp(simTime),
	}
}

// CrashRow extends a conflict row with the flight context of the agent
// that crashed.
func (g *Generator) CrashRow(ev conflict.Event, a *uav.Agent, simTime float64) ConflictRow {
	row := g.ConflictRow(EventCrash, ev, simTime)
	row.State = a.State().String()
	row.Step = a.PathIndex()
	row.Progress = a.Progress()
	row.Speed = a.Speed()
	row.Diameter = a.Diameter()
	row.ActiveTable = FormatLevels(a.Tracker().ActiveTable())
	row.Target = waypoint.New(a.Target(), a.Speed()).String()
	if next, ok := a.NextWaypoint(); ok {
		row.NextWaypoint = next.String()
		row.Heading = geometry.Heading360(a.Position(), next.Position)
	}
	return row
}

// FlightRow converts a finished flight record.
func (g *Generator) FlightRow(rec uav.FlightRecord) FlightRow {
	return FlightRow{
		RunID:        g.RunID,
		AgentID:      strconv.Itoa(rec.ID),
		Start:        rec.Start,
		End:          rec.End,
		Duration:     rec.Duration,
		Distance:     rec.Distance,
		HoldTime:     rec.HoldTime,
		Completed:    rec.Completed,
		Speed:        rec.Speed,
		Diameter:     rec.Diameter,
		MaxAwareness: rec.MaxLevels[conflict.LevelAwareness],
		MaxReaction:  rec.MaxLevels[conflict.LevelReaction],
		MaxImminent:  rec.MaxLevels[conflict.LevelImminent],
		MaxCrash:     rec.MaxLevels[conflict.LevelCrash],
		Path:         waypoint.FormatPath(rec.Path),
		Timestamp:    g.Stamp(rec.End),
	}
}

// FormatLevels renders per-level counts as "a;b;c;d".
func FormatLevels(counts [conflict.Levels]int) string {
	b := make([]byte, 0, 16)
	for i, c := range counts {
		if i > 0 {
			b = append(b, ';')
		}
		b = strconv.AppendInt(b, int64(c), 10)
	}
	return string(b)
}

func headingDegrees(h geometry.Vec3) float64 {
	return geometry.Heading360(geometry.Vec3{}, h)
}
