// ColorStdoutWriter prints human-friendly, colorized conflict output to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"

	"airspace-sim/internal/config"
	"airspace-sim/internal/conflict"
	"airspace-sim/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// levelColors follows severity: awareness is calm, crash is loud.
var levelColors = [conflict.Levels]string{colorCyan, colorYellow, colorMagenta, colorRed}

func levelColor(level int) string {
	if level < 0 || level >= conflict.Levels {
		return colorGray
	}
	return levelColors[level]
}

// ColorStdoutWriter prints conflict and flight rows using ANSI colors.
// Agent rows are reduced to a per-sample summary line.
type ColorStdoutWriter struct {
	cfg  *config.SimulationConfig
	out  io.Writer
	once sync.Once
	// Verbose also prints one line per agent row.
	Verbose bool
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(cfg *config.SimulationConfig) *ColorStdoutWriter {
	return &ColorStdoutWriter{cfg: cfg, out: os.Stdout}
}

func (w *ColorStdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}

	fmt.Fprintln(w.out, "Simulation Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Spawn Mode:\t%s\n", w.cfg.Spawn.Mode)
	fmt.Fprintf(tw, "Range (km2):\t%.1f\n", w.cfg.Spawn.RangeKm2)
	fmt.Fprintf(tw, "Flights / hour:\t%.0f\n", w.cfg.Spawn.FlightsPerHour)
	fmt.Fprintf(tw, "Evasion:\t%s (enabled=%t)\n", w.cfg.Evasion.Strategy, w.cfg.Evasion.Enabled)
	fmt.Fprintf(tw, "Reaction:\t%s\n", w.cfg.Evasion.Reaction)
	fmt.Fprintf(tw, "Flight Levels:\t%v\n", w.cfg.Heights())
	fmt.Fprintf(tw, "Tick (s):\t%.2f\n", w.cfg.TickSeconds)
	tw.Flush()
	fmt.Fprintln(w.out)
}

// Write outputs a single agent row when Verbose is set.
func (w *ColorStdoutWriter) Write(row telemetry.AgentRow) error {
	w.once.Do(w.printOverview)
	if !w.Verbose {
		return nil
	}
	fmt.Fprintf(w.out, "%s[%8.1fs]%s %suav=%s%s %s%-8s%s pos=(%.1f, %.1f, %.1f) %shdg=%.0f%s spd=%.1f %slevel=%s%s\n",
		colorGray, row.SimTime, colorReset,
		colorWhite(), row.AgentID, colorReset,
		colorBlue, row.State, colorReset,
		row.X, row.Y, row.Z,
		colorCyan, row.Heading, colorReset,
		row.Speed,
		levelColor(row.Level), conflict.LevelName(row.Level), colorReset)
	return nil
}

// WriteBatch prints a one-line sample summary, then each row if Verbose.
func (w *ColorStdoutWriter) WriteBatch(rows []telemetry.AgentRow) error {
	w.once.Do(w.printOverview)
	if len(rows) == 0 {
		return nil
	}
	var counts [conflict.Levels]int
	for _, r := range rows {
		if r.Level >= 0 && r.Level < conflict.Levels {
			counts[r.Level]++
		}
	}
	fmt.Fprintf(w.out, "%s[%8.1fs]%s %sagents=%d%s", colorGray, rows[0].SimTime, colorReset, colorGreen, len(rows), colorReset)
	for lvl, n := range counts {
		fmt.Fprintf(w.out, " %s%s=%d%s", levelColor(lvl), conflict.LevelName(lvl), n, colorReset)
	}
	fmt.Fprintln(w.out)
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteConflict prints a conflict transition.
func (w *ColorStdoutWriter) WriteConflict(row telemetry.ConflictRow) error {
	w.once.Do(w.printOverview)
	tag := "START"
	switch row.Event {
	case telemetry.EventEnd:
		tag = "END"
	case telemetry.EventCrash:
		tag = "CRASH"
	}
	fmt.Fprintf(w.out, "%s[%8.1fs]%s %s%-5s %s%s uav=%d other=%d dist=%.2f",
		colorGray, row.SimTime, colorReset,
		levelColor(row.Level), tag, conflict.LevelName(row.Level), colorReset,
		row.Self, row.Other, row.Distance)
	if row.Event == telemetry.EventCrash {
		fmt.Fprintf(w.out, " %sstate=%s step=%d table=%s%s", colorRed, row.State, row.Step, row.ActiveTable, colorReset)
	}
	fmt.Fprintln(w.out)
	return nil
}

// WriteFlight prints a finished flight summary.
func (w *ColorStdoutWriter) WriteFlight(row telemetry.FlightRow) error {
	w.once.Do(w.printOverview)
	status, col := "landed", colorGreen
	if !row.Completed {
		status, col = "aborted", colorYellow
	}
	fmt.Fprintf(w.out, "%s[%8.1fs]%s %sFLIGHT %s%s uav=%s dist=%.1f dur=%.1f hold=%.1f max=%d/%d/%d/%d\n",
		colorGray, row.End, colorReset,
		col, status, colorReset,
		row.AgentID, row.Distance, row.Duration, row.HoldTime,
		row.MaxAwareness, row.MaxReaction, row.MaxImminent, row.MaxCrash)
	return nil
}

func colorWhite() string { return "\x1b[37m" }
