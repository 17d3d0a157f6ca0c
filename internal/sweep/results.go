package sweep

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/iancoleman/orderedmap"

	"airspace-sim/internal/config"
	"airspace-sim/internal/telemetry"
)

var csvHeader = []string{
	"mode", "range", "collision_range", "evasion", "reaction", "flight_level",
	"minutes", "density", "flight_count", "awareness", "reaction_count", "imminent", "crashes",
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// WriteCSV writes one line per sweep row.
func WriteCSV(path string, rows []telemetry.SweepRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Mode, ftoa(r.Range), ftoa(r.CollisionRange), r.Evasion, r.Reaction,
			ftoa(r.FlightLevel), ftoa(r.Minutes), ftoa(r.Density),
			strconv.Itoa(r.FlightCount), strconv.Itoa(r.Awareness), strconv.Itoa(r.Reactions),
			strconv.Itoa(r.Imminent), strconv.Itoa(r.Crashes),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// Summary builds the sweep summary with a stable key order: run settings
// first, then totals, then the per-density results.
func Summary(runID string, cfg *config.SimulationConfig, rows []telemetry.SweepRow) *orderedmap.OrderedMap {
	settings := orderedmap.New()
	settings.Set("mode", cfg.Spawn.Mode)
	settings.Set("range_km2", cfg.Spawn.RangeKm2)
	settings.Set("collision_range_km2", cfg.CollisionRangeKm2())
	settings.Set("evasion", cfg.Evasion.Strategy)
	settings.Set("reaction", cfg.Evasion.Reaction)
	settings.Set("evasion_enabled", cfg.Evasion.Enabled)
	settings.Set("flight_levels", cfg.Heights())
	settings.Set("minutes", cfg.Sweep.Minutes)

	totals := orderedmap.New()
	var flights, awareness, reactions, imminent, crashes int
	for _, r := range rows {
		flights += r.FlightCount
		awareness += r.Awareness
		reactions += r.Reactions
		imminent += r.Imminent
		crashes += r.Crashes
	}
	totals.Set("densities", len(rows))
	totals.Set("flights", flights)
	totals.Set("awareness", awareness)
	totals.Set("reactions", reactions)
	totals.Set("imminent", imminent)
	totals.Set("crashes", crashes)

	results := make([]*orderedmap.OrderedMap, 0, len(rows))
	for _, r := range rows {
		o := orderedmap.New()
		o.Set("density", r.Density)
		o.Set("flights", r.FlightCount)
		o.Set("awareness", r.Awareness)
		o.Set("reactions", r.Reactions)
		o.Set("imminent", r.Imminent)
		o.Set("crashes", r.Crashes)
		results = append(results, o)
	}

	out := orderedmap.New()
	out.Set("run_id", runID)
	out.Set("settings", settings)
	out.Set("totals", totals)
	out.Set("results", results)
	return out
}

// WriteSummary writes the JSON summary to path.
func WriteSummary(path, runID string, cfg *config.SimulationConfig, rows []telemetry.SweepRow) error {
	data, err := json.MarshalIndent(Summary(runID, cfg, rows), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
