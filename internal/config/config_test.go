package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"airspace-sim/internal/evasion"
)

const schemaPath = "../../schemas/simulation.cue"

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sim.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeFile(t, `
tick_seconds: 0.05
spawn:
  mode: smaller_center
  range_km2: 9
  collision_range_km2: 1
evasion:
  enabled: true
  strategy: wait_and_go
  reaction: horizontal_plane
`)
	cfg, err := Load(path, schemaPath)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.TickSeconds != 0.05 || cfg.Spawn.Mode != SpawnSmallerCenter {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.WatchdogLimit != 60 || cfg.FlightLevels.LevelHeight != 10 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if got := cfg.RangeMeters(); got != 3000 {
		t.Errorf("RangeMeters = %v", got)
	}
	if got := cfg.CollisionRangeKm2(); got != 1 {
		t.Errorf("CollisionRangeKm2 = %v", got)
	}
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load("../../config/simulation.yaml", schemaPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Evasion.Strategy != string(evasion.EvasionDeflection) {
		t.Errorf("strategy = %q", cfg.Evasion.Strategy)
	}
}

func TestLoadConfig_SchemaRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "bogus: 1\n",
		"bad strategy":     "evasion:\n  strategy: teleport\n",
		"negative tick":    "tick_seconds: -1\n",
		"bad spawn mode":   "spawn:\n  mode: polygons\n",
		"zero grid count":  "density:\n  grid_count: 0\n",
		"string for range": "spawn:\n  range_km2: big\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, body), schemaPath); err == nil {
				t.Fatal("expected schema error")
			}
		})
	}
}

func TestValidateRejectsUnknownStrategyWithoutSchema(t *testing.T) {
	path := writeFile(t, "evasion:\n  strategy: teleport\n")
	_, err := Load(path, "")
	if !errors.Is(err, evasion.ErrUnknownStrategy) {
		t.Fatalf("err = %v, want ErrUnknownStrategy", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SimulationConfig)
	}{
		{"collision range larger than range", func(c *SimulationConfig) {
			c.Spawn.Mode = SpawnSmallerCenter
			c.Spawn.CollisionRangeKm2 = 10
		}},
		{"inverted levels", func(c *SimulationConfig) { c.FlightLevels.Max = 10 }},
		{"inverted sweep", func(c *SimulationConfig) { c.Sweep.StartDensity = 5 }},
		{"unsorted density heights", func(c *SimulationConfig) { c.Density.Heights = []float64{50, 40} }},
		{"unknown reaction", func(c *SimulationConfig) { c.Evasion.Reaction = "panic" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestHeights(t *testing.T) {
	cfg := Default()
	h := cfg.Heights()
	if len(h) != 9 || h[0] != 40 || h[8] != 120 {
		t.Fatalf("Heights = %v", h)
	}
	cfg.FlightLevels.Single = true
	if h := cfg.Heights(); len(h) != 1 || h[0] != 130 {
		t.Fatalf("single Heights = %v", h)
	}
	cfg.Density.Heights = []float64{0, 100}
	if h := cfg.DensityHeights(); len(h) != 2 {
		t.Fatalf("DensityHeights = %v", h)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SPAWN_SEED", "7")
	t.Setenv("EVASION_STRATEGY", "repulsion")
	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Spawn.Seed != 7 || cfg.Evasion.Strategy != "repulsion" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	t.Setenv("SPAWN_SEED", "x")
	if err := cfg.ApplyEnv(); err == nil {
		t.Fatal("expected parse error")
	}
}
