package dashboard

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"airspace-sim/internal/conflict"
	"airspace-sim/internal/telemetry"
)

//go:embed templates/*.tmpl
var templates embed.FS

type levelRef struct {
	Index int
	Name  string
	Ref   string
}

// View holds the table names a dashboard queries.
type View struct {
	AgentTable    string
	ConflictTable string
	FlightTable   string
	SweepTable    string
	Levels        []levelRef
}

// DefaultView uses the telemetry table names currently in effect.
func DefaultView() View {
	v := View{
		AgentTable:    telemetry.AgentTableName,
		ConflictTable: telemetry.ConflictTableName,
		FlightTable:   telemetry.FlightTableName,
		SweepTable:    telemetry.SweepTableName,
	}
	for l := 0; l < conflict.Levels; l++ {
		v.Levels = append(v.Levels, levelRef{Index: l, Name: conflict.LevelName(l), Ref: string(rune('A' + l))})
	}
	return v
}

// Render parses the embedded dashboard templates and writes rendered
// Grafana dashboards to outDir. Templates may read environment
// variables through env, which fails on unset keys.
func Render(outDir string, v View) error {
	funcMap := template.FuncMap{
		"env": func(key string) (string, error) {
			val := os.Getenv(key)
			if val == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return val, nil
		},
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	names, err := templates.ReadDir("templates")
	if err != nil {
		return err
	}
	for _, e := range names {
		t, err := template.New(e.Name()).Funcs(funcMap).ParseFS(templates, "templates/"+e.Name())
		if err != nil {
			return err
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(e.Name(), ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := t.Execute(f, v); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
