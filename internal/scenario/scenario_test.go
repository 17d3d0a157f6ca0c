package scenario

import (
	"errors"
	"testing"

	"airspace-sim/internal/geometry"
	"airspace-sim/internal/uav"
	"airspace-sim/internal/waypoint"
)

type added struct {
	id     int
	p      uav.Params
	origin geometry.Vec3
	target geometry.Vec3
	path   []waypoint.Waypoint
}

type fakeAdder struct {
	calls []added
	err   error
}

func (f *fakeAdder) AddAgent(id int, p uav.Params, origin, target geometry.Vec3, path []waypoint.Waypoint) (*uav.Agent, error) {
	f.calls = append(f.calls, added{id, p, origin, target, path})
	return nil, f.err
}

func TestLoadScenario(t *testing.T) {
	sc, err := Load("testdata/simple.yaml")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if sc.Name != "example" || sc.Description != "basic test scenario" {
		t.Fatalf("unexpected header %q %q", sc.Name, sc.Description)
	}
	if len(sc.Agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(sc.Agents))
	}
	a := sc.Agents[0]
	if len(a.Path) != 2 || a.Path[1].Position != geometry.V(500, 50, 0) || a.Path[1].Kind != waypoint.Air {
		t.Fatalf("unexpected path %v", a.Path)
	}
	b := sc.Agents[1]
	if b.Target != geometry.V(0, 0, 300) || b.Params().MaxSpeed != 12 {
		t.Fatalf("unexpected planned agent %+v", b)
	}
}

func TestLoadRejectsDuplicates(t *testing.T) {
	if _, err := Load("testdata/duplicate.yaml"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	path := straight(geometry.V(0, 50, 0), geometry.V(10, 50, 0), 5)
	tests := []struct {
		name string
		a    Agent
		ok   bool
	}{
		{"scripted", Agent{ID: 1, Speed: 5, Diameter: 1, Path: path}, true},
		{"planned", Agent{ID: 1, Speed: 5, Diameter: 1, CruiseHeight: 40}, true},
		{"no speed", Agent{ID: 1, Diameter: 1, Path: path}, false},
		{"one waypoint", Agent{ID: 1, Speed: 5, Diameter: 1, Path: path[:1]}, false},
		{"planned without height", Agent{ID: 1, Speed: 5, Diameter: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Scenario{Agents: []Agent{tt.a}}
			if err := s.Validate(); (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestApply(t *testing.T) {
	sc, err := Load("testdata/simple.yaml")
	if err != nil {
		t.Fatal(err)
	}
	f := &fakeAdder{}
	if err := sc.Apply(f); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(f.calls) != 2 {
		t.Fatalf("expected 2 agents added, got %d", len(f.calls))
	}
	if f.calls[0].origin != geometry.V(-500, 50, 0) || f.calls[0].target != geometry.V(500, 50, 0) {
		t.Errorf("scripted endpoints not taken from path: %+v", f.calls[0])
	}
	if f.calls[1].path != nil || f.calls[1].p.MaxFlightTime != 3600 {
		t.Errorf("unexpected planned call %+v", f.calls[1])
	}

	f = &fakeAdder{err: errors.New("full")}
	if err := sc.Apply(f); err == nil || len(f.calls) != 1 {
		t.Fatalf("expected Apply to stop at the first error, got %v after %d calls", err, len(f.calls))
	}
}

func TestBuiltInArcs(t *testing.T) {
	for _, name := range []string{"head-on", "crossing", "overtake", "parallel"} {
		sc, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", name, err)
		}
		if sc.Description == "" {
			t.Fatalf("arc %s missing description", name)
		}
		if err := sc.Validate(); err != nil {
			t.Fatalf("arc %s invalid: %v", name, err)
		}
	}
	if _, err := Lookup("testdata/simple.yaml"); err != nil {
		t.Fatalf("Lookup file: %v", err)
	}
}
