package telemetry

import (
	"math"
	"testing"
	"time"

	"airspace-sim/internal/conflict"
	"airspace-sim/internal/geometry"
	"airspace-sim/internal/uav"
	"airspace-sim/internal/waypoint"
)

func TestAgentRow(t *testing.T) {
	gen := &Generator{RunID: "run-1", Epoch: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	snap := uav.Snapshot{
		ID:          7,
		State:       "transit",
		Position:    geometry.V(1, 2, 3),
		Heading:     geometry.V(1, 0, 0),
		Speed:       10,
		SpeedFactor: 0.5,
		Level:       1,
		EvasionID:   4,
	}

	row := gen.AgentRow(snap, 2.5)

	if row.RunID != "run-1" || row.AgentID != "7" {
		t.Errorf("unexpected tags %+v", row)
	}
	if row.Speed != 5 {
		t.Errorf("expected effective speed 5, got %f", row.Speed)
	}
	if math.Abs(row.Heading-90) > 1e-9 {
		t.Errorf("expected heading 90, got %f", row.Heading)
	}
	if want := gen.Epoch.Add(2500 * time.Millisecond); !row.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, row.Timestamp)
	}
	if row.TableName() != AgentTableName {
		t.Errorf("unexpected table %s", row.TableName())
	}
}

func TestFlightRow(t *testing.T) {
	gen := NewGenerator("run-2")
	rec := uav.FlightRecord{
		ID:        3,
		Start:     1,
		End:       11,
		Duration:  10,
		Distance:  100,
		Completed: true,
		MaxLevels: [conflict.Levels]int{3, 2, 1, 0},
		Path: []waypoint.Waypoint{
			waypoint.New(geometry.V(0, 0, 0), 10),
			waypoint.New(geometry.V(0, 0, 100), 10),
		},
	}

	row := gen.FlightRow(rec)

	if row.MaxAwareness != 3 || row.MaxReaction != 2 || row.MaxImminent != 1 || row.MaxCrash != 0 {
		t.Errorf("unexpected level maxima %+v", row)
	}
	path, err := waypoint.ParsePath(row.Path)
	if err != nil {
		t.Fatalf("path does not parse: %v", err)
	}
	if len(path) != 2 || path[1] != rec.Path[1] {
		t.Errorf("path round trip mismatch: %v", path)
	}
}

func TestFormatLevels(t *testing.T) {
	if got := FormatLevels([conflict.Levels]int{1, 0, 12, 3}); got != "1;0;12;3" {
		t.Errorf("got %q", got)
	}
}

func TestConflictRow(t *testing.T) {
	gen := NewGenerator("run-3")
	ev := conflict.Event{Level: 2, Self: 1, Other: 9, Distance: 4.5, Position: geometry.V(1, 1, 1)}
	row := gen.ConflictRow(EventStart, ev, 0)
	if row.Event != EventStart || row.Level != 2 || row.Other != 9 || row.X != 1 {
		t.Errorf("unexpected row %+v", row)
	}
}
