package evasion

import (
	"math"
	"testing"

	"airspace-sim/internal/geometry"
	"airspace-sim/internal/uav"
)

func startHorizontal(t *testing.T, a, b *uav.Agent, reg registry) *horizontalPlane {
	t.Helper()
	if !(HorizontalPlane{Registry: reg}).Apply(0, a, b) {
		t.Fatal("horizontal plane refused")
	}
	m, ok := a.Maneuver().(*horizontalPlane)
	if !ok {
		t.Fatalf("maneuver is %T", a.Maneuver())
	}
	return m
}

func TestHorizontalPlaneEncounterClasses(t *testing.T) {
	tests := []struct {
		name      string
		otherFrom geometry.Vec3
		otherTo   geometry.Vec3
		speed     float64
		emergency bool
		check     func(t *testing.T, off, toOther geometry.Vec3)
	}{
		{
			name:      "head-on turns right",
			otherFrom: geometry.V(0, 0, 37),
			otherTo:   geometry.V(0, 0, -1000),
			speed:     10,
			check: func(t *testing.T, off, _ geometry.Vec3) {
				if off.X <= 0 || math.Abs(off.Z) > 1e-6 {
					t.Fatalf("expected a pure +X escape, got %v", off)
				}
			},
		},
		{
			name:      "overtaking moves away from the slower agent",
			otherFrom: geometry.V(5, 0, 26),
			otherTo:   geometry.V(5, 0, 1000),
			speed:     5,
			check: func(t *testing.T, off, _ geometry.Vec3) {
				if off.X >= -50 || math.Abs(off.Z) > 1e-6 {
					t.Fatalf("expected a -X escape away from the agent ahead, got %v", off)
				}
			},
		},
		{
			name:      "crossing escapes across the line of sight",
			otherFrom: geometry.V(60, 0, 30),
			otherTo:   geometry.V(-1000, 0, 30),
			speed:     10,
			check: func(t *testing.T, off, toOther geometry.Vec3) {
				dir := off.Normalize()
				if math.Abs(dir.Dot(toOther.Normalize())) > 0.05 {
					t.Fatalf("escape %v is not perpendicular to line of sight %v", dir, toOther)
				}
				if dir.Z >= 0 || dir.X <= 0 {
					t.Fatalf("expected a backward right escape, got %v", dir)
				}
			},
		},
		{
			name:      "diverging moves away from the other side",
			otherFrom: geometry.V(30, 0, -30),
			otherTo:   geometry.V(1000, 0, -30),
			speed:     10,
			check: func(t *testing.T, off, _ geometry.Vec3) {
				if off.X >= 0 || math.Abs(off.Z) > 1e-6 {
					t.Fatalf("expected a -X escape, got %v", off)
				}
			},
		},
		{
			name:      "inside imminent range plans an emergency escape",
			otherFrom: geometry.V(0, 0, 10),
			otherTo:   geometry.V(0, 0, -1000),
			speed:     10,
			emergency: true,
			check: func(t *testing.T, off, _ geometry.Vec3) {
				// 1.5 times the smallest regular escape of 10 s at speed 10.
				if off.Len() < 120 {
					t.Fatalf("emergency escape too short: %v", off.Len())
				}
				if off.Z >= 0 {
					t.Fatalf("emergency escape should back away, got %v", off)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := airborne(t, 1, geometry.V(0, 0, 0), geometry.V(0, 0, 1000), 10)
			b := airborne(t, 2, tt.otherFrom, tt.otherTo, tt.speed)
			reg := registry{1: a, 2: b}
			m := startHorizontal(t, a, b, reg)

			if !m.Step(a, 0.1, 0.1) {
				t.Fatal("ended on first step")
			}
			if m.phase != hpToEvasion {
				t.Fatalf("phase = %d, want heading to the escape point", m.phase)
			}
			if m.emergency != tt.emergency {
				t.Fatalf("emergency = %t, want %t", m.emergency, tt.emergency)
			}
			if m.evasion.Y != cruise || m.rejoin.Y != cruise {
				t.Fatalf("plan left the flight level: %v %v", m.evasion, m.rejoin)
			}
			aim, ok := a.Steering()
			if !ok || aim != m.evasion {
				t.Fatalf("not steering to the escape point: %v %t", aim, ok)
			}
			if a.SpeedMultiplier() >= 1 {
				t.Fatal("speed not reduced")
			}
			tt.check(t, m.evasion.Sub(a.Position()), b.Position().Sub(a.Position()).Horizontal())
		})
	}
}

func TestHorizontalPlaneReplansWhenOtherCloses(t *testing.T) {
	a, b, reg := headOn(t, 35, 10)
	m := startHorizontal(t, a, b, reg)
	m.Step(a, 0.1, 0.1)
	if m.emergency {
		t.Fatal("emergency at 35 m")
	}
	first := m.evasion

	// A different agent under the same id now sits inside Imminent range.
	near := airborne(t, 2, geometry.V(3, 0, 6), geometry.V(3, 0, -1000), 10)
	reg[2] = near
	if !m.Step(a, 0.2, 0.1) {
		t.Fatal("ended instead of replanning")
	}
	if !m.emergency || m.phase != hpToEvasion {
		t.Fatalf("emergency = %t phase = %d", m.emergency, m.phase)
	}
	if m.evasion == first {
		t.Fatal("escape point not replanned")
	}
}

func TestHorizontalPlaneEndsWithoutOther(t *testing.T) {
	a, b, reg := headOn(t, 35, 10)
	m := startHorizontal(t, a, b, reg)
	delete(reg, 2)
	if m.Step(a, 0.1, 0.1) {
		t.Fatal("maneuver kept running without the other agent")
	}
}

func TestHorizontalPlaneRunsToCompletion(t *testing.T) {
	a, b, reg := headOn(t, 35, 10)
	m := startHorizontal(t, a, b, reg)

	const dt = 0.1
	var phases []hpPhase
	minMult := 1.0
	for now := 0.0; now < 120 && a.Maneuver() != nil; now += dt {
		a.Advance(now, dt, nil)
		b.Advance(now, dt, nil)
		if a.Maneuver() != nil {
			if n := len(phases); n == 0 || phases[n-1] != m.phase {
				phases = append(phases, m.phase)
			}
			minMult = min(minMult, a.SpeedMultiplier())
		}
		if a.Position().Y != cruise {
			t.Fatalf("left the flight level at t=%.1f: %v", now, a.Position())
		}
	}

	if a.Maneuver() != nil {
		t.Fatalf("maneuver still running, phases %v", phases)
	}
	want := []hpPhase{hpToEvasion, hpToRejoin, hpReturning}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("phases = %v, want %v", phases, want)
		}
	}
	if minMult >= 0.9 {
		t.Fatalf("speed never ramped down, min multiplier %.2f", minMult)
	}
	if got := a.SpeedMultiplier(); got != 1 {
		t.Fatalf("speed multiplier = %.2f after exit", got)
	}
	if _, ok := a.Steering(); ok {
		t.Fatal("steering not cleared after exit")
	}
	if a.Position().Sub(b.Position()).Horizontal().Len() <= a.Limits().Awareness() {
		t.Fatal("exited while still inside the awareness range")
	}
}
