package scenario

import (
	"airspace-sim/internal/geometry"
	"airspace-sim/internal/waypoint"
)

func straight(from, to geometry.Vec3, speed float64) []waypoint.Waypoint {
	return []waypoint.Waypoint{waypoint.New(from, speed), waypoint.New(to, speed)}
}

// BuiltIn returns the predefined two-agent encounters.
func BuiltIn() map[string]Scenario {
	const h = 50.0
	return map[string]Scenario{
		"head-on": {
			Name:        "Head-on",
			Description: "Two agents on the same line flying towards each other at equal speed.",
			Agents: []Agent{
				{ID: 1, Speed: 10, Diameter: 2, Path: straight(geometry.V(-500, h, 0), geometry.V(500, h, 0), 10)},
				{ID: 2, Speed: 10, Diameter: 2, Path: straight(geometry.V(500, h, 0), geometry.V(-500, h, 0), 10)},
			},
		},
		"crossing": {
			Name:        "Crossing",
			Description: "Perpendicular tracks meeting at the origin at the same time.",
			Agents: []Agent{
				{ID: 1, Speed: 10, Diameter: 2, Path: straight(geometry.V(-500, h, 0), geometry.V(500, h, 0), 10)},
				{ID: 2, Speed: 10, Diameter: 2, Path: straight(geometry.V(0, h, -500), geometry.V(0, h, 500), 10)},
			},
		},
		"overtake": {
			Name:        "Overtake",
			Description: "A fast agent catches up with a slow one on the same track.",
			Agents: []Agent{
				{ID: 1, Speed: 20, Diameter: 2, Path: straight(geometry.V(-800, h, 0), geometry.V(800, h, 0), 20)},
				{ID: 2, Speed: 5, Diameter: 2, Path: straight(geometry.V(-500, h, 0), geometry.V(800, h, 0), 5)},
			},
		},
		"parallel": {
			Name:        "Parallel",
			Description: "Side by side tracks 50 m apart that never close in.",
			Agents: []Agent{
				{ID: 1, Speed: 10, Diameter: 2, Path: straight(geometry.V(-500, h, 0), geometry.V(500, h, 0), 10)},
				{ID: 2, Speed: 10, Diameter: 2, Path: straight(geometry.V(-500, h, 50), geometry.V(500, h, 50), 10)},
			},
		},
	}
}

// Lookup returns a built-in scenario by name, or loads it from a file.
func Lookup(nameOrPath string) (*Scenario, error) {
	if s, ok := BuiltIn()[nameOrPath]; ok {
		return &s, nil
	}
	return Load(nameOrPath)
}
